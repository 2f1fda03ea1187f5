// Command ratelimiterd demonstrates wiring the distributed rate limiter
// end to end: it constructs a Clock, a Store (Redis if REDIS_ADDR is set,
// otherwise an in-process MemStore), a LimiterRegistry, and a Syncer, then
// serves an /admit endpoint that calls TryAcquire per request, alongside
// a /metrics endpoint for Prometheus.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ratelim/distlimiter"
	"github.com/ratelim/distlimiter/promrecorder"
	"github.com/ratelim/distlimiter/redisstore"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck
	sugar := logger.Sugar()

	cfg := distlimiter.LoadConfig(sugar)
	clk := distlimiter.NewSystemClock()
	defer clk.Stop()

	store := newStore(sugar, clk)

	recorder, err := promrecorder.New(prometheus.DefaultRegisterer)
	if err != nil {
		sugar.Fatalw("failed to register metrics", "err", err)
	}

	limiter := distlimiter.New(cfg, clk, store,
		distlimiter.WithMetrics(recorder),
		distlimiter.WithLogger(sugar))
	defer limiter.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/admit", func(w http.ResponseWriter, r *http.Request) {
		resource := r.URL.Query().Get("resource")
		if resource == "" {
			resource = "default"
		}
		qps := 100.0
		if raw := r.URL.Query().Get("qps"); raw != "" {
			if v, parseErr := strconv.ParseFloat(raw, 64); parseErr == nil {
				qps = v
			}
		}

		if limiter.TryAcquire(resource, qps) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok\n"))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limited\n"))
	})

	srv := &http.Server{
		Addr:              addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		sugar.Infow("listening", "addr", srv.Addr)
		if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			sugar.Fatalw("server failed", "err", serveErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func newStore(logger *zap.SugaredLogger, clk *distlimiter.Clock) distlimiter.Store {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		logger.Infow("using redis store", "addr", addr)
		return redisstore.New(client)
	}
	logger.Infow("using in-process store; set REDIS_ADDR for a real coordination store")
	return distlimiter.NewMemStore(clk)
}

func addr() string {
	if a := os.Getenv("RATE_LIMITERD_ADDR"); a != "" {
		return a
	}
	return ":8080"
}
