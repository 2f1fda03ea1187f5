package distlimiter

import (
	"context"

	"go.uber.org/zap"
)

// RateLimiter is the top-level facade this package exposes to callers: it
// wires together a Clock, a Store, a LimiterRegistry, a Syncer, and a
// MetricsRecorder, and exposes the single admission entrypoint,
// TryAcquire. Construct one RateLimiter per process and share it across
// every call site.
type RateLimiter struct {
	cfg      Config
	clock    *Clock
	store    Store
	registry *LimiterRegistry
	syncer   *Syncer
	metrics  MetricsRecorder
	logger   *zap.SugaredLogger
	stop     context.CancelFunc
}

// Option configures a RateLimiter at construction time.
type Option func(*ratelimiterOptions)

type ratelimiterOptions struct {
	metrics MetricsRecorder
	logger  *zap.SugaredLogger
}

// WithMetrics installs a MetricsRecorder. The default is NoopRecorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *ratelimiterOptions) { o.metrics = m }
}

// WithLogger installs a *zap.SugaredLogger. The default is a nop logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *ratelimiterOptions) { o.logger = logger }
}

// New constructs a RateLimiter from cfg, clk, and store, starting its
// background Syncer immediately. Callers should call Stop during process
// shutdown.
func New(cfg Config, clk *Clock, store Store, opts ...Option) *RateLimiter {
	o := ratelimiterOptions{metrics: NoopRecorder{}, logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(&o)
	}

	registry := NewLimiterRegistry(cfg, clk, o.logger)
	syncer := NewSyncer(registry, store, clk, o.logger)

	rl := &RateLimiter{
		cfg:      cfg,
		clock:    clk,
		store:    store,
		registry: registry,
		syncer:   syncer,
		metrics:  o.metrics,
		logger:   o.logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl.stop = cancel
	syncer.Start(ctx)

	return rl
}

// TryAcquire is the admission entrypoint. When cfg.Enabled is false, it
// unconditionally returns true (fail-open). Otherwise it returns true iff
// this instance granted a token for resourceKey this second, applying qps
// as the current cluster-wide target.
func (rl *RateLimiter) TryAcquire(resourceKey string, qps float64) bool {
	if !rl.cfg.Enabled {
		return true
	}

	limiter := rl.registry.Get(resourceKey, qps)
	ok := limiter.TryAcquire()
	rl.metrics.Observe(resourceKey, !ok)
	return ok
}

// SetConfig updates the limiter's live configuration (enable flag, window
// size, verbose-logging resource set). A window size change resets every
// Limiter lazily on its next use.
func (rl *RateLimiter) SetConfig(cfg Config) {
	rl.cfg = cfg
	rl.registry.SetConfig(cfg)
}

// Stop halts the background Syncer and waits for it to exit. The Clock
// passed to New is not stopped; its owner calls Clock.Stop.
func (rl *RateLimiter) Stop() {
	if rl.stop != nil {
		rl.stop()
		<-rl.syncer.Done()
	}
}
