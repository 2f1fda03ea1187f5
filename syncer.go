package distlimiter

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SyncInterval is the Syncer's tick period. It is not a correctness knob:
// the only reason it matters is to collapse polling into per-second work
// once Clock.Now() has advanced (see Syncer.tick).
const SyncInterval = 200 * time.Millisecond

// Syncer is the single, process-wide background task that reconciles every
// Limiter held by a registry against the coordination store. It uploads
// each Limiter's recently-finalized slot counts, downloads cluster totals
// for a slightly older slot, and, at window-aligned ticks, triggers a
// weight refresh on every Limiter.
type Syncer struct {
	registry *LimiterRegistry
	store    Store
	clock    *Clock
	logger   *zap.SugaredLogger

	previousSyncSecond atomic.Int64
	done               chan struct{}
}

// NewSyncer constructs a Syncer over registry and store, sharing clk with
// the registry's Limiters so every component observes the same notion of
// "now".
func NewSyncer(registry *LimiterRegistry, store Store, clk *Clock, logger *zap.SugaredLogger) *Syncer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Syncer{
		registry: registry,
		store:    store,
		clock:    clk,
		logger:   logger,
		done:     make(chan struct{}),
	}
	s.previousSyncSecond.Store(-1)
	return s
}

// Start launches the background tick goroutine and returns immediately.
// The goroutine exits only when ctx is canceled (best effort: the
// in-flight tick finishes, no further tick begins); Done is closed then.
func (s *Syncer) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Syncer) run(ctx context.Context) {
	defer close(s.done)
	ticker := s.clock.Underlying().Ticker(SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Done returns a channel closed once the background goroutine has exited
// after context cancellation.
func (s *Syncer) Done() <-chan struct{} {
	return s.done
}

// tick runs exactly one reconciliation pass. Any failure is logged and
// contained to this tick; the task must never die.
func (s *Syncer) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("syncer tick panicked", "recovered", r)
		}
	}()

	now := s.clock.Now()
	if now == s.previousSyncSecond.Swap(now) {
		return
	}

	windowSize := s.registry.WindowSize()
	if windowSize > 0 && now%int64(windowSize) == 0 {
		s.refreshAll(ctx, now)
	}

	pipeline := s.store.Pipeline()
	var postProcessors []func()

	s.registry.Range(func(l *Limiter) {
		postProcessors = append(postProcessors, l.sync(now, pipeline))
	})

	if err := pipeline.Exec(ctx); err != nil {
		s.logger.Warnw("syncer pipeline flush failed", "second", now, "err", err)
		return
	}

	for _, pp := range postProcessors {
		s.runPostProcessor(pp)
	}
}

// runPostProcessor runs one Limiter's post-processor, containing any panic
// so one Limiter's fault never aborts the batch.
func (s *Syncer) runPostProcessor(pp func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("syncer post-processor panicked", "recovered", r)
		}
	}()
	pp()
}

// refreshAll triggers a weight refresh on every Limiter concurrently: each
// Limiter's refresh only touches its own ring, so the Limiters are
// independent and fanning out across an errgroup shortens a tick with many
// resources without risking one Limiter's panic losing the others.
func (s *Syncer) refreshAll(ctx context.Context, now int64) {
	var g errgroup.Group
	s.registry.Range(func(l *Limiter) {
		l := l
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Errorw("limiter refresh panicked", "resource", l.resourceKey, "recovered", r)
				}
			}()
			l.refresh(now)
			return nil
		})
	})
	_ = g.Wait()
}
