package distlimiter

import (
	"sync"

	"go.uber.org/zap"
)

// LimiterRegistry is a lazy map from resource key to Limiter. A Limiter is
// created on first use and replaced wholesale if the configured window
// size changes; otherwise it lives for the process.
type LimiterRegistry struct {
	limiters sync.Map // map[string]*Limiter

	cfgMu  sync.RWMutex
	cfg    Config
	clock  *Clock
	rnd    Rand
	logger *zap.SugaredLogger
}

// NewLimiterRegistry constructs an empty registry. cfg supplies the
// windowSize, K, and verbose-logging resource set new Limiters are built
// with; clk is shared by every Limiter so all ring rolls observe the same
// notion of "now".
func NewLimiterRegistry(cfg Config, clk *Clock, logger *zap.SugaredLogger) *LimiterRegistry {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LimiterRegistry{
		cfg:    cfg,
		clock:  clk,
		rnd:    defaultRand,
		logger: logger,
	}
}

// Get returns the Limiter for key, creating it (or replacing it, if the
// registry's configured window size no longer matches the existing
// Limiter's) as needed. qps is applied to the returned Limiter whether it
// is freshly built or pre-existing, since the per-call target can change.
func (r *LimiterRegistry) Get(key string, qps float64) *Limiter {
	cfg := r.config()

	if existing, ok := r.limiters.Load(key); ok {
		l := existing.(*Limiter)
		if l.windowSize == cfg.WindowSize {
			l.setQPS(qps)
			return l
		}
	}

	fresh := newLimiter(key, cfg.WindowSize, qps, cfg.logEnabled(key), cfg.K, r.clock, r.rnd, r.logger)
	actual, loaded := r.limiters.LoadOrStore(key, fresh)
	l := actual.(*Limiter)
	if loaded && l.windowSize != cfg.WindowSize {
		// The stored Limiter was built for a different window size;
		// replace it with ours.
		r.limiters.Store(key, fresh)
		l = fresh
	}
	l.setQPS(qps)
	return l
}

// SetConfig replaces the registry's configuration. Existing Limiters are
// not touched immediately; each is reset lazily, on its next Get, if the
// window size changed.
func (r *LimiterRegistry) SetConfig(cfg Config) {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	r.cfg = cfg
}

// config returns a snapshot of the registry's current configuration.
func (r *LimiterRegistry) config() Config {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.cfg
}

// WindowSize returns the registry's currently configured ring length, used
// by the Syncer to determine window-aligned ticks.
func (r *LimiterRegistry) WindowSize() int {
	return r.config().WindowSize
}

// Range calls fn for every Limiter currently held by the registry. Used by
// the Syncer to drive sync and refresh across all resources in one tick.
func (r *LimiterRegistry) Range(fn func(*Limiter)) {
	r.limiters.Range(func(_, v any) bool {
		fn(v.(*Limiter))
		return true
	})
}
