package distlimiter

import (
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Config holds the operator-facing knobs for this package. Enabled is the
// master switch: when false, TryAcquire fails open unconditionally.
// WindowSize changing resets every Limiter held by a LimiterRegistry.
// LogResourceKeys names the resources for which verbose per-slot logging is
// emitted. K is the carry-over clamp multiple applied after a weight
// refresh (see Limiter.getOrUpdateSlot).
type Config struct {
	Enabled         bool
	WindowSize      int
	LogResourceKeys map[string]struct{}
	K               float64
}

// DefaultConfig returns the implementation-defined defaults: disabled
// (fail-open), a 30-second window, no verbose logging, and an 8x carry-over
// clamp.
func DefaultConfig() Config {
	return Config{
		Enabled:         false,
		WindowSize:      30,
		LogResourceKeys: nil,
		K:               8.0,
	}
}

// LoadConfig overlays RATE_LIMITER_ENABLED, RATE_LIMITER_WINDOW_SIZE, and
// RATE_LIMITER_LOG_KEYS (a comma-separated resource key list) onto
// DefaultConfig. A malformed value is ignored and the default is kept; the
// bad value is logged at Warn via logger (a nop logger is fine in tests).
// Configuration loading never fails the admission API: whatever Config
// results from this function is always usable.
func LoadConfig(logger *zap.SugaredLogger) Config {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cfg := DefaultConfig()

	if raw, ok := os.LookupEnv("RATE_LIMITER_ENABLED"); ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Enabled = v
		} else {
			logger.Warnw("ignoring malformed RATE_LIMITER_ENABLED", "value", raw, "err", err)
		}
	}

	if raw, ok := os.LookupEnv("RATE_LIMITER_WINDOW_SIZE"); ok {
		if v, err := strconv.Atoi(raw); err == nil && v >= 3 {
			cfg.WindowSize = v
		} else {
			logger.Warnw("ignoring malformed RATE_LIMITER_WINDOW_SIZE", "value", raw)
		}
	}

	if raw, ok := os.LookupEnv("RATE_LIMITER_LOG_KEYS"); ok && raw != "" {
		keys := make(map[string]struct{})
		for _, k := range strings.Split(raw, ",") {
			k = strings.TrimSpace(k)
			if k != "" {
				keys[k] = struct{}{}
			}
		}
		cfg.LogResourceKeys = keys
	}

	return cfg
}

func (c Config) logEnabled(resourceKey string) bool {
	if c.LogResourceKeys == nil {
		return false
	}
	_, ok := c.LogResourceKeys[resourceKey]
	return ok
}
