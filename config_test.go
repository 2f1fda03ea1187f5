package distlimiter

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enabled {
		t.Fatal("default config must be disabled (fail-open)")
	}
	if cfg.WindowSize != 30 {
		t.Fatalf("WindowSize = %d, want 30", cfg.WindowSize)
	}
	if cfg.K != 8.0 {
		t.Fatalf("K = %v, want 8.0", cfg.K)
	}
	if cfg.LogResourceKeys != nil {
		t.Fatal("default config must not enable verbose logging for any key")
	}
}

func TestLoadConfig_OverlaysEnvVars(t *testing.T) {
	t.Setenv("RATE_LIMITER_ENABLED", "true")
	t.Setenv("RATE_LIMITER_WINDOW_SIZE", "60")
	t.Setenv("RATE_LIMITER_LOG_KEYS", "checkout, search")

	cfg := LoadConfig(nil)

	if !cfg.Enabled {
		t.Fatal("expected Enabled=true from env override")
	}
	if cfg.WindowSize != 60 {
		t.Fatalf("WindowSize = %d, want 60", cfg.WindowSize)
	}
	if !cfg.logEnabled("checkout") || !cfg.logEnabled("search") {
		t.Fatal("expected both checkout and search to have verbose logging enabled")
	}
	if cfg.logEnabled("other") {
		t.Fatal("unexpected verbose logging enabled for an unlisted key")
	}
}

func TestLoadConfig_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("RATE_LIMITER_ENABLED", "not-a-bool")
	t.Setenv("RATE_LIMITER_WINDOW_SIZE", "-5")

	cfg := LoadConfig(nil)

	want := DefaultConfig()
	if cfg.Enabled != want.Enabled {
		t.Fatalf("Enabled = %v, want default %v after malformed input", cfg.Enabled, want.Enabled)
	}
	if cfg.WindowSize != want.WindowSize {
		t.Fatalf("WindowSize = %d, want default %d after malformed input", cfg.WindowSize, want.WindowSize)
	}
}

func TestConfig_LogEnabledWithNilSet(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.logEnabled("anything") {
		t.Fatal("logEnabled must be false with a nil LogResourceKeys set")
	}
}
