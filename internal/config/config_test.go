package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "LOG_LEVEL", "CAREBOOK_API_BASE_URL", "CAREBOOK_ACCESS_TOKEN", "CAREBOOK_REFRESH_TOKEN",
		"CAREBOOK_HTTP_TIMEOUT", "DEFAULT_SLOT_DURATION_MINS", "BOOKING_TIME_ZONE",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_TLS", "METRICS_ENABLED",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level, got %s", cfg.LogLevel)
	}
	if cfg.APIBaseURL != "http://localhost:8080/api" {
		t.Fatalf("expected default base url, got %s", cfg.APIBaseURL)
	}
	if cfg.HTTPTimeout != 15*time.Second {
		t.Fatalf("expected default timeout, got %s", cfg.HTTPTimeout)
	}
	if cfg.DefaultSlotDurationMins != 30 {
		t.Fatalf("expected default slot duration, got %d", cfg.DefaultSlotDurationMins)
	}
	if cfg.RedisAddr != "" || cfg.RedisTLS {
		t.Fatalf("expected redis disabled by default")
	}
	if cfg.MetricsEnabled {
		t.Fatalf("expected metrics disabled by default")
	}
	if loc, err := cfg.Location(); err != nil || loc != time.UTC {
		t.Fatalf("expected UTC location, got %v (%v)", loc, err)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CAREBOOK_API_BASE_URL", "https://directory.example.com/api/")
	t.Setenv("CAREBOOK_ACCESS_TOKEN", " token-1 ")
	t.Setenv("CAREBOOK_HTTP_TIMEOUT", "3s")
	t.Setenv("DEFAULT_SLOT_DURATION_MINS", "45")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("METRICS_ENABLED", "1")
	cfg := Load()
	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
	if cfg.APIBaseURL != "https://directory.example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.APIBaseURL)
	}
	if cfg.AccessToken != "token-1" {
		t.Fatalf("expected trimmed token, got %q", cfg.AccessToken)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.HTTPTimeout)
	}
	if cfg.DefaultSlotDurationMins != 45 {
		t.Fatalf("expected slot duration override, got %d", cfg.DefaultSlotDurationMins)
	}
	if cfg.RedisAddr != "localhost:6379" || !cfg.RedisTLS {
		t.Fatalf("expected redis overrides, got %s tls=%v", cfg.RedisAddr, cfg.RedisTLS)
	}
	if !cfg.MetricsEnabled {
		t.Fatalf("expected metrics enabled")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAREBOOK_HTTP_TIMEOUT", "soon")
	t.Setenv("DEFAULT_SLOT_DURATION_MINS", "half-hour")
	cfg := Load()
	if cfg.HTTPTimeout != 15*time.Second {
		t.Fatalf("expected default timeout, got %s", cfg.HTTPTimeout)
	}
	if cfg.DefaultSlotDurationMins != 30 {
		t.Fatalf("expected default duration, got %d", cfg.DefaultSlotDurationMins)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "CAREBOOK_ACCESS_TOKEN") {
		t.Fatalf("expected missing token error, got %v", err)
	}

	cfg.AccessToken = "token"
	cfg.BookingTimeZone = "Not/AZone"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "BOOKING_TIME_ZONE") {
		t.Fatalf("expected time zone error, got %v", err)
	}

	cfg.BookingTimeZone = "UTC"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
