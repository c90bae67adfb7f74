package config

import (
	"os"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"GOT_SERVICE_NAME", "GOT_CAS_BACKEND", "GOT_CAS_BASE_URL", "GOT_CAS_TOKEN",
		"GOT_CAS_BOLT_PATH", "GOT_CAS_CACHE_SIZE", "GOT_CAS_CACHE_TTL", "GOT_NATS_URL",
		"GOT_SCHEDULE_BOLT_PATH", "GOT_HTTP_ADDR", "GOT_QUERY_TIMEOUT_MS", "GOT_JSON_LOG", "GOT_LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}

	cfg := FromEnv()
	if cfg.ServiceName != "gotd" {
		t.Fatalf("expected default service name gotd, got %q", cfg.ServiceName)
	}
	if cfg.CASBackend != "bolt" {
		t.Fatalf("expected default cas backend bolt, got %q", cfg.CASBackend)
	}
	if cfg.DefaultQueryTimeoutMS != 60_000 {
		t.Fatalf("expected default query timeout 60000ms, got %d", cfg.DefaultQueryTimeoutMS)
	}
	if cfg.JSONLog {
		t.Fatalf("expected json logging to default to false")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	os.Setenv("GOT_SERVICE_NAME", "custom-gotd")
	os.Setenv("GOT_CAS_BACKEND", "http")
	os.Setenv("GOT_CAS_CACHE_TTL", "5m")
	os.Setenv("GOT_JSON_LOG", "true")
	defer func() {
		os.Unsetenv("GOT_SERVICE_NAME")
		os.Unsetenv("GOT_CAS_BACKEND")
		os.Unsetenv("GOT_CAS_CACHE_TTL")
		os.Unsetenv("GOT_JSON_LOG")
	}()

	cfg := FromEnv()
	if cfg.ServiceName != "custom-gotd" {
		t.Fatalf("expected overridden service name, got %q", cfg.ServiceName)
	}
	if cfg.CASBackend != "http" {
		t.Fatalf("expected overridden cas backend http, got %q", cfg.CASBackend)
	}
	if cfg.CASCacheTTL != 5*time.Minute {
		t.Fatalf("expected overridden cache ttl 5m, got %v", cfg.CASCacheTTL)
	}
	if !cfg.JSONLog {
		t.Fatalf("expected overridden json log true")
	}
}

func TestFromEnvInvalidIntFallsBack(t *testing.T) {
	os.Setenv("GOT_CAS_CACHE_SIZE", "not-a-number")
	defer os.Unsetenv("GOT_CAS_CACHE_SIZE")

	cfg := FromEnv()
	if cfg.CASCacheSize != 100*1024*1024 {
		t.Fatalf("expected fallback cache size on invalid input, got %d", cfg.CASCacheSize)
	}
}
