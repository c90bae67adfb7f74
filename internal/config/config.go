// Package config centralizes the environment-driven settings gotd reads at
// startup, in the style libs/go/core's logging/otelinit packages use
// environment variables rather than a config file format.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
)

// Config holds every environment-tunable setting for the gotd service.
type Config struct {
	ServiceName string

	// CASBackend selects "http" or "bolt".
	CASBackend   string
	CASBaseURL   string
	CASToken     string
	CASBoltPath  string
	CASCacheSize int
	CASCacheTTL  time.Duration

	NATSURL string

	SchedulerBoltPath string

	HTTPAddr string

	DefaultQueryTimeoutMS int64

	JSONLog  bool
	LogLevel string
}

// FromEnv builds a Config from the process environment, applying the same
// defaults the teacher's services fall back to when a variable is unset.
func FromEnv() Config {
	return Config{
		ServiceName:           getEnv("GOT_SERVICE_NAME", "gotd"),
		CASBackend:            getEnv("GOT_CAS_BACKEND", "bolt"),
		CASBaseURL:            getEnv("GOT_CAS_BASE_URL", "http://localhost:5001"),
		CASToken:              os.Getenv("GOT_CAS_TOKEN"),
		CASBoltPath:           getEnv("GOT_CAS_BOLT_PATH", "./data/cas.db"),
		CASCacheSize:          getEnvInt("GOT_CAS_CACHE_SIZE", 100*1024*1024),
		CASCacheTTL:           getEnvDuration("GOT_CAS_CACHE_TTL", 30*time.Minute),
		NATSURL:               getEnv("GOT_NATS_URL", nats.DefaultURL),
		SchedulerBoltPath:     getEnv("GOT_SCHEDULE_BOLT_PATH", "./data/schedules.db"),
		HTTPAddr:              getEnv("GOT_HTTP_ADDR", ":8080"),
		DefaultQueryTimeoutMS: int64(getEnvInt("GOT_QUERY_TIMEOUT_MS", 60_000)),
		JSONLog:               getEnvBool("GOT_JSON_LOG", false),
		LogLevel:              getEnv("GOT_LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
