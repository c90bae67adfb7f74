package telemetry

import (
	"log/slog"
	"os"
	"testing"
)

func TestLevelFromEnvMapsKnownLevels(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for env, want := range cases {
		os.Setenv("GOT_LOG_LEVEL", env)
		if got := levelFromEnv(); got.Level() != want {
			t.Fatalf("levelFromEnv(%q) = %v, want %v", env, got.Level(), want)
		}
	}
	os.Unsetenv("GOT_LOG_LEVEL")
}

func TestInitLoggingSetsServiceAttribute(t *testing.T) {
	os.Unsetenv("GOT_JSON_LOG")
	os.Unsetenv("GOT_LOG_LEVEL")
	logger := InitLogging("gotd-test")
	if logger == nil {
		t.Fatalf("expected a non-nil logger")
	}
	if !logger.Enabled(nil, slog.LevelInfo) {
		t.Fatalf("expected info level enabled by default")
	}
}

func TestInitLoggingHonorsJSONFlag(t *testing.T) {
	os.Setenv("GOT_JSON_LOG", "true")
	defer os.Unsetenv("GOT_JSON_LOG")
	logger := InitLogging("gotd-test")
	if logger == nil {
		t.Fatalf("expected a non-nil logger")
	}
}
