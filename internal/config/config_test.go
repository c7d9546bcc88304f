package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Fatalf("IdleTimeout = %v, want 30s", cfg.IdleTimeout)
	}
	if cfg.MaxSessionDuration != 30*time.Minute {
		t.Fatalf("MaxSessionDuration = %v, want 30m", cfg.MaxSessionDuration)
	}
	if cfg.NATSURL != "" {
		t.Fatalf("NATSURL = %q, want empty default", cfg.NATSURL)
	}
}

func TestLoadParsesTimerOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_IDLE_TIMEOUT", "45s")
	t.Setenv("APP_MAX_SPEECH_WAIT_TIMEOUT", "8s")
	t.Setenv("APP_MAX_SESSION_DURATION", "10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.IdleTimeout != 45*time.Second {
		t.Fatalf("IdleTimeout = %v, want 45s", cfg.IdleTimeout)
	}
	if cfg.MaxSpeechWaitTimeout != 8*time.Second {
		t.Fatalf("MaxSpeechWaitTimeout = %v, want 8s", cfg.MaxSpeechWaitTimeout)
	}
	if cfg.MaxSessionDuration != 10*time.Minute {
		t.Fatalf("MaxSessionDuration = %v, want 10m", cfg.MaxSessionDuration)
	}
}

func TestLoadRejectsTinyTimers(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_IDLE_TIMEOUT", "100ms")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject sub-second idle timeout")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_IDLE_TIMEOUT",
		"APP_MAX_SPEECH_WAIT_TIMEOUT",
		"APP_MAX_SESSION_DURATION",
		"APP_EVENT_QUEUE_SIZE",
		"ARI_URL",
		"ARI_USERNAME",
		"ARI_PASSWORD",
		"ARI_APPLICATION",
		"APISERVER_ENDPOINT",
		"INTEGRATIONS_FILE",
		"NATS_URL",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
