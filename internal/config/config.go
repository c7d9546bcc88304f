package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the call control engine.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Per-session conversation timers. These are the defaults handed to every
	// new session; the assistant configuration may tighten the idle timeout.
	IdleTimeout          time.Duration
	MaxSpeechWaitTimeout time.Duration
	MaxSessionDuration   time.Duration

	// Asterisk REST Interface (media/signaling driver).
	ARIURL         string
	ARIUsername    string
	ARIPassword    string
	ARIApplication string

	// Control-plane API used to resolve assistant configurations.
	APIServerEndpoint string
	IntegrationsFile  string

	// Text-to-speech engine. Empty TTSURL disables the Say verb.
	TTSURL   string
	TTSVoice string

	// Base URL under which the engine fetches synthesized media. Must be
	// reachable from the Asterisk host.
	PublicMediaURL string

	// Registration/platform event bus. Empty disables the watcher.
	NATSURL string

	DatabaseURL string

	// Buffer size of each session's inbound event queue.
	EventQueueSize int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "centrex"),
		AllowAnyOrigin:   false,
		ARIURL:           envOrDefault("ARI_URL", "http://localhost:8088/ari"),
		ARIUsername:      envOrDefault("ARI_USERNAME", "ari"),
		ARIPassword:      stringsTrimSpace("ARI_PASSWORD"),
		ARIApplication:   envOrDefault("ARI_APPLICATION", "centrex"),
		// The apiserver answers application lookups during session setup.
		APIServerEndpoint:    envOrDefault("APISERVER_ENDPOINT", "http://localhost:50051"),
		IntegrationsFile:     envOrDefault("INTEGRATIONS_FILE", "integrations.json"),
		TTSURL:               stringsTrimSpace("TTS_URL"),
		TTSVoice:             envOrDefault("TTS_VOICE", "af_heart"),
		PublicMediaURL:       envOrDefault("PUBLIC_MEDIA_URL", "http://localhost:8080"),
		NATSURL:              stringsTrimSpace("NATS_URL"),
		DatabaseURL:          stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:      15 * time.Second,
		IdleTimeout:          30 * time.Second,
		MaxSpeechWaitTimeout: 10 * time.Second,
		MaxSessionDuration:   30 * time.Minute,
		EventQueueSize:       64,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.IdleTimeout, err = durationFromEnv("APP_IDLE_TIMEOUT", cfg.IdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxSpeechWaitTimeout, err = durationFromEnv("APP_MAX_SPEECH_WAIT_TIMEOUT", cfg.MaxSpeechWaitTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxSessionDuration, err = durationFromEnv("APP_MAX_SESSION_DURATION", cfg.MaxSessionDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.EventQueueSize, err = intFromEnv("APP_EVENT_QUEUE_SIZE", cfg.EventQueueSize)
	if err != nil {
		return Config{}, err
	}

	if cfg.IdleTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_IDLE_TIMEOUT must be at least 1s")
	}
	if cfg.MaxSpeechWaitTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_MAX_SPEECH_WAIT_TIMEOUT must be at least 1s")
	}
	if cfg.MaxSessionDuration < time.Minute {
		return Config{}, fmt.Errorf("APP_MAX_SESSION_DURATION must be at least 1m")
	}
	if cfg.EventQueueSize <= 0 {
		return Config{}, fmt.Errorf("APP_EVENT_QUEUE_SIZE must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
