// Package config loads parley's environment-variable-driven configuration,
// following the teacher's field-per-knob struct style (pkg/config/queue.go,
// defaults.go) but sourced from the process environment instead of a YAML
// agent/chain registry: parley's agents are user-owned runtime rows, not an
// operator-curated static fleet, so there is no registry to load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/database"
)

// WorkerMode selects whether the turn worker runs in-process with the API
// service or as a standalone process reached over the internal HTTP surface.
type WorkerMode string

const (
	WorkerModeInProcess WorkerMode = "in-process"
	WorkerModeRemote    WorkerMode = "remote"
)

// Config is parley's complete runtime configuration.
type Config struct {
	Database database.Config
	HTTP     HTTPConfig
	Security SecurityConfig
	Worker   WorkerConfig
	Watchdog WatchdogConfig
	Demo     DemoConfig
	Log      LogConfig
}

// HTTPConfig controls the API service's listener.
type HTTPConfig struct {
	BindAddr                string
	GracefulShutdownTimeout time.Duration
}

// DefaultHTTPConfig returns the built-in HTTP defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BindAddr:                ":8080",
		GracefulShutdownTimeout: 15 * time.Second,
	}
}

// SecurityConfig holds the secrets used for session cookies, token
// encryption, and the internal API.
type SecurityConfig struct {
	SessionSigningKey  []byte // HMAC-SHA256 key for cryptoutil.SignCookie
	TokenEncryptionKey []byte // 32-byte AES-256 key for cryptoutil.EncryptToken
	InternalAPIKey     string // pre-shared key checked on /api/internal/*
	SessionTTL         time.Duration
}

// WorkerConfig controls the turn worker's tunables (spec.md §6).
type WorkerConfig struct {
	Mode              WorkerMode
	RemoteBaseURL     string
	MaxRetries        int
	HistoryWindow     int
	SummaryThreshold  int
	SummaryWindow     int
	LLMRequestTimeout time.Duration
	MaxMessageLength  int
}

// DefaultWorkerConfig returns the built-in worker defaults (spec.md §6).
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Mode:              WorkerModeInProcess,
		MaxRetries:        3,
		HistoryWindow:     15,
		SummaryThreshold:  20,
		SummaryWindow:     10,
		LLMRequestTimeout: 60 * time.Second,
		MaxMessageLength:  2000,
	}
}

// WatchdogConfig controls the stall/idle scan (spec.md §4.4).
type WatchdogConfig struct {
	Interval     time.Duration
	StallTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultWatchdogConfig returns the built-in watchdog defaults.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		Interval:     30 * time.Second,
		StallTimeout: 5 * time.Minute,
		IdleTimeout:  30 * time.Minute,
	}
}

// DemoConfig identifies the protected demo/snapshot objects spec.md §6 and §8
// scenario 5 require: deleting them must be rejected regardless of caller.
type DemoConfig struct {
	UserID            uuid.UUID
	TokenID           uuid.UUID
	ProjectIDs        []uuid.UUID
	SnapshotProjectID uuid.UUID
	MessageLimitCeil  int
}

// LogConfig controls structured logging via log/slog.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json (production) or text (development)
}

// DefaultLogConfig returns the built-in logging defaults.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "json"}
}

// Load reads Config from the process environment, applying defaults and then
// validating the result.
func Load() (Config, error) {
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("config: database: %w", err)
	}

	cfg := Config{
		Database: dbCfg,
		HTTP:     DefaultHTTPConfig(),
		Worker:   DefaultWorkerConfig(),
		Watchdog: DefaultWatchdogConfig(),
		Log:      DefaultLogConfig(),
	}

	if v := os.Getenv("PARLEY_BIND_ADDR"); v != "" {
		cfg.HTTP.BindAddr = v
	}
	if d, err := parseDurationEnv("PARLEY_SHUTDOWN_TIMEOUT"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.HTTP.GracefulShutdownTimeout = d
	}

	cfg.Security.SessionSigningKey = []byte(os.Getenv("PARLEY_SESSION_SIGNING_KEY"))
	cfg.Security.TokenEncryptionKey = []byte(os.Getenv("PARLEY_TOKEN_ENCRYPTION_KEY"))
	cfg.Security.InternalAPIKey = os.Getenv("PARLEY_INTERNAL_API_KEY")
	cfg.Security.SessionTTL = 7 * 24 * time.Hour
	if d, err := parseDurationEnv("PARLEY_SESSION_TTL"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.Security.SessionTTL = d
	}

	if v := os.Getenv("PARLEY_WORKER_MODE"); v != "" {
		cfg.Worker.Mode = WorkerMode(v)
	}
	cfg.Worker.RemoteBaseURL = os.Getenv("PARLEY_WORKER_BASE_URL")
	if n, err := parseIntEnv("PARLEY_WORKER_MAX_RETRIES"); err != nil {
		return Config{}, err
	} else if n > 0 {
		cfg.Worker.MaxRetries = n
	}
	if n, err := parseIntEnv("PARLEY_WORKER_HISTORY_WINDOW"); err != nil {
		return Config{}, err
	} else if n > 0 {
		cfg.Worker.HistoryWindow = n
	}
	if n, err := parseIntEnv("PARLEY_WORKER_SUMMARY_THRESHOLD"); err != nil {
		return Config{}, err
	} else if n > 0 {
		cfg.Worker.SummaryThreshold = n
	}
	if n, err := parseIntEnv("PARLEY_WORKER_SUMMARY_WINDOW"); err != nil {
		return Config{}, err
	} else if n > 0 {
		cfg.Worker.SummaryWindow = n
	}
	if d, err := parseDurationEnv("PARLEY_WORKER_LLM_TIMEOUT"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.Worker.LLMRequestTimeout = d
	}
	if n, err := parseIntEnv("PARLEY_WORKER_MAX_MESSAGE_LENGTH"); err != nil {
		return Config{}, err
	} else if n > 0 {
		cfg.Worker.MaxMessageLength = n
	}

	if d, err := parseDurationEnv("PARLEY_WATCHDOG_INTERVAL"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.Watchdog.Interval = d
	}
	if d, err := parseDurationEnv("PARLEY_WATCHDOG_STALL_TIMEOUT"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.Watchdog.StallTimeout = d
	}
	if d, err := parseDurationEnv("PARLEY_WATCHDOG_IDLE_TIMEOUT"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.Watchdog.IdleTimeout = d
	}

	cfg.Demo.MessageLimitCeil = 500
	if v := os.Getenv("PARLEY_DEMO_USER_ID"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			cfg.Demo.UserID = id
		}
	}
	if v := os.Getenv("PARLEY_DEMO_TOKEN_ID"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			cfg.Demo.TokenID = id
		}
	}
	if v := os.Getenv("PARLEY_DEMO_PROJECT_IDS"); v != "" {
		for _, s := range strings.Split(v, ",") {
			if id, err := uuid.Parse(strings.TrimSpace(s)); err == nil {
				cfg.Demo.ProjectIDs = append(cfg.Demo.ProjectIDs, id)
			}
		}
	}
	if v := os.Getenv("PARLEY_DEMO_SNAPSHOT_PROJECT_ID"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			cfg.Demo.SnapshotProjectID = id
		}
	}
	if n, err := parseIntEnv("PARLEY_DEMO_MESSAGE_LIMIT_CEIL"); err != nil {
		return Config{}, err
	} else if n > 0 {
		cfg.Demo.MessageLimitCeil = n
	}

	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PARLEY_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every required secret and tunable is present and sane,
// joining every failure the teacher's validator.go style collects them all.
func (c Config) Validate() error {
	var errs []string

	if len(c.Security.SessionSigningKey) == 0 {
		errs = append(errs, "PARLEY_SESSION_SIGNING_KEY is required")
	}
	if len(c.Security.TokenEncryptionKey) != 32 {
		errs = append(errs, "PARLEY_TOKEN_ENCRYPTION_KEY must be exactly 32 bytes (AES-256)")
	}
	if c.Worker.Mode == WorkerModeRemote && c.Worker.RemoteBaseURL == "" {
		errs = append(errs, "PARLEY_WORKER_BASE_URL is required when PARLEY_WORKER_MODE=remote")
	}
	if c.Worker.Mode != WorkerModeInProcess && c.Worker.Mode != WorkerModeRemote {
		errs = append(errs, fmt.Sprintf("PARLEY_WORKER_MODE %q is not one of in-process, remote", c.Worker.Mode))
	}
	if c.Security.InternalAPIKey == "" {
		errs = append(errs, "PARLEY_INTERNAL_API_KEY is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

func parseIntEnv(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return n, nil
}

func parseDurationEnv(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}
