package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coworklab/parley/pkg/database"
)

func validBaseConfig() Config {
	return Config{
		Database: database.Config{
			Host: "localhost", Port: 5432, User: "parley", Password: "secret", Database: "parley",
			SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
		},
		HTTP: DefaultHTTPConfig(),
		Security: SecurityConfig{
			SessionSigningKey:  []byte("signing-key"),
			TokenEncryptionKey: make([]byte, 32),
			InternalAPIKey:     "preshared",
		},
		Worker:   DefaultWorkerConfig(),
		Watchdog: DefaultWatchdogConfig(),
		Log:      DefaultLogConfig(),
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing session signing key",
			mutate:  func(c *Config) { c.Security.SessionSigningKey = nil },
			wantErr: true,
			errMsg:  "PARLEY_SESSION_SIGNING_KEY is required",
		},
		{
			name:    "wrong length encryption key",
			mutate:  func(c *Config) { c.Security.TokenEncryptionKey = []byte("too-short") },
			wantErr: true,
			errMsg:  "must be exactly 32 bytes",
		},
		{
			name:    "missing internal api key",
			mutate:  func(c *Config) { c.Security.InternalAPIKey = "" },
			wantErr: true,
			errMsg:  "PARLEY_INTERNAL_API_KEY is required",
		},
		{
			name: "remote worker mode without base url",
			mutate: func(c *Config) {
				c.Worker.Mode = WorkerModeRemote
				c.Worker.RemoteBaseURL = ""
			},
			wantErr: true,
			errMsg:  "PARLEY_WORKER_BASE_URL is required",
		},
		{
			name: "remote worker mode with base url is valid",
			mutate: func(c *Config) {
				c.Worker.Mode = WorkerModeRemote
				c.Worker.RemoteBaseURL = "http://worker.internal:9090"
			},
		},
		{
			name:    "unrecognized worker mode",
			mutate:  func(c *Config) { c.Worker.Mode = "sidecar" },
			wantErr: true,
			errMsg:  "is not one of in-process, remote",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
