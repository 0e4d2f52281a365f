package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/trenergram")
	t.Setenv("TELEGRAM_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 4, cfg.SweepWorkers)
	assert.Equal(t, 10*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, 5, cfg.DispatchMaxAttempts)
	assert.Equal(t, time.Minute, cfg.RetryBaseDelay)
	assert.Equal(t, 30*time.Minute, cfg.RetryMaxDelay)
	assert.Equal(t, "Europe/Moscow", cfg.DefaultTimezone)
	assert.Equal(t, TransportTelegram, cfg.NotifyTransport)
	assert.Empty(t, cfg.MigrationsDir)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/trenergram")
	t.Setenv("NOTIFY_TRANSPORT", "log")
	t.Setenv("SWEEP_INTERVAL", "90s")
	t.Setenv("SWEEP_WORKERS", "8")
	t.Setenv("DEFAULT_TIMEZONE", "Asia/Yekaterinburg")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.SweepInterval)
	assert.Equal(t, 8, cfg.SweepWorkers)
	assert.Equal(t, "Asia/Yekaterinburg", cfg.DefaultTimezone)
}

func TestLoad_RequiresDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("NOTIFY_TRANSPORT", "log")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		DBDSN:               "postgres://localhost/trenergram",
		NotifyTransport:     TransportLog,
		SweepInterval:       time.Minute,
		SweepWorkers:        1,
		DispatchMaxAttempts: 1,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "telegram without token", mutate: func(c *Config) { c.NotifyTransport = TransportTelegram }},
		{name: "amqp without url", mutate: func(c *Config) { c.NotifyTransport = TransportAMQP }},
		{name: "unknown transport", mutate: func(c *Config) { c.NotifyTransport = "smtp" }},
		{name: "zero interval", mutate: func(c *Config) { c.SweepInterval = 0 }},
		{name: "zero workers", mutate: func(c *Config) { c.SweepWorkers = 0 }},
		{name: "zero attempts", mutate: func(c *Config) { c.DispatchMaxAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
