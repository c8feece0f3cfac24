package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongSecret = "a-strong-secret-value-at-least-32-chars!"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", strongSecret)
	t.Setenv("DB_PASSWORD", "test-password")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5, cfg.Auth.LockoutThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Auth.LockoutDuration)
	assert.Equal(t, 64, cfg.Auth.CSRFTokenSize)
	assert.Equal(t, []string{"GET", "HEAD", "OPTIONS"}, cfg.Auth.CSRFIgnoredMethods)
	assert.True(t, cfg.Auth.FailClosed)
	assert.Equal(t, strongSecret, cfg.Auth.CSRFSecret)
	assert.Empty(t, cfg.Warnings)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "test-password")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_MissingDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", strongSecret)
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

func TestLoad_SecretValidation(t *testing.T) {
	t.Run("short secret fatal in production", func(t *testing.T) {
		t.Setenv("ENV", "production")
		t.Setenv("JWT_SECRET", "short")
		t.Setenv("DB_PASSWORD", "test-password")
		t.Setenv("ALLOWED_ORIGINS", "https://example.com")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("short secret warns in development", func(t *testing.T) {
		t.Setenv("ENV", "development")
		t.Setenv("JWT_SECRET", "short")
		t.Setenv("DB_PASSWORD", "test-password")

		cfg, err := Load()
		require.NoError(t, err)
		require.NotEmpty(t, cfg.Warnings)
		assert.Contains(t, cfg.Warnings[0], "JWT_SECRET")
	})

	t.Run("weak csrf secret validated separately", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CSRF_SECRET", "changeme")

		cfg, err := Load()
		require.NoError(t, err)
		found := false
		for _, w := range cfg.Warnings {
			if strings.Contains(w, "CSRF_SECRET") {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("LOCKOUT_THRESHOLD", "3")
	t.Setenv("LOCKOUT_DURATION", "30m")
	t.Setenv("REVOCATION_FAIL_CLOSED", "false")
	t.Setenv("CSRF_IGNORED_METHODS", "get, head")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.Auth.LockoutThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Auth.LockoutDuration)
	assert.False(t, cfg.Auth.FailClosed)
	assert.Equal(t, []string{"GET", "HEAD"}, cfg.Auth.CSRFIgnoredMethods)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("lockout threshold below one", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("LOCKOUT_THRESHOLD", "0")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LOCKOUT_THRESHOLD")
	})

	t.Run("csrf token size too small", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CSRF_TOKEN_SIZE", "16")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CSRF_TOKEN_SIZE")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Name:     "warden",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=warden")
}

func TestParseAllowedOrigins(t *testing.T) {
	t.Run("production uses env list", func(t *testing.T) {
		t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
		origins := parseAllowedOrigins("production")
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, origins)
	})

	t.Run("development allows localhost", func(t *testing.T) {
		origins := parseAllowedOrigins("development")
		assert.Contains(t, origins, "http://localhost:3000")
	})
}
