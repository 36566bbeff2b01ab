package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3, cfg.PrinterFailureThreshold)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("TERMINAL_HOST", "till-03")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, "till-03", cfg.TerminalHost)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}
