package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 3, cfg.Engine.MaxRetries)
	assert.Equal(t, time.Second, cfg.Engine.RetryDelay)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9000
engine:
  max_retries: 5
  retry_delay: 250ms
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: bot
  name: workflows
`), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 5, cfg.Engine.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.RetryDelay)
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
	// Untouched sections keep defaults.
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_retries: 5\n"), 0o600))

	t.Setenv("BOTBUILDER_ENGINE_MAX_RETRIES", "7")
	t.Setenv("BOTBUILDER_LOG_LEVEL", "debug")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Engine.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("BOTBUILDER_SERVER_HTTP_PORT", "not-a-port")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOTBUILDER_SERVER_HTTP_PORT")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "mongodb"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server.MetricsPort = cfg.Server.HTTPPort
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.OTLPEndpoint = ""
	require.Error(t, cfg.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{Driver: "mysql", Host: "h", Port: 3306, User: "u", Password: "p", Name: "db"}
	assert.Equal(t, "u:p@tcp(h:3306)/db?charset=utf8mb4&parseTime=True&loc=Local", cfg.DSN())

	cfg = DatabaseConfig{Driver: "sqlite", Name: ":memory:"}
	assert.Equal(t, ":memory:", cfg.DSN())
}
