package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration with the precedence defaults → YAML file →
// environment variables.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a loader with the default env prefix "BOTBUILDER".
func NewLoader() *Loader {
	return &Loader{envPrefix: "BOTBUILDER"}
}

// WithConfigPath sets the YAML file to load. Without a path, only defaults
// and environment variables apply.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load resolves the final configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", l.configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", l.configPath, err)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays recognized environment variables onto cfg. Variables are
// named <PREFIX>_<SECTION>_<FIELD>, e.g. BOTBUILDER_SERVER_HTTP_PORT.
func (l *Loader) applyEnv(cfg *Config) error {
	var err error

	setInt := func(key string, dst *int) {
		if err != nil {
			return
		}
		if raw, ok := l.env(key); ok {
			v, convErr := strconv.Atoi(raw)
			if convErr != nil {
				err = fmt.Errorf("env %s: %w", l.envName(key), convErr)
				return
			}
			*dst = v
		}
	}
	setFloat := func(key string, dst *float64) {
		if err != nil {
			return
		}
		if raw, ok := l.env(key); ok {
			v, convErr := strconv.ParseFloat(raw, 64)
			if convErr != nil {
				err = fmt.Errorf("env %s: %w", l.envName(key), convErr)
				return
			}
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if err != nil {
			return
		}
		if raw, ok := l.env(key); ok {
			v, convErr := strconv.ParseBool(raw)
			if convErr != nil {
				err = fmt.Errorf("env %s: %w", l.envName(key), convErr)
				return
			}
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if err != nil {
			return
		}
		if raw, ok := l.env(key); ok {
			v, convErr := time.ParseDuration(raw)
			if convErr != nil {
				err = fmt.Errorf("env %s: %w", l.envName(key), convErr)
				return
			}
			*dst = v
		}
	}
	setString := func(key string, dst *string) {
		if raw, ok := l.env(key); ok {
			*dst = raw
		}
	}

	setInt("SERVER_HTTP_PORT", &cfg.Server.HTTPPort)
	setInt("SERVER_METRICS_PORT", &cfg.Server.MetricsPort)
	setDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	setInt("ENGINE_MAX_RETRIES", &cfg.Engine.MaxRetries)
	setDuration("ENGINE_RETRY_DELAY", &cfg.Engine.RetryDelay)

	setString("DATABASE_DRIVER", &cfg.Database.Driver)
	setString("DATABASE_HOST", &cfg.Database.Host)
	setInt("DATABASE_PORT", &cfg.Database.Port)
	setString("DATABASE_USER", &cfg.Database.User)
	setString("DATABASE_PASSWORD", &cfg.Database.Password)
	setString("DATABASE_NAME", &cfg.Database.Name)
	setString("DATABASE_SSL_MODE", &cfg.Database.SSLMode)

	setBool("REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("REDIS_DB", &cfg.Redis.DB)
	setString("REDIS_KEY_PREFIX", &cfg.Redis.KeyPrefix)

	setString("LLM_PROVIDER", &cfg.LLM.Provider)
	setString("LLM_API_KEY", &cfg.LLM.APIKey)
	setString("LLM_BASE_URL", &cfg.LLM.BaseURL)
	setString("LLM_MODEL", &cfg.LLM.Model)
	setDuration("LLM_TIMEOUT", &cfg.LLM.Timeout)
	setFloat("LLM_RATE_LIMIT_RPS", &cfg.LLM.RateLimitRPS)
	setInt("LLM_RATE_LIMIT_BURST", &cfg.LLM.RateLimitBurst)
	setInt("LLM_MAX_RETRIES", &cfg.LLM.MaxRetries)

	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)

	setBool("TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	setString("TELEMETRY_SERVICE_NAME", &cfg.Telemetry.ServiceName)
	setString("TELEMETRY_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	setFloat("TELEMETRY_SAMPLE_RATE", &cfg.Telemetry.SampleRate)

	return err
}

func (l *Loader) envName(key string) string {
	return l.envPrefix + "_" + key
}

func (l *Loader) env(key string) (string, bool) {
	v, ok := os.LookupEnv(l.envName(key))
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
