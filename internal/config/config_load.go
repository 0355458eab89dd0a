package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			AlbumWindowMS:   1500,
			RateLimitPerMin: 0,
			MediaMaxBytes:   20 * 1024 * 1024,
		},
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "~/.teleflow/teleflow.db",
		},
		Health: HealthConfig{
			Host: "127.0.0.1",
			Port: 18791,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "teleflow",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	// Database (the DSN is secret, env-only)
	envStr("TELEFLOW_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("TELEFLOW_MODE", &c.Database.Mode)
	envStr("TELEFLOW_SQLITE_PATH", &c.Database.SQLitePath)

	// Relay
	envStr("TELEFLOW_DOWNLOAD_DIR", &c.Relay.DownloadDir)
	envStr("TELEFLOW_PROXY", &c.Relay.Proxy)
	if v := os.Getenv("TELEFLOW_RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Relay.RateLimitPerMin = n
		}
	}

	// Health endpoint
	envStr("TELEFLOW_HEALTH_HOST", &c.Health.Host)
	if v := os.Getenv("TELEFLOW_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Health.Port = port
		}
	}
	if v := os.Getenv("TELEFLOW_HEALTH_ENABLED"); v != "" {
		c.Health.Enabled = v == "true" || v == "1"
	}

	// Telemetry
	envStr("TELEFLOW_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("TELEFLOW_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("TELEFLOW_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("TELEFLOW_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TELEFLOW_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// Save writes the config to a JSON file. The Postgres DSN is excluded by its
// json:"-" tag and never persists.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
