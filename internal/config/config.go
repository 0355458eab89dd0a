package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Config is the root configuration for the relay.
type Config struct {
	Relay     RelayConfig     `json:"relay"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Health    HealthConfig    `json:"health,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	mu        sync.RWMutex
}

// RelayConfig tunes the forwarding pipeline shared by all accounts.
type RelayConfig struct {
	// AlbumWindowMS is the quiet window for grouped-media aggregation.
	AlbumWindowMS int `json:"album_window_ms,omitempty"`
	// RateLimitPerMin caps outbound sends per account. 0 disables the limit.
	RateLimitPerMin int `json:"rate_limit_per_min,omitempty"`
	// DownloadDir holds transient media downloads (default: os temp dir).
	DownloadDir string `json:"download_dir,omitempty"`
	// MediaMaxBytes caps per-file download size (default 20MB, the Bot API limit).
	MediaMaxBytes int64 `json:"media_max_bytes,omitempty"`
	// Proxy is an optional HTTP proxy URL for all Telegram connections.
	Proxy string `json:"proxy,omitempty"`
}

// AlbumWindow returns the configured aggregation window as a duration.
func (r RelayConfig) AlbumWindow() time.Duration {
	if r.AlbumWindowMS <= 0 {
		return 0
	}
	return time.Duration(r.AlbumWindowMS) * time.Millisecond
}

// DatabaseConfig selects the storage backend.
// PostgresDSN is NEVER read from config.json (secret) — only from env TELEFLOW_POSTGRES_DSN.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`                     // from env TELEFLOW_POSTGRES_DSN only
	Mode        string `json:"mode,omitempty"`        // "standalone" (default) or "managed"
	SQLitePath  string `json:"sqlite_path,omitempty"` // standalone database file
}

// IsManagedMode returns true when the relay runs against Postgres.
func (c *Config) IsManagedMode() bool {
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}

// HealthConfig configures the health endpoint.
type HealthConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export for dispatch spans.
// When enabled, spans go to an OTLP-compatible backend (Jaeger, Tempo, etc.).
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`     // e.g. "localhost:4317"
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext transport for local dev
	ServiceName string            `json:"service_name,omitempty"` // default "teleflow"
	Headers     map[string]string `json:"headers,omitempty"`      // auth tokens for cloud backends
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Relay = src.Relay
	c.Database = src.Database
	c.Health = src.Health
	c.Telemetry = src.Telemetry
}

// Snapshot returns a copy of the data fields for lock-free reads.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		Relay:     c.Relay,
		Database:  c.Database,
		Health:    c.Health,
		Telemetry: c.Telemetry,
	}
}

// Hash returns a SHA-256 hash of the config for change detection.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
