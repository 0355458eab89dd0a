package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Relay.AlbumWindowMS != 1500 {
		t.Errorf("album window = %d, want 1500", cfg.Relay.AlbumWindowMS)
	}
	if cfg.Relay.AlbumWindow() != 1500*time.Millisecond {
		t.Errorf("album window duration = %v", cfg.Relay.AlbumWindow())
	}
	if cfg.Database.Mode != "standalone" {
		t.Errorf("mode = %q", cfg.Database.Mode)
	}
	if cfg.Relay.MediaMaxBytes != 20*1024*1024 {
		t.Errorf("media max = %d", cfg.Relay.MediaMaxBytes)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Relay.AlbumWindowMS != 1500 {
		t.Errorf("album window = %d", cfg.Relay.AlbumWindowMS)
	}
}

func TestLoadJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	// JSON5: comments and trailing commas are tolerated.
	content := `{
		// relay tuning
		relay: {
			album_window_ms: 2000,
			rate_limit_per_min: 30,
		},
		database: { mode: "standalone", sqlite_path: "/tmp/t.db" },
	}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Relay.AlbumWindowMS != 2000 || cfg.Relay.RateLimitPerMin != 30 {
		t.Errorf("relay = %+v", cfg.Relay)
	}
	if cfg.Database.SQLitePath != "/tmp/t.db" {
		t.Errorf("sqlite path = %q", cfg.Database.SQLitePath)
	}
	// Unset fields keep their defaults.
	if cfg.Health.Port != 18791 {
		t.Errorf("health port = %d", cfg.Health.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TELEFLOW_POSTGRES_DSN", "postgres://u:p@h/db")
	t.Setenv("TELEFLOW_MODE", "managed")
	t.Setenv("TELEFLOW_RATE_LIMIT_PER_MIN", "12")
	t.Setenv("TELEFLOW_HEALTH_ENABLED", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.PostgresDSN != "postgres://u:p@h/db" {
		t.Errorf("dsn = %q", cfg.Database.PostgresDSN)
	}
	if !cfg.IsManagedMode() {
		t.Error("expected managed mode")
	}
	if cfg.Relay.RateLimitPerMin != 12 {
		t.Errorf("rate limit = %d", cfg.Relay.RateLimitPerMin)
	}
	if !cfg.Health.Enabled {
		t.Error("health should be enabled")
	}
}

func TestSaveExcludesDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Database.PostgresDSN = "postgres://secret"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) == "" {
		t.Fatal("empty config written")
	}
	if strings.Contains(string(data), "secret") {
		t.Error("DSN leaked into the config file")
	}
}
