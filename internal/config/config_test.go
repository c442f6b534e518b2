package config

import (
	"testing"
	"time"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Error("Expected error without BOT_TOKEN")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "")
	t.Setenv("TICK_INTERVAL", "")
	t.Setenv("DB_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "bot_data/marathon.db" {
		t.Errorf("Unexpected default db path: %q", cfg.DBPath)
	}
	if cfg.TickInterval != 5*time.Second {
		t.Errorf("Unexpected default tick interval: %v", cfg.TickInterval)
	}
	if !cfg.SeedOnStart {
		t.Error("Expected seeding on start by default")
	}
	if cfg.SeedWipe {
		t.Error("Expected wipe disabled by default")
	}
	if len(cfg.AdminIDs) != 0 {
		t.Errorf("Expected no admins by default, got %v", cfg.AdminIDs)
	}
}

func TestLoadParsesAdminIDs(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "100, 200 ,300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for _, id := range []int64{100, 200, 300} {
		if !cfg.AdminIDs[id] {
			t.Errorf("Expected admin %d", id)
		}
	}

	t.Setenv("ADMIN_IDS", "not-a-number")
	if _, err := Load(); err == nil {
		t.Error("Expected error for malformed ADMIN_IDS")
	}
}

func TestLoadParsesTickInterval(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("TICK_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TickInterval != 30*time.Second {
		t.Errorf("Expected 30s tick interval, got %v", cfg.TickInterval)
	}

	t.Setenv("TICK_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Error("Expected error for malformed TICK_INTERVAL")
	}
}
