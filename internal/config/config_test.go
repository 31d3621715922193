package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != ".noborder/noborder.db" {
		t.Errorf("unexpected default db_path: %s", cfg.DBPath)
	}
	if cfg.UpsyncInterval != 5*time.Second {
		t.Errorf("unexpected default upsync_interval: %s", cfg.UpsyncInterval)
	}
	if cfg.UpsyncBatchSize != 20 {
		t.Errorf("unexpected default upsync_batch_size: %d", cfg.UpsyncBatchSize)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noborder.yaml")
	content := `
db_path: /tmp/app.db
redis_addr: redis:6380
upsync_interval: 30s
upsync_batch_size: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/tmp/app.db" {
		t.Errorf("db_path not read from file: %s", cfg.DBPath)
	}
	if cfg.RedisAddr != "redis:6380" {
		t.Errorf("redis_addr not read from file: %s", cfg.RedisAddr)
	}
	if cfg.UpsyncInterval != 30*time.Second {
		t.Errorf("upsync_interval not read from file: %s", cfg.UpsyncInterval)
	}
	if cfg.UpsyncBatchSize != 5 {
		t.Errorf("upsync_batch_size not read from file: %d", cfg.UpsyncBatchSize)
	}
	// Unset keys keep their defaults.
	if cfg.BlobDir != ".noborder/blobs" {
		t.Errorf("blob_dir should default: %s", cfg.BlobDir)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noborder.yaml")
	if err := os.WriteFile(path, []byte("redis_addr: from-file:6379\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("NOBORDER_REDIS_ADDR", "from-env:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RedisAddr != "from-env:6379" {
		t.Errorf("environment should win over file, got %s", cfg.RedisAddr)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero interval", "upsync_interval: 0s\n"},
		{"negative batch", "upsync_batch_size: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "noborder.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("expected error for missing explicit config file")
	}
}
