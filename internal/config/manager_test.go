package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoints.DownloadURL == "" || cfg.Endpoints.PingURL == "" {
		t.Fatalf("defaults not applied: %+v", cfg.Endpoints)
	}
	if cfg.History.MaxRecords != 500 {
		t.Fatalf("expected default max_records, got %d", cfg.History.MaxRecords)
	}
	if m.Get() != cfg {
		t.Fatal("Load did not commit")
	}
}

func TestLoadAppliesPartialOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := "endpoints:\n  ping_url: https://example.org/trace\nstorage:\n  driver: none\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoints.PingURL != "https://example.org/trace" {
		t.Fatalf("override lost: %s", cfg.Endpoints.PingURL)
	}
	if cfg.Endpoints.DownloadURL != Default().Endpoints.DownloadURL {
		t.Fatalf("default lost: %s", cfg.Endpoints.DownloadURL)
	}
	if cfg.Storage.Driver != "none" {
		t.Fatalf("storage driver: %s", cfg.Storage.Driver)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("endpionts:\n  ping_url: x\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}
