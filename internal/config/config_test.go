package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "config.json"), nil)
	cfg := s.Load()
	if cfg.MaxResults != Default().MaxResults {
		t.Fatalf("expected default max results, got %d", cfg.MaxResults)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	s := NewStore(path, nil)

	cfg := Default()
	cfg.BasePath = "/tmp/project"
	cfg.MaxResults = 250
	cfg.Logging.Enabled = true
	cfg.Logging.LogLevel = LevelDebug

	if err := s.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := NewStore(path, nil).Load()
	if loaded.BasePath != cfg.BasePath || loaded.MaxResults != cfg.MaxResults {
		t.Fatalf("round trip mismatch: got %+v, want %+v", loaded, cfg)
	}
	if loaded.Logging.LogLevel != LevelDebug {
		t.Fatalf("expected debug log level to survive round trip, got %s", loaded.Logging.LogLevel)
	}
}

func TestLoadCorruptedFileBacksUpAndReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, nil)
	cfg := s.Load()
	if cfg.MaxResults != Default().MaxResults {
		t.Fatalf("expected defaults after corruption, got %+v", cfg)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	foundBackup := false
	for _, e := range entries {
		if e.Name() != "config.json" {
			foundBackup = true
		}
	}
	if !foundBackup {
		t.Fatalf("expected a backup file to be created alongside the corrupted config")
	}
}

func TestSaveCreatesMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")
	s := NewStore(path, nil)
	if err := s.Save(Default()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}
}
