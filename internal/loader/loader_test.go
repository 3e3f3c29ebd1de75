package loader

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.History.RetentionSeconds != 3600 {
		t.Errorf("expected 3600s retention, got %d", cfg.History.RetentionSeconds)
	}
	if cfg.Fetch.Interval != 20*time.Second {
		t.Errorf("expected 20s fetch interval, got %v", cfg.Fetch.Interval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
history:
  retention_seconds: 900
store:
  path: /tmp/test-history.db
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.History.RetentionSeconds != 900 {
		t.Errorf("expected 900, got %d", cfg.History.RetentionSeconds)
	}
	if cfg.Store.Path != "/tmp/test-history.db" {
		t.Errorf("expected overridden store path, got %s", cfg.Store.Path)
	}
	// Untouched fields keep defaults.
	if cfg.Fetch.Interval != 20*time.Second {
		t.Errorf("expected default fetch interval, got %v", cfg.Fetch.Interval)
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Setenv("TW_DB_PATH", "/data/envtest.db")

	content := "store:\n  path: ${TW_DB_PATH}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "/data/envtest.db" {
		t.Errorf("env expansion failed: %s", cfg.Store.Path)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.History.RetentionSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero retention")
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown log level")
	}

	cfg = DefaultConfig()
	cfg.Archive.Enabled = true
	cfg.Archive.Dir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for archiving without a directory")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	// The daemon falls back to defaults on this condition; the wrapped
	// error must stay matchable.
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file error should match fs.ErrNotExist, got %v", err)
	}
}
