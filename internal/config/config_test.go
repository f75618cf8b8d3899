package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg.Indexer.APIBase != "http://localhost:8081" {
		t.Fatalf("api base = %s", cfg.Indexer.APIBase)
	}
	if cfg.Prover.Kind != "rln" || cfg.Prover.EpochWindow != 10*time.Second {
		t.Fatalf("prover defaults = %+v", cfg.Prover)
	}
	if cfg.Limits.PublishBurst != 3 {
		t.Fatalf("limits defaults = %+v", cfg.Limits)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
indexer:
  apiBase: https://indexer.example.com
prover:
  kind: semaphore
  epochWindow: 30s
chat:
  hardenSharedKey: true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := Load(path)
	if cfg.Indexer.APIBase != "https://indexer.example.com" {
		t.Fatalf("api base = %s", cfg.Indexer.APIBase)
	}
	if cfg.Prover.Kind != "semaphore" || cfg.Prover.EpochWindow != 30*time.Second {
		t.Fatalf("prover = %+v", cfg.Prover)
	}
	if !cfg.Chat.HardenSharedKey {
		t.Fatal("hardenSharedKey not applied")
	}
	// Fields absent from the file keep their defaults.
	if cfg.Limits.PublishPerSecond != 0.5 {
		t.Fatalf("limits = %+v", cfg.Limits)
	}
}

func TestLoadSurvivesMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{{{{"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := Load(path)
	if cfg.Indexer.APIBase != "http://localhost:8081" {
		t.Fatalf("malformed file changed defaults: %+v", cfg.Indexer)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ZKCHAT_API_BASE", "https://env.example.com")
	t.Setenv("ZKCHAT_PROVER_KIND", "semaphore")
	t.Setenv("ZKCHAT_EPOCH_WINDOW", "1m")
	t.Setenv("ZKCHAT_HARDEN_SHARED_KEY", "true")
	t.Setenv("ZKCHAT_STORAGE_PASSPHRASE", "hunter2")

	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg.Indexer.APIBase != "https://env.example.com" {
		t.Fatalf("api base = %s", cfg.Indexer.APIBase)
	}
	if cfg.Prover.Kind != "semaphore" || cfg.Prover.EpochWindow != time.Minute {
		t.Fatalf("prover = %+v", cfg.Prover)
	}
	if !cfg.Chat.HardenSharedKey {
		t.Fatal("harden override not applied")
	}
	if cfg.Storage.Passphrase != "hunter2" {
		t.Fatal("passphrase override not applied")
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("ZKCHAT_EPOCH_WINDOW", "not-a-duration")
	t.Setenv("ZKCHAT_HARDEN_SHARED_KEY", "not-a-bool")

	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg.Prover.EpochWindow != 10*time.Second {
		t.Fatalf("epoch window = %v", cfg.Prover.EpochWindow)
	}
	if cfg.Chat.HardenSharedKey {
		t.Fatal("garbage bool flipped hardenSharedKey")
	}
}
