// Package config loads client configuration from YAML with environment
// overrides.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Indexer IndexerConfig `yaml:"indexer"`
	Prover  ProverConfig  `yaml:"prover"`
	Chat    ChatConfig    `yaml:"chat"`
	Storage StorageConfig `yaml:"storage"`
	Limits  LimitsConfig  `yaml:"limits"`
}

type IndexerConfig struct {
	APIBase string `yaml:"apiBase"`
}

type ProverConfig struct {
	WorkerEndpoint string        `yaml:"workerEndpoint"`
	Kind           string        `yaml:"kind"` // semaphore | rln
	EpochWindow    time.Duration `yaml:"epochWindow"`
}

type ChatConfig struct {
	HardenSharedKey bool `yaml:"hardenSharedKey"`
}

type StorageConfig struct {
	DataDir    string `yaml:"dataDir"`
	Passphrase string `yaml:"-"` // env only, never from a config file
}

type LimitsConfig struct {
	PublishPerSecond float64 `yaml:"publishPerSecond"`
	PublishBurst     int     `yaml:"publishBurst"`
}

func Default() Config {
	return Config{
		Indexer: IndexerConfig{APIBase: "http://localhost:8081"},
		Prover:  ProverConfig{Kind: "rln", EpochWindow: 10 * time.Second},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Limits:  LimitsConfig{PublishPerSecond: 0.5, PublishBurst: 3},
	}
}

// Load reads the config file if present, then applies env overrides.
// A missing or unreadable file yields the defaults.
func Load(path string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if path != "" {
		candidates = append(candidates, path)
	} else {
		candidates = append(candidates, "configs/config.yaml")
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merge(&cfg, parsed)
		break
	}

	applyEnvOverrides(&cfg)
	return cfg
}

func merge(dst *Config, src Config) {
	if src.Indexer.APIBase != "" {
		dst.Indexer.APIBase = src.Indexer.APIBase
	}
	if src.Prover.WorkerEndpoint != "" {
		dst.Prover.WorkerEndpoint = src.Prover.WorkerEndpoint
	}
	if src.Prover.Kind != "" {
		dst.Prover.Kind = src.Prover.Kind
	}
	if src.Prover.EpochWindow > 0 {
		dst.Prover.EpochWindow = src.Prover.EpochWindow
	}
	if src.Chat.HardenSharedKey {
		dst.Chat.HardenSharedKey = true
	}
	if src.Storage.DataDir != "" {
		dst.Storage.DataDir = src.Storage.DataDir
	}
	if src.Limits.PublishPerSecond > 0 {
		dst.Limits.PublishPerSecond = src.Limits.PublishPerSecond
	}
	if src.Limits.PublishBurst > 0 {
		dst.Limits.PublishBurst = src.Limits.PublishBurst
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ZKCHAT_API_BASE")); v != "" {
		cfg.Indexer.APIBase = v
	}
	if v := strings.TrimSpace(os.Getenv("ZKCHAT_PROVER_ENDPOINT")); v != "" {
		cfg.Prover.WorkerEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("ZKCHAT_PROVER_KIND")); v != "" {
		cfg.Prover.Kind = v
	}
	if v := strings.TrimSpace(os.Getenv("ZKCHAT_EPOCH_WINDOW")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Prover.EpochWindow = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("ZKCHAT_HARDEN_SHARED_KEY")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Chat.HardenSharedKey = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("ZKCHAT_DATA_DIR")); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("ZKCHAT_STORAGE_PASSPHRASE"); v != "" {
		cfg.Storage.Passphrase = v
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zkchat"
	}
	return home + "/.zkchat"
}
