// Package config provides configuration loading and structs for the ConvoTutor server and CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Generation  GenerationConfig  `yaml:"generation"`
	Translation TranslationConfig `yaml:"translation"`
	Watch       WatchConfig       `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// MaxUploadMB bounds the size of one multipart document upload.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// StorageConfig holds the snapshot location. An empty SnapshotPath disables persistence.
type StorageConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	ModelPath string `yaml:"model_path"`

	// TokenizerPath is the tokenizer.json of the ONNX model; it defaults to one next to
	// model_path.
	TokenizerPath string `yaml:"tokenizer_path"`

	// ONNXOutput is the model output to read: last_hidden_state is mean-pooled,
	// anything else must already be one vector per text.
	ONNXOutput string `yaml:"onnx_output"`
	ModelName  string `yaml:"model_name"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	BatchSize  int    `yaml:"batch_size"`
	Workers    int    `yaml:"workers"`
}

// APIKey reads the remote embedding key from the environment.
func (e *EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// GenerationConfig describes the chat-completion backend.
type GenerationConfig struct {
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Temperature *float32 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	TopP        *float32 `yaml:"top_p"`
	Stream      bool     `yaml:"stream"`
}

// APIKey reads the generation key from the environment.
func (g *GenerationConfig) APIKey() string {
	return os.Getenv(g.APIKeyEnv)
}

// TemperatureOrDefault returns the sampling temperature; 1 when unset.
func (g *GenerationConfig) TemperatureOrDefault() float32 {
	if g.Temperature != nil {
		return *g.Temperature
	}
	return 1
}

// TopPOrDefault returns the nucleus sampling mass; 1 when unset.
func (g *GenerationConfig) TopPOrDefault() float32 {
	if g.TopP != nil {
		return *g.TopP
	}
	return 1
}

// TranslationConfig configures the translation helper.
type TranslationConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Endpoint  string `yaml:"endpoint"`
}

// APIKey reads the translation key from the environment.
func (t *TranslationConfig) APIKey() string {
	return os.Getenv(t.APIKeyEnv)
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	DebounceMS  int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// A .env file next to the config is loaded into the environment first; variables that
// are already set are not overridden.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := LoadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	// Paths are expanded first so defaults derived from them stay relative to configDir.
	cfg.Storage.SnapshotPath = expandPath(cfg.Storage.SnapshotPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.TokenizerPath = expandPath(cfg.Embedding.TokenizerPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	ApplyDefaults(&cfg)

	return &cfg, nil
}

// LoadOrDefault loads path when it exists and otherwise returns the defaults.
// A .env file in the working directory is honoured in both cases.
func LoadOrDefault(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadDotEnv loads each existing file into the process environment. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory. Empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
