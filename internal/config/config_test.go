package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return dir, path
}

func TestLoad(t *testing.T) {
	_, path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
retrieval:
  top_k: 6
generation:
  model: "llama3-70b-8192"
  temperature: 0
  stream: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Retrieval.TopK != 6 {
		t.Errorf("top_k = %d, want 6", cfg.Retrieval.TopK)
	}
	if cfg.Generation.Model != "llama3-70b-8192" || !cfg.Generation.Stream {
		t.Errorf("unexpected generation config: %+v", cfg.Generation)
	}
	if got := cfg.Generation.TemperatureOrDefault(); got != 0 {
		t.Errorf("explicit temperature 0 should be kept, got %v", got)
	}
	if got := cfg.Generation.TopPOrDefault(); got != 1 {
		t.Errorf("top_p default = %v, want 1", got)
	}
	if cfg.Generation.BaseURL != DefaultGenerationBaseURL {
		t.Errorf("base_url = %s", cfg.Generation.BaseURL)
	}
	if cfg.Storage.SnapshotPath != "" {
		t.Errorf("snapshot_path should stay empty when unset, got %s", cfg.Storage.SnapshotPath)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	_, path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir, path := writeConfig(t, `
storage:
  snapshot_path: "./data/snapshot.db"
embedding:
  model_path: "./models/minilm.onnx"
watch:
  directories: ["./inbox"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "snapshot.db"); cfg.Storage.SnapshotPath != want {
		t.Errorf("snapshot_path = %s, want %s", cfg.Storage.SnapshotPath, want)
	}
	if want := filepath.Join(dir, "models", "minilm.onnx"); cfg.Embedding.ModelPath != want {
		t.Errorf("model_path = %s, want %s", cfg.Embedding.ModelPath, want)
	}
	if want := filepath.Join(dir, "models", "tokenizer.json"); cfg.Embedding.TokenizerPath != want {
		t.Errorf("tokenizer_path = %s, want %s", cfg.Embedding.TokenizerPath, want)
	}
	if len(cfg.Watch.Directories) != 1 || cfg.Watch.Directories[0] != filepath.Join(dir, "inbox") {
		t.Errorf("watch directories = %v", cfg.Watch.Directories)
	}
}

func TestLoad_dotEnvNextToConfig(t *testing.T) {
	const key = "CONVOTUTOR_TEST_GROQ_KEY"
	dir, path := writeConfig(t, "generation:\n  api_key_env: "+key+"\n")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Generation.APIKey(); got != "from-dotenv" {
		t.Errorf("APIKey() = %q, want from-dotenv", got)
	}
}

func TestLoad_dotEnvDoesNotOverride(t *testing.T) {
	const key = "CONVOTUTOR_TEST_TRANSLATE_KEY"
	t.Setenv(key, "from-env")
	dir, path := writeConfig(t, "translation:\n  api_key_env: "+key+"\n")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Translation.APIKey(); got != "from-env" {
		t.Errorf("APIKey() = %q, want from-env", got)
	}
}

func TestLoad_errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	_, path := writeConfig(t, "server: [not, a, map]\n")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadOrDefault_missingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 || cfg.Generation.Model != DefaultGenerationModel {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Errorf("default top_k: got %d", cfg.Retrieval.TopK)
	}
	if cfg.Generation.Model != "llama3-8b-8192" || cfg.Generation.MaxTokens != 1024 || cfg.Generation.Stream {
		t.Errorf("default generation: %+v", cfg.Generation)
	}
	if cfg.Generation.APIKeyEnv != "GROQ_API_KEY" {
		t.Errorf("default api_key_env: %s", cfg.Generation.APIKeyEnv)
	}
	if cfg.Embedding.Provider != "onnx" || cfg.Embedding.Dimensions != 384 || cfg.Embedding.ModelPath == "" || cfg.Embedding.ONNXOutput != "last_hidden_state" {
		t.Errorf("default embedding: %+v", cfg.Embedding)
	}
	if cfg.Embedding.TokenizerPath != "/usr/local/var/convotutor/data/models/tokenizer.json" {
		t.Errorf("default tokenizer_path: %s", cfg.Embedding.TokenizerPath)
	}
	if len(cfg.Watch.Extensions) != 7 || cfg.Watch.Extensions[0] != ".pdf" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
	if cfg.Watch.Recursive != nil {
		t.Error("recursive should stay unset without directories")
	}
}

func TestApplyDefaults_openAIEmbedding(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: "openai"}}
	ApplyDefaults(cfg)
	if cfg.Embedding.ModelPath != "" {
		t.Errorf("model_path should not be defaulted for openai: %s", cfg.Embedding.ModelPath)
	}
	if cfg.Embedding.ModelName != "text-embedding-3-small" {
		t.Errorf("model_name = %s", cfg.Embedding.ModelName)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("dimensions = %d, want 1536", cfg.Embedding.Dimensions)
	}

	explicit := &Config{Embedding: EmbeddingConfig{Provider: "openai", Dimensions: 512}}
	ApplyDefaults(explicit)
	if explicit.Embedding.Dimensions != 512 {
		t.Errorf("explicit dimensions overridden: %d", explicit.Embedding.Dimensions)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	f := false
	tests := []struct {
		name string
		w    WatchConfig
		want bool
	}{
		{"nil", WatchConfig{}, true},
		{"false", WatchConfig{Recursive: &f}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.RecursiveOrDefault(); got != tt.want {
				t.Errorf("RecursiveOrDefault() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	temp := float32(0.2)
	cfg := &Config{
		Server:     ServerConfig{Host: "localhost", Port: 9090},
		Storage:    StorageConfig{SnapshotPath: "/tmp/snap.db"},
		Generation: GenerationConfig{Temperature: &temp},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.Storage.SnapshotPath != "/tmp/snap.db" {
		t.Errorf("loaded: %+v", loaded)
	}
	if got := loaded.Generation.TemperatureOrDefault(); got != 0.2 {
		t.Errorf("temperature = %v, want 0.2", got)
	}
}
