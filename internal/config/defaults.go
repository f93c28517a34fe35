package config

import "path/filepath"

// Defaults for the generation backend.
const (
	DefaultGenerationBaseURL = "https://api.groq.com/openai/v1"
	DefaultGenerationModel   = "llama3-8b-8192"
	DefaultGenerationKeyEnv  = "GROQ_API_KEY"
	DefaultTranslationKeyEnv = "GOOGLE_TRANSLATE_API_KEY"
	DefaultEmbeddingKeyEnv   = "OPENAI_API_KEY"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Provider == "onnx" && cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/convotutor/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Provider == "onnx" && cfg.Embedding.TokenizerPath == "" {
		cfg.Embedding.TokenizerPath = filepath.Join(filepath.Dir(cfg.Embedding.ModelPath), "tokenizer.json")
	}
	if cfg.Embedding.Provider == "onnx" && cfg.Embedding.ONNXOutput == "" {
		cfg.Embedding.ONNXOutput = "last_hidden_state"
	}
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = DefaultEmbeddingKeyEnv
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
		if cfg.Embedding.Provider == "openai" {
			cfg.Embedding.Dimensions = 1536
		}
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.Workers == 0 {
		cfg.Embedding.Workers = 1
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}

	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = DefaultGenerationBaseURL
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = DefaultGenerationModel
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = DefaultGenerationKeyEnv
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 1024
	}

	if cfg.Translation.APIKeyEnv == "" {
		cfg.Translation.APIKeyEnv = DefaultTranslationKeyEnv
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".docx", ".xlsx", ".pptx", ".txt", ".md", ".rst"}
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
