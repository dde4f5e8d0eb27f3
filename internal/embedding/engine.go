// Package embedding computes text embeddings for the retrieval stores.
package embedding

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Providers.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Engine generates vector embeddings for text.
type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the length of every vector the engine returns.
	Dimensions() int
	Name() string
}

// Config selects and tunes an embedding engine.
type Config struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"-"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`

	// TaskType is a Gemini task type such as SEMANTIC_SIMILARITY or
	// RETRIEVAL_DOCUMENT. Ignored by OpenAI.
	TaskType string `yaml:"task_type"`
}

// DefaultConfig disables embeddings; retrieval then ranks by term overlap.
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderNone,
		Dimensions: 768,
		TaskType:   "SEMANTIC_SIMILARITY",
	}
}

// ApplyEnv overlays GRASSS_EMBEDDING_* variables onto cfg. The API key
// falls back to the matching LLM provider key.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("GRASSS_EMBEDDING_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("GRASSS_EMBEDDING_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("GRASSS_EMBEDDING_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("GRASSS_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dimensions = n
		}
	}
	if v := os.Getenv("GRASSS_EMBEDDING_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if cfg.APIKey == "" {
		switch cfg.Provider {
		case ProviderGemini:
			cfg.APIKey = os.Getenv("GRASSS_GEMINI_API_KEY")
		case ProviderOpenAI:
			cfg.APIKey = os.Getenv("GRASSS_OPENAI_API_KEY")
		}
	}
	return cfg
}

// Enabled reports whether cfg names a real provider.
func (c Config) Enabled() bool {
	return c.Provider != "" && c.Provider != ProviderNone
}

// New creates the engine cfg names.
func New(ctx context.Context, cfg Config) (Engine, error) {
	switch cfg.Provider {
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}
