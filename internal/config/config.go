// Package config loads grasss settings. Sources are applied in order:
// built-in defaults, a YAML file, a .env file, then GRASSS_* variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/grasss/internal/embedding"
	"github.com/abhisek/grasss/internal/llm"
	"github.com/abhisek/grasss/internal/logging"
)

// Retrieval backends.
const (
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendPGVector = "pgvector"
)

type Config struct {
	// DB is the SQLite file holding learning state. Empty resolves to the
	// platform data directory.
	DB string `yaml:"db"`

	// Debug exposes internal error detail in failed tutor responses.
	Debug bool `yaml:"debug"`

	LLM       llm.Config       `yaml:"llm"`
	Embedding embedding.Config `yaml:"embedding"`
	Retrieval RetrievalConfig  `yaml:"retrieval"`
	Log       logging.Config   `yaml:"log"`
}

type RetrievalConfig struct {
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`

	// UserLimit and MatterLimit cap the documents folded into a prompt.
	UserLimit   int `yaml:"user_limit"`
	MatterLimit int `yaml:"matter_limit"`
}

func Default() Config {
	return Config{
		LLM:       llm.DefaultConfig(),
		Embedding: embedding.DefaultConfig(),
		Retrieval: RetrievalConfig{
			Backend:     BackendSQLite,
			UserLimit:   3,
			MatterLimit: 5,
		},
		Log: logging.DefaultConfig(),
	}
}

// DefaultPath resolves the config file location:
// 1. GRASSS_CONFIG environment variable
// 2. $XDG_CONFIG_HOME/grasss/config.yaml
// 3. ~/.config/grasss/config.yaml
func DefaultPath() string {
	if p := os.Getenv("GRASSS_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "grasss", "config.yaml")
}

// Load builds the configuration. An empty path uses DefaultPath, where a
// missing file is not an error. envFiles default to ".env" in the working
// directory; missing ones are skipped. Variables already set in the
// environment win over .env entries.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		err := readFile(path, &cfg)
		if err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
			return Config{}, err
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg = applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg Config) Config {
	if v := os.Getenv("GRASSS_DB"); v != "" {
		cfg.DB = v
	}
	if v := os.Getenv("GRASSS_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	if v := os.Getenv("GRASSS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GRASSS_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("GRASSS_RETRIEVAL_BACKEND"); v != "" {
		cfg.Retrieval.Backend = v
	}
	if v := os.Getenv("GRASSS_POSTGRES_DSN"); v != "" {
		cfg.Retrieval.PostgresDSN = v
	}

	cfg.LLM = llm.ApplyEnv(cfg.LLM)
	if !cfg.LLM.HasKey() {
		if found, ok := llm.DiscoverConfig(); ok {
			cfg.LLM.Provider = found.Provider
			cfg.LLM.Gemini.APIKey = found.Gemini.APIKey
			cfg.LLM.OpenAI.APIKey = found.OpenAI.APIKey
			cfg.LLM.Anthropic.APIKey = found.Anthropic.APIKey
			cfg.LLM.OpenRouter.APIKey = found.OpenRouter.APIKey
		}
	}

	cfg.Embedding = embedding.ApplyEnv(cfg.Embedding)
	return cfg
}

// Validate checks settings that do not depend on credentials. LLM keys are
// checked when a provider is built, so offline commands still run.
func (c Config) Validate() error {
	switch c.Retrieval.Backend {
	case BackendSQLite, BackendMemory:
	case BackendPGVector:
		if c.Retrieval.PostgresDSN == "" {
			return errors.New("retrieval.postgres_dsn is required for the pgvector backend")
		}
		if !c.Embedding.Enabled() {
			return errors.New("the pgvector backend requires an embedding provider")
		}
	default:
		return fmt.Errorf("unknown retrieval backend %q", c.Retrieval.Backend)
	}
	if c.Retrieval.UserLimit < 1 || c.Retrieval.MatterLimit < 1 {
		return errors.New("retrieval limits must be at least 1")
	}
	return nil
}
