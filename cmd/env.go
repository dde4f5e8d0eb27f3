package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/grasss/internal/config"
	"github.com/abhisek/grasss/internal/embedding"
	"github.com/abhisek/grasss/internal/llm"
	"github.com/abhisek/grasss/internal/logging"
	"github.com/abhisek/grasss/internal/retrieval"
	"github.com/abhisek/grasss/internal/store"
	"github.com/abhisek/grasss/internal/tutor"
	"github.com/abhisek/grasss/internal/vectorstore"
)

// env is everything a command needs, opened from configuration.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	store  *store.Store
	tutor  *tutor.Orchestrator

	closers []func()
}

// openEnv loads configuration and opens the store and retrieval backend.
// The model provider is only built when withLLM is set, so commands that
// never generate run without credentials.
func openEnv(cmd *cobra.Command, withLLM bool) (*env, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	e := &env{cfg: cfg, logger: logger}
	e.closers = append(e.closers, func() { _ = logger.Sync() })

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.OpenContext(ctx, dbPath)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	e.store = st
	e.closers = append(e.closers, func() { st.Close() })

	vectors, err := e.openVectors(ctx)
	if err != nil {
		e.Close()
		return nil, err
	}

	var provider llm.Provider
	if withLLM {
		if err := cfg.LLM.Validate(); err != nil {
			e.Close()
			return nil, fmt.Errorf("LLM provider not configured: %w", err)
		}
		provider, err = llm.NewProvider(ctx, cfg.LLM, st.EventRepo(), logger)
		if err != nil {
			e.Close()
			return nil, err
		}
	}

	gateway := retrieval.New(vectors, logger.Named("retrieval"),
		retrieval.WithLimits(cfg.Retrieval.UserLimit, cfg.Retrieval.MatterLimit))
	e.tutor = tutor.New(tutor.Deps{
		Learners:  st.LearnerRepo(),
		Matters:   st.MatterRepo(),
		Summaries: st.SummaryRepo(),
		Provider:  provider,
		Retrieval: gateway,
		Logger:    logger.Named("tutor"),
	}, tutor.WithDebug(cfg.Debug))
	return e, nil
}

// openVectors builds the configured retrieval backend.
func (e *env) openVectors(ctx context.Context) (vectorstore.Store, error) {
	var (
		embedder vectorstore.Embedder
		dims     int
	)
	if e.cfg.Embedding.Enabled() {
		engine, err := embedding.New(ctx, e.cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("embedding engine: %w", err)
		}
		embedder, dims = engine, engine.Dimensions()
		e.logger.Debug("embeddings enabled", zap.String("engine", engine.Name()), zap.Int("dimensions", dims))
	}

	switch e.cfg.Retrieval.Backend {
	case config.BackendMemory:
		return vectorstore.NewMemory(embedder), nil
	case config.BackendSQLite:
		s, err := vectorstore.NewSQLite(ctx, e.store.DB(), embedder)
		if err != nil {
			return nil, fmt.Errorf("sqlite retrieval store: %w", err)
		}
		return s, nil
	case config.BackendPGVector:
		if embedder == nil {
			return nil, errors.New("the pgvector backend requires an embedding provider")
		}
		pg, err := vectorstore.NewPGVector(ctx, e.cfg.Retrieval.PostgresDSN, embedder, dims)
		if err != nil {
			return nil, fmt.Errorf("pgvector retrieval store: %w", err)
		}
		e.closers = append(e.closers, pg.Close)
		return pg, nil
	}
	return nil, fmt.Errorf("unknown retrieval backend %q", e.cfg.Retrieval.Backend)
}

// Close releases resources in reverse order of opening.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// openStore opens only the database, for commands that read stored events.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.OpenContext(cmd.Context(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the configured path (GRASSS_DB or the config file), then the default
// XDG path.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DB != "" {
		return cfg.DB, store.EnsureDir(cfg.DB)
	}
	return store.DefaultDBPath()
}

// learner looks up a principal by username.
func (e *env) learner(ctx context.Context, username string) (*store.Principal, error) {
	p, err := e.store.LearnerRepo().PrincipalByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("no learner named %q (create one with: grasss learner add %s)", username, username)
	}
	return p, nil
}
