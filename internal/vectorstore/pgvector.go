package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// PGVector stores documents in Postgres and ranks them with pgvector's
// cosine distance operator.
type PGVector struct {
	pool     *pgxpool.Pool
	embedder Embedder
	now      func() time.Time
}

// NewPGVector connects to dsn, installs the vector extension and creates
// the documents table with embeddings of dims dimensions.
func NewPGVector(ctx context.Context, dsn string, embedder Embedder, dims int) (*PGVector, error) {
	if embedder == nil {
		return nil, errors.New("pgvector store requires an embedder")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions %d", dims)
	}

	// The extension must exist before connections can register its types.
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("create vector extension: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	s := &PGVector{
		pool:     pool,
		embedder: embedder,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if err := s.migrate(ctx, dims); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGVector) migrate(ctx context.Context, dims int) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS retrieval_documents (
			id BIGSERIAL PRIMARY KEY,
			doc_id TEXT NOT NULL UNIQUE,
			collection TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, dims),
		`CREATE INDEX IF NOT EXISTS retrievaldocument_collection_kind
			ON retrieval_documents (collection, kind)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate retrieval_documents: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PGVector) Close() {
	s.pool.Close()
}

func (s *PGVector) Add(ctx context.Context, collection string, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range docs {
		d = prepare(d, s.now())
		vec, err := s.embedder.Embed(ctx, d.Text)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", d.ID, err)
		}
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		batch.Queue(`INSERT INTO retrieval_documents
			(doc_id, collection, kind, body, metadata, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			d.ID, collection, d.Type(), d.Text, string(meta), pgvector.NewVector(vec), d.CreatedAt)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	return nil
}

func (s *PGVector) Query(ctx context.Context, collection, text string, limit int, f Filter) ([]Document, error) {
	if strings.TrimSpace(text) == "" {
		return s.Recent(ctx, collection, limit, f)
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	args := []any{collection, pgvector.NewVector(vec)}
	sql := `SELECT doc_id, body, metadata, created_at, 1 - (embedding <=> $2) AS score
		FROM retrieval_documents WHERE collection = $1`
	sql, args = withKinds(sql, args, f)
	sql += " ORDER BY embedding <=> $2"
	if limit > 0 {
		args = append(args, limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return collectDocs(rows, true)
}

func (s *PGVector) Recent(ctx context.Context, collection string, limit int, f Filter) ([]Document, error) {
	args := []any{collection}
	sql := `SELECT doc_id, body, metadata, created_at
		FROM retrieval_documents WHERE collection = $1`
	sql, args = withKinds(sql, args, f)
	sql += " ORDER BY id DESC"
	if limit > 0 {
		args = append(args, limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	docs, err := collectDocs(rows, false)
	if err != nil {
		return nil, err
	}
	slices.Reverse(docs)
	return docs, nil
}

func (s *PGVector) DeleteCollection(ctx context.Context, collection string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM retrieval_documents WHERE collection = $1", collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	return nil
}

func (s *PGVector) Collections(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT collection FROM retrieval_documents
		WHERE starts_with(collection, $1) ORDER BY collection`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

func withKinds(sql string, args []any, f Filter) (string, []any) {
	if len(f.Types) == 0 {
		return sql, args
	}
	args = append(args, f.Types)
	return sql + fmt.Sprintf(" AND kind = ANY($%d)", len(args)), args
}

func collectDocs(rows pgx.Rows, scored bool) ([]Document, error) {
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			d    Document
			meta []byte
		)
		dest := []any{&d.ID, &d.Text, &meta, &d.CreatedAt}
		if scored {
			dest = append(dest, &d.Score)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
