package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const tableDocuments = "retrieval_documents"

var (
	documentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "doc_id", Type: field.TypeString, Unique: true},
		{Name: "collection", Type: field.TypeString},
		{Name: "kind", Type: field.TypeString, Default: ""},
		{Name: "body", Type: field.TypeString, Size: 2147483647},
		{Name: "metadata", Type: field.TypeJSON},
		{Name: "embedding", Type: field.TypeJSON, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	documentsTable = &schema.Table{
		Name:       tableDocuments,
		Columns:    documentsColumns,
		PrimaryKey: []*schema.Column{documentsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "retrievaldocument_collection_kind",
				Columns: []*schema.Column{documentsColumns[2], documentsColumns[3]},
			},
		},
	}
)

// SQLite stores documents in a table of an existing SQLite database.
// Ranking happens in Go over the collection's rows, which suits the
// per-learner collection sizes this store sees.
type SQLite struct {
	db       *sql.DB
	embedder Embedder
	now      func() time.Time
}

// NewSQLite migrates the documents table into db. The handle must have
// foreign keys enabled, as ent's SQLite migrator requires.
func NewSQLite(ctx context.Context, db *sql.DB, embedder Embedder) (*SQLite, error) {
	m, err := schema.NewMigrate(entsql.OpenDB(dialect.SQLite, db))
	if err != nil {
		return nil, fmt.Errorf("retrieval migrate: %w", err)
	}
	if err := m.Create(ctx, documentsTable); err != nil {
		return nil, fmt.Errorf("retrieval migrate: %w", err)
	}
	return &SQLite{
		db:       db,
		embedder: embedder,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (s *SQLite) Add(ctx context.Context, collection string, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}

	ins := builder().Insert(tableDocuments).
		Columns("doc_id", "collection", "kind", "body", "metadata", "embedding", "created_at")
	for _, d := range docs {
		d = prepare(d, s.now())
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		var vec any
		if s.embedder != nil {
			v, err := s.embedder.Embed(ctx, d.Text)
			if err != nil {
				return fmt.Errorf("embed document %s: %w", d.ID, err)
			}
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("marshal embedding: %w", err)
			}
			vec = string(b)
		}
		ins.Values(d.ID, collection, d.Type(), d.Text, string(meta), vec, d.CreatedAt.UTC())
	}

	q, args := ins.Query()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	return nil
}

func (s *SQLite) Query(ctx context.Context, collection, text string, limit int, f Filter) ([]Document, error) {
	if strings.TrimSpace(text) == "" {
		return s.Recent(ctx, collection, limit, f)
	}

	var qvec []float32
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		qvec = v
	}
	qterms := terms(text)

	sel := s.selectDocs(collection, f).OrderBy("id")
	rows, err := s.fetch(ctx, sel)
	if err != nil {
		return nil, err
	}

	cs := make([]candidate, 0, len(rows))
	for _, r := range rows {
		if qvec != nil && r.vec != nil {
			r.doc.Score = cosine(qvec, r.vec)
		} else {
			r.doc.Score = overlap(qterms, r.doc.Text)
		}
		cs = append(cs, candidate{doc: r.doc, seq: r.seq})
	}
	return rank(cs, limit), nil
}

func (s *SQLite) Recent(ctx context.Context, collection string, limit int, f Filter) ([]Document, error) {
	sel := s.selectDocs(collection, f).OrderBy(entsql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}
	rows, err := s.fetch(ctx, sel)
	if err != nil {
		return nil, err
	}

	out := make([]Document, len(rows))
	for i, r := range rows {
		out[i] = r.doc
	}
	slices.Reverse(out)
	return out, nil
}

func (s *SQLite) DeleteCollection(ctx context.Context, collection string) error {
	q, args := builder().Delete(tableDocuments).
		Where(entsql.EQ("collection", collection)).
		Query()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	return nil
}

func (s *SQLite) Collections(ctx context.Context, prefix string) ([]string, error) {
	sel := builder().Select("collection").Distinct().
		From(entsql.Table(tableDocuments)).
		OrderBy("collection")
	if prefix != "" {
		sel.Where(entsql.HasPrefix("collection", prefix))
	}

	q, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		// LIKE folds ASCII case in SQLite.
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, rows.Err()
}

func (s *SQLite) selectDocs(collection string, f Filter) *entsql.Selector {
	sel := builder().
		Select("id", "doc_id", "body", "metadata", "embedding", "created_at").
		From(entsql.Table(tableDocuments)).
		Where(entsql.EQ("collection", collection))
	if len(f.Types) > 0 {
		kinds := make([]any, len(f.Types))
		for i, t := range f.Types {
			kinds[i] = t
		}
		sel.Where(entsql.In("kind", kinds...))
	}
	return sel
}

type docRow struct {
	doc Document
	vec []float32
	seq int64
}

func (s *SQLite) fetch(ctx context.Context, sel *entsql.Selector) ([]docRow, error) {
	q, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []docRow
	for rows.Next() {
		var (
			r    docRow
			meta string
			vec  sql.NullString
		)
		if err := rows.Scan(&r.seq, &r.doc.ID, &r.doc.Text, &meta, &vec, &r.doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &r.doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", r.doc.ID, err)
		}
		if vec.Valid && vec.String != "" {
			if err := json.Unmarshal([]byte(vec.String), &r.vec); err != nil {
				return nil, fmt.Errorf("decode embedding of %s: %w", r.doc.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
