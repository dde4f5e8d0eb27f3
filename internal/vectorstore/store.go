// Package vectorstore keeps retrieval documents in named collections and
// ranks them against a query. Backends share one contract: an in-memory
// store, a SQLite table next to the learning state, and Postgres with the
// pgvector extension.
package vectorstore

import (
	"context"
	"slices"
	"time"
)

// Metadata keys every document carries.
const (
	MetaType      = "type"
	MetaUserID    = "user_id"
	MetaSubject   = "matiere"
	MetaCreatedAt = "created_at"
)

// Document is a text chunk stored in a collection.
type Document struct {
	ID        string
	Text      string
	Metadata  map[string]string
	CreatedAt time.Time

	// Score is the similarity to the query. Recency listings leave it zero.
	Score float64
}

// Type returns the document's type tag.
func (d Document) Type() string {
	return d.Metadata[MetaType]
}

// Filter narrows a listing by metadata. The zero Filter matches everything.
type Filter struct {
	// Types keeps documents whose type tag is one of these.
	Types []string
}

func (f Filter) match(meta map[string]string) bool {
	if len(f.Types) == 0 {
		return true
	}
	return slices.Contains(f.Types, meta[MetaType])
}

// Store is a collection-keyed document store. Reading a collection that
// does not exist yields no documents rather than an error.
type Store interface {
	// Add appends docs to collection, creating it on first use. Empty IDs
	// and zero CreatedAt are filled in.
	Add(ctx context.Context, collection string, docs ...Document) error

	// Query returns up to limit documents ranked by similarity to text,
	// best first. An empty text behaves like Recent.
	Query(ctx context.Context, collection, text string, limit int, f Filter) ([]Document, error)

	// Recent returns the limit most recently added documents, oldest first.
	// A limit of zero or less returns them all.
	Recent(ctx context.Context, collection string, limit int, f Filter) ([]Document, error)

	DeleteCollection(ctx context.Context, collection string) error

	// Collections lists collection names starting with prefix, sorted.
	Collections(ctx context.Context, prefix string) ([]string, error)
}

// Embedder turns text into a vector. Backends that rank by cosine
// similarity need one; the others fall back to term overlap without it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
