package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a process-local Store. Nothing survives a restart.
type Memory struct {
	embedder Embedder
	now      func() time.Time

	mu          sync.RWMutex
	collections map[string][]memEntry
	seq         int64
}

type memEntry struct {
	doc Document
	vec []float32
	seq int64
}

// NewMemory returns an empty in-memory store. With a nil embedder, queries
// rank by term overlap.
func NewMemory(embedder Embedder) *Memory {
	return &Memory{
		embedder:    embedder,
		now:         func() time.Time { return time.Now().UTC() },
		collections: make(map[string][]memEntry),
	}
}

func (m *Memory) Add(ctx context.Context, collection string, docs ...Document) error {
	entries := make([]memEntry, 0, len(docs))
	for _, d := range docs {
		e := memEntry{doc: prepare(d, m.now())}
		if m.embedder != nil {
			vec, err := m.embedder.Embed(ctx, d.Text)
			if err != nil {
				return fmt.Errorf("embed document %s: %w", e.doc.ID, err)
			}
			e.vec = vec
		}
		entries = append(entries, e)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.seq++
		e.seq = m.seq
		m.collections[collection] = append(m.collections[collection], e)
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, collection, text string, limit int, f Filter) ([]Document, error) {
	if strings.TrimSpace(text) == "" {
		return m.Recent(ctx, collection, limit, f)
	}

	var qvec []float32
	if m.embedder != nil {
		v, err := m.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		qvec = v
	}
	qterms := terms(text)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var cs []candidate
	for _, e := range m.collections[collection] {
		if !f.match(e.doc.Metadata) {
			continue
		}
		d := e.doc
		if qvec != nil && e.vec != nil {
			d.Score = cosine(qvec, e.vec)
		} else {
			d.Score = overlap(qterms, d.Text)
		}
		cs = append(cs, candidate{doc: d, seq: e.seq})
	}
	return rank(cs, limit), nil
}

func (m *Memory) Recent(_ context.Context, collection string, limit int, f Filter) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for _, e := range m.collections[collection] {
		if f.match(e.doc.Metadata) {
			out = append(out, e.doc)
		}
	}
	return lastN(out, limit), nil
}

func (m *Memory) DeleteCollection(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
	return nil
}

func (m *Memory) Collections(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.collections {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
