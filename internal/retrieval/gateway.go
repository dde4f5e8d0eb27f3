// Package retrieval decides which retrieval collection a tutoring action
// reads from or writes to. Context reads never fail: an empty collection
// or a backend error yields a French placeholder the prompt can carry.
// Writes are best effort; failures are logged and counted.
package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/grasss/internal/vectorstore"
)

// Document kinds.
const (
	KindProfile             = "profile"
	KindDiagnostic          = "diagnostic"
	KindConversationSummary = "conversation_summary"
)

// Placeholders returned instead of context.
const (
	NoUserContext            = "Pas de contexte disponible."
	NoMatterContext          = "Pas d'historique d'apprentissage pour cette matière."
	UserContextUnavailable   = "Contexte non disponible."
	MatterContextUnavailable = "Contexte matière non disponible."
)

const (
	defaultUserLimit   = 3
	defaultMatterLimit = 5
)

// UserCollection names a principal's profile and diagnostic collection.
func UserCollection(userID int) string {
	return fmt.Sprintf("user_%d_data", userID)
}

// MatterCollection names a principal's collection for one subject.
func MatterCollection(userID int, subject string) string {
	return matterPrefix(userID) + SanitizeSubject(subject)
}

func matterPrefix(userID int) string {
	return fmt.Sprintf("user_%d_matter_", userID)
}

// SanitizeSubject lower-cases subject and replaces spaces and slashes
// with underscores.
func SanitizeSubject(subject string) string {
	return strings.NewReplacer(" ", "_", "/", "_").Replace(strings.ToLower(subject))
}

// Stats counts gateway outcomes since creation.
type Stats struct {
	Stored           int64
	StoreFailures    int64
	Retrieved        int64
	RetrieveFailures int64
}

// Gateway hands out retrieval scopes over a vector store.
type Gateway struct {
	store  vectorstore.Store
	logger *zap.Logger
	now    func() time.Time

	userLimit   int
	matterLimit int

	stored           atomic.Int64
	storeFailures    atomic.Int64
	retrieved        atomic.Int64
	retrieveFailures atomic.Int64
}

type Option func(*Gateway)

// WithLimits sets how many documents each scope folds into a prompt when
// the caller does not ask for a specific count.
func WithLimits(user, matter int) Option {
	return func(g *Gateway) {
		if user > 0 {
			g.userLimit = user
		}
		if matter > 0 {
			g.matterLimit = matter
		}
	}
}

// WithClock overrides the timestamp source for stored documents.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func New(store vectorstore.Store, logger *zap.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		store:       store,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		userLimit:   defaultUserLimit,
		matterLimit: defaultMatterLimit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Stats returns a snapshot of the counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		Stored:           g.stored.Load(),
		StoreFailures:    g.storeFailures.Load(),
		Retrieved:        g.retrieved.Load(),
		RetrieveFailures: g.retrieveFailures.Load(),
	}
}

// User returns the profile and diagnostic scope of a principal.
func (g *Gateway) User(userID int) *Scope {
	return &Scope{
		g:           g,
		userID:      userID,
		collection:  UserCollection(userID),
		filter:      vectorstore.Filter{Types: []string{KindProfile, KindDiagnostic}},
		limit:       g.userLimit,
		empty:       NoUserContext,
		unavailable: UserContextUnavailable,
	}
}

// Matter returns a principal's scope for one subject.
func (g *Gateway) Matter(userID int, subject string) *Scope {
	return &Scope{
		g:           g,
		userID:      userID,
		subject:     subject,
		collection:  MatterCollection(userID, subject),
		limit:       g.matterLimit,
		empty:       NoMatterContext,
		unavailable: MatterContextUnavailable,
	}
}

// ClearUser deletes a principal's user-scope collection. Matter scopes
// are kept.
func (g *Gateway) ClearUser(ctx context.Context, userID int) error {
	return g.store.DeleteCollection(ctx, UserCollection(userID))
}

// MatterSubjects lists the subjects a principal has matter collections
// for. Names come back sanitized with underscores read as spaces, so
// "Physique/Chimie" is reported as "physique chimie".
func (g *Gateway) MatterSubjects(ctx context.Context, userID int) ([]string, error) {
	prefix := matterPrefix(userID)
	names, err := g.store.Collections(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list matter collections: %w", err)
	}
	subjects := make([]string, 0, len(names))
	for _, n := range names {
		subjects = append(subjects, strings.ReplaceAll(strings.TrimPrefix(n, prefix), "_", " "))
	}
	return subjects, nil
}

// Scope is one retrieval collection with its read policy.
type Scope struct {
	g           *Gateway
	userID      int
	subject     string
	collection  string
	filter      vectorstore.Filter
	limit       int
	empty       string
	unavailable string
}

// Store saves text under kind and returns the new document's ID, or ""
// when the write failed. Failures never reach the caller.
func (s *Scope) Store(ctx context.Context, kind, text string, extra map[string]string) string {
	meta := make(map[string]string, len(extra)+4)
	for k, v := range extra {
		meta[k] = v
	}
	now := s.g.now()
	meta[vectorstore.MetaType] = kind
	meta[vectorstore.MetaUserID] = strconv.Itoa(s.userID)
	meta[vectorstore.MetaCreatedAt] = now.Format(time.RFC3339)
	if s.subject != "" {
		meta[vectorstore.MetaSubject] = s.subject
	}

	doc := vectorstore.Document{
		ID:        fmt.Sprintf("%s_%d_%s", kind, s.userID, uuid.NewString()),
		Text:      text,
		Metadata:  meta,
		CreatedAt: now,
	}
	if err := s.g.store.Add(ctx, s.collection, doc); err != nil {
		s.g.storeFailures.Add(1)
		s.g.logger.Warn("retrieval store failed",
			zap.String("collection", s.collection),
			zap.String("kind", kind),
			zap.Error(err))
		return ""
	}
	s.g.stored.Add(1)
	return doc.ID
}

// Retrieve returns the scope's context for a prompt. With a query, the
// best matches are returned; without one, the most recent documents.
// limit <= 0 uses the scope's default.
func (s *Scope) Retrieve(ctx context.Context, query string, limit int) string {
	if limit <= 0 {
		limit = s.limit
	}

	var (
		docs []vectorstore.Document
		err  error
	)
	if strings.TrimSpace(query) != "" {
		docs, err = s.g.store.Query(ctx, s.collection, query, limit, s.filter)
	} else {
		docs, err = s.g.store.Recent(ctx, s.collection, limit, s.filter)
	}
	if err != nil {
		s.g.retrieveFailures.Add(1)
		s.g.logger.Warn("retrieval query failed",
			zap.String("collection", s.collection),
			zap.Bool("similarity", query != ""),
			zap.Error(err))
		return s.unavailable
	}
	s.g.retrieved.Add(1)

	var b strings.Builder
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		b.WriteString(d.Text)
		b.WriteString("\n\n")
	}
	if b.Len() == 0 {
		return s.empty
	}
	return b.String()
}
