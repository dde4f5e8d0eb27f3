package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Principal roles.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// Global proficiency levels.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
	LevelExpert       = "expert"
)

// Learning styles.
const (
	StyleVisual         = "visual"
	StyleAuditory       = "auditory"
	StyleKinesthetic    = "kinesthetic"
	StyleReadingWriting = "reading_writing"
	StyleMixed          = "mixed"
)

// Matter difficulties.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
	DifficultyExpert = "expert"
)

// ValidLevel reports whether s is a known proficiency level.
func ValidLevel(s string) bool {
	switch s {
	case LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert:
		return true
	}
	return false
}

// ValidLearningStyle reports whether s is a known learning style.
func ValidLearningStyle(s string) bool {
	switch s {
	case StyleVisual, StyleAuditory, StyleKinesthetic, StyleReadingWriting, StyleMixed:
		return true
	}
	return false
}

// NormalizeDifficulty maps a difficulty, including the French labels used
// in class ("facile", "moyen", "difficile"), to its canonical value.
// Unknown input yields "".
func NormalizeDifficulty(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case DifficultyEasy, "facile":
		return DifficultyEasy
	case DifficultyMedium, "moyen":
		return DifficultyMedium
	case DifficultyHard, "difficile":
		return DifficultyHard
	case DifficultyExpert:
		return DifficultyExpert
	}
	return ""
}

// Principal is an authenticated user as seen by the tutor.
type Principal struct {
	ID        int
	Username  string
	FirstName string
	Role      string
	CreatedAt time.Time
}

// DisplayName is the first name, falling back to the username.
func (p *Principal) DisplayName() string {
	if p.FirstName != "" {
		return p.FirstName
	}
	return p.Username
}

// LearnerProfile is the tutoring state attached to a principal.
type LearnerProfile struct {
	ID                  int
	PrincipalID         int
	ClassLevel          string
	Level               string
	LearningStyle       string
	DiagnosticCompleted bool
	DiagnosticDate      *time.Time

	// PendingQuestions holds the question set posed by the first diagnostic
	// step until the answers are evaluated. Nil when nothing is pending.
	PendingQuestions json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MatterKey identifies a matter. At most one row exists per key.
type MatterKey struct {
	PrincipalID int
	Subject     string
	Chapter     string
}

// Matter is a principal's engagement with one subject and chapter.
type Matter struct {
	ID          int
	PrincipalID int
	Subject     string
	Chapter     string
	Objective   string
	Difficulty  string
	Progression float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ConversationSummary is a persisted digest of a tutoring session.
type ConversationSummary struct {
	ID               int
	PrincipalID      int
	MatterID         int
	Text             string
	KeyConcepts      []string
	DocumentID       string
	ConversationDate time.Time
	CreatedAt        time.Time

	// Subject and Chapter are filled from the owning matter on reads.
	Subject string
	Chapter string
}

// DiagnosticOutcome carries the fields written when a diagnosis completes.
// Empty Level or LearningStyle leave the stored value unchanged.
type DiagnosticOutcome struct {
	Level         string
	LearningStyle string
	CompletedAt   time.Time
}

// HistoryOpts filters conversation history listings.
type HistoryOpts struct {
	Subject string // exact subject match; empty for all
	Limit   int    // 0 = unlimited
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	Purpose string    // exact purpose match; empty for all
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// LearnerRepo manages principals and their learner profiles.
// Lookups return nil, nil when the row does not exist.
type LearnerRepo interface {
	CreatePrincipal(ctx context.Context, p *Principal) (*Principal, error)
	Principal(ctx context.Context, id int) (*Principal, error)
	PrincipalByUsername(ctx context.Context, username string) (*Principal, error)
	ListPrincipals(ctx context.Context) ([]*Principal, error)

	CreateProfile(ctx context.Context, p *LearnerProfile) (*LearnerProfile, error)
	Profile(ctx context.Context, principalID int) (*LearnerProfile, error)
	SetClassLevel(ctx context.Context, principalID int, classLevel string) error
	SetPendingQuestions(ctx context.Context, principalID int, questions json.RawMessage) error

	// CompleteDiagnostic marks the diagnosis complete and clears the pending
	// questions, but only if the diagnosis was still pending. It reports
	// whether this call performed the transition.
	CompleteDiagnostic(ctx context.Context, principalID int, outcome DiagnosticOutcome) (bool, error)

	// ResetDiagnostic returns the profile to its pre-diagnosis state.
	ResetDiagnostic(ctx context.Context, principalID int) error
}

// MatterRepo manages matters.
type MatterRepo interface {
	// GetOrCreate returns the matter for key, creating it with difficulty
	// when absent. Concurrent calls for one key yield a single row.
	GetOrCreate(ctx context.Context, key MatterKey, difficulty string) (m *Matter, created bool, err error)
	Matter(ctx context.Context, id int) (*Matter, error)
	ListMatters(ctx context.Context, principalID int) ([]*Matter, error)
	SetObjective(ctx context.Context, id int, objective string) error
}

// SummaryRepo manages conversation summaries.
type SummaryRepo interface {
	CreateSummary(ctx context.Context, s *ConversationSummary) (*ConversationSummary, error)

	// AttachDocument sets the retrieval document handle once. It reports
	// false when the summary already carries a handle.
	AttachDocument(ctx context.Context, summaryID int, documentID string) (bool, error)

	// ListSummaries returns summaries newest first.
	ListSummaries(ctx context.Context, principalID int, opts HistoryOpts) ([]*ConversationSummary, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a stored LLM request event.
type LLMEventRecord struct {
	ID        int
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates LLM usage for one purpose.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates LLM usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo records and queries LLM request events.
type EventRepo interface {
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)
	GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error)
	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}
