package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/grasss/internal/retrieval"
	"github.com/abhisek/grasss/internal/store"
)

// ErrUsernameTaken is returned by Register for an existing username.
var ErrUsernameTaken = errors.New("username already registered")

// Registration describes a new learner.
type Registration struct {
	Username   string `json:"username" validate:"required,max=150"`
	FirstName  string `json:"first_name" validate:"max=150"`
	ClassLevel string `json:"class_level" validate:"max=50"`
}

// Register creates a student principal with a learner profile and seeds
// the user retrieval scope with the profile document.
func (o *Orchestrator) Register(ctx context.Context, r Registration) (*store.Principal, *store.LearnerProfile, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.ClassLevel = strings.TrimSpace(r.ClassLevel)
	if err := o.check(r); err != nil {
		return nil, nil, err
	}
	if r.ClassLevel != "" && !GradeAllowed(r.ClassLevel) {
		return nil, nil, validationFailure(ReasonGradeNotAllowed, fmt.Sprintf(
			"Classe %q non prise en charge. Choisissez parmi : %s.", r.ClassLevel, strings.Join(GradeLevels, ", ")))
	}

	existing, err := o.learners.PrincipalByUsername(ctx, r.Username)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUsernameTaken, r.Username)
	}

	p, err := o.learners.CreatePrincipal(ctx, &store.Principal{
		Username:  r.Username,
		FirstName: r.FirstName,
		Role:      store.RoleStudent,
	})
	if err != nil {
		return nil, nil, err
	}
	prof, err := o.learners.CreateProfile(ctx, &store.LearnerProfile{
		PrincipalID: p.ID,
		ClassLevel:  r.ClassLevel,
	})
	if err != nil {
		return nil, nil, err
	}

	o.storeProfile(ctx, p, prof)
	return p, prof, nil
}

// Progress is a learner's standing across matters.
type Progress struct {
	Principal *store.Principal
	Profile   *store.LearnerProfile
	Matters   []*store.Matter

	// Average is the mean progression over Matters, 0 without matters.
	Average float64
}

func (o *Orchestrator) Progress(ctx context.Context, principal *store.Principal) (*Progress, error) {
	prof, err := o.learners.Profile(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	matters, err := o.matters.ListMatters(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	out := &Progress{Principal: principal, Profile: prof, Matters: matters}
	if len(matters) > 0 {
		var total float64
		for _, m := range matters {
			total += m.Progression
		}
		out.Average = total / float64(len(matters))
	}
	return out, nil
}

// History lists conversation summaries newest first. An empty subject
// lists every subject; limit <= 0 lists all.
func (o *Orchestrator) History(ctx context.Context, principal *store.Principal, subject string, limit int) ([]*store.ConversationSummary, error) {
	if limit < 0 {
		limit = 0
	}
	return o.summaries.ListSummaries(ctx, principal.ID, store.HistoryOpts{
		Subject: strings.TrimSpace(subject),
		Limit:   limit,
	})
}

// SetObjective records the learner's goal on the matter for subject and
// chapter, creating the matter when absent. An empty objective clears it.
func (o *Orchestrator) SetObjective(ctx context.Context, principal *store.Principal, subject, chapter, objective string) (*store.Matter, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, validationFailure(ReasonInvalidRequest, "La matière est obligatoire.")
	}
	m, _, err := o.matters.GetOrCreate(ctx, store.MatterKey{
		PrincipalID: principal.ID,
		Subject:     subject,
		Chapter:     strings.TrimSpace(chapter),
	}, store.DifficultyMedium)
	if err != nil {
		return nil, err
	}
	if err := o.matters.SetObjective(ctx, m.ID, strings.TrimSpace(objective)); err != nil {
		return nil, err
	}
	updated, err := o.matters.Matter(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("matter %d: %w", m.ID, store.ErrNotFound)
	}
	return updated, nil
}

// Subjects lists the subjects holding retrieval history for principal.
func (o *Orchestrator) Subjects(ctx context.Context, principal *store.Principal) ([]string, error) {
	return o.retrieval.MatterSubjects(ctx, principal.ID)
}

// Reset returns the learner to the pre-diagnosis state and rebuilds the
// user retrieval scope from the profile alone. Matter scopes are kept.
func (o *Orchestrator) Reset(ctx context.Context, principal *store.Principal) error {
	if err := o.learners.ResetDiagnostic(ctx, principal.ID); err != nil {
		return err
	}
	if err := o.retrieval.ClearUser(ctx, principal.ID); err != nil {
		return fmt.Errorf("clear user context: %w", err)
	}
	prof, err := o.learners.Profile(ctx, principal.ID)
	if err != nil {
		return err
	}
	if prof != nil {
		o.storeProfile(ctx, principal, prof)
	}
	return nil
}

func (o *Orchestrator) storeProfile(ctx context.Context, p *store.Principal, prof *store.LearnerProfile) {
	o.retrieval.User(p.ID).Store(ctx, retrieval.KindProfile, retrieval.ProfileDocument(retrieval.Profile{
		Name:          p.DisplayName(),
		Level:         prof.Level,
		LearningStyle: prof.LearningStyle,
		ClassCycle:    classCycle(prof.ClassLevel),
		ClassLevel:    prof.ClassLevel,
		RegisteredAt:  p.CreatedAt,
	}), nil)
}

// classCycle names the school cycle of a grade level.
func classCycle(grade string) string {
	switch grade {
	case "3ème":
		return "Collège"
	case "Terminale D":
		return "Lycée"
	}
	return ""
}
