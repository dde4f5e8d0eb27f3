// Package tutor runs one tutoring interaction end to end: it resolves the
// learner's matter, gathers retrieval context, prompts the model, decodes
// the reply and records what the interaction changed.
//
// Handle holds no state between calls. The two-step diagnostic is carried
// on the learner profile.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/abhisek/grasss/internal/llm"
	"github.com/abhisek/grasss/internal/reply"
	"github.com/abhisek/grasss/internal/retrieval"
	"github.com/abhisek/grasss/internal/store"
)

const (
	msgForbidden = "Profil élève requis. Seuls les comptes élèves peuvent utiliser le tuteur."
	msgInternal  = "Une erreur interne est survenue. Veuillez réessayer."
)

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Learners  store.LearnerRepo
	Matters   store.MatterRepo
	Summaries store.SummaryRepo
	Provider  llm.Provider
	Retrieval *retrieval.Gateway
	Logger    *zap.Logger
}

// Orchestrator dispatches tutoring requests.
type Orchestrator struct {
	learners  store.LearnerRepo
	matters   store.MatterRepo
	summaries store.SummaryRepo
	provider  llm.Provider
	retrieval *retrieval.Gateway
	logger    *zap.Logger
	validate  *validator.Validate

	debug bool
	now   func() time.Time
}

type Option func(*Orchestrator)

// WithDebug makes server failures carry the underlying error text.
func WithDebug(on bool) Option {
	return func(o *Orchestrator) { o.debug = on }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(d Deps, opts ...Option) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		learners:  d.Learners,
		matters:   d.Matters,
		summaries: d.Summaries,
		provider:  d.Provider,
		retrieval: d.Retrieval,
		logger:    logger,
		validate:  newValidator(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// turn is the resolved state one branch works on.
type turn struct {
	principal *store.Principal
	profile   *store.LearnerProfile
	matter    *store.Matter
	req       Request
}

// Handle runs req for principal. Errors are always *Failure. Validation
// and precondition failures carry a reason the caller can act on; any
// other error, and any panic, is logged and returned as a server failure.
func (o *Orchestrator) Handle(ctx context.Context, principal *store.Principal, req Request) (resp *Response, err error) {
	if principal == nil {
		return nil, &Failure{Kind: KindForbidden, Reason: ReasonProfileRequired, Message: msgForbidden}
	}
	start := time.Now()
	req = normalize(req)
	log := o.logger.With(zap.Int("principal_id", principal.ID), zap.String("action", req.Action))

	defer func() {
		if r := recover(); r != nil {
			log.Error("tutor request panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			resp, err = nil, o.serverFailure(fmt.Errorf("panic: %v", r))
			return
		}
		if err == nil {
			log.Info("tutor request handled",
				zap.String("status", resp.Status),
				zap.Duration("latency", time.Since(start)))
			return
		}
		var f *Failure
		if errors.As(err, &f) {
			log.Info("tutor request rejected",
				zap.String("kind", string(f.Kind)),
				zap.String("reason", f.Reason))
			err = f
			return
		}
		log.Error("tutor request failed", zap.Error(err), zap.Duration("latency", time.Since(start)))
		err = o.serverFailure(err)
	}()

	return o.handle(ctx, principal, req)
}

func (o *Orchestrator) handle(ctx context.Context, principal *store.Principal, req Request) (*Response, error) {
	if err := o.check(req); err != nil {
		return nil, err
	}
	action, ok := ParseAction(req.Action)
	if !ok {
		return nil, validationFailure(ReasonInvalidAction,
			fmt.Sprintf("Action inconnue : %q.", req.Action))
	}

	profile, err := o.learners.Profile(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, &Failure{Kind: KindForbidden, Reason: ReasonProfileRequired, Message: msgForbidden}
	}

	difficulty := store.NormalizeDifficulty(req.Difficulty)
	if difficulty == "" {
		difficulty = store.DifficultyMedium
	}
	matter, created, err := o.matters.GetOrCreate(ctx, store.MatterKey{
		PrincipalID: principal.ID,
		Subject:     req.Subject,
		Chapter:     req.Chapter,
	}, difficulty)
	if err != nil {
		return nil, err
	}
	if created {
		o.logger.Debug("matter created",
			zap.Int("matter_id", matter.ID),
			zap.String("subject", matter.Subject),
			zap.String("chapter", matter.Chapter))
	}

	t := &turn{principal: principal, profile: profile, matter: matter, req: req}

	// A completed diagnosis turns diagnostic requests into tutoring, except
	// for answers submitted again, which have nothing left to evaluate.
	if action == ActionDiagnostic && profile.DiagnosticCompleted {
		if req.StudentAnswers != nil {
			return nil, validationFailure(ReasonNoPendingQuestions, msgNoPending)
		}
		action = ActionTutor
	}
	switch action {
	case ActionDiagnostic:
		if req.StudentAnswers != nil {
			return o.evaluateDiagnostic(ctx, t)
		}
		return o.poseDiagnostic(ctx, t)
	case ActionExercise:
		return o.exercise(ctx, t)
	case ActionTutor:
		return o.tutor(ctx, t)
	case ActionRemediation:
		return o.remediation(ctx, t)
	case ActionSummary:
		return o.summary(ctx, t)
	}
	return nil, fmt.Errorf("unhandled action %v", action)
}

func (o *Orchestrator) serverFailure(err error) *Failure {
	msg := msgInternal
	if o.debug {
		msg = err.Error()
	}
	return &Failure{Kind: KindServer, Reason: ReasonInternal, Message: msg, Err: err}
}

// generate sends prompt to the model under purpose.
func (o *Orchestrator) generate(ctx context.Context, purpose, prompt string) (string, error) {
	text, err := llm.Complete(llm.WithPurpose(ctx, purpose), o.provider, prompt)
	if err != nil {
		return "", fmt.Errorf("%s generation: %w", purpose, err)
	}
	return text, nil
}

// drift logs a decoded reply that does not have the requested shape. The
// reply is still used.
func (o *Orchestrator) drift(purpose string, schema *reply.Schema, v any) {
	if err := reply.Conforms(schema, v); err != nil {
		o.logger.Debug("reply does not match requested shape",
			zap.String("purpose", purpose),
			zap.Error(err))
	}
}
