package tutor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/grasss/internal/llm"
	"github.com/abhisek/grasss/internal/retrieval"
	"github.com/abhisek/grasss/internal/store"
	"github.com/abhisek/grasss/internal/vectorstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var fixedNow = time.Date(2026, 10, 5, 14, 30, 0, 0, time.UTC)

type fixture struct {
	store     *store.Store
	vectors   *vectorstore.Memory
	gateway   *retrieval.Gateway
	llm       *llm.MockProvider
	orch      *Orchestrator
	logs      *observer.ObservedLogs
	principal *store.Principal
}

// newFixture wires an orchestrator over a temp SQLite store and an
// in-memory vector store, with one registered learner. replies are queued
// on the mock model in order.
func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "grasss.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	mock := llm.NewMockProvider()
	for _, r := range replies {
		mock.AddResponse(llm.TextReply(r))
	}

	f := &fixture{store: st, vectors: vectorstore.NewMemory(nil), llm: mock, logs: logs}
	f.gateway = retrieval.New(f.vectors, logger)
	f.orch = New(Deps{
		Learners:  st.LearnerRepo(),
		Matters:   st.MatterRepo(),
		Summaries: st.SummaryRepo(),
		Provider:  mock,
		Retrieval: f.gateway,
		Logger:    logger,
	}, WithClock(func() time.Time { return fixedNow }))

	p, _, err := f.orch.Register(context.Background(), Registration{Username: "awa", FirstName: "Awa"})
	require.NoError(t, err)
	f.principal = p
	return f
}

func (f *fixture) handle(t *testing.T, req Request) (*Response, *Failure) {
	t.Helper()
	resp, err := f.orch.Handle(context.Background(), f.principal, req)
	if err == nil {
		return resp, nil
	}
	var fail *Failure
	require.ErrorAs(t, err, &fail)
	return nil, fail
}

func (f *fixture) profile(t *testing.T) *store.LearnerProfile {
	t.Helper()
	prof, err := f.store.LearnerRepo().Profile(context.Background(), f.principal.ID)
	require.NoError(t, err)
	require.NotNil(t, prof)
	return prof
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
		ok   bool
	}{
		{"", ActionTutor, true},
		{"tutor", ActionTutor, true},
		{"diagnostic", ActionDiagnostic, true},
		{" Exercise ", ActionExercise, true},
		{"remediation", ActionRemediation, true},
		{"summary", ActionSummary, true},
		{"quiz", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseAction(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
			assert.Equal(t, got.String(), actionNames[got])
		}
	}
	assert.Equal(t, "Action(42)", Action(42).String())
}

func TestHandle_RejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		req    Request
		reason string
	}{
		{"missing subject", Request{Action: "exercise"}, ReasonInvalidRequest},
		{"blank subject", Request{Action: "exercise", Subject: "   "}, ReasonInvalidRequest},
		{"unknown difficulty", Request{Subject: "Maths", Difficulty: "extrême"}, ReasonInvalidRequest},
		{"negative failures", Request{Action: "remediation", Subject: "Maths", FailureCount: -1}, ReasonInvalidRequest},
		{"unknown action", Request{Action: "quiz", Subject: "Maths"}, ReasonInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, fail := f.handle(t, tt.req)
			require.NotNil(t, fail)
			assert.Equal(t, KindValidation, fail.Kind)
			assert.Equal(t, tt.reason, fail.Reason)
			assert.NotEmpty(t, fail.Message)
		})
	}
	assert.Zero(t, f.llm.CallCount())

	matters, err := f.store.MatterRepo().ListMatters(context.Background(), f.principal.ID)
	require.NoError(t, err)
	assert.Empty(t, matters, "rejected requests create no matter")
}

func TestHandle_InvalidRequestNamesField(t *testing.T) {
	f := newFixture(t)
	_, fail := f.handle(t, Request{Action: "tutor"})
	require.NotNil(t, fail)
	assert.Contains(t, fail.Message, "matiere (required)")
}

func TestHandle_ProfileRequired(t *testing.T) {
	f := newFixture(t)
	teacher, err := f.store.LearnerRepo().CreatePrincipal(context.Background(),
		&store.Principal{Username: "prof", Role: store.RoleTeacher})
	require.NoError(t, err)

	_, err = f.orch.Handle(context.Background(), teacher, Request{Subject: "Maths", Message: "Bonjour"})
	var fail *Failure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, KindForbidden, fail.Kind)
	assert.Equal(t, ReasonProfileRequired, fail.Reason)
	assert.Equal(t, msgForbidden, fail.Message)
	assert.Zero(t, f.llm.CallCount())

	_, err = f.orch.Handle(context.Background(), nil, Request{Subject: "Maths"})
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, KindForbidden, fail.Kind)
}

func TestHandle_ProviderFailureIsRedacted(t *testing.T) {
	f := newFixture(t)
	cause := &llm.ErrRateLimit{}
	f.llm.AddResponse(llm.MockResponse{Err: cause})

	_, fail := f.handle(t, Request{Action: "exercise", Subject: "Maths"})
	require.NotNil(t, fail)
	assert.Equal(t, KindServer, fail.Kind)
	assert.Equal(t, ReasonInternal, fail.Reason)
	assert.Equal(t, msgInternal, fail.Message)
	assert.ErrorIs(t, fail, cause)

	failed := f.logs.FilterMessage("tutor request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "exercise", failed[0].ContextMap()["action"])
}

func TestHandle_DebugExposesDetail(t *testing.T) {
	f := newFixture(t)
	WithDebug(true)(f.orch)

	_, fail := f.handle(t, Request{Action: "tutor", Subject: "Maths", Message: "Bonjour"})
	require.NotNil(t, fail)
	assert.Equal(t, KindServer, fail.Kind)
	assert.Contains(t, fail.Message, "tutor generation")
	assert.Contains(t, fail.Message, "unavailable")
}

type panicProvider struct{}

func (panicProvider) Generate(context.Context, llm.Request) (*llm.Response, error) {
	panic("model exploded")
}

func (panicProvider) ModelID() string { return "panic" }

func TestHandle_RecoversPanics(t *testing.T) {
	f := newFixture(t)
	f.orch.provider = panicProvider{}

	resp, err := f.orch.Handle(context.Background(), f.principal, Request{Subject: "Maths", Message: "Bonjour"})
	assert.Nil(t, resp)
	var fail *Failure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, KindServer, fail.Kind)
	assert.Equal(t, msgInternal, fail.Message)
	assert.NotContains(t, fail.Message, "exploded")
	assert.Equal(t, 1, f.logs.FilterMessage("tutor request panicked").Len())
}

func TestHandle_MatterResolvedOnce(t *testing.T) {
	f := newFixture(t, "pas du JSON", "toujours pas")
	ctx := context.Background()

	_, fail := f.handle(t, Request{Action: "exercise", Subject: "Maths", Chapter: "Fractions", Difficulty: "difficile"})
	require.Nil(t, fail)
	_, fail = f.handle(t, Request{Action: "exercise", Subject: "Maths", Chapter: "Fractions", Difficulty: "facile"})
	require.Nil(t, fail)

	matters, err := f.store.MatterRepo().ListMatters(ctx, f.principal.ID)
	require.NoError(t, err)
	require.Len(t, matters, 1)
	assert.Equal(t, store.DifficultyHard, matters[0].Difficulty, "difficulty is fixed at creation")
	assert.Zero(t, matters[0].Progression)
}

func TestFailureError(t *testing.T) {
	f := validationFailure(ReasonGradeRequired, "choisir")
	assert.Equal(t, "validation_failed (grade_level_required): choisir", f.Error())
	assert.Nil(t, errors.Unwrap(f))

	cause := errors.New("openai: 401 invalid api key sk-live-XYZ")
	s := &Failure{Kind: KindServer, Reason: ReasonInternal, Message: msgInternal, Err: cause}
	assert.Equal(t, "server_error (internal_error): "+msgInternal, s.Error())
	assert.NotContains(t, s.Error(), "sk-live")
	assert.ErrorIs(t, s, cause)
}
