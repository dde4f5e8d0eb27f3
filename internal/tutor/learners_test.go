package tutor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/grasss/internal/retrieval"
	"github.com/abhisek/grasss/internal/store"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, prof, err := f.orch.Register(ctx, Registration{Username: " kofi ", FirstName: "Kofi", ClassLevel: "Terminale D"})
	require.NoError(t, err)
	assert.Equal(t, "kofi", p.Username)
	assert.Equal(t, store.RoleStudent, p.Role)
	assert.Equal(t, "Terminale D", prof.ClassLevel)
	assert.Equal(t, store.LevelBeginner, prof.Level)
	assert.False(t, prof.DiagnosticCompleted)

	profile := f.gateway.User(p.ID).Retrieve(ctx, "", 0)
	assert.Contains(t, profile, "Nom: Kofi")
	assert.Contains(t, profile, "Cycle scolaire: Lycée")

	_, _, err = f.orch.Register(ctx, Registration{Username: "kofi"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, _, err = f.orch.Register(ctx, Registration{Username: "  "})
	var fail *Failure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, ReasonInvalidRequest, fail.Reason)

	_, _, err = f.orch.Register(ctx, Registration{Username: "ama", ClassLevel: "6ème"})
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, ReasonGradeNotAllowed, fail.Reason)
}

func TestProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.orch.Progress(ctx, f.principal)
	require.NoError(t, err)
	assert.Empty(t, got.Matters)
	assert.Zero(t, got.Average)
	require.NotNil(t, got.Profile)

	matters := f.store.MatterRepo()
	for _, chapter := range []string{"Fractions", "Équations"} {
		_, _, err := matters.GetOrCreate(ctx, store.MatterKey{PrincipalID: f.principal.ID, Subject: "Maths", Chapter: chapter}, "")
		require.NoError(t, err)
	}
	_, err = f.store.DB().ExecContext(ctx,
		"UPDATE matters SET progression = CASE chapter WHEN 'Fractions' THEN 80 ELSE 40 END WHERE principal_id = ?",
		f.principal.ID)
	require.NoError(t, err)

	got, err = f.orch.Progress(ctx, f.principal)
	require.NoError(t, err)
	assert.Len(t, got.Matters, 2)
	assert.InDelta(t, 60.0, got.Average, 1e-9)
}

func TestSetObjective(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.orch.SetObjective(ctx, f.principal, " SVT ", "Génétique", "  Réussir le BEPC ")
	require.NoError(t, err)
	assert.Equal(t, "SVT", m.Subject)
	assert.Equal(t, "Génétique", m.Chapter)
	assert.Equal(t, "Réussir le BEPC", m.Objective)
	assert.Equal(t, store.DifficultyMedium, m.Difficulty)

	again, err := f.orch.SetObjective(ctx, f.principal, "SVT", "Génétique", "")
	require.NoError(t, err)
	assert.Equal(t, m.ID, again.ID)
	assert.Empty(t, again.Objective)

	_, err = f.orch.SetObjective(ctx, f.principal, "  ", "", "x")
	var fail *Failure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, ReasonInvalidRequest, fail.Reason)
}

func TestHistory(t *testing.T) {
	f := newFixture(t,
		`{"resume_court": "maths 1"}`,
		`{"resume_court": "physique"}`,
		`{"resume_court": "maths 2"}`)

	for _, subject := range []string{"Maths", "Physique", "Maths"} {
		_, fail := f.handle(t, Request{Action: "summary", Subject: subject, Message: "..."})
		require.Nil(t, fail)
	}

	ctx := context.Background()
	all, err := f.orch.History(ctx, f.principal, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "maths 2", all[0].Text, "newest first")

	maths, err := f.orch.History(ctx, f.principal, "Maths", 1)
	require.NoError(t, err)
	require.Len(t, maths, 1)
	assert.Equal(t, "maths 2", maths[0].Text)

	subjects, err := f.orch.Subjects(ctx, f.principal)
	require.NoError(t, err)
	assert.Equal(t, []string{"maths", "physique"}, subjects)
}

func TestReset(t *testing.T) {
	f := newFixture(t, questionsReply, analysisReply)
	ctx := context.Background()

	_, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Maths", ClassLevel: "3ème"})
	require.Nil(t, fail)
	_, fail = f.handle(t, Request{Action: "diagnostic", Subject: "Maths", StudentAnswers: answers()})
	require.Nil(t, fail)
	f.gateway.Matter(f.principal.ID, "Maths").Store(ctx, retrieval.KindConversationSummary, "séance", nil)

	require.NoError(t, f.orch.Reset(ctx, f.principal))

	prof := f.profile(t)
	assert.False(t, prof.DiagnosticCompleted)
	assert.Nil(t, prof.DiagnosticDate)
	assert.Equal(t, "3ème", prof.ClassLevel)

	user := f.gateway.User(f.principal.ID).Retrieve(ctx, "", 0)
	assert.Contains(t, user, "PROFIL UTILISATEUR")
	assert.Contains(t, user, "Niveau global: intermediate")
	assert.NotContains(t, user, "RÉSULTATS DU DIAGNOSTIC")
	assert.Equal(t, "séance\n\n", f.gateway.Matter(f.principal.ID, "Maths").Retrieve(ctx, "", 0))
}

func TestClassCycle(t *testing.T) {
	assert.Equal(t, "Collège", classCycle("3ème"))
	assert.Equal(t, "Lycée", classCycle("Terminale D"))
	assert.Empty(t, classCycle(""))
}
