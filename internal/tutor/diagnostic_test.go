package tutor

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abhisek/grasss/internal/llm"
	"github.com/abhisek/grasss/internal/retrieval"
	"github.com/abhisek/grasss/internal/store"
	"github.com/abhisek/grasss/internal/vectorstore"
)

const questionsReply = "Voici les questions :\n```json\n" + `{
  "questions": [
    {"id": 1, "text": "Combien font 3/4 + 1/4 ?", "type": "open", "expected_level": "facile"},
    {"id": 2, "text": "Résoudre 2x + 3 = 7", "type": "open", "expected_level": "moyen"},
    {"text": "   "}
  ],
  "evaluation_criteria": ["Compréhension", "Analyse"]
}` + "\n```"

const analysisReply = `{
  "niveau_diagnostique": "intermediate",
  "lacunes_identifiees": ["fractions"],
  "points_forts": ["calcul mental"],
  "vitesse_comprehension": "normale",
  "style_apprentissage_probable": "visual",
  "recommandations": ["schémas"],
  "plan_action": {"phase_1": "Consolider les fractions"}
}`

func answers() map[string]any {
	return map[string]any{"1": "1", "2": "x = 2"}
}

func TestDiagnostic_TwoSteps(t *testing.T) {
	f := newFixture(t, questionsReply, analysisReply)
	ctx := context.Background()

	resp, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Mathématiques", ClassLevel: "3ème"})
	require.Nil(t, fail)
	assert.Equal(t, StatusQuestionsPosed, resp.Status)
	assert.Equal(t, msgAnswerNext, resp.NextAction)
	require.Len(t, resp.Questions, 2, "questions without text are dropped")
	assert.Equal(t, Question{ID: "1", Text: "Combien font 3/4 + 1/4 ?", Type: "open", ExpectedLevel: "facile"}, resp.Questions[0])
	assert.Contains(t, f.llm.LastPrompt(), "Classe : 3ème")

	prof := f.profile(t)
	assert.Equal(t, "3ème", prof.ClassLevel)
	require.NotNil(t, prof.PendingQuestions)
	var set QuestionSet
	require.NoError(t, json.Unmarshal(prof.PendingQuestions, &set))
	assert.Equal(t, resp.Questions, set.Questions)
	assert.Equal(t, []string{"Compréhension", "Analyse"}, set.EvaluationCriteria)

	docs, err := f.vectors.Recent(ctx, retrieval.UserCollection(f.principal.ID), 0,
		vectorstore.Filter{Types: []string{retrieval.KindDiagnostic}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Text, "Résoudre 2x + 3 = 7")
	assert.Equal(t, "questions", docs[0].Metadata["stage"])

	resp, fail = f.handle(t, Request{Action: "diagnostic", Subject: "Mathématiques", StudentAnswers: answers()})
	require.Nil(t, fail)
	assert.Equal(t, StatusDiagnosticCompleted, resp.Status)
	assert.Equal(t, msgDiagnosticDone, resp.Message)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, "intermediate", resp.Analysis["niveau_diagnostique"])
	assert.Equal(t, "visual", resp.Metadata["style_apprentissage"])

	prompt := f.llm.LastPrompt()
	assert.Contains(t, prompt, `"x = 2"`)
	assert.Contains(t, prompt, "Combien font 3/4 + 1/4 ?")

	prof = f.profile(t)
	assert.True(t, prof.DiagnosticCompleted)
	require.NotNil(t, prof.DiagnosticDate)
	assert.True(t, prof.DiagnosticDate.Equal(fixedNow))
	assert.Nil(t, prof.PendingQuestions)
	assert.Equal(t, store.LevelIntermediate, prof.Level)
	assert.Equal(t, store.StyleVisual, prof.LearningStyle)

	ctxText := f.gateway.User(f.principal.ID).Retrieve(ctx, "", 0)
	assert.Contains(t, ctxText, "Niveau diagnostiqué: intermediate")
	assert.Contains(t, ctxText, "PROFIL UTILISATEUR")
}

func TestDiagnostic_AnswersTwice(t *testing.T) {
	f := newFixture(t, questionsReply, analysisReply)

	_, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Maths", ClassLevel: "Terminale D"})
	require.Nil(t, fail)
	_, fail = f.handle(t, Request{Action: "diagnostic", Subject: "Maths", StudentAnswers: answers()})
	require.Nil(t, fail)

	_, fail = f.handle(t, Request{Action: "diagnostic", Subject: "Maths", StudentAnswers: answers()})
	require.NotNil(t, fail)
	assert.Equal(t, KindValidation, fail.Kind)
	assert.Equal(t, ReasonNoPendingQuestions, fail.Reason)
	assert.Equal(t, msgNoPending, fail.Message)
	assert.Equal(t, 2, f.llm.CallCount())
}

func TestDiagnostic_AnswersWithoutQuestions(t *testing.T) {
	f := newFixture(t)
	_, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Maths", StudentAnswers: answers()})
	require.NotNil(t, fail)
	assert.Equal(t, ReasonNoPendingQuestions, fail.Reason)
	assert.Zero(t, f.llm.CallCount())
}

func TestDiagnostic_GradeGate(t *testing.T) {
	f := newFixture(t, questionsReply)

	_, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Maths"})
	require.NotNil(t, fail)
	assert.Equal(t, ReasonGradeRequired, fail.Reason)
	assert.Equal(t, msgGradeRequired, fail.Message)

	_, fail = f.handle(t, Request{Action: "diagnostic", Subject: "Maths", ClassLevel: "CM2"})
	require.NotNil(t, fail)
	assert.Equal(t, ReasonGradeNotAllowed, fail.Reason)
	assert.Contains(t, fail.Message, "CM2")
	assert.Empty(t, f.profile(t).ClassLevel, "a rejected grade is not stored")
	assert.Zero(t, f.llm.CallCount())

	resp, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Maths", ClassLevel: "3ème"})
	require.Nil(t, fail)
	assert.Equal(t, StatusQuestionsPosed, resp.Status)
}

func TestDiagnostic_StoredGradeIsUsed(t *testing.T) {
	f := newFixture(t, questionsReply)
	require.NoError(t, f.store.LearnerRepo().SetClassLevel(context.Background(), f.principal.ID, "Terminale D"))

	resp, fail := f.handle(t, Request{Action: "diagnostic", Subject: "SVT"})
	require.Nil(t, fail)
	assert.Equal(t, "Terminale D", resp.Metadata["class_level"])
	assert.Contains(t, f.llm.LastPrompt(), "Classe : Terminale D")
}

func TestDiagnostic_GenerationFailureKeepsGrade(t *testing.T) {
	f := newFixture(t)

	_, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Maths", ClassLevel: "3ème"})
	require.NotNil(t, fail)
	assert.Equal(t, KindServer, fail.Kind)
	assert.Empty(t, f.profile(t).ClassLevel)
	assert.Nil(t, f.profile(t).PendingQuestions)

	f.llm.AddResponse(llm.TextReply(questionsReply))
	_, fail = f.handle(t, Request{Action: "diagnostic", Subject: "Maths", ClassLevel: "3ème"})
	require.Nil(t, fail)
	assert.Equal(t, "3ème", f.profile(t).ClassLevel)

	_, fail = f.handle(t, Request{Action: "diagnostic", Subject: "Maths", ClassLevel: "Terminale D", StudentAnswers: answers()})
	require.NotNil(t, fail)
	assert.Equal(t, KindServer, fail.Kind)
	prof := f.profile(t)
	assert.Equal(t, "3ème", prof.ClassLevel)
	assert.NotNil(t, prof.PendingQuestions)
	assert.False(t, prof.DiagnosticCompleted)
}

func TestDiagnostic_UndecodableReplies(t *testing.T) {
	f := newFixture(t, "Je propose de parler des fractions.", "Bon travail dans l'ensemble.")

	resp, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Maths", ClassLevel: "3ème"})
	require.Nil(t, fail)
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, Question{ID: "1", Text: "Je propose de parler des fractions.", Type: "open"}, resp.Questions[0])

	var set QuestionSet
	require.NoError(t, json.Unmarshal(f.profile(t).PendingQuestions, &set))
	assert.Equal(t, "Je propose de parler des fractions.", set.RawResponse)
	assert.Len(t, set.Questions, 1)

	resp, fail = f.handle(t, Request{Action: "diagnostic", Subject: "Maths", StudentAnswers: map[string]any{"1": "les fractions"}})
	require.Nil(t, fail)
	assert.Equal(t, StatusDiagnosticCompleted, resp.Status)
	assert.Nil(t, resp.Analysis)

	prof := f.profile(t)
	assert.True(t, prof.DiagnosticCompleted)
	assert.Equal(t, store.LevelBeginner, prof.Level)
	assert.Equal(t, store.StyleMixed, prof.LearningStyle)

	ctxText := f.gateway.User(f.principal.ID).Retrieve(context.Background(), "", 0)
	assert.Contains(t, ctxText, "Réponse brute: Bon travail dans l'ensemble.")
}

func TestDiagnostic_IgnoresUnknownLevels(t *testing.T) {
	f := newFixture(t, questionsReply,
		`{"niveau_diagnostique": "génie", "style_apprentissage_probable": "Auditory"}`)

	_, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Maths", ClassLevel: "3ème"})
	require.Nil(t, fail)
	resp, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Maths", StudentAnswers: answers()})
	require.Nil(t, fail)
	assert.NotNil(t, resp.Analysis)

	prof := f.profile(t)
	assert.Equal(t, store.LevelBeginner, prof.Level)
	assert.Equal(t, store.StyleAuditory, prof.LearningStyle)
	drifted := f.logs.FilterMessage("reply does not match requested shape").
		FilterField(zap.String("purpose", "diagnostic_evaluation"))
	assert.Equal(t, 1, drifted.Len())
}

func TestDiagnostic_CompletedRoutesToTutor(t *testing.T) {
	f := newFixture(t, questionsReply, analysisReply, "Reprenons les équations.")

	_, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Maths", ClassLevel: "3ème"})
	require.Nil(t, fail)
	_, fail = f.handle(t, Request{Action: "diagnostic", Subject: "Maths", StudentAnswers: answers()})
	require.Nil(t, fail)

	resp, fail := f.handle(t, Request{Action: "diagnostic", Subject: "Maths", Message: "Et maintenant ?"})
	require.Nil(t, fail)
	assert.Equal(t, StatusTutorResponse, resp.Status)
	assert.Equal(t, "Reprenons les équations.", resp.Content)
	assert.True(t, strings.HasSuffix(f.llm.LastPrompt(), "\n\nÉlève: Et maintenant ?"))
}

func TestParseQuestions(t *testing.T) {
	got := parseQuestions([]any{
		map[string]any{"id": float64(7), "text": "A"},
		"not an object",
		map[string]any{"text": "B", "type": "qcm"},
	})
	assert.Equal(t, []Question{
		{ID: "7", Text: "A", Type: "open"},
		{ID: "3", Text: "B", Type: "qcm"},
	}, got)
	assert.Empty(t, parseQuestions(nil))
	assert.Empty(t, parseQuestions("questions"))
}

func TestFallbackQuestion(t *testing.T) {
	q := fallbackQuestion("  ", "Physique")
	assert.Equal(t, "1", q.ID)
	assert.Equal(t, "open", q.Type)
	assert.Contains(t, q.Text, "Physique")
}

func TestPendingSet(t *testing.T) {
	_, ok := pendingSet(nil)
	assert.False(t, ok)
	_, ok = pendingSet(json.RawMessage(`{"questions": []}`))
	assert.False(t, ok)
	_, ok = pendingSet(json.RawMessage(`not json`))
	assert.False(t, ok)
	set, ok := pendingSet(json.RawMessage(`{"questions": [{"id": "1", "text": "Q", "type": "open"}]}`))
	assert.True(t, ok)
	assert.Equal(t, "Q", set.Questions[0].Text)
}
