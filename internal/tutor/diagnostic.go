package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/abhisek/grasss/internal/prompts"
	"github.com/abhisek/grasss/internal/reply"
	"github.com/abhisek/grasss/internal/retrieval"
	"github.com/abhisek/grasss/internal/store"
)

const (
	msgGradeRequired  = "Choisissez votre classe (3ème ou Terminale D) avant de lancer l'évaluation."
	msgNoPending      = "Aucune question en attente. Relancez l'évaluation depuis le début."
	msgAnswerNext     = "Répondez à ces questions puis validez."
	msgDiagnosticDone = "Diagnostic terminé. Votre profil a été mis à jour."
)

// poseDiagnostic is the first diagnostic step: it generates the questions
// and keeps them on the profile until the answers come back.
func (o *Orchestrator) poseDiagnostic(ctx context.Context, t *turn) (*Response, error) {
	grade := t.req.ClassLevel
	if grade == "" {
		grade = t.profile.ClassLevel
	}
	if grade == "" {
		return nil, validationFailure(ReasonGradeRequired, msgGradeRequired)
	}
	if err := checkGrade(grade); err != nil {
		return nil, err
	}

	raw, err := o.generate(ctx, "diagnostic", prompts.Diagnostic(t.matter.Subject, grade))
	if err != nil {
		return nil, err
	}
	if err := o.saveGrade(ctx, t, grade); err != nil {
		return nil, err
	}

	set := QuestionSet{EvaluationCriteria: []string{}}
	if decoded, ok := reply.DecodeObject(raw); ok {
		o.drift("diagnostic", reply.DiagnosticQuestionsSchema, decoded)
		set.Questions = parseQuestions(decoded["questions"])
		set.EvaluationCriteria = reply.StringSlice(decoded, "evaluation_criteria")
	} else {
		set.RawResponse = raw
	}
	if len(set.Questions) == 0 {
		set.Questions = []Question{fallbackQuestion(raw, t.matter.Subject)}
	}

	data, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encode question set: %w", err)
	}
	if err := o.learners.SetPendingQuestions(ctx, t.principal.ID, data); err != nil {
		return nil, err
	}

	o.retrieval.User(t.principal.ID).Store(ctx, retrieval.KindDiagnostic,
		retrieval.QuestionsDocument(t.matter.Subject, grade, questionMaps(set.Questions)),
		map[string]string{"stage": "questions", "class_level": grade})

	return &Response{
		Status:     StatusQuestionsPosed,
		Questions:  set.Questions,
		NextAction: msgAnswerNext,
		Metadata: map[string]any{
			"matiere":     t.matter.Subject,
			"class_level": grade,
		},
	}, nil
}

// evaluateDiagnostic is the second diagnostic step. It completes the
// diagnosis whether or not the analysis could be decoded.
func (o *Orchestrator) evaluateDiagnostic(ctx context.Context, t *turn) (*Response, error) {
	set, ok := pendingSet(t.profile.PendingQuestions)
	if !ok {
		return nil, validationFailure(ReasonNoPendingQuestions, msgNoPending)
	}
	if t.req.ClassLevel != "" {
		if err := checkGrade(t.req.ClassLevel); err != nil {
			return nil, err
		}
	}

	answers, err := json.Marshal(t.req.StudentAnswers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	questions, err := json.Marshal(set.Questions)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}

	raw, err := o.generate(ctx, "diagnostic_evaluation",
		prompts.EvaluationAnalysis(t.matter.Subject, string(answers), string(questions)))
	if err != nil {
		return nil, err
	}
	if t.req.ClassLevel != "" {
		if err := o.saveGrade(ctx, t, t.req.ClassLevel); err != nil {
			return nil, err
		}
	}

	analysis, decoded := reply.DecodeObject(raw)
	outcome := store.DiagnosticOutcome{CompletedAt: o.now()}
	if decoded {
		o.drift("diagnostic_evaluation", reply.EvaluationSchema, analysis)
		if lvl := strings.ToLower(strings.TrimSpace(reply.String(analysis, "niveau_diagnostique"))); store.ValidLevel(lvl) {
			outcome.Level = lvl
		}
		if style := strings.ToLower(strings.TrimSpace(reply.String(analysis, "style_apprentissage_probable"))); store.ValidLearningStyle(style) {
			outcome.LearningStyle = style
		}
	}

	done, err := o.learners.CompleteDiagnostic(ctx, t.principal.ID, outcome)
	if err != nil {
		return nil, err
	}
	if !done {
		// Another submission completed the diagnosis first.
		return nil, validationFailure(ReasonNoPendingQuestions, msgNoPending)
	}

	record := analysis
	if !decoded {
		record = map[string]any{"raw": raw}
	}
	level := outcome.Level
	if level == "" {
		level = t.profile.Level
	}
	style := outcome.LearningStyle
	if style == "" {
		style = t.profile.LearningStyle
	}
	o.retrieval.User(t.principal.ID).Store(ctx, retrieval.KindDiagnostic,
		retrieval.DiagnosticDocument(record),
		map[string]string{"stage": "analysis", "niveau": level})

	resp := &Response{
		Status:  StatusDiagnosticCompleted,
		Message: msgDiagnosticDone,
		Metadata: map[string]any{
			"niveau_global":       level,
			"style_apprentissage": style,
		},
	}
	if decoded {
		resp.Analysis = analysis
	}
	return resp, nil
}

func checkGrade(grade string) error {
	if !GradeAllowed(grade) {
		return validationFailure(ReasonGradeNotAllowed, fmt.Sprintf(
			"Classe %q non prise en charge. Choisissez parmi : %s.", grade, strings.Join(GradeLevels, ", ")))
	}
	return nil
}

// saveGrade records an already checked grade on the profile when it
// changed. Callers run it only once generation succeeded.
func (o *Orchestrator) saveGrade(ctx context.Context, t *turn, grade string) error {
	if grade == t.profile.ClassLevel {
		return nil
	}
	if err := o.learners.SetClassLevel(ctx, t.principal.ID, grade); err != nil {
		return err
	}
	t.profile.ClassLevel = grade
	return nil
}

// parseQuestions reads the "questions" list of a diagnostic reply. Entries
// without text are dropped.
func parseQuestions(v any) []Question {
	list, _ := v.([]any)
	out := make([]Question, 0, len(list))
	for i, entry := range list {
		m := reply.Map(entry)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(reply.String(m, "text"))
		if text == "" {
			continue
		}
		q := Question{
			ID:            reply.String(m, "id"),
			Text:          text,
			Type:          reply.String(m, "type"),
			ExpectedLevel: reply.String(m, "expected_level"),
		}
		if q.ID == "" {
			q.ID = strconv.Itoa(i + 1)
		}
		if q.Type == "" {
			q.Type = "open"
		}
		out = append(out, q)
	}
	return out
}

// fallbackQuestion turns an unusable reply into one open question.
func fallbackQuestion(raw, subject string) Question {
	text := strings.TrimSpace(raw)
	if text == "" {
		text = fmt.Sprintf("Présentez ce que vous savez déjà en %s.", subject)
	}
	return Question{ID: "1", Text: text, Type: "open"}
}

func pendingSet(raw json.RawMessage) (QuestionSet, bool) {
	if len(raw) == 0 {
		return QuestionSet{}, false
	}
	var set QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil || len(set.Questions) == 0 {
		return QuestionSet{}, false
	}
	return set, true
}

func questionMaps(qs []Question) []map[string]any {
	out := make([]map[string]any, len(qs))
	for i, q := range qs {
		out[i] = map[string]any{"id": q.ID, "text": q.Text, "expected_level": q.ExpectedLevel}
	}
	return out
}
