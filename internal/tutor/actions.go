package tutor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abhisek/grasss/internal/prompts"
	"github.com/abhisek/grasss/internal/reply"
	"github.com/abhisek/grasss/internal/retrieval"
	"github.com/abhisek/grasss/internal/store"
)

// Fixed retrieval queries of the introspective branches.
const (
	exerciseQuery    = "exercice précédent lacunes"
	remediationQuery = "récentes erreurs lacunes"
)

const (
	defaultChapter      = "Général"
	defaultExercise     = "Exercice généré"
	remediationApproach = "Approche de remédiation personnalisée"
	shortSummaryLen     = 500
)

func chapterOrDefault(m *store.Matter) string {
	if m.Chapter == "" {
		return defaultChapter
	}
	return m.Chapter
}

func (o *Orchestrator) exercise(ctx context.Context, t *turn) (*Response, error) {
	m := t.matter
	retrieved := o.retrieval.Matter(t.principal.ID, m.Subject).Retrieve(ctx, exerciseQuery, 0)

	raw, err := o.generate(ctx, "exercise", prompts.Exercise(prompts.ExerciseParams{
		Subject:            m.Subject,
		Chapter:            chapterOrDefault(m),
		Difficulty:         m.Difficulty,
		LearningStyle:      t.profile.LearningStyle,
		PedagogicalContext: fmt.Sprintf("Progression actuelle : %.1f %%", m.Progression),
		RetrievalContext:   retrieved,
	}))
	if err != nil {
		return nil, err
	}

	decoded, ok := reply.DecodeObject(raw)
	if ok {
		o.drift("exercise", reply.ExerciseSchema, decoded)
	} else {
		decoded = map[string]any{"question": raw}
	}
	ex := &Exercise{
		Question:     strings.TrimSpace(reply.String(decoded, "question")),
		Options:      reply.NormalizeOptions(decoded["options"]),
		Difficulty:   reply.String(decoded, "difficulty"),
		Competencies: reply.StringSlice(decoded, "competencies"),
		Hint:         reply.String(decoded, "hint"),
	}
	if ex.Question == "" {
		ex.Question = defaultExercise
	}

	return &Response{
		Status:   StatusExerciseGenerated,
		Exercise: ex,
		Metadata: map[string]any{
			"matiere":    m.Subject,
			"chapitre":   m.Chapter,
			"difficulty": m.Difficulty,
		},
	}, nil
}

func (o *Orchestrator) tutor(ctx context.Context, t *turn) (*Response, error) {
	m := t.matter
	retrieved := o.retrieval.Matter(t.principal.ID, m.Subject).Retrieve(ctx, t.req.Message, 0)

	prompt := prompts.Tutor(prompts.TutorParams{
		UserName:         t.principal.DisplayName(),
		Subject:          m.Subject,
		Chapter:          chapterOrDefault(m),
		Level:            t.profile.Level,
		LearningStyle:    t.profile.LearningStyle,
		Progression:      m.Progression,
		RetrievalContext: retrieved,
	}) + "\n\nÉlève: " + t.req.Message

	content, err := o.generate(ctx, "tutor", prompt)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status:  StatusTutorResponse,
		Content: content,
		Metadata: map[string]any{
			"matiere":     m.Subject,
			"progression": m.Progression,
		},
	}, nil
}

func (o *Orchestrator) remediation(ctx context.Context, t *turn) (*Response, error) {
	m := t.matter
	retrieved := o.retrieval.Matter(t.principal.ID, m.Subject).Retrieve(ctx, remediationQuery, 0)

	failures, defaulted := t.req.FailureCount, false
	if failures <= 0 {
		failures, defaulted = DefaultFailureCount, true
	}
	errorTypes := strings.TrimSpace(t.req.Message)
	if errorTypes == "" {
		errorTypes = "non précisées"
	}

	raw, err := o.generate(ctx, "remediation", prompts.Remediation(prompts.RemediationParams{
		UserName:         t.principal.DisplayName(),
		Subject:          m.Subject,
		Chapter:          chapterOrDefault(m),
		FailureCount:     failures,
		ErrorTypes:       errorTypes,
		RetrievalContext: retrieved,
	}))
	if err != nil {
		return nil, err
	}

	plan, ok := reply.DecodeObject(raw)
	if ok {
		o.drift("remediation", reply.RemediationSchema, plan)
	} else {
		plan = map[string]any{"content": raw}
	}
	return &Response{
		Status:      StatusRemediationProvided,
		Remediation: plan,
		Metadata: map[string]any{
			"approach":              remediationApproach,
			"failure_count":         failures,
			"failure_count_default": defaulted,
		},
	}, nil
}

func (o *Orchestrator) summary(ctx context.Context, t *turn) (*Response, error) {
	m := t.matter
	raw, err := o.generate(ctx, "summary", prompts.Summary(prompts.SummaryParams{
		UserName:            t.principal.DisplayName(),
		Subject:             m.Subject,
		Date:                m.UpdatedAt.Format("2006-01-02"),
		ConversationHistory: t.req.Message,
	}))
	if err != nil {
		return nil, err
	}

	digest, ok := reply.DecodeObject(raw)
	if ok {
		o.drift("summary", reply.SummarySchema, digest)
	} else {
		digest = map[string]any{"resume": raw, "resume_court": truncate(raw, shortSummaryLen)}
	}
	text := strings.TrimSpace(reply.String(digest, "resume_court"))
	if text == "" {
		long := reply.String(digest, "resume")
		if strings.TrimSpace(long) == "" {
			long = raw
		}
		text = truncate(long, shortSummaryLen)
	}
	concepts := reply.StringSlice(digest, "concepts_couverts")

	rec, err := o.summaries.CreateSummary(ctx, &store.ConversationSummary{
		PrincipalID:      t.principal.ID,
		MatterID:         m.ID,
		Text:             text,
		KeyConcepts:      concepts,
		ConversationDate: o.now(),
	})
	if err != nil {
		return nil, err
	}

	docID := o.retrieval.Matter(t.principal.ID, m.Subject).Store(ctx, retrieval.KindConversationSummary,
		retrieval.SummaryDocument(digest),
		map[string]string{"concepts": strings.Join(concepts, ","), "summary_id": fmt.Sprint(rec.ID)})
	if docID != "" {
		if _, err := o.summaries.AttachDocument(ctx, rec.ID, docID); err != nil {
			return nil, err
		}
		rec.DocumentID = docID
	}

	return &Response{
		Status:  StatusSummarySaved,
		Summary: digest,
		Metadata: map[string]any{
			"id":          rec.ID,
			"saved_at":    rec.CreatedAt,
			"document_id": rec.DocumentID,
		},
	}, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
