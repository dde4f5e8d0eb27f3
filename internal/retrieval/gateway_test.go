package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/grasss/internal/vectorstore"
)

// brokenStore fails every call.
type brokenStore struct{}

var errBackend = errors.New("backend down")

func (brokenStore) Add(context.Context, string, ...vectorstore.Document) error { return errBackend }
func (brokenStore) Query(context.Context, string, string, int, vectorstore.Filter) ([]vectorstore.Document, error) {
	return nil, errBackend
}
func (brokenStore) Recent(context.Context, string, int, vectorstore.Filter) ([]vectorstore.Document, error) {
	return nil, errBackend
}
func (brokenStore) DeleteCollection(context.Context, string) error { return errBackend }
func (brokenStore) Collections(context.Context, string) ([]string, error) {
	return nil, errBackend
}

func TestCollectionNames(t *testing.T) {
	assert.Equal(t, "user_42_data", UserCollection(42))
	assert.Equal(t, "user_42_matter_mathématiques", MatterCollection(42, "Mathématiques"))
	assert.Equal(t, "user_7_matter_physique_chimie", MatterCollection(7, "Physique Chimie"))
	assert.Equal(t, "user_7_matter_physique_chimie", MatterCollection(7, "Physique/Chimie"))
}

func TestScope_Placeholders(t *testing.T) {
	g := New(vectorstore.NewMemory(nil), nil)
	ctx := context.Background()

	assert.Equal(t, NoUserContext, g.User(1).Retrieve(ctx, "", 0))
	assert.Equal(t, NoUserContext, g.User(1).Retrieve(ctx, "niveau", 0))
	assert.Equal(t, NoMatterContext, g.Matter(1, "Maths").Retrieve(ctx, "", 0))
	assert.Equal(t, NoMatterContext, g.Matter(1, "Maths").Retrieve(ctx, "exercice précédent lacunes", 0))
}

func TestScope_BackendFailureDegrades(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	g := New(brokenStore{}, zap.New(core))
	ctx := context.Background()

	assert.Equal(t, UserContextUnavailable, g.User(1).Retrieve(ctx, "profil", 0))
	assert.Equal(t, MatterContextUnavailable, g.Matter(1, "Maths").Retrieve(ctx, "", 0))

	id := g.Matter(1, "Maths").Store(ctx, KindConversationSummary, "résumé", nil)
	assert.Empty(t, id)

	stats := g.Stats()
	assert.Equal(t, int64(2), stats.RetrieveFailures)
	assert.Equal(t, int64(1), stats.StoreFailures)
	assert.Zero(t, stats.Stored)

	require.Equal(t, 3, logs.Len())
	entry := logs.FilterMessage("retrieval store failed").All()
	require.Len(t, entry, 1)
	assert.Equal(t, "user_1_matter_maths", entry[0].ContextMap()["collection"])
}

func TestScope_StoreAndRetrieve(t *testing.T) {
	mem := vectorstore.NewMemory(nil)
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	g := New(mem, nil, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	scope := g.Matter(5, "Mathématiques")
	id := scope.Store(ctx, KindConversationSummary, "Séance sur les fractions", map[string]string{"concepts": "fractions"})
	require.NotEmpty(t, id)
	assert.True(t, strings.HasPrefix(id, "conversation_summary_5_"))
	scope.Store(ctx, KindConversationSummary, "Séance sur les équations", nil)

	docs, err := mem.Recent(ctx, MatterCollection(5, "Mathématiques"), 0, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	meta := docs[0].Metadata
	assert.Equal(t, KindConversationSummary, meta[vectorstore.MetaType])
	assert.Equal(t, "5", meta[vectorstore.MetaUserID])
	assert.Equal(t, "Mathématiques", meta[vectorstore.MetaSubject])
	assert.Equal(t, "2026-03-14T09:00:00Z", meta[vectorstore.MetaCreatedAt])
	assert.Equal(t, "fractions", meta["concepts"])

	got := scope.Retrieve(ctx, "fractions", 1)
	assert.Equal(t, "Séance sur les fractions\n\n", got)

	recent := scope.Retrieve(ctx, "", 0)
	assert.Equal(t, "Séance sur les fractions\n\nSéance sur les équations\n\n", recent)

	assert.Equal(t, int64(2), g.Stats().Stored)
}

func TestUserScope_FiltersKinds(t *testing.T) {
	mem := vectorstore.NewMemory(nil)
	g := New(mem, nil)
	ctx := context.Background()

	g.User(3).Store(ctx, KindProfile, "PROFIL niveau débutant", nil)
	// A stray kind in the user collection is never served.
	require.NoError(t, mem.Add(ctx, UserCollection(3), vectorstore.Document{
		Text:     "note niveau",
		Metadata: map[string]string{vectorstore.MetaType: "note"},
	}))

	got := g.User(3).Retrieve(ctx, "niveau", 5)
	assert.Contains(t, got, "PROFIL")
	assert.NotContains(t, got, "note niveau")
}

func TestWithLimits(t *testing.T) {
	mem := vectorstore.NewMemory(nil)
	g := New(mem, nil, WithLimits(1, 2))
	ctx := context.Background()

	for _, s := range []string{"a1", "a2", "a3"} {
		g.Matter(1, "svt").Store(ctx, KindConversationSummary, s, nil)
		g.User(1).Store(ctx, KindDiagnostic, s, nil)
	}
	assert.Equal(t, "a2\n\na3\n\n", g.Matter(1, "svt").Retrieve(ctx, "", 0))
	assert.Equal(t, "a3\n\n", g.User(1).Retrieve(ctx, "", 0))
}

func TestClearUserAndMatterSubjects(t *testing.T) {
	mem := vectorstore.NewMemory(nil)
	g := New(mem, nil)
	ctx := context.Background()

	g.User(9).Store(ctx, KindProfile, "profil", nil)
	g.Matter(9, "Physique/Chimie").Store(ctx, KindConversationSummary, "s", nil)
	g.Matter(9, "Mathématiques").Store(ctx, KindConversationSummary, "s", nil)
	g.Matter(10, "SVT").Store(ctx, KindConversationSummary, "s", nil)

	subjects, err := g.MatterSubjects(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"mathématiques", "physique chimie"}, subjects)

	require.NoError(t, g.ClearUser(ctx, 9))
	assert.Equal(t, NoUserContext, g.User(9).Retrieve(ctx, "", 0))
	assert.NotEqual(t, NoMatterContext, g.Matter(9, "Mathématiques").Retrieve(ctx, "", 0), "matter scopes survive a reset")

	_, err = New(brokenStore{}, nil).MatterSubjects(ctx, 9)
	assert.ErrorIs(t, err, errBackend)
}

func TestProfileDocument(t *testing.T) {
	doc := ProfileDocument(Profile{
		Name:         "Awa",
		Level:        "beginner",
		ClassLevel:   "3ème",
		RegisteredAt: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, doc, "PROFIL UTILISATEUR")
	assert.Contains(t, doc, "Nom: Awa")
	assert.Contains(t, doc, "Style d'apprentissage: N/A")
	assert.Contains(t, doc, "Niveau scolaire: 3ème")
	assert.Contains(t, doc, "Date d'inscription: 2026-09-01T08:00:00Z")
}

func TestDiagnosticDocument(t *testing.T) {
	doc := DiagnosticDocument(map[string]any{
		"niveau_diagnostique": "intermediate",
		"lacunes_identifiees": []any{"fractions", "signes"},
		"points_forts":        []any{"calcul mental"},
		"plan_action":         map[string]any{"phase_1": "révision"},
	})
	assert.Contains(t, doc, "RÉSULTATS DU DIAGNOSTIC INITIAL")
	assert.Contains(t, doc, "Niveau diagnostiqué: intermediate")
	assert.Contains(t, doc, "Lacunes identifiées: fractions, signes")
	assert.Contains(t, doc, "Vitesse de compréhension: N/A")
	assert.Contains(t, doc, `"phase_1": "révision"`)
	assert.NotContains(t, doc, "Réponse brute")

	raw := DiagnosticDocument(map[string]any{"raw": "texte libre"})
	assert.Contains(t, raw, "Niveau diagnostiqué: N/A")
	assert.Contains(t, raw, "Plan d'action: {}")
	assert.Contains(t, raw, "Réponse brute: texte libre")
}

func TestQuestionsDocument(t *testing.T) {
	doc := QuestionsDocument("Maths", "3ème", []map[string]any{
		{"id": float64(1), "text": "2+2 ?", "expected_level": "beginner"},
		{"id": "2", "text": "Résoudre x²=4"},
	})
	assert.Contains(t, doc, "QUESTIONS DU DIAGNOSTIC")
	assert.Contains(t, doc, "  1. 2+2 ? (beginner)\n")
	assert.Contains(t, doc, "  2. Résoudre x²=4\n")
}

func TestSummaryDocument(t *testing.T) {
	doc := SummaryDocument(map[string]any{
		"titre":             "Les fractions",
		"concepts_couverts": []any{"numérateur", "dénominateur"},
		"points_cles": []any{
			map[string]any{"titre": "Simplifier", "description": "diviser par le PGCD"},
			"ignored",
		},
		"recommandations":    []any{"s'entraîner", "relire"},
		"resume_court":       "Séance courte",
		"mots_cles_pour_rag": []any{"fraction"},
	})
	assert.Contains(t, doc, "RÉSUMÉ DE SESSION D'APPRENTISSAGE")
	assert.Contains(t, doc, "Titre: Les fractions")
	assert.Contains(t, doc, "Concepts couverts: numérateur, dénominateur")
	assert.Contains(t, doc, "  • Simplifier: diviser par le PGCD\n")
	assert.Contains(t, doc, "Progression: N/A")
	assert.Contains(t, doc, "Recommandations: s'entraîner, relire")
	assert.Contains(t, doc, "Mots-clés: fraction")

	empty := SummaryDocument(map[string]any{})
	assert.Contains(t, empty, "Titre: N/A")
	assert.Contains(t, empty, "Recommandations: N/A")
}
