package retrieval

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/grasss/internal/reply"
)

const na = "N/A"

// Profile is what a learner profile document records.
type Profile struct {
	Name          string
	Level         string
	LearningStyle string
	ClassCycle    string
	ClassLevel    string
	RegisteredAt  time.Time
}

// ProfileDocument renders a learner profile for the user scope.
func ProfileDocument(p Profile) string {
	registered := na
	if !p.RegisteredAt.IsZero() {
		registered = p.RegisteredAt.Format(time.RFC3339)
	}
	var b strings.Builder
	b.WriteString("\nPROFIL UTILISATEUR\n====================\n")
	fmt.Fprintf(&b, "Nom: %s\n", orNA(p.Name))
	fmt.Fprintf(&b, "Niveau global: %s\n", orNA(p.Level))
	fmt.Fprintf(&b, "Style d'apprentissage: %s\n", orNA(p.LearningStyle))
	fmt.Fprintf(&b, "Cycle scolaire: %s\n", orNA(p.ClassCycle))
	fmt.Fprintf(&b, "Niveau scolaire: %s\n", orNA(p.ClassLevel))
	fmt.Fprintf(&b, "Date d'inscription: %s\n", registered)
	return b.String()
}

// DiagnosticDocument renders a diagnostic analysis for the user scope.
// Unknown fields are ignored; a "raw" field carries an undecodable reply.
func DiagnosticDocument(analysis map[string]any) string {
	plan := "{}"
	if v, ok := analysis["plan_action"]; ok && v != nil {
		if b, err := json.MarshalIndent(v, "", "  "); err == nil {
			plan = string(b)
		}
	}

	var b strings.Builder
	b.WriteString("\nRÉSULTATS DU DIAGNOSTIC INITIAL\n================================\n")
	fmt.Fprintf(&b, "Niveau diagnostiqué: %s\n", orNA(reply.String(analysis, "niveau_diagnostique")))
	fmt.Fprintf(&b, "Lacunes identifiées: %s\n", joined(analysis, "lacunes_identifiees"))
	fmt.Fprintf(&b, "Points forts: %s\n", joined(analysis, "points_forts"))
	fmt.Fprintf(&b, "Vitesse de compréhension: %s\n", orNA(reply.String(analysis, "vitesse_comprehension")))
	fmt.Fprintf(&b, "Style d'apprentissage probable: %s\n", orNA(reply.String(analysis, "style_apprentissage_probable")))
	fmt.Fprintf(&b, "Recommandations: %s\n", joined(analysis, "recommandations"))
	fmt.Fprintf(&b, "Plan d'action: %s\n", plan)
	if raw := reply.String(analysis, "raw"); raw != "" {
		fmt.Fprintf(&b, "Réponse brute: %s\n", raw)
	}
	return b.String()
}

// QuestionsDocument renders the diagnostic questions posed to a learner.
func QuestionsDocument(subject, grade string, questions []map[string]any) string {
	var b strings.Builder
	b.WriteString("\nQUESTIONS DU DIAGNOSTIC\n========================\n")
	fmt.Fprintf(&b, "Matière: %s\n", orNA(subject))
	fmt.Fprintf(&b, "Classe: %s\n", orNA(grade))
	for _, q := range questions {
		fmt.Fprintf(&b, "  %s. %s", orNA(reply.String(q, "id")), reply.String(q, "text"))
		if lvl := reply.String(q, "expected_level"); lvl != "" {
			fmt.Fprintf(&b, " (%s)", lvl)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SummaryDocument renders a session summary for the matter scope.
func SummaryDocument(summary map[string]any) string {
	var b strings.Builder
	b.WriteString("\nRÉSUMÉ DE SESSION D'APPRENTISSAGE\n==================================\n")
	fmt.Fprintf(&b, "Titre: %s\n", orNA(reply.String(summary, "titre")))
	fmt.Fprintf(&b, "Concepts couverts: %s\n", joined(summary, "concepts_couverts"))
	fmt.Fprintf(&b, "Compétences travaillées: %s\n", joined(summary, "competences_travaillees"))
	b.WriteString("Points clés:\n")
	if points, ok := summary["points_cles"].([]any); ok {
		for _, p := range points {
			if m := reply.Map(p); m != nil {
				fmt.Fprintf(&b, "  • %s: %s\n", orNA(reply.String(m, "titre")), reply.String(m, "description"))
			}
		}
	}
	fmt.Fprintf(&b, "Progression: %s\n", orNA(reply.String(summary, "progression")))
	fmt.Fprintf(&b, "Points forts: %s\n", joined(summary, "points_forts"))
	fmt.Fprintf(&b, "Axes d'amélioration: %s\n", joined(summary, "axes_amelioration"))
	fmt.Fprintf(&b, "Recommandations: %s\n", orNA(textOrList(summary, "recommandations")))
	if short := reply.String(summary, "resume_court"); short != "" {
		fmt.Fprintf(&b, "Résumé: %s\n", short)
	}
	if kw := reply.StringSlice(summary, "mots_cles_pour_rag"); len(kw) > 0 {
		fmt.Fprintf(&b, "Mots-clés: %s\n", strings.Join(kw, ", "))
	}
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return na
	}
	return s
}

func joined(m map[string]any, key string) string {
	return strings.Join(reply.StringSlice(m, key), ", ")
}

// textOrList reads a field the model may send as text or as a list.
func textOrList(m map[string]any, key string) string {
	if _, ok := m[key].([]any); ok {
		return joined(m, key)
	}
	return reply.String(m, key)
}
