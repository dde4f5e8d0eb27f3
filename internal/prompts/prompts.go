// Package prompts renders the generation prompts for each tutoring action.
// Every prompt embeds the JSON shape the reply is expected to follow; the
// reply package tolerates deviations from it.
package prompts

import (
	"strings"
	"text/template"
)

// ExerciseParams parameterizes an exercise prompt.
type ExerciseParams struct {
	Subject            string
	Chapter            string
	Difficulty         string
	LearningStyle      string
	PedagogicalContext string
	RetrievalContext   string
}

// TutorParams parameterizes a tutoring prompt.
type TutorParams struct {
	UserName         string
	Subject          string
	Chapter          string
	Level            string
	LearningStyle    string
	Progression      float64
	RetrievalContext string
}

// RemediationParams parameterizes a remediation prompt.
type RemediationParams struct {
	UserName         string
	Subject          string
	Chapter          string
	FailureCount     int
	ErrorTypes       string
	RetrievalContext string
}

// SummaryParams parameterizes a session summary prompt.
type SummaryParams struct {
	UserName            string
	Subject             string
	Date                string
	ConversationHistory string
}

// Diagnostic asks for exactly five progressive questions that place a
// learner of the given grade in subject.
func Diagnostic(subject, gradeLevel string) string {
	return render(diagnosticTmpl, map[string]any{
		"Subject": subject,
		"Grade":   gradeLevel,
	})
}

// EvaluationAnalysis asks the model to grade diagnostic answers against the
// questions that were posed. Both arguments are JSON documents.
func EvaluationAnalysis(subject, studentAnswersJSON, askedQuestionsJSON string) string {
	return render(evaluationTmpl, map[string]any{
		"Subject":   subject,
		"Answers":   studentAnswersJSON,
		"Questions": askedQuestionsJSON,
	})
}

// Exercise asks for one multiple-choice exercise.
func Exercise(p ExerciseParams) string {
	return render(exerciseTmpl, struct {
		ExerciseParams
		DifficultyLabel string
	}{p, DifficultyLabel(p.Difficulty)})
}

// Tutor frames a free-form tutoring turn. The learner's message is
// appended by the caller.
func Tutor(p TutorParams) string {
	return render(tutorTmpl, p)
}

// Remediation asks for a simplified re-teaching plan after repeated failures.
func Remediation(p RemediationParams) string {
	return render(remediationTmpl, p)
}

// Summary asks for a structured digest of a tutoring session.
func Summary(p SummaryParams) string {
	return render(summaryTmpl, p)
}

// DifficultyLabel returns the French label for a difficulty value, or the
// value unchanged when it is not a known code.
func DifficultyLabel(d string) string {
	switch d {
	case "easy":
		return "facile"
	case "medium":
		return "moyen"
	case "hard":
		return "difficile"
	}
	return d
}

// render executes t. Templates are fixed at init and only receive strings
// and numbers, so an execution error is a programming bug.
func render(t *template.Template, data any) string {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		panic("prompts: render " + t.Name() + ": " + err.Error())
	}
	return b.String()
}

var diagnosticTmpl = template.Must(template.New("diagnostic").Parse(
	`Tu es un évaluateur pédagogique. Tu dois situer le niveau d'un élève et repérer ses lacunes.

Contexte :
- Matière : {{.Subject}}
- Classe : {{.Grade}}
- Première évaluation : oui

Consignes :
1. Propose exactement 5 questions, de la plus simple à la plus exigeante, qui permettent d'établir :
   - le niveau actuel (facile, moyen ou difficile),
   - les lacunes précises,
   - la vitesse de compréhension,
   - les points forts.
2. Réponds uniquement avec un objet JSON de la forme suivante :
{
  "questions": [
    {
      "id": 1,
      "text": "Énoncé de la question",
      "type": "open",
      "expected_level": "facile"
    }
  ],
  "evaluation_criteria": ["Compréhension", "Restitution", "Analyse"]
}
3. Ne conclus pas l'évaluation : les réponses de l'élève te seront transmises ensuite.`))

var evaluationTmpl = template.Must(template.New("evaluation").Parse(
	`Tu es un pédagogue. Analyse les réponses d'un élève au diagnostic initial.

Matière : {{.Subject}}
Questions posées : {{.Questions}}
Réponses de l'élève : {{.Answers}}

Réponds uniquement avec un objet JSON de la forme suivante :
{
  "niveau_diagnostique": "beginner|intermediate|advanced|expert",
  "lacunes_identifiees": ["Lacune"],
  "points_forts": ["Point fort"],
  "vitesse_comprehension": "lente|normale|rapide",
  "style_apprentissage_probable": "visual|auditory|kinesthetic|reading_writing",
  "recommandations": ["Recommandation"],
  "plan_action": {
    "phase_1": "Consolider : ...",
    "phase_2": "Progresser vers : ...",
    "phase_3": "Atteindre : ..."
  }
}`))

var exerciseTmpl = template.Must(template.New("exercise").Parse(
	`Tu es un professeur qui prépare un exercice QCM personnalisé.

Paramètres :
- Matière : {{.Subject}}
- Chapitre : {{.Chapter}}
- Difficulté : {{.DifficultyLabel}}
- Style d'apprentissage : {{.LearningStyle}}
- Contexte pédagogique : {{.PedagogicalContext}}

Ce que l'on sait de l'élève :
{{.RetrievalContext}}

Réponds uniquement avec un objet JSON de la forme suivante :
{
  "question": "Énoncé complet, adapté au niveau {{.DifficultyLabel}}",
  "options": [
    {"id": "A", "text": "Choix A", "is_correct": true, "explanation": "Pourquoi c'est juste"},
    {"id": "B", "text": "Choix B", "is_correct": false, "explanation": "Pourquoi c'est faux"},
    {"id": "C", "text": "Choix C", "is_correct": false, "explanation": "Pourquoi c'est faux"},
    {"id": "D", "text": "Choix D", "is_correct": false, "explanation": "Pourquoi c'est faux"}
  ],
  "difficulty": "{{.DifficultyLabel}}",
  "competencies": ["Compétence"],
  "hint": "Un indice"
}

Contraintes :
- une seule question ;
- au moins 4 options, une seule juste ;
- tiens compte du style d'apprentissage ({{.LearningStyle}}) et de ce que l'on sait de l'élève ;
- reste constructif, sans piège.`))

var tutorTmpl = template.Must(template.New("tutor").Parse(
	`Tu es un tuteur patient et bienveillant.

Élève :
- Prénom : {{.UserName}}
- Matière : {{.Subject}}
- Chapitre : {{.Chapter}}
- Niveau global : {{.Level}}
- Style d'apprentissage : {{.LearningStyle}}
- Progression : {{printf "%.1f" .Progression}} %

Ce que l'on sait de l'élève :
{{.RetrievalContext}}

Consignes :
1. Encourage l'élève et reste pédagogue.
2. Appuie tes explications sur des exemples concrets.
3. Adapte-toi à son style d'apprentissage.
4. Tiens compte des lacunes déjà identifiées et du plan d'action.
5. Demande des précisions si la question n'est pas claire.
6. Récapitule régulièrement ce qui a été vu.

Objectif : faire progresser l'élève en {{.Subject}} ({{.Chapter}}).`))

var remediationTmpl = template.Must(template.New("remediation").Parse(
	`Tu es un pédagogue spécialisé dans la remédiation.

Situation :
- Élève : {{.UserName}}
- Matière : {{.Subject}}
- Chapitre : {{.Chapter}}
- Échecs consécutifs : {{.FailureCount}}
- Erreurs signalées : {{.ErrorTypes}}

Historique de l'élève :
{{.RetrievalContext}}

Démarche :
1. Trouve l'origine réelle de la difficulté (notion mal comprise, méthode, confiance...).
2. Propose une approche différente et plus simple, avec des exemples concrets.
3. Découpe le problème en très petites étapes.
4. Termine par un message encourageant.

Réponds uniquement avec un objet JSON de la forme suivante :
{
  "diagnostic": "Origine de la difficulté",
  "approche_remediation": "Nouvelle approche",
  "exercice_simple": "Un exercice simplifié",
  "encouragement": "Message d'encouragement"
}`))

var summaryTmpl = template.Must(template.New("summary").Parse(
	`Tu es chargé de résumer une séance de tutorat.

Élève : {{.UserName}}
Matière : {{.Subject}}
Date : {{.Date}}

Conversation :
{{.ConversationHistory}}

Réponds uniquement avec un objet JSON de la forme suivante :
{
  "titre": "Titre de la séance",
  "resume_court": "Résumé en deux ou trois phrases",
  "concepts_couverts": ["Concept"],
  "competences_travaillees": ["Compétence"],
  "points_cles": [
    {"titre": "Point clé", "description": "Détail"}
  ],
  "progression": "Progrès constatés",
  "points_forts": ["Point fort"],
  "axes_amelioration": ["Axe"],
  "recommandations": "Suite conseillée",
  "mots_cles_pour_rag": ["mot-clé"]
}

Ce résumé sera ajouté à l'historique de l'élève.`))
