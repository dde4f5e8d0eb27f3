package reply

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is the JSON shape a prompt asks the model to answer in.
type Schema struct {
	// Name keys the compile cache.
	Name        string
	Description string
	Definition  map[string]any
}

// Reply shapes requested by the prompts. They are checked after the fact
// to measure drift, never to reject a reply.
var (
	DiagnosticQuestionsSchema = &Schema{
		Name:        "diagnostic-questions",
		Description: "Five progressive diagnostic questions",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"questions": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"id":             map[string]any{"type": []any{"integer", "string"}},
							"text":           map[string]any{"type": "string"},
							"type":           map[string]any{"type": "string"},
							"expected_level": map[string]any{"type": "string"},
						},
						"required": []any{"id", "text"},
					},
				},
				"evaluation_criteria": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []any{"questions"},
		},
	}

	EvaluationSchema = &Schema{
		Name:        "diagnostic-evaluation",
		Description: "Analysis of diagnostic answers",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"niveau_diagnostique": map[string]any{
					"type": "string",
					"enum": []any{"beginner", "intermediate", "advanced", "expert"},
				},
				"lacunes_identifiees": stringList(),
				"points_forts":        stringList(),
				"vitesse_comprehension": map[string]any{
					"type": "string",
				},
				"style_apprentissage_probable": map[string]any{
					"type": "string",
					"enum": []any{"visual", "auditory", "kinesthetic", "reading_writing", "mixed"},
				},
				"recommandations": stringList(),
				"plan_action":     map[string]any{"type": "object"},
			},
			"required": []any{"niveau_diagnostique"},
		},
	}

	ExerciseSchema = &Schema{
		Name:        "mcq-exercise",
		Description: "One multiple-choice exercise",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{"type": "string"},
				"options": map[string]any{
					"type":     "array",
					"minItems": 4,
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"id":          map[string]any{"type": "string"},
							"text":        map[string]any{"type": "string"},
							"is_correct":  map[string]any{"type": "boolean"},
							"explanation": map[string]any{"type": "string"},
						},
						"required": []any{"text", "is_correct"},
					},
				},
				"difficulty":   map[string]any{"type": "string"},
				"competencies": stringList(),
				"hint":         map[string]any{"type": "string"},
			},
			"required": []any{"question", "options"},
		},
	}

	RemediationSchema = &Schema{
		Name:        "remediation-plan",
		Description: "Simplified re-teaching plan",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"diagnostic":           map[string]any{"type": "string"},
				"approche_remediation": map[string]any{"type": "string"},
				"exercice_simple":      map[string]any{"type": "string"},
				"encouragement":        map[string]any{"type": "string"},
			},
			"required": []any{"diagnostic", "approche_remediation", "exercice_simple", "encouragement"},
		},
	}

	SummarySchema = &Schema{
		Name:        "session-summary",
		Description: "Structured digest of a tutoring session",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"titre":                   map[string]any{"type": "string"},
				"resume_court":            map[string]any{"type": "string"},
				"concepts_couverts":       stringList(),
				"competences_travaillees": stringList(),
				"mots_cles_pour_rag":      stringList(),
			},
			"required": []any{"resume_court", "concepts_couverts"},
		},
	}
)

func stringList() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

// Conforms reports whether a decoded reply matches schema. The error
// describes the mismatch. A nil schema accepts everything.
func Conforms(schema *Schema, v any) error {
	if schema == nil {
		return nil
	}
	compiled, err := compile(schema)
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", schema.Name, err)
	}
	return compiled.Validate(v)
}

var compiledSchemas sync.Map // name → *jsonschema.Schema

func compile(schema *Schema) (*jsonschema.Schema, error) {
	if c, ok := compiledSchemas.Load(schema.Name); ok {
		return c.(*jsonschema.Schema), nil
	}

	// The compiler takes decoded JSON, so Go-typed maps go through a
	// round trip.
	raw, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	url := "mem://reply/" + schema.Name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	compiledSchemas.Store(schema.Name, sch)
	return sch, nil
}
