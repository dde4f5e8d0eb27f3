package tutor

import (
	"fmt"
	"strings"

	"github.com/abhisek/grasss/internal/reply"
)

// Action selects the pedagogical branch of a request.
type Action int

const (
	ActionTutor Action = iota
	ActionDiagnostic
	ActionExercise
	ActionRemediation
	ActionSummary
)

var actionNames = map[Action]string{
	ActionTutor:       "tutor",
	ActionDiagnostic:  "diagnostic",
	ActionExercise:    "exercise",
	ActionRemediation: "remediation",
	ActionSummary:     "summary",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction maps a wire name to an Action. The empty name is the tutor
// action.
func ParseAction(s string) (Action, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ActionTutor, true
	}
	for a, name := range actionNames {
		if name == s {
			return a, true
		}
	}
	return 0, false
}

// Response statuses.
const (
	StatusQuestionsPosed      = "diagnostic_questions_posed"
	StatusDiagnosticCompleted = "diagnostic_completed"
	StatusExerciseGenerated   = "exercise_generated"
	StatusTutorResponse       = "tutor_response"
	StatusRemediationProvided = "remediation_provided"
	StatusSummarySaved        = "summary_saved"
)

// GradeLevels are the class levels a diagnostic can be run for.
var GradeLevels = []string{"3ème", "Terminale D"}

// GradeAllowed reports whether level is one of GradeLevels.
func GradeAllowed(level string) bool {
	for _, g := range GradeLevels {
		if g == level {
			return true
		}
	}
	return false
}

// DefaultFailureCount is used by remediation when the caller does not
// report how many attempts failed.
const DefaultFailureCount = 3

// Request is one tutoring interaction.
type Request struct {
	Action     string `json:"action"`
	Subject    string `json:"matiere" validate:"required,max=100"`
	Chapter    string `json:"chapitre,omitempty" validate:"max=200"`
	Difficulty string `json:"niveau_difficulte,omitempty" validate:"omitempty,difficulty"`
	Message    string `json:"message,omitempty"`

	// StudentAnswers switches the diagnostic to its evaluation step.
	StudentAnswers map[string]any `json:"student_answers,omitempty"`
	ClassLevel     string         `json:"class_level,omitempty" validate:"max=50"`

	// FailureCount is the number of consecutive failed attempts reported by
	// the caller for remediation. Zero means unknown.
	FailureCount int `json:"failure_count,omitempty" validate:"gte=0,lte=1000"`
}

// Question is one diagnostic question.
type Question struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Type          string `json:"type"`
	ExpectedLevel string `json:"expected_level,omitempty"`
}

// QuestionSet is held on the learner profile between the two diagnostic
// steps.
type QuestionSet struct {
	Questions          []Question `json:"questions"`
	EvaluationCriteria []string   `json:"evaluation_criteria"`
	RawResponse        string     `json:"raw_response,omitempty"`
}

// Exercise is a multiple-choice exercise.
type Exercise struct {
	Question     string         `json:"question"`
	Options      []reply.Option `json:"options"`
	Difficulty   string         `json:"difficulty,omitempty"`
	Competencies []string       `json:"competencies,omitempty"`
	Hint         string         `json:"hint,omitempty"`
}

// Response is the outcome of a successful request. Which payload field is
// set depends on Status.
type Response struct {
	Status string `json:"status"`

	Message    string     `json:"message,omitempty"`
	Questions  []Question `json:"questions,omitempty"`
	NextAction string     `json:"next_action,omitempty"`

	// Analysis is nil when the evaluation reply could not be decoded.
	Analysis map[string]any `json:"analysis,omitempty"`

	Exercise    *Exercise      `json:"exercise,omitempty"`
	Content     string         `json:"content,omitempty"`
	Remediation map[string]any `json:"remediation,omitempty"`
	Summary     map[string]any `json:"summary,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Kind classifies a Failure.
type Kind string

const (
	KindForbidden  Kind = "forbidden"
	KindValidation Kind = "validation_failed"
	KindServer     Kind = "server_error"
)

// Failure reasons.
const (
	ReasonProfileRequired    = "learner_profile_required"
	ReasonInvalidRequest     = "invalid_request"
	ReasonInvalidAction      = "invalid_action"
	ReasonGradeRequired      = "grade_level_required"
	ReasonGradeNotAllowed    = "grade_level_not_allowed"
	ReasonNoPendingQuestions = "no_pending_questions"
	ReasonInternal           = "internal_error"
)

// Failure is the error returned by Handle. Message is safe to show to the
// learner. Err is reachable through errors.Unwrap but never part of Error.
type Failure struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s (%s): %s", f.Kind, f.Reason, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

func validationFailure(reason, message string) *Failure {
	return &Failure{Kind: KindValidation, Reason: reason, Message: message}
}
