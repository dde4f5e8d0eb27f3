package tutor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/abhisek/grasss/internal/store"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
		return store.NormalizeDifficulty(fl.Field().String()) != ""
	})
	return v
}

// normalize trims the free-text identifiers of req.
func normalize(req Request) Request {
	req.Action = strings.TrimSpace(req.Action)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Chapter = strings.TrimSpace(req.Chapter)
	req.Difficulty = strings.TrimSpace(req.Difficulty)
	req.ClassLevel = strings.TrimSpace(req.ClassLevel)
	return req
}

func (o *Orchestrator) check(v any) error {
	err := o.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return validationFailure(ReasonInvalidRequest,
		"Requête invalide : "+strings.Join(fields, ", ")+".")
}
