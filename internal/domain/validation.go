package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidPreferences is matched by every FieldErrors value.
	ErrInvalidPreferences = errors.New("invalid preferences")
	// ErrNoPreferences means no usable preference record was handed over.
	ErrNoPreferences = errors.New("no preferences submitted")
)

// FieldError describes one violated constraint on a preference field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
	Value any    `json:"value"`
}

func (e FieldError) String() string {
	if e.Param != "" {
		return fmt.Sprintf("%s (%s=%s, got %v)", e.Field, e.Rule, e.Param, e.Value)
	}
	return fmt.Sprintf("%s (%s, got %v)", e.Field, e.Rule, e.Value)
}

// FieldErrors is returned when a record fails validation.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.String())
	}
	return ErrInvalidPreferences.Error() + ": " + strings.Join(parts, ", ")
}

func (e FieldErrors) Is(target error) bool { return target == ErrInvalidPreferences }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return IsPriority(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate checks every field of p against its declared range, including the
// priority set.
func (p PreferenceRecord) Validate() error {
	return toFieldErrors(validate.Struct(p))
}

// ValidateRanges checks the scored sliders, the budget and the lifestyle enum.
// The priority set is left to the questionnaire.
func (p PreferenceRecord) ValidateRanges() error {
	return toFieldErrors(validate.StructExcept(p, "Priorities"))
}

func toFieldErrors(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidPreferences, err)
	}
	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		})
	}
	return out
}
