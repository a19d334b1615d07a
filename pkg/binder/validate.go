package binder

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON (or path) names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "path"} {
			if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// Validate checks the validate tags of the bound request. It must run after
// the binders that fill the struct.
func Validate() func(r *http.Request, v any) error {
	return func(_ *http.Request, v any) error {
		if err := validate.Struct(v); err != nil {
			var invalid *validator.InvalidValidationError
			if errors.As(err, &invalid) {
				return nil
			}
			return errors.Join(ErrValidation, err)
		}
		return nil
	}
}

// FieldErrors flattens a validation failure into messages keyed by field
// name. It returns nil when err carries no field errors.
func FieldErrors(err error) map[string][]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_with", "required_without":
		return "is required"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "hexadecimal":
		return "must be hexadecimal"
	default:
		return "is invalid"
	}
}
