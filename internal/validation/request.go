// Package validation checks generation requests and generated content against
// domain rules, and guards prompts against injected instructions.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/phish-simulator/internal/types"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateRequest checks a normalized GenerationRequest and returns *types.InputError
// describing the first problem found.
func ValidateRequest(req types.GenerationRequest) error {
	if err := requestValidator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &types.InputError{Field: fieldErrs[0].Field(), Message: formatValidationError(fieldErrs[0])}
		}
		return &types.InputError{Message: err.Error()}
	}

	if !req.IncludeMessage && !req.IncludeLandingPage {
		return &types.InputError{Field: "include_message", Message: "at least one of message or landing page must be requested"}
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	case "bcp47_language_tag":
		return fmt.Sprintf("%s must be a BCP-47 language tag", e.Field())
	default:
		return fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag())
	}
}
