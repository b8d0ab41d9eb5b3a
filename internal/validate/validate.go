// Package validate checks request payloads against struct tags and renders
// the first failure as a client-facing message.
package validate

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"trustscan/internal/domain"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct returns nil or an error matching domain.ErrInvalidInput.
func Struct(s any) error {
	if err := v.Struct(s); err != nil {
		return domain.Invalid(domain.ErrInvalidInput, Message(err))
	}
	return nil
}

// Message describes the first validation failure in err.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid input"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Invalid email address"
	case "url", "http_url":
		return "Invalid URL format"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	default:
		return "Invalid " + field
	}
}
