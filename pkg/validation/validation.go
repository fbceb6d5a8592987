package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "voxid/pkg/domain-errors"
)

// Request limits shared by handlers.
const (
	// MaxJSONBodySize caps JSON request bodies (filter, dataset).
	MaxJSONBodySize = 64 * 1024
	// MaxAccountIDLength caps external account identifiers.
	MaxAccountIDLength = 128
	// MaxCriteria caps the number of filter keys accepted in one query.
	MaxCriteria = 16
	// MaxCriterionValueLength caps a single filter value.
	MaxCriterionValueLength = 64
)

var accountIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("accountid", func(fl validator.FieldLevel) bool {
		return IsAccountID(fl.Field().String())
	})
	return v
}

// IsAccountID reports whether s is an acceptable external account identifier.
func IsAccountID(s string) bool {
	return s != "" && len(s) <= MaxAccountIDLength && accountIDPattern.MatchString(s)
}

// Validate validates a struct using the default validator and returns a domain error.
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// ErrorMessage converts a validator error into a human-readable message naming the JSON field.
func ErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request body"
	}

	fe := validationErrs[0]
	field := fe.Field()

	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "accountid":
		return fmt.Sprintf("%s must be 1-%d characters of letters, digits, '.', '_', ':' or '-'", field, MaxAccountIDLength)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
