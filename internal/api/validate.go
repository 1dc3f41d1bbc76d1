package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var formValidator = newFormValidator()

// newFormValidator builds the validator with error keys taken from json tags
// where present, so local errors use the same field names the backend uses.
func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if tag != "" && tag != "-" {
			return tag
		}
		return snakeCase(fld.Name)
	})
	return v
}

// validateForm checks a request payload locally before any network traffic.
// Failures come back as an *APIError with field errors keyed the way the
// backend keys them, so callers handle both identically.
func validateForm(v any) error {
	err := formValidator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}

	apiErr := &APIError{
		Status: http.StatusBadRequest,
		Fields: make(map[string][]string, len(verrs)),
	}
	for _, fe := range verrs {
		key := fe.Field()
		apiErr.Fields[key] = append(apiErr.Fields[key], fieldMessage(fe))
	}
	return apiErr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// snakeCase converts a Go field name to the backend's field key
// (FirstName -> first_name).
func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
