package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError turns validator.ValidationErrors into a readable message.
func ValidationError(err error) string {
	if err == nil {
		return ""
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	var errorMsgs []string
	for _, e := range validationErrors {
		field := e.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		switch e.Tag() {
		case "required":
			errorMsgs = append(errorMsgs, fmt.Sprintf("Field '%s' is required", field))
		case "url":
			errorMsgs = append(errorMsgs, fmt.Sprintf("Field '%s' must be a valid URL", field))
		case "email":
			errorMsgs = append(errorMsgs, fmt.Sprintf("Field '%s' must be a valid email address", field))
		case "oneof":
			errorMsgs = append(errorMsgs, fmt.Sprintf("Field '%s' must be one of [%s]", field, e.Param()))
		case "min":
			errorMsgs = append(errorMsgs, fmt.Sprintf("Field '%s' must be at least %s characters", field, e.Param()))
		case "max":
			errorMsgs = append(errorMsgs, fmt.Sprintf("Field '%s' must be at most %s characters", field, e.Param()))
		case "gte":
			errorMsgs = append(errorMsgs, fmt.Sprintf("Field '%s' must be greater than or equal to %s", field, e.Param()))
		case "lte":
			errorMsgs = append(errorMsgs, fmt.Sprintf("Field '%s' must be less than or equal to %s", field, e.Param()))
		default:
			errorMsgs = append(errorMsgs, fmt.Sprintf("Field '%s' failed on the '%s' tag", field, e.Tag()))
		}
	}

	return strings.Join(errorMsgs, ", ")
}
