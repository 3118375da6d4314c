package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names so messages match request bodies.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct validates s and describes the first failing field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("invalid validation error: %w", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	first := fieldErrs[0]
	field := fieldPath(first.Namespace())
	switch first.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "max":
		if first.Kind() == reflect.Slice {
			return fmt.Errorf("%s accepts at most %s item(s)", field, first.Param())
		}
		return fmt.Errorf("%s must be at most %s characters long", field, first.Param())
	case "min":
		return fmt.Errorf("%s must be at least %s characters long", field, first.Param())
	default:
		return fmt.Errorf("%s failed on the '%s' rule", field, first.Tag())
	}
}

// fieldPath drops the leading struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
