package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mcoot/tictactoe-go/internal/api/apierr"
)

// schema decodes and validates request payloads
type schema struct {
	validate *validator.Validate
}

func newSchema() *schema {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &schema{validate: v}
}

// decode parses raw into T and validates it. A missing payload decodes as the zero value.
func decode[T any](s *schema, raw json.RawMessage) (T, error) {
	var req T

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &req); err != nil {
			return req, decodeError(err)
		}
	}

	if err := s.validate.Struct(&req); err != nil {
		return req, validationError(err)
	}
	return req, nil
}

func decodeError(err error) *apierr.Error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if i := strings.LastIndex(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if field == "" {
			field = "data"
		}
		return apierr.NewValidationError(field, fmt.Sprintf("%q must be a %s", field, typeErr.Type.String()))
	}
	return apierr.NewValidationError("data", "data must be an object")
}

func validationError(err error) *apierr.Error {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) || len(invalid) == 0 {
		return apierr.NewValidationError("data", "data is invalid")
	}

	fe := invalid[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%q is required", field)
	case "min":
		msg = fmt.Sprintf("%q must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			msg = fmt.Sprintf("%q must be at most %s characters", field, fe.Param())
		} else {
			msg = fmt.Sprintf("%q must be at most %s", field, fe.Param())
		}
	default:
		msg = fmt.Sprintf("%q is invalid", field)
	}
	return apierr.NewValidationError(field, msg)
}
