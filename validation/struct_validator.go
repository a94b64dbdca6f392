package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/pitwall/errors"
)

// FieldError describes one failed field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)
	})
	return validate
}

// squashed marks an embed whose fields live at the parent level.
const squashed = "~"

// fieldName reports a field by its config key: the mapstructure tag, then the
// json tag, then the snake-cased Go name.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"mapstructure", "json"} {
		name, opts, _ := strings.Cut(fld.Tag.Get(tag), ",")
		if name == "-" {
			return "-"
		}
		if name != "" {
			return name
		}
		if strings.Contains(opts, "squash") {
			return squashed
		}
	}
	return toSnakeCase(fld.Name)
}

// Validate validates s using its `validate` struct tags.
func Validate(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation("validation failed").WithCause(err)
	}

	fields := make([]FieldError, 0, len(validationErrors))
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		path := fieldPath(e.Namespace())
		msg := formatValidationError(e)
		fields = append(fields, FieldError{Field: path, Message: msg})
		messages = append(messages, path+": "+msg)
	}

	return errors.Validation(strings.Join(messages, "; ")).WithDetail("fields", fields)
}

// fieldPath drops the root type name and squashed segments:
// "Config.~.name" becomes "name".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" && p != squashed {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "ip", "hostname", "hostname_rfc1123":
		return "must be a valid host"
	case "url":
		return "must be a valid URL"
	case "hostname_port":
		return "must be host:port"
	default:
		return "is invalid (" + e.Tag() + ")"
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
