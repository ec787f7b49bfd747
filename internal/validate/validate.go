// Package validate wraps go-playground/validator so that every failing field
// of a request is reported in one error.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "yaml"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return fld.Name
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
		instance = v
	})
	return instance
}

// FieldError describes one failing field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Error lists every failing field of a validated struct. It unwraps to the
// sentinel supplied by the calling package so callers can keep using errors.Is.
type Error struct {
	Err    error
	Fields []FieldError
}

func (e *Error) Error() string {
	missing := e.Missing()
	other := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Rule != "required" {
			other = append(other, fmt.Sprintf("%s (%s)", f.Field, f.Rule))
		}
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(other) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(other, ", "))
	}
	if e.Err == nil {
		return strings.Join(parts, "; ")
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error { return e.Err }

// Missing returns the names of fields that failed the required rule.
func (e *Error) Missing() []string {
	var out []string
	for _, f := range e.Fields {
		if f.Rule == "required" {
			out = append(out, f.Field)
		}
	}
	return out
}

// Struct validates v using its `validate` tags. Failures are returned as *Error
// wrapping sentinel.
func Struct(v any, sentinel error) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", sentinel, err)
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return &Error{Err: sentinel, Fields: fields}
}

// Fields builds an *Error from field names collected by hand, for checks the
// tag language cannot express.
func Fields(sentinel error, rule string, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	fields := make([]FieldError, 0, len(names))
	for _, n := range names {
		fields = append(fields, FieldError{Field: n, Rule: rule})
	}
	return &Error{Err: sentinel, Fields: fields}
}
