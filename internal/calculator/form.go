package calculator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tillerstead/tillerpro/internal/projectstate"
	"github.com/tillerstead/tillerpro/internal/units"
)

// Kind is the value type of a calculator field.
type Kind string

const (
	KindNumber Kind = "number"
	KindText   Kind = "text"
	KindBool   Kind = "bool"
)

// Field describes one calculator input. Path is relative to the domain
// subtree; fields without a path live only in the form.
type Field struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	Kind     Kind   `json:"kind"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// Normalize converts raw input (JSON, form or flag values) to the field kind.
// An empty string clears the field and returns nil.
func (f Field) Normalize(raw any) (any, error) {
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	if raw == nil {
		return nil, nil
	}
	switch f.Kind {
	case KindNumber:
		v, ok := units.ToFloat(raw)
		if !ok {
			return nil, fmt.Errorf("%s: %v is not a number", f.Name, raw)
		}
		return v, nil
	case KindBool:
		return parseBool(raw)
	default:
		return strings.TrimSpace(fmt.Sprint(raw)), nil
	}
}

func parseBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if s == "on" || s == "yes" {
			return true, nil
		}
		if s == "off" || s == "no" {
			return false, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("%q is not a boolean", v)
		}
		return b, nil
	}
	if n, ok := units.ToFloat(raw); ok {
		return n != 0, nil
	}
	return false, fmt.Errorf("%v is not a boolean", raw)
}

// Form holds the current input values of a calculator, keyed by field name.
type Form map[string]any

// Float returns the numeric value of name, or 0.
func (f Form) Float(name string) float64 {
	v, _ := units.ToFloat(f[name])
	return v
}

// Int returns the numeric value of name truncated to an int.
func (f Form) Int(name string) int {
	return int(f.Float(name))
}

// String returns the text value of name.
func (f Form) String(name string) string {
	switch v := f[name].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns the boolean value of name; unparseable values are false.
func (f Form) Bool(name string) bool {
	b, _ := parseBool(f[name])
	return b
}

// Empty reports whether name has no usable value.
func (f Form) Empty(name string) bool {
	return projectstate.IsEmpty(f[name])
}

func (f Form) clone() Form {
	out := make(Form, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
