package calculator

import (
	"fmt"
	"strings"

	"github.com/tillerstead/tillerpro/internal/projectstate"
	"github.com/tillerstead/tillerpro/internal/units"
)

// Reader is the read side of the project state.
type Reader interface {
	Get(path string) any
}

// Store is the project state a module reads, writes and watches.
type Store interface {
	Reader
	SetIfAbsent(path string, value any) bool
	Update(values map[string]any)
	On(kind projectstate.EventKind, handler projectstate.Handler) func()
}

// Derivation fills an empty field from another domain's state. Watch lists
// the absolute paths whose changes trigger it.
type Derivation struct {
	Field  string
	Watch  []string
	Derive func(r Reader) (any, bool)
}

// Outcome is what a domain formula produces. Seed values are absolute paths
// written only when absent.
type Outcome struct {
	Calculated map[string]any
	Seed       map[string]any
	Notes      []string
	Warnings   []string
}

// Spec parameterizes a generic Module for one calculator domain.
type Spec struct {
	Domain      string
	Title       string
	Fields      []Field
	Derivations []Derivation
	Compute     func(Form) (Outcome, error)
}

func (s Spec) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s Spec) statePath(f Field) string {
	return s.Domain + "." + f.Path
}

// missing lists required fields without a usable value. Numbers must be
// strictly positive.
func (s Spec) missing(form Form) []string {
	var out []string
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		v := form[f.Name]
		if f.Kind == KindNumber {
			if n, ok := units.ToFloat(v); !ok || !(n > 0) {
				out = append(out, f.Name)
			}
			continue
		}
		if projectstate.IsEmpty(v) {
			out = append(out, f.Name)
		}
	}
	return out
}

func (s Spec) validate() error {
	if s.Domain == "" || strings.Contains(s.Domain, ".") {
		return fmt.Errorf("invalid calculator domain %q", s.Domain)
	}
	if s.Compute == nil {
		return fmt.Errorf("calculator %s has no compute func", s.Domain)
	}
	seen := map[string]bool{}
	for _, f := range s.Fields {
		if f.Name == "" || seen[f.Name] {
			return fmt.Errorf("calculator %s: duplicate or empty field %q", s.Domain, f.Name)
		}
		seen[f.Name] = true
	}
	for _, d := range s.Derivations {
		if !seen[d.Field] {
			return fmt.Errorf("calculator %s: derivation for unknown field %q", s.Domain, d.Field)
		}
		if d.Derive == nil || len(d.Watch) == 0 {
			return fmt.Errorf("calculator %s: derivation for %q needs watch paths and a func", s.Domain, d.Field)
		}
	}
	return nil
}

// ToolInfo describes a calculator for listings.
type ToolInfo struct {
	Name   string  `json:"name"`
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// Info returns the listing for the spec.
func (s Spec) Info() ToolInfo {
	return ToolInfo{Name: s.Domain, Title: s.Title, Fields: append([]Field(nil), s.Fields...)}
}
