package formulas

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError reports required inputs that were missing or zero.
type ValidationError struct {
	Tool   string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing required field(s): %s", e.Tool, strings.Join(e.Fields, ", "))
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// require collects the names whose value is not strictly positive.
func require(tool string, fields ...field) error {
	var missing []string
	for _, f := range fields {
		if !(f.value > 0) {
			missing = append(missing, f.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Tool: tool, Fields: missing}
}

type field struct {
	name  string
	value float64
}
