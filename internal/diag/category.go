package diag

import (
	"fmt"
	"strings"
)

// Category defines the kind of a diagnostic. Numeric values follow the
// worker's encoding and must not be reordered.
type Category uint8

const (
	// CategoryWarning is for warning diagnostics.
	CategoryWarning Category = iota
	// CategoryError is for error diagnostics.
	CategoryError
	// CategoryMessage is for informational diagnostics.
	CategoryMessage
	// CategorySuggestion marks code the compiler could rewrite. It carries
	// no severity.
	CategorySuggestion
)

func (c Category) String() string {
	switch c {
	case CategoryWarning:
		return "warning"
	case CategoryError:
		return "error"
	case CategoryMessage:
		return "message"
	case CategorySuggestion:
		return "suggestion"
	}
	return "unknown"
}

// ParseCategory converts a lowercase or uppercase name to a Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(s) {
	case "warning":
		return CategoryWarning, nil
	case "error":
		return CategoryError, nil
	case "message":
		return CategoryMessage, nil
	case "suggestion":
		return CategorySuggestion, nil
	}
	return CategoryMessage, fmt.Errorf("invalid diagnostic category: %q (expected: warning|error|message|suggestion)", s)
}
