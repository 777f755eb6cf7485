package trace

import (
	"fmt"
	"strings"
)

// Level controls which scopes are streamed.
type Level uint8

const (
	LevelOff    Level = iota
	LevelError        // nothing streamed; a ring still records for failure dumps
	LevelPhase        // sessions and lane turns
	LevelDetail       // plus worker requests
	LevelDebug        // plus per-file work
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel parses a level name; the empty string means off.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LevelOff, nil
	}
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether events of scope are streamed at l.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelPhase:
		return scope <= ScopeLane
	case LevelDetail:
		return scope <= ScopeRequest
	case LevelDebug:
		return true
	default:
		return false
	}
}
