package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"kside/internal/logging"
	"kside/internal/trace"
	"kside/internal/wire"
)

// ValidationError is a single invalid setting.
type ValidationError struct {
	Field   string // config key, e.g. "worker.codec"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid setting found.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Validate checks c and returns every problem found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if _, err := wire.Lookup(c.Worker.Codec); err != nil {
		errs = append(errs, ValidationError{Field: "worker.codec", Value: c.Worker.Codec, Message: "must be json or msgpack"})
	}
	if c.Worker.MaxLanes < 0 {
		errs = append(errs, ValidationError{Field: "worker.max_lanes", Value: c.Worker.MaxLanes, Message: "must be non-negative"})
	}

	root := c.Project.DependencyRoot
	switch {
	case strings.TrimSpace(root) == "":
		errs = append(errs, ValidationError{Field: "project.dependency_root", Value: root, Message: "must not be empty"})
	case filepath.IsAbs(root) || strings.HasPrefix(filepath.ToSlash(filepath.Clean(root)), ".."):
		errs = append(errs, ValidationError{Field: "project.dependency_root", Value: root, Message: "must be relative to the package"})
	}
	if strings.TrimSpace(c.Project.OutputDir) == "" {
		errs = append(errs, ValidationError{Field: "project.output_dir", Value: c.Project.OutputDir, Message: "must not be empty"})
	}

	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		errs = append(errs, ValidationError{Field: "trace.level", Value: c.Trace.Level, Message: "must be off, error, phase, detail or debug"})
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		errs = append(errs, ValidationError{Field: "trace.format", Value: c.Trace.Format, Message: "must be auto, text or ndjson"})
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		errs = append(errs, ValidationError{Field: "trace.mode", Value: c.Trace.Mode, Message: "must be stream, ring or both"})
	}
	if c.Trace.RingSize < 0 {
		errs = append(errs, ValidationError{Field: "trace.ring_size", Value: c.Trace.RingSize, Message: "must be non-negative"})
	}
	if c.Trace.Heartbeat < 0 {
		errs = append(errs, ValidationError{Field: "trace.heartbeat", Value: c.Trace.Heartbeat, Message: "must be non-negative"})
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, ValidationError{Field: "logging.level", Value: c.Logging.Level, Message: "must be debug, info, warn or error"})
	}
	if c.Watch.DebounceMs < 0 {
		errs = append(errs, ValidationError{Field: "watch.debounce_ms", Value: c.Watch.DebounceMs, Message: "must be non-negative"})
	}

	return errs
}
