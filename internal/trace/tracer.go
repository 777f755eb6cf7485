package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Tracer receives events. Implementations are safe for concurrent use.
type Tracer interface {
	// Emit records ev. The tracer may keep ev after Emit returns.
	Emit(ev *Event)
	// Wants reports whether events of scope are recorded at all.
	Wants(scope Scope) bool
	Flush() error
	Close() error
}

type nopTracer struct{}

func (nopTracer) Emit(*Event)      {}
func (nopTracer) Wants(Scope) bool { return false }
func (nopTracer) Flush() error     { return nil }
func (nopTracer) Close() error     { return nil }

// Nop records nothing.
var Nop Tracer = nopTracer{}

// Mode selects where a Recorder keeps events.
type Mode uint8

const (
	ModeStream Mode = iota + 1 // write each event as it happens
	ModeRing                   // keep the most recent events in memory
	ModeBoth
)

var modeNames = [...]string{ModeStream: "stream", ModeRing: "ring", ModeBoth: "both"}

func (m Mode) String() string {
	if int(m) < len(modeNames) && modeNames[m] != "" {
		return modeNames[m]
	}
	return "unknown"
}

// ParseMode parses a mode name; the empty string means stream.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeStream, nil
	}
	for i, name := range modeNames {
		if name != "" && name == s {
			return Mode(i), nil
		}
	}
	return ModeStream, fmt.Errorf("invalid trace mode: %q (expected: stream|ring|both)", s)
}

// DefaultRingSize is the ring capacity when Config.RingSize is unset.
const DefaultRingSize = 2048

// Config describes a tracer.
type Config struct {
	Level      Level
	Mode       Mode
	Format     Format
	Output     io.Writer // stream destination; wins over OutputPath
	OutputPath string    // "" or "-" means stderr
	RingSize   int
}

// New builds a tracer for cfg. LevelOff yields Nop.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if cfg.Mode == 0 {
		cfg.Mode = ModeStream
	}
	if cfg.Mode > ModeBoth {
		return nil, fmt.Errorf("unknown trace mode %d", cfg.Mode)
	}
	r := &Recorder{level: cfg.Level}
	if cfg.Mode != ModeStream {
		size := cfg.RingSize
		if size <= 0 {
			size = DefaultRingSize
		}
		r.ring = make([]Event, size)
	}
	if cfg.Mode != ModeRing {
		w, err := openOutput(cfg.Output, cfg.OutputPath)
		if err != nil {
			return nil, err
		}
		r.out = w
		r.format = cfg.Format.resolve(cfg.OutputPath)
	}
	return r, nil
}

func openOutput(w io.Writer, path string) (io.Writer, error) {
	if w != nil {
		return w, nil
	}
	if path == "" || path == "-" {
		return os.Stderr, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}
