// Package observ aggregates per-operation timings of a CLI session (load,
// handshake, compile, typecheck) for the --timings report. A watch session
// repeats operations, so samples are folded into one row per name.
package observ

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Mark is an operation in progress, returned by Begin.
type Mark struct {
	name  string
	start time.Time
}

// stat is the running aggregate of one operation name.
type stat struct {
	count    int
	failures int
	total    time.Duration
	max      time.Duration
	note     string
}

// Timer aggregates operation durations. A nil *Timer discards everything,
// so callers need not check whether --timings is on. Marks may be ended on
// a different goroutine than the one that began them.
type Timer struct {
	mu    sync.Mutex
	order []string
	stats map[string]*stat
}

// NewTimer returns an empty Timer.
func NewTimer() *Timer {
	return &Timer{stats: make(map[string]*stat)}
}

// Begin starts timing one run of the operation name.
func (t *Timer) Begin(name string) Mark {
	if t == nil {
		return Mark{}
	}
	return Mark{name: name, start: time.Now()}
}

// End records m. A non-nil err counts as a failure and becomes the row's
// note.
func (t *Timer) End(m Mark, err error) {
	if t == nil || m.start.IsZero() {
		return
	}
	d := time.Since(m.start)
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stats[m.name]
	if !ok {
		s = &stat{}
		t.stats[m.name] = s
		t.order = append(t.order, m.name)
	}
	s.count++
	s.total += d
	s.max = max(s.max, d)
	if err != nil {
		s.failures++
		s.note = "failed: " + err.Error()
	}
}

// Track times fn as one run of name.
func (t *Timer) Track(name string, fn func() error) error {
	m := t.Begin(name)
	err := fn()
	t.End(m, err)
	return err
}

// Row is one operation in a Report.
type Row struct {
	Name     string  `json:"name"`
	Count    int     `json:"count"`
	Failures int     `json:"failures,omitempty"`
	TotalMS  float64 `json:"total_ms"`
	MaxMS    float64 `json:"max_ms"`
	Note     string  `json:"note,omitempty"`
}

// Report lists operations in the order they were first seen.
type Report struct {
	Rows    []Row   `json:"rows"`
	TotalMS float64 `json:"total_ms"`
}

// Report snapshots the aggregates.
func (t *Timer) Report() Report {
	if t == nil {
		return Report{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var rep Report
	var total time.Duration
	for _, name := range t.order {
		s := t.stats[name]
		total += s.total
		rep.Rows = append(rep.Rows, Row{
			Name:     name,
			Count:    s.count,
			Failures: s.failures,
			TotalMS:  millis(s.total),
			MaxMS:    millis(s.max),
			Note:     s.note,
		})
	}
	rep.TotalMS = millis(total)
	return rep
}

// Summary renders the report as an aligned table.
func (t *Timer) Summary() string {
	rep := t.Report()
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, r := range rep.Rows {
		fmt.Fprintf(&sb, "  %-12s %4dx %9.2f ms  max %8.2f ms", r.Name, r.Count, r.TotalMS, r.MaxMS)
		if r.Failures > 0 {
			fmt.Fprintf(&sb, "  %d failed", r.Failures)
		}
		if r.Note != "" {
			sb.WriteString("  // " + r.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-12s       %9.2f ms\n", "total", rep.TotalMS)
	return sb.String()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
