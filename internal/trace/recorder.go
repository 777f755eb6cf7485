package trace

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Recorder streams events to a writer, keeps the latest ones in a ring, or
// both. Build one with New.
type Recorder struct {
	level  Level
	out    io.Writer
	format Format

	mu   sync.Mutex
	ring []Event
	next int
	full bool
}

var _ Tracer = (*Recorder)(nil)

func (r *Recorder) streams(scope Scope) bool {
	return r.out != nil && r.level.ShouldEmit(scope)
}

// rings reports whether scope is kept in the ring. The ring keeps requests
// and coarser at every level above off, and everything at LevelDebug.
func (r *Recorder) rings(scope Scope) bool {
	return r.ring != nil && (scope <= ScopeRequest || r.level.ShouldEmit(scope))
}

// Wants implements Tracer.
func (r *Recorder) Wants(scope Scope) bool {
	return r.streams(scope) || r.rings(scope)
}

// Emit implements Tracer. Heartbeats are always recorded. Write errors on
// the stream are dropped.
func (r *Recorder) Emit(ev *Event) {
	beat := ev.Kind == KindHeartbeat
	stream := r.out != nil && (beat || r.streams(ev.Scope))
	keep := r.ring != nil && (beat || r.rings(ev.Scope))
	if !stream && !keep {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if keep {
		r.ring[r.next] = *ev
		r.next = (r.next + 1) % len(r.ring)
		r.full = r.full || r.next == 0
	}
	if stream {
		_, _ = r.out.Write(FormatEvent(ev, r.format))
	}
}

// Recent returns the ring's events, oldest first. It is nil when the
// recorder has no ring.
func (r *Recorder) Recent() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ring == nil {
		return nil
	}
	if !r.full {
		return append([]Event(nil), r.ring[:r.next]...)
	}
	out := make([]Event, 0, len(r.ring))
	out = append(out, r.ring[r.next:]...)
	return append(out, r.ring[:r.next]...)
}

// Dump writes the ring to w as text under a header line.
func (r *Recorder) Dump(w io.Writer) error {
	events := r.Recent()
	if _, err := fmt.Fprintf(w, "--- last %d trace events ---\n", len(events)); err != nil {
		return err
	}
	for i := range events {
		if _, err := w.Write(appendText(nil, &events[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the stream when its writer buffers.
func (r *Recorder) Flush() error {
	if f, ok := r.out.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes and closes the stream unless it is stdout or stderr.
func (r *Recorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}
	if r.out == os.Stderr || r.out == os.Stdout {
		return nil
	}
	if c, ok := r.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
