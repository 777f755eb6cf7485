package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"kside/internal/config"
	"kside/internal/trace"
)

// tracing is the tracer of the running command.
type tracing struct {
	tracer trace.Tracer
	pulse  *trace.Pulse
	errOut io.Writer
}

// lastTrace is the most recent command's tracing; main dumps its ring when
// the command fails.
var lastTrace *tracing

// setupTracing builds the tracer from the trace settings and attaches it to
// the command context.
func setupTracing(cmd *cobra.Command, cfg config.TraceConfig) (*tracing, error) {
	level, err := trace.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	mode, err := trace.ParseMode(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}
	format, err := trace.ParseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid trace format: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: cfg.Output,
		RingSize:   cfg.RingSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	t := &tracing{tracer: tracer, errOut: cmd.ErrOrStderr()}
	lastTrace = t
	return t, nil
}

// startPulse begins heartbeats that report pending requests.
func (t *tracing) startPulse(interval time.Duration, pending func() int) {
	if t == nil || t.pulse != nil {
		return
	}
	t.pulse = trace.StartPulse(t.tracer, interval, pending)
}

// close stops heartbeats and flushes the stream.
func (t *tracing) close() {
	if t == nil {
		return
	}
	t.pulse.Stop()
	t.pulse = nil
	if err := t.tracer.Flush(); err != nil {
		fmt.Fprintf(t.errOut, "trace: flush error: %v\n", err)
	}
	if err := t.tracer.Close(); err != nil {
		fmt.Fprintf(t.errOut, "trace: close error: %v\n", err)
	}
}

// dumpTrace writes the last command's ring, if it kept one, after a
// failure other than reported diagnostics.
func dumpTrace(w io.Writer, cmdErr error) {
	if lastTrace == nil || errors.Is(cmdErr, errDiagnostics) {
		return
	}
	rec, ok := lastTrace.tracer.(*trace.Recorder)
	if !ok || rec.Recent() == nil {
		return
	}
	if err := rec.Dump(w); err != nil {
		fmt.Fprintf(w, "trace: dump error: %v\n", err)
	}
}
