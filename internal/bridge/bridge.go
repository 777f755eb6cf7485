// Package bridge drives an isolated compiler worker from the editor.
//
// Every operation runs as one turn of the "main" lane, so at most one is in
// flight and they finish in the order they were requested. Within a turn the
// bridge allocates a correlation id, registers a resolver, sends the
// request and waits for the matching reply; replies may arrive in any order.
// Compile and typecheck results are reduced onto the editor model before the
// turn ends.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"kside/internal/correlate"
	"kside/internal/diag"
	"kside/internal/diagfmt"
	"kside/internal/lane"
	"kside/internal/logging"
	"kside/internal/observ"
	"kside/internal/project"
	"kside/internal/trace"
	"kside/internal/wire"
	"kside/internal/worker"
)

// MainLane is the lane every bridge operation runs on.
const MainLane = "main"

var (
	// ErrNoResponse is returned when the worker replied without a result.
	ErrNoResponse = correlate.ErrNoResponse
	// ErrNotInitialized is returned for operations requested before Initialize.
	ErrNotInitialized = errors.New("bridge not initialized")
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("bridge already initialized")
	// ErrNoProvider is returned by the *Project helpers without an OptionsProvider.
	ErrNoProvider = errors.New("no compile options provider")
)

// WorkerError is a failure reported by the worker, message verbatim.
type WorkerError = correlate.WorkerError

// OptionsProvider builds compile options from the package manifest.
type OptionsProvider interface {
	CompileOptions(ctx context.Context) (*project.CompileOptions, error)
}

// DownloadSink receives the target artifact of a successful compile.
type DownloadSink interface {
	DownloadText(content, filename, mimeType string) error
}

// Workspace is the editor model the bridge updates.
type Workspace interface {
	diagfmt.Target
	Name() string
	SetFiles(files map[string]string)
}

// CompileResult is the outcome of a compile.
type CompileResult struct {
	OutFiles    map[string]string
	Diagnostics []diag.Diagnostic
	Summary     diagfmt.Summary
}

// Bridge owns the worker channel and the table of pending requests.
type Bridge struct {
	ch       worker.Channel
	ws       Workspace
	sink     DownloadSink
	provider OptionsProvider
	queue    *lane.Queue
	ownQueue bool
	corr     *correlate.Correlator
	reducer  diagfmt.Reducer
	logger   *zap.Logger
	timer    *observ.Timer

	mu          sync.Mutex
	initialized bool
	sources     map[string]string // file snapshot of the last reduced turn

	// nextID is only touched inside lane turns.
	nextID uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithQueue runs bridge operations on q instead of a private queue.
func WithQueue(q *lane.Queue) Option {
	return func(b *Bridge) {
		if q != nil {
			b.queue = q
		}
	}
}

// WithLogger sets the bridge logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithDownloadSink sets where compile artifacts go.
func WithDownloadSink(s DownloadSink) Option {
	return func(b *Bridge) { b.sink = s }
}

// WithOptionsProvider sets the manifest provider used by CompileProject and
// TypecheckProject.
func WithOptionsProvider(p OptionsProvider) Option {
	return func(b *Bridge) { b.provider = p }
}

// WithDependencyRoot sets the directory prefix stripped from dependency
// file names in diagnostics.
func WithDependencyRoot(root string) Option {
	return func(b *Bridge) { b.reducer.DependencyRoot = root }
}

// WithTimer records compile and typecheck turns in t.
func WithTimer(t *observ.Timer) Option {
	return func(b *Bridge) { b.timer = t }
}

// New creates a bridge over ch that writes results into ws. It panics if
// either is nil.
func New(ch worker.Channel, ws Workspace, opts ...Option) *Bridge {
	if ch == nil {
		panic("bridge: nil worker channel")
	}
	if ws == nil {
		panic("bridge: nil workspace")
	}
	b := &Bridge{
		ch:     ch,
		ws:     ws,
		corr:   correlate.New(),
		logger: logging.Named("bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.queue == nil {
		b.queue = lane.New(lane.WithLogger(b.logger))
		b.ownQueue = true
	}
	return b
}

// Initialize starts the worker channel and enqueues the handshake, which
// settles once the worker's ready signal arrives. Operations requested after
// Initialize queue behind the handshake. There is no timeout: a worker that
// never signals keeps the lane blocked until Close.
func (b *Bridge) Initialize() *lane.Future[struct{}] {
	b.mu.Lock()
	if b.initialized {
		b.mu.Unlock()
		return lane.Reject[struct{}](ErrAlreadyInitialized)
	}
	b.initialized = true
	b.mu.Unlock()

	ready := make(chan struct{})
	var readyErr error
	err := b.corr.Register(wire.ReadyID, func(r correlate.Reply) {
		if r.Kind == correlate.ReplyAborted {
			readyErr = r.Err()
		}
		close(ready)
	})
	if err != nil {
		b.resetInitialized()
		return lane.Reject[struct{}](err)
	}
	if err := b.ch.Start(b.receive, b.closed); err != nil {
		b.corr.Forget(wire.ReadyID)
		b.resetInitialized()
		return lane.Reject[struct{}](fmt.Errorf("start worker channel: %w", err))
	}

	return lane.Enqueue(b.queue, MainLane, func(ctx context.Context) (struct{}, error) {
		_, span := trace.StartSpan(ctx, trace.ScopeRequest, "handshake")
		defer span.End("")
		select {
		case <-ready:
			if readyErr != nil {
				return struct{}{}, fmt.Errorf("worker handshake: %w", readyErr)
			}
			b.logger.Debug("worker ready")
			return struct{}{}, nil
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}
	})
}

// Compile sends opts to the worker. On success the target artifact goes to
// the download sink, the output package is replaced with the worker's
// output files, and the diagnostics are reduced onto the editor model, all
// before the next queued operation starts.
func (b *Bridge) Compile(opts *project.CompileOptions) *lane.Future[*CompileResult] {
	if err := b.requireInit(); err != nil {
		return lane.Reject[*CompileResult](err)
	}
	return lane.Enqueue(b.queue, MainLane, func(ctx context.Context) (*CompileResult, error) {
		mark := b.timer.Begin("compile")
		res, err := b.compile(ctx, opts)
		b.timer.End(mark, err)
		return res, err
	})
}

// Typecheck sets the worker's options and fetches all diagnostics in a
// single turn, then reduces them onto the editor model.
func (b *Bridge) Typecheck(opts *project.CompileOptions) *lane.Future[[]diag.Diagnostic] {
	if err := b.requireInit(); err != nil {
		return lane.Reject[[]diag.Diagnostic](err)
	}
	return lane.Enqueue(b.queue, MainLane, func(ctx context.Context) ([]diag.Diagnostic, error) {
		mark := b.timer.Begin("typecheck")
		diags, err := b.typecheck(ctx, opts)
		b.timer.End(mark, err)
		return diags, err
	})
}

// Reset asks the worker to drop its state. It is fire-and-forget but still
// ordered behind everything queued before it; a failure is only logged.
func (b *Bridge) Reset() error {
	if err := b.requireInit(); err != nil {
		return err
	}
	return b.queue.Submit(MainLane, func(ctx context.Context) error {
		_, err := b.call(ctx, wire.OpReset, struct{}{})
		return err
	})
}

// CompileProject fetches options from the provider and compiles. A manifest
// failure is returned before anything is queued.
func (b *Bridge) CompileProject(ctx context.Context) (*CompileResult, error) {
	opts, err := b.options(ctx)
	if err != nil {
		return nil, err
	}
	return b.Compile(opts).Wait(ctx)
}

// TypecheckProject fetches options from the provider and typechecks.
func (b *Bridge) TypecheckProject(ctx context.Context) ([]diag.Diagnostic, error) {
	opts, err := b.options(ctx)
	if err != nil {
		return nil, err
	}
	return b.Typecheck(opts).Wait(ctx)
}

// Pending returns the number of requests awaiting a reply.
func (b *Bridge) Pending() int {
	return b.corr.Pending()
}

// Reducer returns the bridge's diagnostic reducer, holding the file snapshot
// of the last compile or typecheck so callers resolve locations the same way.
func (b *Bridge) Reducer() diagfmt.Reducer {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.reducer
	r.Sources = b.sources
	return r
}

// resetInitialized lets a failed Initialize be retried.
func (b *Bridge) resetInitialized() {
	b.mu.Lock()
	b.initialized = false
	b.mu.Unlock()
}

// Close closes the worker channel, failing pending requests, then stops a
// queue the bridge created itself.
func (b *Bridge) Close() error {
	err := b.ch.Close()
	if b.ownQueue {
		if qerr := b.queue.Close(); qerr != nil && err == nil {
			err = qerr
		}
	}
	return err
}

func (b *Bridge) requireInit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (b *Bridge) options(ctx context.Context) (*project.CompileOptions, error) {
	if b.provider == nil {
		return nil, ErrNoProvider
	}
	return b.provider.CompileOptions(ctx)
}

// receive routes an inbound response to its pending request.
func (b *Bridge) receive(resp wire.Response) {
	reply := correlate.FromResponse(b.ch.Codec(), resp)
	if !b.corr.Dispatch(resp.ID, reply) {
		b.logger.Debug("response for unknown request", zap.String("id", resp.ID))
	}
}

// closed fails every pending request once the channel stops delivering.
func (b *Bridge) closed(err error) {
	if !errors.Is(err, worker.ErrClosed) {
		err = fmt.Errorf("%w: %v", worker.ErrClosed, err)
	}
	if n := b.corr.FailAll(err); n > 0 {
		b.logger.Warn("worker channel closed with pending requests", zap.Int("pending", n), zap.Error(err))
	}
}

// call runs one correlated request. It must only be used inside a lane turn.
func (b *Bridge) call(ctx context.Context, op wire.Op, arg any) (wire.Raw, error) {
	id := strconv.FormatUint(b.nextID, 10)
	b.nextID++

	_, span := trace.StartSpan(ctx, trace.ScopeRequest, "request:"+string(op))
	span.Attr("id", id)

	replies := make(chan correlate.Reply, 1)
	if err := b.corr.Register(id, func(r correlate.Reply) { replies <- r }); err != nil {
		span.End("register failed")
		return nil, err
	}
	if err := b.ch.Send(id, op, arg); err != nil {
		b.corr.Forget(id)
		span.End("send failed")
		return nil, err
	}

	select {
	case r := <-replies:
		if err := r.Err(); err != nil {
			span.End(r.Kind.String())
			switch r.Kind {
			case correlate.ReplyMissing:
				b.logger.Warn("no worker response", zap.String("op", string(op)), zap.String("id", id))
			case correlate.ReplyFailed:
				b.logger.Warn("worker error", zap.String("op", string(op)), zap.String("id", id), zap.String("message", r.Message))
			}
			return nil, err
		}
		span.End("")
		return r.Payload, nil
	case <-ctx.Done():
		b.corr.Forget(id)
		span.End("canceled")
		return nil, ctx.Err()
	}
}
