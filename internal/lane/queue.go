// Package lane serializes operations on named lanes.
//
// Operations enqueued on the same lane run one at a time in submission
// order; each runs to completion, including any waiting it does, before
// the next starts. Distinct lanes run concurrently, optionally bounded by
// a maximum number of busy lanes. A failing or panicking operation settles
// only its own future.
package lane

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"kside/internal/trace"
)

var (
	// ErrClosed is returned for operations enqueued on, or still queued in,
	// a closed Queue.
	ErrClosed = errors.New("lane queue closed")
	// ErrPanic wraps a value recovered from a panicking operation.
	ErrPanic = errors.New("lane operation panicked")
)

type item struct {
	seq   uint64
	run   func(ctx context.Context)
	abort func(err error)
}

type laneState struct {
	name    string
	items   []item
	running bool
	seq     uint64
}

// Queue owns a set of lanes.
type Queue struct {
	mu     sync.Mutex
	lanes  map[string]*laneState
	closed bool

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

type config struct {
	ctx      context.Context
	maxLanes int64
	logger   *zap.Logger
}

// Option configures a Queue.
type Option func(*config)

// WithContext sets the base context of every operation. Its tracer is used
// for lane spans.
func WithContext(ctx context.Context) Option {
	return func(c *config) { c.ctx = ctx }
}

// WithMaxLanes bounds how many lanes may run an operation at the same time.
// Zero or less means unbounded.
func WithMaxLanes(n int) Option {
	return func(c *config) { c.maxLanes = int64(n) }
}

// WithLogger sets the logger used for fire-and-forget failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New creates an empty Queue.
func New(opts ...Option) *Queue {
	cfg := config{ctx: context.Background()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(cfg.ctx)
	q := &Queue{
		lanes:  make(map[string]*laneState),
		ctx:    ctx,
		cancel: cancel,
		logger: cfg.logger,
	}
	if cfg.maxLanes > 0 {
		q.sem = semaphore.NewWeighted(cfg.maxLanes)
	}
	return q
}

// Enqueue appends op to lane and returns a future settled with op's outcome.
func Enqueue[T any](q *Queue, lane string, op func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	var zero T
	err := q.push(lane,
		func(ctx context.Context) {
			v, err := invoke(ctx, q.logger, lane, op)
			f.resolve(v, err)
		},
		func(err error) { f.resolve(zero, err) },
	)
	if err != nil {
		f.resolve(zero, err)
	}
	return f
}

// Submit appends a fire-and-forget op to lane. Its failure is logged, not
// returned; the returned error only reports a closed queue.
func (q *Queue) Submit(lane string, op func(ctx context.Context) error) error {
	return q.push(lane,
		func(ctx context.Context) {
			_, err := invoke(ctx, q.logger, lane, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, op(ctx)
			})
			if err != nil {
				q.logger.Warn("lane operation failed", zap.String("lane", lane), zap.Error(err))
			}
		},
		func(err error) {
			q.logger.Debug("lane operation dropped", zap.String("lane", lane), zap.Error(err))
		},
	)
}

// Len returns the number of operations waiting on lane, excluding the one
// currently running.
func (q *Queue) Len(lane string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[lane]; ok {
		return len(l.items)
	}
	return 0
}

// Close rejects new operations, fails queued ones with ErrClosed and cancels
// the context of running ones. It waits for running operations to return.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	var dropped []item
	for _, l := range q.lanes {
		dropped = append(dropped, l.items...)
		l.items = nil
	}
	q.mu.Unlock()

	q.cancel()
	for _, it := range dropped {
		it.abort(ErrClosed)
	}
	q.wg.Wait()
	return nil
}

func (q *Queue) push(name string, run func(context.Context), abort func(error)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("enqueue on %q: %w", name, ErrClosed)
	}
	l, ok := q.lanes[name]
	if !ok {
		l = &laneState{name: name}
		q.lanes[name] = l
	}
	l.seq++
	l.items = append(l.items, item{seq: l.seq, run: run, abort: abort})
	if !l.running {
		l.running = true
		q.wg.Add(1)
		go q.drain(l)
	}
	return nil
}

// drain runs l's operations until the lane is empty. At most one drain
// goroutine exists per lane.
func (q *Queue) drain(l *laneState) {
	defer q.wg.Done()

	if q.sem != nil {
		if err := q.sem.Acquire(q.ctx, 1); err != nil {
			q.mu.Lock()
			items := l.items
			l.items = nil
			l.running = false
			q.mu.Unlock()
			for _, it := range items {
				it.abort(ErrClosed)
			}
			return
		}
		defer q.sem.Release(1)
	}

	for {
		q.mu.Lock()
		if len(l.items) == 0 {
			l.running = false
			q.mu.Unlock()
			return
		}
		it := l.items[0]
		l.items[0] = item{}
		l.items = l.items[1:]
		q.mu.Unlock()

		ctx, span := trace.StartSpan(q.ctx, trace.ScopeLane, "lane:"+l.name)
		span.Attr("seq", strconv.FormatUint(it.seq, 10))
		it.run(ctx)
		span.End("")
	}
}

func invoke[T any](ctx context.Context, logger *zap.Logger, lane string, op func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("lane operation panicked",
				zap.String("lane", lane),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			var zero T
			v, err = zero, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return op(ctx)
}
