package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kside/internal/project"
	"kside/internal/wire"
	"kside/internal/worker"
	"kside/internal/workspace"
)

const waitTimeout = 2 * time.Second

// fakeWorker is the worker end of a pipe driven by the test.
type fakeWorker struct {
	t     *testing.T
	tr    worker.Transport
	codec wire.Codec
	reqs  chan wire.Request
}

func newFakeWorker(t *testing.T) (*fakeWorker, worker.Transport) {
	t.Helper()
	editor, w := worker.Pipe()
	f := &fakeWorker{t: t, tr: w, codec: wire.JSON, reqs: make(chan wire.Request, 16)}
	go func() {
		for {
			data, err := w.ReadFrame()
			if err != nil {
				close(f.reqs)
				return
			}
			req, err := f.codec.DecodeRequest(data)
			if err != nil {
				t.Errorf("decode request: %v", err)
				continue
			}
			f.reqs <- req
		}
	}()
	return f, editor
}

func (f *fakeWorker) send(payload []byte, err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("encode: %v", err)
	}
	if err := f.tr.WriteFrame(payload); err != nil {
		f.t.Fatalf("write frame: %v", err)
	}
}

func (f *fakeWorker) ready() {
	f.t.Helper()
	f.send(f.codec.EncodeReady())
}

func (f *fakeWorker) reply(id string, result any) {
	f.t.Helper()
	f.send(f.codec.EncodeResponse(id, result))
}

func (f *fakeWorker) next() wire.Request {
	f.t.Helper()
	select {
	case req, ok := <-f.reqs:
		if !ok {
			f.t.Fatal("worker transport closed")
		}
		return req
	case <-time.After(waitTimeout):
		f.t.Fatal("timed out waiting for a request")
	}
	return wire.Request{}
}

func (f *fakeWorker) expectNone(d time.Duration) {
	f.t.Helper()
	select {
	case req, ok := <-f.reqs:
		if ok {
			f.t.Fatalf("unexpected request %s %s", req.ID, req.Op)
		}
	case <-time.After(d):
	}
}

// newTestBridge wires a bridge to a fake worker over a pipe.
func newTestBridge(t *testing.T, ed *workspace.Editor, opts ...Option) (*Bridge, *fakeWorker) {
	t.Helper()
	f, editor := newFakeWorker(t)
	conn := worker.NewConn(editor, wire.JSON)
	b := New(conn, ed, opts...)
	t.Cleanup(func() { _ = b.Close() })
	return b, f
}

// initialize performs the handshake against the fake worker.
func initialize(t *testing.T, b *Bridge, f *fakeWorker) {
	t.Helper()
	fut := b.Initialize()
	f.ready()
	if err := fut.Err(testContext(t)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}

type download struct {
	content, filename, mimeType string
}

type recordingSink struct {
	mu    sync.Mutex
	files []download
}

func (s *recordingSink) DownloadText(content, filename, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, download{content, filename, mimeType})
	return nil
}

func (s *recordingSink) downloads() []download {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]download(nil), s.files...)
}

type providerFunc func(ctx context.Context) (*project.CompileOptions, error)

func (f providerFunc) CompileOptions(ctx context.Context) (*project.CompileOptions, error) {
	return f(ctx)
}

// failFirstStart refuses the first Start, like a worker that could not be
// spawned, then defers to the wrapped channel.
type failFirstStart struct {
	worker.Channel
	failed atomic.Bool
}

func (c *failFirstStart) Start(recv func(wire.Response), closed func(error)) error {
	if c.failed.CompareAndSwap(false, true) {
		return errors.New("spawn worker: no such file")
	}
	return c.Channel.Start(recv, closed)
}
