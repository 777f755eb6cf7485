package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"kside/internal/wire"
)

type echoArg struct {
	Text string `json:"text" msgpack:"text"`
}

type echoResult struct {
	Text string `json:"text" msgpack:"text"`
}

func echoService() Service {
	return ServiceFunc(func(ctx context.Context, req Request) (any, error) {
		switch req.Op {
		case "echo":
			var arg echoArg
			if err := req.Decode(&arg); err != nil {
				return nil, err
			}
			return echoResult{Text: arg.Text}, nil
		case "fail":
			return nil, errors.New("worker says no")
		case "nothing":
			return nil, nil
		case "panic":
			panic("kaboom")
		default:
			return nil, fmt.Errorf("unknown op %q", req.Op)
		}
	})
}

// client collects responses from a Conn.
type client struct {
	conn    *Conn
	mu      sync.Mutex
	got     map[string]wire.Response
	arrived chan string
	closed  chan error
}

func newClient(t *testing.T, tr Transport, codec wire.Codec) *client {
	t.Helper()
	c := &client{
		conn:    NewConn(tr, codec),
		got:     make(map[string]wire.Response),
		arrived: make(chan string, 16),
		closed:  make(chan error, 1),
	}
	err := c.conn.Start(func(resp wire.Response) {
		c.mu.Lock()
		c.got[resp.ID] = resp
		c.mu.Unlock()
		c.arrived <- resp.ID
	}, func(err error) { c.closed <- err })
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return c
}

func (c *client) await(t *testing.T, id string) wire.Response {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		resp, ok := c.got[id]
		c.mu.Unlock()
		if ok {
			return resp
		}
		select {
		case <-c.arrived:
		case <-deadline:
			t.Fatalf("timed out waiting for response %q", id)
		}
	}
}

func startPipeWorker(t *testing.T, codec wire.Codec) (*client, chan error) {
	t.Helper()
	editor, w := Pipe()
	served := make(chan error, 1)
	go func() { served <- Serve(context.Background(), w, codec, echoService()) }()
	return newClient(t, editor, codec), served
}

func TestServeReadyFirst(t *testing.T) {
	for _, codec := range []wire.Codec{wire.JSON, wire.Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			c, _ := startPipeWorker(t, codec)
			defer c.conn.Close()

			ready := c.await(t, wire.ReadyID)
			if ready.Result != nil {
				t.Fatalf("ready must carry no result, got %q", ready.Result)
			}
			if err := c.conn.Send("0", "echo", echoArg{Text: "hi"}); err != nil {
				t.Fatalf("send: %v", err)
			}
			resp := c.await(t, "0")
			var res echoResult
			if err := wire.Decode(codec, resp.Result, &res); err != nil || res.Text != "hi" {
				t.Fatalf("echo = %+v, %v", res, err)
			}
		})
	}
}

func TestServeErrorsBecomeErrorMessage(t *testing.T) {
	c, _ := startPipeWorker(t, wire.JSON)
	defer c.conn.Close()
	c.await(t, wire.ReadyID)

	tests := []struct {
		id, op string
		want   string
	}{
		{"1", "fail", "worker says no"},
		{"2", "panic", "internal error: kaboom"},
		{"3", "bogus", `unknown op "bogus"`},
	}
	for _, tt := range tests {
		if err := c.conn.Send(tt.id, wire.Op(tt.op), struct{}{}); err != nil {
			t.Fatalf("send %s: %v", tt.op, err)
		}
	}
	for _, tt := range tests {
		resp := c.await(t, tt.id)
		var probe wire.ErrorResult
		if err := wire.Decode(wire.JSON, resp.Result, &probe); err != nil {
			t.Fatalf("%s: decode: %v", tt.op, err)
		}
		if probe.ErrorMessage != tt.want {
			t.Errorf("%s: errorMessage = %q, want %q", tt.op, probe.ErrorMessage, tt.want)
		}
	}
}

func TestServeNilResultIsEmptyObject(t *testing.T) {
	c, _ := startPipeWorker(t, wire.JSON)
	defer c.conn.Close()
	c.await(t, wire.ReadyID)

	if err := c.conn.Send("5", "nothing", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	resp := c.await(t, "5")
	if string(resp.Result) != "{}" {
		t.Fatalf("result = %q, want {}", resp.Result)
	}
}

func TestConnDropsMalformedFrames(t *testing.T) {
	editor, w := Pipe()
	c := newClient(t, editor, wire.JSON)
	defer c.conn.Close()

	if err := w.WriteFrame([]byte("not json")); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame([]byte(`{"id":"7","result":{}}`)); err != nil {
		t.Fatal(err)
	}
	if resp := c.await(t, "7"); string(resp.Result) != "{}" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestConnClosedWhenWorkerGoes(t *testing.T) {
	editor, w := Pipe()
	c := newClient(t, editor, wire.JSON)

	_ = w.Close()
	select {
	case err := <-c.closed:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("closed reason = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("closed callback never fired")
	}
	if err := c.conn.Send("0", "echo", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close: %v", err)
	}
	if err := c.conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestServeStopsOnEOF(t *testing.T) {
	editor, w := Pipe()
	done := make(chan error, 1)
	go func() { done <- Serve(context.Background(), w, wire.JSON, echoService()) }()
	if _, err := editor.ReadFrame(); err != nil {
		t.Fatalf("read ready: %v", err)
	}
	_ = editor.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve = %v, want nil on EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestServeStopsOnContext(t *testing.T) {
	_, w := Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, w, wire.JSON, echoService()) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestStreamTransport(t *testing.T) {
	ar, aw := io.Pipe()
	br, bw := io.Pipe()
	editor := NewStream(br, aw, aw, br)
	w := NewStream(ar, bw, bw, ar)

	go func() { _ = Serve(context.Background(), w, wire.Msgpack, echoService()) }()
	c := newClient(t, editor, wire.Msgpack)
	defer c.conn.Close()

	c.await(t, wire.ReadyID)
	if err := c.conn.Send("0", "echo", echoArg{Text: "framed"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	var res echoResult
	if err := wire.Decode(wire.Msgpack, c.await(t, "0").Result, &res); err != nil || res.Text != "framed" {
		t.Fatalf("echo = %+v, %v", res, err)
	}
}

const helperEnv = "KSIDE_WORKER_HELPER"

// TestHelperWorker is not a real test: it is the child process spawned by
// TestProcessTransport.
func TestHelperWorker(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	err := Serve(context.Background(), NewStream(os.Stdin, os.Stdout), wire.JSON, echoService())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func TestProcessTransport(t *testing.T) {
	var stderr strings.Builder
	p, err := Spawn(context.Background(), Command{
		Path:   os.Args[0],
		Args:   []string{"-test.run=^TestHelperWorker$"},
		Env:    []string{helperEnv + "=1"},
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	c := newClient(t, p, wire.JSON)
	c.await(t, wire.ReadyID)
	if err := c.conn.Send("0", "echo", echoArg{Text: "child"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	var res echoResult
	if err := wire.Decode(wire.JSON, c.await(t, "0").Result, &res); err != nil || res.Text != "child" {
		t.Fatalf("echo = %+v, %v (stderr %q)", res, err, stderr.String())
	}
	if err := c.conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-c.closed:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("closed reason = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("closed callback never fired")
	}
}

func TestSpawnEmptyCommand(t *testing.T) {
	if _, err := Spawn(context.Background(), Command{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}
