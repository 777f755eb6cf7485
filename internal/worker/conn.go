package worker

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kside/internal/logging"
	"kside/internal/wire"
)

// Channel is the editor's view of a worker: requests go out with Send,
// responses come back through the handler passed to Start, in any order.
type Channel interface {
	// Start begins delivering inbound responses to recv. closed is called
	// once when the channel stops delivering, with the reason.
	Start(recv func(wire.Response), closed func(error)) error
	Send(id string, op wire.Op, arg any) error
	Codec() wire.Codec
	Close() error
}

// Conn is a Channel over a Transport.
type Conn struct {
	t      Transport
	codec  wire.Codec
	logger *zap.Logger

	sendMu sync.Mutex

	mu      sync.Mutex
	started bool
	closed  bool
	closing bool

	g errgroup.Group
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithConnLogger sets the logger for dropped or malformed frames.
func WithConnLogger(l *zap.Logger) ConnOption {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConn wraps t. A nil codec means JSON.
func NewConn(t Transport, codec wire.Codec, opts ...ConnOption) *Conn {
	if codec == nil {
		codec = wire.JSON
	}
	c := &Conn{
		t:      t,
		codec:  codec,
		logger: logging.Named("channel"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Codec returns the codec used for payloads.
func (c *Conn) Codec() wire.Codec {
	return c.codec
}

// Start launches the read loop.
func (c *Conn) Start(recv func(wire.Response), closed func(error)) error {
	if recv == nil {
		return errors.New("start channel: nil handler")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.closing {
		return ErrClosed
	}
	if c.started {
		return errors.New("start channel: already started")
	}
	c.started = true
	c.g.Go(func() error { return c.readLoop(recv, closed) })
	return nil
}

func (c *Conn) readLoop(recv func(wire.Response), closed func(error)) error {
	for {
		data, err := c.t.ReadFrame()
		if err != nil {
			c.mu.Lock()
			c.closed = true
			closing := c.closing
			c.mu.Unlock()

			reason := err
			if closing || errors.Is(err, io.EOF) {
				reason = ErrClosed
				err = nil
			} else {
				c.logger.Warn("worker channel read failed", zap.Error(err))
			}
			if closed != nil {
				closed(reason)
			}
			return err
		}
		resp, err := c.codec.DecodeResponse(data)
		if err != nil {
			c.logger.Warn("dropping malformed worker frame", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}
		recv(resp)
	}
}

// Send encodes and writes one request.
func (c *Conn) Send(id string, op wire.Op, arg any) error {
	c.mu.Lock()
	done := c.closed || c.closing
	c.mu.Unlock()
	if done {
		return fmt.Errorf("send %s %q: %w", op, id, ErrClosed)
	}
	data, err := c.codec.EncodeRequest(id, op, arg)
	if err != nil {
		return fmt.Errorf("encode %s %q: %w", op, id, err)
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.t.WriteFrame(data); err != nil {
		return fmt.Errorf("send %s %q: %w", op, id, err)
	}
	return nil
}

// Close closes the transport and waits for the read loop to stop.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	started := c.started
	c.mu.Unlock()

	err := c.t.Close()
	if started {
		if werr := c.g.Wait(); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}
