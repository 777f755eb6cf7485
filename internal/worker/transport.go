// Package worker carries framed messages between the editor and an isolated
// compiler worker.
//
// The editor side wraps a Transport in a Conn; the worker side runs Serve
// over its own Transport. Transports exist for in-process pipes, arbitrary
// byte streams, and spawned worker processes.
package worker

import (
	"bufio"
	"errors"
	"io"
	"sync"

	"kside/internal/wire"
)

// ErrClosed is returned by sends on a closed channel and carried by the
// error that fails requests still pending when the channel closes.
var ErrClosed = errors.New("worker channel closed")

// Transport moves whole frames. ReadFrame returns io.EOF once the peer is
// gone. WriteFrame must be safe for concurrent use.
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
	Close() error
}

// Stream is a Transport over a byte stream using Content-Length framing.
type Stream struct {
	in      *bufio.Reader
	out     *bufio.Writer
	wmu     sync.Mutex
	closers []io.Closer
	once    sync.Once
	err     error
}

// NewStream frames messages over r and w. Close closes closers in order.
func NewStream(r io.Reader, w io.Writer, closers ...io.Closer) *Stream {
	return &Stream{
		in:      bufio.NewReader(r),
		out:     bufio.NewWriter(w),
		closers: closers,
	}
}

// ReadFrame reads one frame.
func (s *Stream) ReadFrame() ([]byte, error) {
	return wire.ReadFrame(s.in)
}

// WriteFrame writes and flushes one frame.
func (s *Stream) WriteFrame(payload []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := wire.WriteFrame(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

// Close closes the underlying closers once.
func (s *Stream) Close() error {
	s.once.Do(func() {
		for _, c := range s.closers {
			if err := c.Close(); err != nil && s.err == nil {
				s.err = err
			}
		}
	})
	return s.err
}
