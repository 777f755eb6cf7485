package worker

import (
	"io"
	"sync"
)

const pipeBuffer = 16

type pipeEnd struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

// Pipe returns two connected in-process transports. Closing either end
// closes both.
func Pipe() (editor, worker Transport) {
	a := make(chan []byte, pipeBuffer)
	b := make(chan []byte, pipeBuffer)
	done := make(chan struct{})
	once := &sync.Once{}
	editor = &pipeEnd{in: a, out: b, done: done, once: once}
	worker = &pipeEnd{in: b, out: a, done: done, once: once}
	return editor, worker
}

func (p *pipeEnd) ReadFrame() ([]byte, error) {
	// frames already delivered win over a concurrent close
	select {
	case msg := <-p.in:
		return msg, nil
	default:
	}
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		return nil, io.EOF
	}
}

func (p *pipeEnd) WriteFrame(payload []byte) error {
	msg := append([]byte(nil), payload...)
	select {
	case <-p.done:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return io.ErrClosedPipe
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
