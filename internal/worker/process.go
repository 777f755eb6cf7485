package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// exitGrace is how long Close waits for the worker to exit after its stdin
// is closed before killing it.
const exitGrace = 2 * time.Second

// Command describes a worker process to spawn.
type Command struct {
	Path   string
	Args   []string
	Dir    string
	Env    []string
	Stderr io.Writer // defaults to os.Stderr
}

// Process is a Transport speaking framed messages over a child process's
// stdin and stdout.
type Process struct {
	*Stream
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *io.PipeWriter

	waitOnce sync.Once
	waitDone chan struct{}
	waitErr  error
}

// Spawn starts the worker process.
func Spawn(ctx context.Context, c Command) (*Process, error) {
	if c.Path == "" {
		return nil, errors.New("spawn worker: empty command")
	}
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("spawn worker: %w", err)
	}
	// stdout goes through an io.Pipe so Wait finishes copying before the
	// reader sees EOF
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("spawn worker %s: %w", c.Path, err)
	}
	p := &Process{
		Stream:   NewStream(pr, stdin),
		cmd:      cmd,
		stdin:    stdin,
		stdout:   pw,
		waitDone: make(chan struct{}),
	}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.waitDone)
		_ = p.stdout.Close()
	})
}

// Pid returns the worker's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// ReadFrame reads one frame. When the worker's stdout ends, the error
// carries the process exit status if it failed.
func (p *Process) ReadFrame() ([]byte, error) {
	data, err := p.Stream.ReadFrame()
	if err == nil {
		return data, nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		<-p.waitDone
		if p.waitErr != nil {
			return nil, fmt.Errorf("worker exited: %w", p.waitErr)
		}
		return nil, io.EOF
	}
	return nil, err
}

// Close closes the worker's stdin and waits for it to exit, killing it if it
// does not exit within a short grace period.
func (p *Process) Close() error {
	_ = p.stdin.Close()
	select {
	case <-p.waitDone:
	case <-time.After(exitGrace):
		_ = p.cmd.Process.Kill()
		<-p.waitDone
	}
	var exitErr *exec.ExitError
	if p.waitErr != nil && !errors.As(p.waitErr, &exitErr) {
		return p.waitErr
	}
	return nil
}
