// Package correlate matches asynchronous worker replies to the requests
// waiting for them.
//
// Replies arrive in any order. Each pending id is resolved at most once:
// Dispatch removes the entry before invoking its resolver, so a repeated or
// unknown id is a silent no-op.
package correlate

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicateID = errors.New("correlation id already pending")
	ErrClosed      = errors.New("correlator closed")
)

// Resolver receives the reply for one pending request.
type Resolver func(Reply)

// Correlator is the table of pending requests.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]Resolver
	closed  error
}

// New creates an empty Correlator.
func New() *Correlator {
	return &Correlator{pending: make(map[string]Resolver)}
}

// Register records r as the resolver for id.
func (c *Correlator) Register(id string, r Resolver) error {
	if r == nil {
		return fmt.Errorf("register %q: nil resolver", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed != nil {
		return fmt.Errorf("register %q: %w", id, c.closed)
	}
	if _, ok := c.pending[id]; ok {
		return fmt.Errorf("register %q: %w", id, ErrDuplicateID)
	}
	c.pending[id] = r
	return nil
}

// Dispatch removes the resolver registered for id and invokes it with reply.
// It reports whether a resolver was found. The resolver runs outside the lock.
func (c *Correlator) Dispatch(id string, reply Reply) bool {
	c.mu.Lock()
	r, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	r(reply)
	return true
}

// Forget drops id without resolving it. Used when a send fails after
// registration.
func (c *Correlator) Forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// FailAll aborts every pending request with err and refuses later
// registrations. It returns the number of requests aborted.
func (c *Correlator) FailAll(err error) int {
	if err == nil {
		err = ErrClosed
	}
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]Resolver)
	if c.closed == nil {
		c.closed = err
	}
	c.mu.Unlock()

	for _, r := range pending {
		r(Aborted(err))
	}
	return len(pending)
}

// Pending returns the number of unresolved requests.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
