package trace

import (
	"strconv"
	"sync"
	"time"
)

// Pulse emits a heartbeat event at a fixed interval until stopped. A trace
// where heartbeats keep arriving but a request span never ends points at a
// stalled worker rather than a stalled client.
type Pulse struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartPulse starts heartbeats on t every interval. pending, when non-nil,
// is sampled on each beat and reported as the "pending" attribute. It
// returns nil when t records nothing or interval is not positive; Stop on a
// nil Pulse is a no-op.
func StartPulse(t Tracer, interval time.Duration, pending func() int) *Pulse {
	if t == nil || !t.Wants(ScopeSession) || interval <= 0 {
		return nil
	}
	p := &Pulse{stop: make(chan struct{}), done: make(chan struct{})}
	go p.run(t, interval, pending)
	return p
}

func (p *Pulse) run(t Tracer, interval time.Duration, pending func() int) {
	defer close(p.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	gid := goid()
	for beat := 1; ; beat++ {
		select {
		case <-p.stop:
			return
		case now := <-ticker.C:
			ev := &Event{
				Time:   now,
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeSession,
				GID:    gid,
				Name:   "heartbeat",
				Detail: "#" + strconv.Itoa(beat),
			}
			if pending != nil {
				ev.Attrs = map[string]string{"pending": strconv.Itoa(pending())}
			}
			t.Emit(ev)
		}
	}
}

// Stop ends the heartbeats and waits for the goroutine to exit.
func (p *Pulse) Stop() {
	if p == nil {
		return
	}
	p.once.Do(func() { close(p.stop) })
	<-p.done
}
