package trainer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/born-ml/weightfusion/internal/backend/cpu"
	"github.com/born-ml/weightfusion/internal/network"
)

// subscriberBuffer is the per-subscriber event backlog. Progress events
// beyond it are dropped for that subscriber; final events never are.
const subscriberBuffer = 64

// Controller is the entry point for a UI shell. It runs at most one session
// at a time and fans its events out to subscribers.
type Controller struct {
	compute *cpu.CPUBackend
	cfg     Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	training atomic.Bool

	mu      sync.Mutex
	session *Session
	err     error
	subs    map[int]chan Event
	nextSub int
}

// NewController creates a controller that builds sessions from cfg.
func NewController(compute *cpu.CPUBackend, cfg Config) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		compute: compute,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[int]chan Event),
	}
}

// StartSession closes the previous session, starts a new one and reports
// true. While a session is training it does nothing and reports false.
func (c *Controller) StartSession() bool {
	if !c.training.CompareAndSwap(false, true) {
		return false
	}
	if c.ctx.Err() != nil {
		c.training.Store(false)
		return false
	}

	s := NewSession(c.compute, c.cfg)

	c.mu.Lock()
	prev := c.session
	c.session = s
	c.err = nil
	c.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	events := Run(c.ctx, s, c.cfg)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		done := false
		for ev := range events {
			if ev.Done {
				done = true
				c.finish(ev.Err)
			}
			c.broadcast(ev)
		}
		if !done {
			// The final event is dropped when the controller is closed
			// while a progress event is still buffered.
			err := c.ctx.Err()
			c.finish(err)
			c.broadcast(Event{Done: true, Err: err})
		}
	}()
	return true
}

func (c *Controller) finish(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.training.Store(false)
}

// IsTraining reports whether a session is running.
func (c *Controller) IsTraining() bool {
	return c.training.Load()
}

// Session returns the current session, or nil before the first start.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Err returns the error that ended the last session, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Histories returns the current session's histories. Before the first
// session every history is empty.
func (c *Controller) Histories() map[Role][]EpochStat {
	if s := c.Session(); s != nil {
		return s.Histories()
	}
	out := make(map[Role][]EpochStat, len(Roles))
	for _, r := range Roles {
		out[r] = nil
	}
	return out
}

// Snapshot returns the latest published parameters for role, or nil.
func (c *Controller) Snapshot(role Role) *network.Snapshot {
	if s := c.Session(); s != nil {
		return s.Snapshot(role)
	}
	return nil
}

// Subscribe returns a live stream of events from every session started
// after the call. The cancel function ends the subscription and closes the
// channel.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Controller) broadcast(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range c.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		if !ev.Done {
			continue
		}
		// Make room for the final event by dropping the oldest.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close stops the running session at its next epoch boundary, waits for it
// and releases the current session's networks.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		s.Close()
	}
}
