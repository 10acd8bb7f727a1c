package visualizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/born-ml/weightfusion/internal/network"
)

// DefaultFrameInterval is the redraw period while animating (60 Hz).
const DefaultFrameInterval = time.Second / 60

// State is a View's redraw mode.
type State int

// View states.
const (
	StateIdle      State = iota // no source
	StateStatic                 // source set, one frame per SetProps
	StateAnimating              // source set and active, ticker-driven frames
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStatic:
		return "static"
	case StateAnimating:
		return "animating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func stateFor(p Props) State {
	switch {
	case p.Source == nil:
		return StateIdle
	case p.Active:
		return StateAnimating
	default:
		return StateStatic
	}
}

// FrameSink receives every frame a View draws.
type FrameSink func(Frame)

// ViewOption configures a View.
type ViewOption func(*View)

// WithFrameInterval sets the redraw period while animating.
func WithFrameInterval(d time.Duration) ViewOption {
	return func(v *View) {
		if d > 0 {
			v.frameInterval = d
		}
	}
}

// WithActivationInterval sets how often the simulated activation frame is
// recomputed while animating.
func WithActivationInterval(d time.Duration) ViewOption {
	return func(v *View) {
		if d > 0 {
			v.activationInterval = d
		}
	}
}

// WithRenderer replaces the default renderer.
func WithRenderer(r *Renderer) ViewOption {
	return func(v *View) {
		v.renderer = r
	}
}

// View drives the drawing of one panel.
//
// Idle and Static views draw exactly once per SetProps, on the caller's
// goroutine. An Animating view owns a goroutine that redraws on every tick
// and runs the activation simulation; it is stopped when the view leaves
// Animating or is closed. SetProps is meant to be called from a single
// goroutine.
type View struct {
	renderer           *Renderer
	sink               FrameSink
	frameInterval      time.Duration
	activationInterval time.Duration

	mu     sync.Mutex
	props  Props
	state  State
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewView returns an Idle view delivering frames to sink.
func NewView(sink FrameSink, opts ...ViewOption) *View {
	v := &View{
		renderer:           NewRenderer(),
		sink:               sink,
		frameInterval:      DefaultFrameInterval,
		activationInterval: DefaultActivationInterval,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// State returns the current mode.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// SetProps applies new props and performs the transition they imply. It is
// a no-op after Close.
func (v *View) SetProps(p Props) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.props = p
	prev, next := v.state, stateFor(p)
	v.state = next

	var wait func()
	switch {
	case next == StateAnimating && prev != StateAnimating:
		v.startLocked()
	case next != StateAnimating && prev == StateAnimating:
		wait = v.stopLocked()
	}
	v.mu.Unlock()

	if wait != nil {
		wait()
	}
	if next != StateAnimating {
		v.sink(v.renderer.Render(p, nil))
	}
}

// Close stops any animation and waits for its goroutine. No frame is
// delivered after Close returns.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	var wait func()
	if v.state == StateAnimating {
		wait = v.stopLocked()
	}
	v.state = StateIdle
	v.mu.Unlock()

	if wait != nil {
		wait()
	}
}

func (v *View) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.done = make(chan struct{})
	go v.animate(ctx, v.done)
}

func (v *View) stopLocked() func() {
	cancel, done := v.cancel, v.done
	v.cancel, v.done = nil, nil
	cancel()
	return func() { <-done }
}

func (v *View) animate(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	sim := NewSimulatedActivation(network.Architecture)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sim.Run(ctx, v.activationInterval)
	}()
	defer wg.Wait()

	ticker := time.NewTicker(v.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		v.mu.Lock()
		p := v.props
		v.mu.Unlock()

		frame := v.renderer.Render(p, sim.Frame())
		if ctx.Err() != nil {
			return
		}
		v.sink(frame)
	}
}
