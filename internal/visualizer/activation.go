package visualizer

import (
	"context"
	"math"
	"sync"
	"time"
)

// IdleActivation is the glow intensity of every node while not animating.
const IdleActivation = 0.5

// DefaultActivationInterval is how often SimulatedActivation recomputes.
const DefaultActivationInterval = 50 * time.Millisecond

// ActivationAt returns the simulated activity of node n in column layer at
// t seconds: a slow sine wave travelling across the columns, in [0,1].
//
// The value is decorative. It is not derived from the network's inputs or
// its training state.
func ActivationAt(t float64, layer, n int) float64 {
	phase := math.Mod(t*0.5+float64(layer)*0.3+float64(n)*0.1, 2*math.Pi)
	return clamp01(0.3 + 0.4*math.Sin(phase))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}

// SimulatedActivation holds the latest decorative activation frame for a
// fixed set of columns. Run refreshes it on its own ticker, independent of
// the draw cadence.
type SimulatedActivation struct {
	counts []int
	now    func() time.Time

	mu    sync.RWMutex
	frame [][]float64
}

// NewSimulatedActivation creates a frame for columns of the given sizes and
// computes its first values.
func NewSimulatedActivation(counts []int) *SimulatedActivation {
	s := &SimulatedActivation{
		counts: append([]int(nil), counts...),
		now:    time.Now,
	}
	s.Update(s.now())
	return s
}

// Update recomputes the frame for wall-clock time t.
func (s *SimulatedActivation) Update(t time.Time) {
	secs := float64(t.UnixNano()) / float64(time.Second)
	frame := make([][]float64, len(s.counts))
	for l, n := range s.counts {
		column := make([]float64, n)
		for i := range column {
			column[i] = ActivationAt(secs, l, i)
		}
		frame[l] = column
	}

	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
}

// Frame returns the latest frame. The result is replaced, never mutated, by
// later updates, so callers may keep it.
func (s *SimulatedActivation) Frame() [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Run updates the frame every interval until ctx is done.
func (s *SimulatedActivation) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultActivationInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.Update(t)
		}
	}
}
