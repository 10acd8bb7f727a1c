package visualizer

import (
	"context"
	"image/color"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/weightfusion/internal/network"
)

// testSnapshot builds a 2→16→1 snapshot whose weights are given by f.
func testSnapshot(f func(layer, i, j int) float32) *network.Snapshot {
	snap := &network.Snapshot{}
	counts := network.Architecture
	for k := 0; k+1 < len(counts); k++ {
		in, out := counts[k], counts[k+1]
		l := network.LayerParams{In: in, Out: out, Weights: make([]float32, in*out), Bias: make([]float32, out)}
		for i := 0; i < in; i++ {
			for j := 0; j < out; j++ {
				l.Weights[i*out+j] = f(k, i, j)
			}
		}
		snap.Layers = append(snap.Layers, l)
	}
	return snap
}

func constSource(s *network.Snapshot) Source {
	return func() *network.Snapshot { return s }
}

func TestLayout(t *testing.T) {
	cols := Layout([]int{2, 16, 1}, 480, 320)
	require.Len(t, cols, 3)
	require.Len(t, cols[0], 2)
	require.Len(t, cols[1], 16)
	require.Len(t, cols[2], 1)

	assert.InDelta(t, Padding, cols[0][0].X, 1e-9)
	assert.InDelta(t, 240, cols[1][0].X, 1e-9)
	assert.InDelta(t, 480-Padding, cols[2][0].X, 1e-9)

	assert.InDelta(t, 320.0/3, cols[0][0].Y, 1e-9)
	assert.InDelta(t, 640.0/3, cols[0][1].Y, 1e-9)
	assert.InDelta(t, 160, cols[2][0].Y, 1e-9)
	for i, p := range cols[1] {
		assert.InDelta(t, float64(i+1)*320/17, p.Y, 1e-9)
	}
}

func TestEdgeBudget(t *testing.T) {
	tests := []struct {
		src, tgt, want int
	}{
		{2, 16, 10}, // ceil(9.6)
		{16, 1, 5},  // ceil(4.8)
		{2, 2, 2},   // ceil(1.2) < min(2,2)
		{3, 3, 3},   // ceil(2.7)
		{1, 1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EdgeBudget(tt.src, tt.tgt), "%dx%d", tt.src, tt.tgt)
	}
}

func TestSelectEdges_TakesBudgetStrongestFirst(t *testing.T) {
	// Magnitudes grow with source-major index.
	snap := testSnapshot(func(_, i, j int) float32 { return 1 + float32(i*16+j)*0.07 })
	edges := SelectEdges(snap.Layers[0])

	require.Len(t, edges, 10)
	for i := 1; i < len(edges); i++ {
		assert.GreaterOrEqual(t, edges[i-1].Magnitude(), edges[i].Magnitude())
	}
	assert.Equal(t, 1, edges[0].From)
	assert.Equal(t, 15, edges[0].To)
}

func TestSelectEdges_LongTail(t *testing.T) {
	// Three strong edges and a tail of tiny ones. Ranking is by magnitude, so
	// the walk ends at the budget before any edge can fall below half the
	// budget-th magnitude.
	layer := network.LayerParams{In: 2, Out: 16, Weights: make([]float32, 32), Bias: make([]float32, 16)}
	layer.Weights[0] = 2
	layer.Weights[5] = -1.5
	layer.Weights[20] = 1
	for i := 6; i < 20; i++ {
		layer.Weights[i] = 0.001
	}

	edges := SelectEdges(layer)
	require.Len(t, edges, 10)
	assert.Equal(t, float32(2), edges[0].Weight)
	assert.Equal(t, float32(-1.5), edges[1].Weight)
	assert.True(t, edges[1].Negative())
	assert.Equal(t, float32(1), edges[2].Weight)
	for _, e := range edges[3:] {
		assert.Equal(t, float32(0.001), e.Weight)
	}
}

func TestSelectEdges_AllZero(t *testing.T) {
	layer := network.LayerParams{In: 16, Out: 1, Weights: make([]float32, 16), Bias: make([]float32, 1)}
	edges := SelectEdges(layer)
	require.Len(t, edges, 5)
	for i, e := range edges {
		assert.Equal(t, i, e.From)
		assert.Zero(t, e.Visual)
	}
}

func TestSelectEdges_VisualWeight(t *testing.T) {
	layer := network.LayerParams{In: 1, Out: 2, Weights: []float32{0.5, -3}, Bias: make([]float32, 2)}
	edges := SelectEdges(layer)
	require.Len(t, edges, 1)
	assert.Equal(t, float32(-3), edges[0].Weight)
	assert.InDelta(t, 1.0, edges[0].Visual, 1e-9)

	layer.Weights = []float32{0.5, 0.1}
	edges = SelectEdges(layer)
	require.Len(t, edges, 1)
	assert.InDelta(t, 0.25, edges[0].Visual, 1e-9)
}

func TestSelectEdges_TiesKeepSourceOrder(t *testing.T) {
	layer := network.LayerParams{In: 2, Out: 2, Weights: []float32{1, 1, 1, 1}, Bias: make([]float32, 2)}
	edges := SelectEdges(layer)
	require.Len(t, edges, 2)
	assert.Equal(t, [2]int{0, 0}, [2]int{edges[0].From, edges[0].To})
	assert.Equal(t, [2]int{0, 1}, [2]int{edges[1].From, edges[1].To})
}

func TestActivationAt(t *testing.T) {
	assert.InDelta(t, 0.3, ActivationAt(0, 0, 0), 1e-12)
	assert.InDelta(t, 0.3+0.4*math.Sin(0.3+0.2), ActivationAt(0, 1, 2), 1e-12)
	assert.InDelta(t, 0.3+0.4*math.Sin(1.5), ActivationAt(3, 0, 0), 1e-12)
	// Periodic in t with period 4π.
	assert.InDelta(t, ActivationAt(1, 1, 3), ActivationAt(1+4*math.Pi, 1, 3), 1e-9)

	for ts := 0.0; ts < 20; ts += 0.37 {
		for l := 0; l < 3; l++ {
			for n := 0; n < 16; n++ {
				a := ActivationAt(ts, l, n)
				assert.GreaterOrEqual(t, a, 0.0)
				assert.LessOrEqual(t, a, 1.0)
			}
		}
	}
}

func TestSimulatedActivation(t *testing.T) {
	sim := NewSimulatedActivation(network.Architecture)
	frame := sim.Frame()
	require.Len(t, frame, 3)
	assert.Len(t, frame[1], 16)

	at := time.Unix(10, 0)
	sim.Update(at)
	assert.InDelta(t, ActivationAt(10, 1, 4), sim.Frame()[1][4], 1e-9)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx, time.Millisecond)
		close(done)
	}()
	assert.Eventually(t, func() bool {
		return sim.Frame()[0][0] != frame[0][0] || sim.Frame()[1][4] != ActivationAt(10, 1, 4)
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestRender_NoSource(t *testing.T) {
	r := NewRenderer()
	for _, src := range []Source{nil, constSource(nil)} {
		f := r.Render(Props{Source: src, Width: 120, Height: 80}, nil)
		assert.True(t, f.Placeholder)
		assert.Zero(t, f.Nodes)
		assert.Zero(t, f.Connections)
		assert.NoError(t, f.Fault)
		require.NotNil(t, f.Image)
		assert.Equal(t, 120, f.Image.Bounds().Dx())
	}
}

func TestRender_Network(t *testing.T) {
	snap := testSnapshot(func(k, i, j int) float32 { return float32(k+i+j) * 0.1 })
	f := NewRenderer().Render(Props{Source: constSource(snap), Width: 480, Height: 320}, nil)

	require.NoError(t, f.Fault)
	assert.False(t, f.Placeholder)
	assert.Equal(t, 19, f.Nodes)
	want := len(SelectEdges(snap.Layers[0])) + len(SelectEdges(snap.Layers[1]))
	assert.Equal(t, want, f.Connections)
	assert.LessOrEqual(t, f.Connections, 15)

	// Something other than the background was drawn at a node centre.
	p := Layout(network.Architecture, 480, 320)[1][0]
	assert.NotEqual(t, toNRGBA(BackgroundColor), toNRGBA(f.Image.At(int(p.X), int(p.Y))))
}

func TestRender_ActiveUsesActivation(t *testing.T) {
	snap := testSnapshot(func(int, int, int) float32 { return 0 })
	theme := color.NRGBA{R: 0x20, G: 0x40, B: 0x80, A: 0xff}
	props := Props{Source: constSource(snap), Color: theme, Width: 200, Height: 200, Active: true}
	p := Layout(network.Architecture, 200, 200)[2][0]

	dim := NewRenderer().Render(props, [][]float64{{0, 0}, make([]float64, 16), {0}})
	bright := NewRenderer().Render(props, [][]float64{{1, 1}, make([]float64, 16), {1}})

	d := toNRGBA(dim.Image.At(int(p.X), int(p.Y)))
	b := toNRGBA(bright.Image.At(int(p.X), int(p.Y)))
	assert.Greater(t, b.R, d.R)
	assert.Greater(t, b.G, d.G)
}

func TestRender_FaultIsContained(t *testing.T) {
	r := NewRenderer()

	bad := &network.Snapshot{Layers: []network.LayerParams{{In: 2, Out: 16, Weights: make([]float32, 3)}}}
	f := r.Render(Props{Source: constSource(bad), Width: 100, Height: 100}, nil)
	assert.ErrorIs(t, f.Fault, ErrRenderFault)
	assert.True(t, f.Placeholder)
	assert.Zero(t, f.Connections)

	panicky := func() *network.Snapshot { panic("boom") }
	f = r.Render(Props{Source: panicky, Width: 100, Height: 100}, nil)
	assert.ErrorIs(t, f.Fault, ErrRenderFault)
	assert.Contains(t, f.Fault.Error(), "boom")
	require.NotNil(t, f.Image)

	f = r.Render(Props{Source: constSource(testSnapshot(func(int, int, int) float32 { return 1 })), Width: 100, Height: 100}, nil)
	assert.NoError(t, f.Fault)
	assert.Equal(t, 19, f.Nodes)

	f = r.Render(Props{Width: 0, Height: 10}, nil)
	assert.ErrorIs(t, f.Fault, ErrRenderFault)
}

// frameLog collects frames from a View.
type frameLog struct {
	mu     sync.Mutex
	frames []Frame
}

func (l *frameLog) sink(f Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, f)
}

func (l *frameLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames)
}

func (l *frameLog) last() Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames[len(l.frames)-1]
}

func TestView_Transitions(t *testing.T) {
	var log frameLog
	v := NewView(log.sink, WithFrameInterval(2*time.Millisecond), WithActivationInterval(time.Millisecond))
	defer v.Close()

	assert.Equal(t, StateIdle, v.State())

	v.SetProps(Props{Width: 64, Height: 64})
	assert.Equal(t, StateIdle, v.State())
	require.Equal(t, 1, log.len())
	assert.True(t, log.last().Placeholder)

	src := constSource(testSnapshot(func(int, int, int) float32 { return 0.5 }))
	v.SetProps(Props{Source: src, Width: 64, Height: 64})
	assert.Equal(t, StateStatic, v.State())
	require.Equal(t, 2, log.len())
	assert.Equal(t, 19, log.last().Nodes)

	v.SetProps(Props{Source: src, Width: 64, Height: 64, Active: true})
	assert.Equal(t, StateAnimating, v.State())
	assert.Eventually(t, func() bool { return log.len() >= 6 }, 2*time.Second, time.Millisecond)

	v.SetProps(Props{Source: src, Width: 64, Height: 64})
	assert.Equal(t, StateStatic, v.State())
	n := log.len()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, log.len(), "static view must not keep drawing")
}

func TestView_CloseStopsFrames(t *testing.T) {
	var log frameLog
	v := NewView(log.sink, WithFrameInterval(time.Millisecond))

	src := constSource(testSnapshot(func(int, int, int) float32 { return 1 }))
	v.SetProps(Props{Source: src, Width: 32, Height: 32, Active: true})
	assert.Eventually(t, func() bool { return log.len() > 0 }, 2*time.Second, time.Millisecond)

	v.Close()
	v.Close()
	assert.Equal(t, StateIdle, v.State())

	n := log.len()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, log.len())

	v.SetProps(Props{Source: src, Width: 32, Height: 32})
	assert.Equal(t, n, log.len())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "static", StateStatic.String())
	assert.Equal(t, "animating", StateAnimating.String())
	assert.Equal(t, "State(7)", State(7).String())
}
