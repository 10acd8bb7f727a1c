// Package network builds the fixed 2→16→1 regressor and drives its training.
//
// A Network owns its parameters, an Adam optimizer and a private gradient
// tape. It is not safe for concurrent training; Snapshot may be called from
// other goroutines.
package network

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/born-ml/weightfusion/internal/autodiff"
	"github.com/born-ml/weightfusion/internal/backend/cpu"
	"github.com/born-ml/weightfusion/internal/nn"
	"github.com/born-ml/weightfusion/internal/optim"
	"github.com/born-ml/weightfusion/internal/tensor"
)

// Fixed architecture.
const (
	InputDim  = 2
	HiddenDim = 16
	OutputDim = 1
)

// Architecture lists the node count of every column, input first.
var Architecture = []int{InputDim, HiddenDim, OutputDim}

// Backend is the differentiable backend every network computes on.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Tensor is a float32 tensor on Backend.
type Tensor = *tensor.Tensor[float32, Backend]

var (
	// ErrReleased is returned by every operation on a released network.
	ErrReleased = errors.New("network released")

	// ErrNumericInstability reports a non-finite loss or prediction.
	ErrNumericInstability = errors.New("numeric instability")
)

// Option configures a Network at construction.
type Option func(*options)

type options struct {
	lr  float32
	rng *rand.Rand
}

// WithLearningRate sets the Adam learning rate (default 0.001).
func WithLearningRate(lr float32) Option {
	return func(o *options) {
		o.lr = lr
	}
}

// WithRand draws initial weights from rng for reproducible runs.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// Network is a two-layer dense regressor: Linear(2,16) → ReLU → Linear(16,1),
// trained with Adam on mean squared error.
type Network struct {
	mu        sync.Mutex
	compute   *cpu.CPUBackend
	backend   Backend
	layers    []*nn.Linear[Backend]
	model     *nn.Sequential[Backend]
	loss      *nn.MSELoss[Backend]
	optimizer *optim.Adam[Backend]
	released  bool
}

// New creates a network with Xavier-uniform weights, zero biases and a fresh
// Adam optimizer. The network records gradients on its own tape over compute.
func New(compute *cpu.CPUBackend, opts ...Option) *Network {
	o := options{lr: optim.DefaultAdamConfig().LR}
	for _, opt := range opts {
		opt(&o)
	}

	backend := autodiff.New(compute)

	var initOpts []nn.LinearOption
	if o.rng != nil {
		initOpts = append(initOpts, nn.WithInitRand(o.rng))
	}
	hidden := nn.NewLinear(InputDim, HiddenDim, backend, initOpts...)
	output := nn.NewLinear(HiddenDim, OutputDim, backend, initOpts...)
	model := nn.NewSequential[Backend](hidden, nn.NewReLU[Backend](), output)

	cfg := optim.DefaultAdamConfig()
	cfg.LR = o.lr

	return &Network{
		compute:   compute,
		backend:   backend,
		layers:    []*nn.Linear[Backend]{hidden, output},
		model:     model,
		loss:      nn.NewMSELoss[Backend](),
		optimizer: optim.NewAdam(model.Parameters(), cfg, backend),
	}
}

// Compute returns the CPU backend the network runs on.
func (n *Network) Compute() *cpu.CPUBackend {
	return n.compute
}

// Backend returns the network's differentiable backend. Tensors created on
// it can be passed to FitEpoch and Predict.
func (n *Network) Backend() Backend {
	return n.backend
}

// Layers returns the dense layers in order.
func (n *Network) Layers() []*nn.Linear[Backend] {
	return n.layers
}

// Parameters returns (W1, b1, W2, b2). Weights are stored as [out, in].
func (n *Network) Parameters() []*nn.Parameter[Backend] {
	return n.model.Parameters()
}

// LearningRate returns the optimizer learning rate.
func (n *Network) LearningRate() float32 {
	return n.optimizer.GetLR()
}

// FitEpoch runs one pass over (x, y) in consecutive mini-batches of
// batchSize rows, taking one Adam step per batch. It returns the epoch loss:
// the mean of the batch losses weighted by batch size.
func (n *Network) FitEpoch(x, y Tensor, batchSize int) (loss float32, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	defer recoverInto("fit", &err)

	if n.released {
		return 0, ErrReleased
	}
	rows, err := checkData(x, y)
	if err != nil {
		return 0, err
	}
	if batchSize <= 0 {
		return 0, fmt.Errorf("fit: batch size must be positive, got %d", batchSize)
	}

	xs, ys := x.Data(), y.Data()
	var total float64
	for start := 0; start < rows; start += batchSize {
		end := min(start+batchSize, rows)

		batchLoss, err := n.step(xs[start*InputDim:end*InputDim], ys[start:end], end-start)
		if err != nil {
			return 0, fmt.Errorf("fit: batch at row %d: %w", start, err)
		}
		total += float64(batchLoss) * float64(end-start)
	}

	loss = float32(total / float64(rows))
	if !isFinite(loss) {
		return 0, fmt.Errorf("fit: epoch loss %v: %w", loss, ErrNumericInstability)
	}
	return loss, nil
}

// step performs forward, backward and one optimizer update on a batch.
func (n *Network) step(xs, ys []float32, rows int) (float32, error) {
	bx, err := tensor.FromSlice(xs, tensor.Shape{rows, InputDim}, n.backend)
	if err != nil {
		return 0, err
	}
	by, err := tensor.FromSlice(ys, tensor.Shape{rows, OutputDim}, n.backend)
	if err != nil {
		return 0, err
	}
	defer bx.Release()
	defer by.Release()

	tape := n.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	loss := n.loss.Forward(n.model.Forward(bx), by)
	grads := autodiff.Backward(loss, n.backend)
	tape.StopRecording()
	tape.Clear()

	value := loss.Item()
	if !isFinite(value) {
		return 0, fmt.Errorf("loss %v: %w", value, ErrNumericInstability)
	}

	n.optimizer.Step(grads)
	n.optimizer.ZeroGrad()
	return value, nil
}

// Predict runs a forward pass without recording and returns one prediction
// per row of x.
func (n *Network) Predict(x Tensor) (pred []float32, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	defer recoverInto("predict", &err)

	if n.released {
		return nil, ErrReleased
	}
	if len(x.Shape()) != 2 || x.Shape()[1] != InputDim {
		return nil, fmt.Errorf("predict: expected input [rows, %d], got %v", InputDim, x.Shape())
	}

	n.backend.Tape().StopRecording()
	input := tensor.New[float32, Backend](x.Raw(), n.backend)
	out := n.model.Forward(input)
	defer out.Release()

	pred = append([]float32(nil), out.Data()...)
	for i, v := range pred {
		if !isFinite(v) {
			return nil, fmt.Errorf("predict: row %d is %v: %w", i, v, ErrNumericInstability)
		}
	}
	return pred, nil
}

// Snapshot returns an immutable deep copy of the current parameters.
func (n *Network) Snapshot() (snap *Snapshot, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	defer recoverInto("snapshot", &err)

	if n.released {
		return nil, ErrReleased
	}
	return newSnapshot(n.layers), nil
}

// Released reports whether Release has been called.
func (n *Network) Released() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.released
}

// Release frees the parameters and optimizer state. Calling Release more
// than once is a no-op.
func (n *Network) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.released {
		return
	}
	n.released = true
	n.optimizer.Release()
	for _, p := range n.model.Parameters() {
		p.Release()
	}
	n.backend.Tape().Clear()
}

func checkData(x, y Tensor) (int, error) {
	xs, ys := x.Shape(), y.Shape()
	if len(xs) != 2 || xs[1] != InputDim {
		return 0, fmt.Errorf("expected inputs [rows, %d], got %v", InputDim, xs)
	}
	if len(ys) != 2 || ys[1] != OutputDim || ys[0] != xs[0] {
		return 0, fmt.Errorf("expected targets [%d, %d], got %v", xs[0], OutputDim, ys)
	}
	return xs[0], nil
}

// recoverInto turns a panic from the numeric core into an error.
func recoverInto(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: %v", op, r)
	}
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
