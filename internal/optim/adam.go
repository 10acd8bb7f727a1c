package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/weightfusion/internal/nn"
	"github.com/born-ml/weightfusion/internal/tensor"
)

// Adam implements the Adam optimizer with bias-corrected moment estimates:
//
//	m = β1·m + (1-β1)·g
//	v = β2·v + (1-β2)·g²
//	θ -= lr · m̂ / (√v̂ + ε)
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	t       int // timestep for bias correction
	m       map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	v       map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	backend B
}

// AdamConfig holds Adam hyperparameters. Zero fields take the defaults.
type AdamConfig struct {
	LR    float32    // default 0.001
	Betas [2]float32 // default [0.9, 0.999]
	Eps   float32    // default 1e-8
}

// DefaultAdamConfig returns the standard Adam hyperparameters.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LR:    0.001,
		Betas: [2]float32{0.9, 0.999},
		Eps:   1e-8,
	}
}

// NewAdam creates an Adam optimizer over params.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	defaults := DefaultAdamConfig()
	if config.LR == 0 {
		config.LR = defaults.LR
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = defaults.Betas[0]
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = defaults.Betas[1]
	}
	if config.Eps == 0 {
		config.Eps = defaults.Eps
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		v:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend: backend,
	}
}

// Step performs a single optimization step, updating parameters in place.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		if !grad.Shape().Equal(param.Tensor().Shape()) {
			panic(fmt.Sprintf("adam: gradient shape %v does not match parameter %q shape %v",
				grad.Shape(), param.Name(), param.Tensor().Shape()))
		}
		param.SetGrad(tensor.New[float32, B](grad, a.backend))

		m, ok := a.m[param]
		if !ok {
			m = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			a.v[param] = v
		}

		a.update(param.Tensor().Data(), grad.AsFloat32(), m.Data(), v.Data(), biasCorrection1, biasCorrection2)
	}
}

func (a *Adam[B]) update(params, grads, m, v []float32, biasCorrection1, biasCorrection2 float32) {
	for i := range params {
		g := grads[i]
		m[i] = a.beta1*m[i] + (1-a.beta1)*g
		v[i] = a.beta2*v[i] + (1-a.beta2)*g*g

		mHat := m[i] / biasCorrection1
		vHat := v[i] / biasCorrection2
		params[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// ZeroGrad clears all parameter gradients.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR sets the learning rate.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the number of steps taken.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}

// Release frees the moment estimates. The optimizer can be stepped again
// afterwards; state restarts from zero.
func (a *Adam[B]) Release() {
	for p, m := range a.m {
		m.Release()
		delete(a.m, p)
	}
	for p, v := range a.v {
		v.Release()
		delete(a.v, p)
	}
	a.t = 0
}
