// Package trainer runs training sessions: two regressors learn addition and
// multiplication side by side, their parameters are fused after every epoch
// and the fused network is scored on division.
package trainer

import (
	"time"

	"github.com/born-ml/weightfusion/internal/network"
)

// Config holds session parameters.
type Config struct {
	// Epochs is the number of epochs per session.
	Epochs int

	// BatchSize is the mini-batch size for both regressors.
	BatchSize int

	// Tolerance is the absolute error accepted by tolerance accuracy.
	Tolerance float64

	// LearningRate is the Adam learning rate for A and B.
	LearningRate float32

	// YieldDelay is the pause between epochs that lets observers catch up.
	YieldDelay time.Duration

	// Seed seeds weight initialization. Zero seeds from the clock.
	Seed int64

	// Observer, if set, is called synchronously with every event before it
	// is delivered on the channel.
	Observer func(Event)
}

// DefaultConfig returns the standard session configuration.
func DefaultConfig() Config {
	return Config{
		Epochs:       50,
		BatchSize:    32,
		Tolerance:    network.DefaultTolerance,
		LearningRate: 0.001,
		YieldDelay:   10 * time.Millisecond,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Epochs <= 0 {
		c.Epochs = d.Epochs
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.YieldDelay < 0 {
		c.YieldDelay = 0
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}
