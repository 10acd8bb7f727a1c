// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package fusion

import (
	"context"
	"time"

	"github.com/born-ml/weightfusion/backend/cpu"
	"github.com/born-ml/weightfusion/internal/dataset"
	internalfusion "github.com/born-ml/weightfusion/internal/fusion"
	"github.com/born-ml/weightfusion/internal/network"
	"github.com/born-ml/weightfusion/internal/trainer"
	"github.com/born-ml/weightfusion/internal/visualizer"
)

// Training.
type (
	// Config controls a session. See DefaultConfig.
	Config = trainer.Config

	// Session holds one run's networks, histories and snapshots.
	Session = trainer.Session

	// Controller runs one session at a time and broadcasts its events.
	Controller = trainer.Controller

	// Event reports a finished epoch, or the end of a session when Done.
	Event = trainer.Event

	// EpochStat is one epoch's loss and accuracy for one network.
	EpochStat = trainer.EpochStat

	// Role names one of the three networks.
	Role = trainer.Role
)

// Roles.
const (
	RoleAdd    = trainer.RoleAdd
	RoleMult   = trainer.RoleMult
	RoleMerged = trainer.RoleMerged
)

// Roles lists every role in display order.
var Roles = trainer.Roles

// DefaultConfig returns 50 epochs, batch 32, tolerance 0.5 and lr 0.001.
func DefaultConfig() Config {
	return trainer.DefaultConfig()
}

// NewSession creates networks A and B and the three datasets.
func NewSession(backend *cpu.Backend, cfg Config) *Session {
	return trainer.NewSession(backend, cfg)
}

// Run trains s and streams its events. See trainer.Run for the ordering
// guarantees.
func Run(ctx context.Context, s *Session, cfg Config) <-chan Event {
	return trainer.Run(ctx, s, cfg)
}

// NewController creates a controller building sessions from cfg.
func NewController(backend *cpu.Backend, cfg Config) *Controller {
	return trainer.NewController(backend, cfg)
}

// ParseRole parses "add", "mult" or "merged".
func ParseRole(s string) (Role, error) {
	return trainer.ParseRole(s)
}

// Networks and datasets.
type (
	// Network is the fixed 2→16→1 regressor.
	Network = network.Network

	// Snapshot is an immutable copy of a network's parameters.
	Snapshot = network.Snapshot

	// LayerParams holds one dense layer of a Snapshot.
	LayerParams = network.LayerParams

	// Dataset is a generated arithmetic table.
	Dataset = dataset.Dataset

	// DatasetKind selects the operation a Dataset tabulates.
	DatasetKind = dataset.Kind

	// Stats is a loss/accuracy pair.
	Stats = internalfusion.Stats
)

// Dataset kinds.
const (
	Addition       = dataset.Addition
	Multiplication = dataset.Multiplication
	Division       = dataset.Division
)

// Errors.
var (
	ErrShapeMismatch      = internalfusion.ErrShapeMismatch
	ErrNumericInstability = network.ErrNumericInstability
	ErrReleased           = network.ErrReleased
	ErrRenderFault        = visualizer.ErrRenderFault
)

// GenerateDataset builds the table for kind.
func GenerateDataset(kind DatasetKind) *Dataset {
	return dataset.Generate(kind)
}

// NewNetwork creates a freshly initialised network.
func NewNetwork(backend *cpu.Backend) *Network {
	return network.New(backend)
}

// Fuse averages a and b into a new network. Neither input is modified.
func Fuse(a, b *Network) (*Network, error) {
	return internalfusion.Fuse(a, b)
}

// FuseSnapshots averages two snapshots.
func FuseSnapshots(a, b *Snapshot) (*Snapshot, error) {
	return internalfusion.FuseSnapshots(a, b)
}

// Evaluate scores net on ds with the given tolerance.
func Evaluate(net *Network, ds *Dataset, tolerance float64) (Stats, error) {
	return internalfusion.Evaluate(net, ds, tolerance)
}

// Diagrams.
type (
	// Props describe one diagram panel.
	Props = visualizer.Props

	// Frame is one rendered diagram.
	Frame = visualizer.Frame

	// Renderer draws frames.
	Renderer = visualizer.Renderer

	// View redraws a panel as its props change.
	View = visualizer.View

	// ViewState is Idle, Static or Animating.
	ViewState = visualizer.State

	// FrameSink receives every frame a View draws.
	FrameSink = visualizer.FrameSink

	// SnapshotSource supplies the parameters a panel draws.
	SnapshotSource = visualizer.Source
)

// View states.
const (
	ViewIdle      = visualizer.StateIdle
	ViewStatic    = visualizer.StateStatic
	ViewAnimating = visualizer.StateAnimating
)

// NewRenderer returns a Renderer with the default background.
func NewRenderer() *Renderer {
	return visualizer.NewRenderer()
}

// NewView returns an idle view. frameInterval sets the redraw period while
// animating; zero keeps 60 Hz.
func NewView(sink FrameSink, frameInterval time.Duration) *View {
	return visualizer.NewView(sink, visualizer.WithFrameInterval(frameInterval))
}
