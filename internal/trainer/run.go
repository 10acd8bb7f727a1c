package trainer

import (
	"context"
	"fmt"
	"time"

	"github.com/born-ml/weightfusion/internal/dataset"
	"github.com/born-ml/weightfusion/internal/fusion"
	"github.com/born-ml/weightfusion/internal/network"
)

// Run trains s for cfg.Epochs epochs on a new goroutine and streams one
// Event per epoch, then a final Event with Done set before closing the
// channel.
//
// Within an epoch A is fitted, then B, then C is fused from them and scored
// on division. Any error aborts the session without recording that epoch.
// ctx is checked only between epochs.
//
// The channel holds one event, so training runs at most one epoch ahead of
// a slow reader.
func Run(ctx context.Context, s *Session, cfg Config) <-chan Event {
	cfg = cfg.withDefaults()
	events := make(chan Event, 1)

	go func() {
		defer close(events)

		last, err := run(ctx, s, cfg, events)
		final := Event{Epoch: last, Done: true, Err: err}
		if cfg.Observer != nil {
			cfg.Observer(final)
		}
		deliver(ctx, events, final)
	}()

	return events
}

// uploaded holds the session's dataset tensors for the length of a run.
type uploaded struct {
	x, y network.Tensor
}

func run(ctx context.Context, s *Session, cfg Config, events chan<- Event) (int, error) {
	a, b := s.Network(RoleAdd), s.Network(RoleMult)
	if a == nil || b == nil {
		return 0, fmt.Errorf("session %s is closed", s.ID)
	}

	tables := make(map[dataset.Kind]uploaded, 3)
	defer func() {
		for _, t := range tables {
			t.x.Release()
			t.y.Release()
		}
	}()
	for _, kind := range []dataset.Kind{dataset.Addition, dataset.Multiplication, dataset.Division} {
		x, y, err := dataset.Tensors(s.Dataset(kind), a.Backend())
		if err != nil {
			return 0, err
		}
		tables[kind] = uploaded{x: x, y: y}
	}

	completed := 0
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		ev, err := runEpoch(s, cfg, epoch, a, b, tables)
		if err != nil {
			return completed, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		completed = epoch

		if cfg.Observer != nil {
			cfg.Observer(ev)
		}
		if !deliver(ctx, events, ev) {
			return completed, ctx.Err()
		}

		if epoch < cfg.Epochs {
			if err := yield(ctx, cfg.YieldDelay); err != nil {
				return completed, err
			}
		}
	}
	return completed, nil
}

// runEpoch performs one fit/fuse/evaluate cycle. Histories and snapshots
// change only when every step succeeded.
func runEpoch(s *Session, cfg Config, epoch int, a, b *network.Network, tables map[dataset.Kind]uploaded) (Event, error) {
	add, err := fitAndScore(a, tables[dataset.Addition], cfg, epoch)
	if err != nil {
		return Event{}, fmt.Errorf("addition: %w", err)
	}
	mult, err := fitAndScore(b, tables[dataset.Multiplication], cfg, epoch)
	if err != nil {
		return Event{}, fmt.Errorf("multiplication: %w", err)
	}

	s.replace(RoleMerged, nil)
	c, err := fusion.Fuse(a, b)
	if err != nil {
		return Event{}, fmt.Errorf("fuse: %w", err)
	}
	s.replace(RoleMerged, c)

	div := tables[dataset.Division]
	test, err := fusion.Score(c, div.x, div.y, cfg.Tolerance)
	if err != nil {
		return Event{}, fmt.Errorf("division: %w", err)
	}
	merged := EpochStat{
		Epoch:        epoch,
		Loss:         test.Loss,
		Accuracy:     test.Accuracy,
		TestLoss:     &test.Loss,
		TestAccuracy: &test.Accuracy,
	}

	snaps := make(map[Role]*network.Snapshot, len(Roles))
	for _, r := range Roles {
		snap, err := s.Network(r).Snapshot()
		if err != nil {
			return Event{}, fmt.Errorf("snapshot %s: %w", r, err)
		}
		snaps[r] = snap
	}

	s.appendEpoch(add, mult, merged)
	for r, snap := range snaps {
		s.publish(r, snap)
	}

	return Event{Epoch: epoch, Add: add, Mult: mult, Merged: merged}, nil
}

func fitAndScore(net *network.Network, t uploaded, cfg Config, epoch int) (EpochStat, error) {
	loss, err := net.FitEpoch(t.x, t.y, cfg.BatchSize)
	if err != nil {
		return EpochStat{}, err
	}
	stats, err := fusion.Score(net, t.x, t.y, cfg.Tolerance)
	if err != nil {
		return EpochStat{}, err
	}
	return EpochStat{Epoch: epoch, Loss: float64(loss), Accuracy: stats.Accuracy}, nil
}

// deliver sends ev unless ctx ends first. It reports whether ev was sent.
func deliver(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	default:
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func yield(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
