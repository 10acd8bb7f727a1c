package trainer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/weightfusion/internal/backend/cpu"
	"github.com/born-ml/weightfusion/internal/network"
)

func testConfig(epochs int) Config {
	cfg := DefaultConfig()
	cfg.Epochs = epochs
	cfg.YieldDelay = 0
	cfg.Seed = 42
	return cfg
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(30 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for session events")
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 50, cfg.Epochs)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 0.5, cfg.Tolerance)
	assert.InDelta(t, 0.001, cfg.LearningRate, 1e-9)
	assert.Equal(t, 10*time.Millisecond, cfg.YieldDelay)
}

func TestRole_RoundTrip(t *testing.T) {
	for _, r := range Roles {
		got, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	_, err := ParseRole("division")
	assert.Error(t, err)
}

// A full default-length session leaves 50 stats per role, numbered 1..50.
func TestRun_FullSession(t *testing.T) {
	cfg := testConfig(50)
	s := NewSession(cpu.New(), cfg)
	defer s.Close()

	events := drain(t, Run(context.Background(), s, cfg))

	require.Len(t, events, 51)
	for i, ev := range events[:50] {
		assert.Equal(t, i+1, ev.Epoch)
		assert.False(t, ev.Done)
		assert.Equal(t, i+1, ev.Add.Epoch)
		assert.Equal(t, i+1, ev.Mult.Epoch)
		assert.Equal(t, i+1, ev.Merged.Epoch)
	}
	final := events[50]
	assert.True(t, final.Done)
	require.NoError(t, final.Err)
	assert.Equal(t, 50, final.Epoch)

	for _, r := range Roles {
		h := s.History(r)
		require.Len(t, h, 50, "role %s", r)
		for i, stat := range h {
			assert.Equal(t, i+1, stat.Epoch)
			assert.GreaterOrEqual(t, stat.Accuracy, 0.0)
			assert.LessOrEqual(t, stat.Accuracy, 1.0)
		}
		assert.NotNil(t, s.Snapshot(r))
	}

	merged := s.History(RoleMerged)
	require.NotNil(t, merged[0].TestLoss)
	require.NotNil(t, merged[0].TestAccuracy)
	assert.Equal(t, *merged[0].TestLoss, merged[0].Loss)
	assert.Nil(t, s.History(RoleAdd)[0].TestLoss)

	// Networks stay live after the run.
	for _, r := range Roles {
		n := s.Network(r)
		require.NotNil(t, n)
		assert.False(t, n.Released())
	}
}

func TestRun_ReplacesMergedNetwork(t *testing.T) {
	cfg := testConfig(2)
	s := NewSession(cpu.New(), cfg)
	defer s.Close()

	var firstC *network.Network
	cfg.Observer = func(ev Event) {
		if ev.Epoch == 1 && !ev.Done {
			firstC = s.Network(RoleMerged)
		}
	}
	drain(t, Run(context.Background(), s, cfg))

	require.NotNil(t, firstC)
	assert.True(t, firstC.Released())
	assert.NotSame(t, firstC, s.Network(RoleMerged))
}

func TestRun_MergedSnapshotIsAverage(t *testing.T) {
	cfg := testConfig(1)
	s := NewSession(cpu.New(), cfg)
	defer s.Close()

	drain(t, Run(context.Background(), s, cfg))

	a, b, c := s.Snapshot(RoleAdd), s.Snapshot(RoleMult), s.Snapshot(RoleMerged)
	require.NotNil(t, c)
	for k := range c.Layers {
		for i, w := range c.Layers[k].Weights {
			assert.InDelta(t, (a.Layers[k].Weights[i]+b.Layers[k].Weights[i])/2, w, 1e-6)
		}
	}
}

func TestRun_ObserverSeesEveryEvent(t *testing.T) {
	cfg := testConfig(3)
	var mu sync.Mutex
	var seen []int
	cfg.Observer = func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.Epoch)
	}
	s := NewSession(cpu.New(), cfg)
	defer s.Close()

	drain(t, Run(context.Background(), s, cfg))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 3}, seen)
}

func TestRun_CancelBetweenEpochs(t *testing.T) {
	cfg := testConfig(50)
	cfg.YieldDelay = time.Hour
	s := NewSession(cpu.New(), cfg)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events := Run(ctx, s, cfg)

	first := <-events
	require.Equal(t, 1, first.Epoch)
	cancel()

	rest := drain(t, events)
	require.NotEmpty(t, rest)
	final := rest[len(rest)-1]
	assert.True(t, final.Done)
	assert.ErrorIs(t, final.Err, context.Canceled)
	assert.Len(t, s.History(RoleAdd), 1)
}

func TestRun_ClosedSessionFails(t *testing.T) {
	cfg := testConfig(2)
	s := NewSession(cpu.New(), cfg)
	s.Close()

	events := drain(t, Run(context.Background(), s, cfg))

	require.Len(t, events, 1)
	assert.True(t, events[0].Done)
	assert.Error(t, events[0].Err)
	assert.Empty(t, s.History(RoleAdd))
}

func TestRun_FailureKeepsCompletedEpochs(t *testing.T) {
	cfg := testConfig(5)
	s := NewSession(cpu.New(), cfg)
	cfg.Observer = func(ev Event) {
		if ev.Epoch == 2 && !ev.Done {
			// Break B before epoch 3 starts.
			s.Network(RoleMult).Release()
		}
	}

	events := drain(t, Run(context.Background(), s, cfg))
	defer s.Close()

	final := events[len(events)-1]
	require.True(t, final.Done)
	assert.ErrorIs(t, final.Err, network.ErrReleased)
	assert.Equal(t, 2, final.Epoch)
	for _, r := range Roles {
		assert.Len(t, s.History(r), 2)
	}
}

func TestSession_Close(t *testing.T) {
	s := NewSession(cpu.New(), testConfig(1))
	a := s.Network(RoleAdd)

	s.Close()
	s.Close()

	assert.True(t, a.Released())
	assert.Nil(t, s.Network(RoleAdd))
	assert.NotEqual(t, s.ID.String(), NewSession(cpu.New(), testConfig(1)).ID.String())
}

func TestController_RejectsOverlappingSessions(t *testing.T) {
	cfg := testConfig(3)
	cfg.YieldDelay = 50 * time.Millisecond
	c := NewController(cpu.New(), cfg)
	defer c.Close()

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.True(t, c.StartSession())
	assert.True(t, c.IsTraining())
	assert.False(t, c.StartSession())

	waitDone(t, events)
	assert.False(t, c.IsTraining())
	assert.NoError(t, c.Err())
	assert.Len(t, c.Histories()[RoleMerged], 3)
}

func TestController_NewSessionResetsHistories(t *testing.T) {
	cfg := testConfig(2)
	c := NewController(cpu.New(), cfg)
	defer c.Close()

	for _, h := range c.Histories() {
		assert.Empty(t, h)
	}
	assert.Nil(t, c.Snapshot(RoleAdd))

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.True(t, c.StartSession())
	waitDone(t, events)
	first := c.Session()
	require.Len(t, c.Histories()[RoleAdd], 2)

	require.True(t, c.StartSession())
	second := c.Session()
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.Network(RoleAdd) == nil, "previous session must be closed")

	waitDone(t, events)
	assert.Len(t, c.Histories()[RoleAdd], 2)
	assert.NotNil(t, c.Snapshot(RoleMerged))
}

func TestController_CloseStopsTraining(t *testing.T) {
	cfg := testConfig(50)
	cfg.YieldDelay = time.Hour
	c := NewController(cpu.New(), cfg)

	require.True(t, c.StartSession())
	c.Close()

	assert.False(t, c.IsTraining())
	assert.True(t, errors.Is(c.Err(), context.Canceled))
	assert.False(t, c.StartSession())
}

func waitDone(t *testing.T, events <-chan Event) {
	t.Helper()
	timeout := time.After(30 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Done {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for the session to finish")
		}
	}
}
