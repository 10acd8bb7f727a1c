package trainer

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/weightfusion/internal/backend/cpu"
	"github.com/born-ml/weightfusion/internal/dataset"
	"github.com/born-ml/weightfusion/internal/network"
)

// Session is the state of one training run: the networks per role, their
// histories, the latest published snapshots and the datasets.
//
// Only the goroutine running the session mutates networks. Histories and
// snapshots may be read from any goroutine.
type Session struct {
	ID      uuid.UUID
	Created time.Time

	compute *cpu.CPUBackend
	data    map[dataset.Kind]*dataset.Dataset

	mu        sync.Mutex
	nets      [3]*network.Network
	histories [3][]EpochStat
	closed    bool

	snapshots [3]atomic.Pointer[network.Snapshot]
}

// NewSession creates networks A and B and generates the three datasets.
// Network C appears after the first epoch.
func NewSession(compute *cpu.CPUBackend, cfg Config) *Session {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // G404: weight init is not security-critical

	s := &Session{
		ID:      uuid.New(),
		Created: time.Now(),
		compute: compute,
		data: map[dataset.Kind]*dataset.Dataset{
			dataset.Addition:       dataset.Generate(dataset.Addition),
			dataset.Multiplication: dataset.Generate(dataset.Multiplication),
			dataset.Division:       dataset.Generate(dataset.Division),
		},
	}

	lr := network.WithLearningRate(cfg.LearningRate)
	s.nets[RoleAdd] = network.New(compute, lr, network.WithRand(rng))
	s.nets[RoleMult] = network.New(compute, lr, network.WithRand(rng))

	for _, r := range []Role{RoleAdd, RoleMult} {
		if snap, err := s.nets[r].Snapshot(); err == nil {
			s.snapshots[r].Store(snap)
		}
	}
	return s
}

// Dataset returns the session's table of the given kind.
func (s *Session) Dataset(kind dataset.Kind) *dataset.Dataset {
	return s.data[kind]
}

// Network returns the live network for role, or nil.
func (s *Session) Network(role Role) *network.Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nets[role]
}

// replace installs net for role and releases the network it supersedes.
func (s *Session) replace(role Role, net *network.Network) {
	s.mu.Lock()
	old := s.nets[role]
	s.nets[role] = net
	s.mu.Unlock()

	if old != nil && old != net {
		old.Release()
	}
}

// History returns a copy of role's epoch history.
func (s *Session) History(role Role) []EpochStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EpochStat(nil), s.histories[role]...)
}

// Histories returns a copy of every history keyed by role.
func (s *Session) Histories() map[Role][]EpochStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Role][]EpochStat, len(Roles))
	for _, r := range Roles {
		out[r] = append([]EpochStat(nil), s.histories[r]...)
	}
	return out
}

// appendEpoch records one completed epoch for all three roles at once.
func (s *Session) appendEpoch(add, mult, merged EpochStat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[RoleAdd] = append(s.histories[RoleAdd], add)
	s.histories[RoleMult] = append(s.histories[RoleMult], mult)
	s.histories[RoleMerged] = append(s.histories[RoleMerged], merged)
}

// Snapshot returns the latest published parameters for role, or nil.
func (s *Session) Snapshot(role Role) *network.Snapshot {
	return s.snapshots[role].Load()
}

func (s *Session) publish(role Role, snap *network.Snapshot) {
	s.snapshots[role].Store(snap)
}

// Close releases every network. Histories and snapshots stay readable.
// Calling Close more than once is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	nets := s.nets
	s.nets = [3]*network.Network{}
	s.mu.Unlock()

	for _, n := range nets {
		if n != nil {
			n.Release()
		}
	}
}
