package trainer

import "fmt"

// Role names one of the three networks in a session.
type Role int

// Network roles.
const (
	RoleAdd    Role = iota // A, trained on addition
	RoleMult               // B, trained on multiplication
	RoleMerged             // C, fused from A and B, scored on division
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdd, RoleMult, RoleMerged}

// String returns the role name used in URLs and logs.
func (r Role) String() string {
	switch r {
	case RoleAdd:
		return "add"
	case RoleMult:
		return "mult"
	case RoleMerged:
		return "merged"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole is the inverse of Role.String.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// EpochStat is one epoch's result for one network. Epoch is 1-based and
// equals the stat's position in its history.
type EpochStat struct {
	Epoch        int      `json:"epoch"`
	Loss         float64  `json:"loss"`
	Accuracy     float64  `json:"accuracy"`
	TestLoss     *float64 `json:"testLoss,omitempty"`
	TestAccuracy *float64 `json:"testAccuracy,omitempty"`
}

// Event reports a finished epoch or the end of a session.
//
// Progress events carry Epoch and the three stats. The final event has
// Done set; Err is nil when every epoch completed.
type Event struct {
	Epoch  int
	Add    EpochStat
	Mult   EpochStat
	Merged EpochStat
	Done   bool
	Err    error
}
