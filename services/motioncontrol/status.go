package motioncontrol

import (
	"strings"

	"go.uber.org/atomic"
)

// MoveStatus is an accumulating set of move faults. Faults raised during a move persist until
// the next FollowTrajectory or StartManualMove.
type MoveStatus uint32

const (
	// MoveOK means no fault was raised.
	MoveOK MoveStatus = 0
	// EmptyTrajectory is raised when the queue ran out before an end-of-trajectory point.
	EmptyTrajectory MoveStatus = 1 << (iota - 1)
	// ExternallyBlocked is raised when the robot stopped short of a pass-through point or the
	// steering never reached its aim.
	ExternallyBlocked
	// FarAway is raised when the robot drifted more than the allowed distance from its target.
	FarAway
	// EmergencyBreak is raised when a running move was stopped by StopAndClearTrajectory.
	EmergencyBreak
)

var moveStatusNames = []struct {
	bit  MoveStatus
	name string
}{
	{EmptyTrajectory, "empty_trajectory"},
	{ExternallyBlocked, "externally_blocked"},
	{FarAway, "far_away"},
	{EmergencyBreak, "emergency_break"},
}

// Has reports whether every bit of fault is set.
func (s MoveStatus) Has(fault MoveStatus) bool {
	return s&fault == fault
}

func (s MoveStatus) String() string {
	if s == MoveOK {
		return "ok"
	}
	var names []string
	for _, n := range moveStatusNames {
		if s.Has(n.bit) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// statusRegister is a MoveStatus shared between the control tick and readers.
type statusRegister struct {
	v atomic.Uint32
}

func (r *statusRegister) raise(fault MoveStatus) {
	for {
		old := r.v.Load()
		if r.v.CompareAndSwap(old, old|uint32(fault)) {
			return
		}
	}
}

func (r *statusRegister) reset() {
	r.v.Store(uint32(MoveOK))
}

func (r *statusRegister) load() MoveStatus {
	return MoveStatus(r.v.Load())
}

// MovePhase is the state of a single-leg move.
type MovePhase uint32

const (
	// MoveEnded is the resting phase. A move can only be started from it.
	MoveEnded MovePhase = iota
	// MoveInit waits for the steering to reach the leg's curvature.
	MoveInit
	// Moving drives toward the target.
	Moving
	// Breaking ramps the speed order down to zero at the deceleration limit and waits for the
	// stop to be confirmed.
	Breaking
)

func (p MovePhase) String() string {
	switch p {
	case MoveEnded:
		return "move_ended"
	case MoveInit:
		return "move_init"
	case Moving:
		return "moving"
	case Breaking:
		return "breaking"
	}
	return "unknown"
}
