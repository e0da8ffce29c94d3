package motioncontrol

import (
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/motioncore/utils"
)

const (
	// brakingThreshold is the mean per-tick drop of |speed|, in mm/s, above which the robot is
	// reported as braking.
	brakingThreshold = 0.2
	// moveStartFactor stretches the stop confirmation delay right after a move starts.
	moveStartFactor     = 5
	accelerationSamples = 50
)

// StoppingMgr debounces "the robot is at rest" from the measured speed. It is fed once per
// control tick and is not safe for concurrent use.
type StoppingMgr struct {
	clk          clock.Clock
	epsilon      float64
	responseTime time.Duration

	speed     float64
	stopped   bool
	moveBegin bool
	beginTime time.Time

	lastAbsSpeed float64
	accelAvg     *utils.RollingAverage
}

// NewStoppingMgr returns a StoppingMgr with zero tunings.
func NewStoppingMgr(clk clock.Clock) *StoppingMgr {
	return &StoppingMgr{clk: clk, accelAvg: utils.NewRollingAverage(accelerationSamples)}
}

// Compute feeds the current speed.
func (s *StoppingMgr) Compute(speed float64) {
	s.speed = speed
	absSpeed := math.Abs(speed)
	if absSpeed < s.epsilon {
		if !s.stopped {
			s.stopped = true
			s.beginTime = s.clk.Now()
		}
	} else {
		s.stopped = false
		s.moveBegin = false
	}
	s.accelAvg.Add(absSpeed - s.lastAbsSpeed)
	s.lastAbsSpeed = absSpeed
}

// MoveIsStarting restarts the debounce with the longer move-start delay.
func (s *StoppingMgr) MoveIsStarting() {
	s.stopped = false
	s.moveBegin = true
}

// SetTunings sets the rest speed threshold (mm/s) and the confirmation delay.
func (s *StoppingMgr) SetTunings(epsilon float64, responseTime time.Duration) {
	s.epsilon = epsilon
	s.responseTime = responseTime
}

// Tunings returns the rest speed threshold and the confirmation delay.
func (s *StoppingMgr) Tunings() (epsilon float64, responseTime time.Duration) {
	return s.epsilon, s.responseTime
}

// IsStopped reports whether the speed has stayed under the threshold for longer than the
// confirmation delay, or five times that delay while a move is starting.
func (s *StoppingMgr) IsStopped() bool {
	if !s.stopped {
		return false
	}
	window := s.responseTime
	if s.moveBegin {
		window *= moveStartFactor
	}
	return s.clk.Since(s.beginTime) > window
}

// IsMoveBegin reports whether no speed above the threshold has been seen since MoveIsStarting.
func (s *StoppingMgr) IsMoveBegin() bool {
	return s.moveBegin
}

// IsBraking reports whether the robot is decelerating.
func (s *StoppingMgr) IsBraking() bool {
	return s.accelAvg.Average() < -brakingThreshold
}

func (s *StoppingMgr) String() string {
	return fmt.Sprintf("speed=%g stopped=%t", s.speed, s.IsStopped())
}
