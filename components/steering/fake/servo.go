// Package fake implements simulated steering hardware.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/motioncore/components/steering"
)

// DefaultServoSpeed is the slew rate of a simulated servo, in degrees per second.
const DefaultServoSpeed = 600.

// Servo is a simulated steering servo that slews toward its goal at a fixed rate. Its
// position is advanced lazily from clock time on every call.
type Servo struct {
	mu         sync.Mutex
	clk        clock.Clock
	speed      float64
	position   float64
	goal       float64
	lastUpdate time.Time
	fault      steering.Fault

	// MoveErr and PositionErr, when set, are returned by the matching call.
	MoveErr     error
	PositionErr error
}

// NewServo returns a servo resting at startDeg that moves at speedDegPerSec (DefaultServoSpeed
// when not positive).
func NewServo(clk clock.Clock, startDeg uint32, speedDegPerSec float64) *Servo {
	if speedDegPerSec <= 0 {
		speedDegPerSec = DefaultServoSpeed
	}
	return &Servo{
		clk:        clk,
		speed:      speedDegPerSec,
		position:   float64(startDeg),
		goal:       float64(startDeg),
		lastUpdate: clk.Now(),
	}
}

func (s *Servo) advance() {
	now := s.clk.Now()
	maxStep := s.speed * now.Sub(s.lastUpdate).Seconds()
	s.lastUpdate = now
	if s.fault.Environment {
		return
	}
	delta := s.goal - s.position
	if math.Abs(delta) <= maxStep {
		s.position = s.goal
		return
	}
	s.position += math.Copysign(maxStep, delta)
}

// Move sets the goal angle.
func (s *Servo) Move(ctx context.Context, angleDeg uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MoveErr != nil {
		return s.MoveErr
	}
	s.advance()
	s.goal = float64(angleDeg)
	return nil
}

// Position returns the current angle rounded to the degree.
func (s *Servo) Position(ctx context.Context) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PositionErr != nil {
		return 0, s.PositionErr
	}
	s.advance()
	return uint32(math.Round(s.position)), nil
}

// Fault returns the injected fault.
func (s *Servo) Fault(ctx context.Context) (steering.Fault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault, nil
}

// Recover clears a recoverable fault.
func (s *Servo) Recover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault.Recoverable {
		s.advance()
		s.fault = steering.Fault{}
	}
	return nil
}

// InjectFault latches fault. The servo stops moving while an environment fault is set.
func (s *Servo) InjectFault(fault steering.Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.fault = fault
}
