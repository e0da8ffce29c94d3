package fake

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultCurvatureRate is how fast a simulated steering changes curvature, in m^-1 per second.
const DefaultCurvatureRate = 200.

// Steering is a simulated steering actuator whose real curvature slews toward the aim at a
// fixed rate of clock time.
type Steering struct {
	mu         sync.Mutex
	clk        clock.Clock
	rate       float64
	aim        float64
	real       float64
	blocked    bool
	lastUpdate time.Time
}

// NewSteering returns a centered steering slewing at rate (DefaultCurvatureRate when not
// positive).
func NewSteering(clk clock.Clock, rate float64) *Steering {
	if rate <= 0 {
		rate = DefaultCurvatureRate
	}
	return &Steering{clk: clk, rate: rate, lastUpdate: clk.Now()}
}

func (s *Steering) advance() {
	now := s.clk.Now()
	maxStep := s.rate * now.Sub(s.lastUpdate).Seconds()
	s.lastUpdate = now
	if s.blocked {
		return
	}
	delta := s.aim - s.real
	if math.Abs(delta) <= maxStep {
		s.real = s.aim
		return
	}
	s.real += math.Copysign(maxStep, delta)
}

// SetAimCurvature sets the curvature to slew toward.
func (s *Steering) SetAimCurvature(curvature float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.aim = curvature
}

// AimCurvature returns the last aimed curvature.
func (s *Steering) AimCurvature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aim
}

// RealCurvature returns the simulated curvature.
func (s *Steering) RealCurvature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.real
}

// IsBlocked reports the injected blocked state.
func (s *Steering) IsBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked
}

// SetBlocked freezes (or releases) the simulated curvature.
func (s *Steering) SetBlocked(blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.blocked = blocked
}
