// Package control implements the feedback laws used by the motion-control loop: a discrete PID
// and the curvature tracking law.
package control

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

// PID is a discrete proportional-integral-derivative controller evaluated at a fixed frequency.
// The integral accumulates error/freq each step and the derivative is the one-step backward
// difference scaled by freq. It is not safe for concurrent use.
type PID struct {
	kp, ki, kd float64

	outMin, outMax float64
	output         float64

	preError   float64
	derivative float64
	integral   float64

	freq float64 // Hz
}

// NewPID returns a PID with zero gains and unbounded output, stepped at freq Hz.
func NewPID(freq float64) *PID {
	return &PID{
		outMin: -math.MaxFloat64,
		outMax: math.MaxFloat64,
		freq:   freq,
	}
}

// Compute advances the controller one step and returns the clamped output.
func (p *PID) Compute(setPoint, input float64) float64 {
	e := setPoint - input
	p.derivative = (e - p.preError) * p.freq
	p.integral += e / p.freq
	p.preError = e

	p.output = lo.Clamp(p.kp*e+p.ki*p.integral+p.kd*p.derivative, p.outMin, p.outMax)
	return p.output
}

// SetTunings replaces the gains. If any gain is negative all three are set to zero.
func (p *PID) SetTunings(kp, ki, kd float64) {
	if kp < 0 || ki < 0 || kd < 0 {
		p.kp, p.ki, p.kd = 0, 0, 0
		return
	}
	p.kp, p.ki, p.kd = kp, ki, kd
}

// SetOutputLimits bounds future outputs and re-clamps the current one. Ignored when min >= max.
func (p *PID) SetOutputLimits(minOut, maxOut float64) {
	if minOut >= maxOut {
		return
	}
	p.outMin, p.outMax = minOut, maxOut
	p.output = lo.Clamp(p.output, p.outMin, p.outMax)
}

// ResetDerivativeError makes the next derivative term start from the current error, so a
// discontinuous setpoint change does not produce a spike.
func (p *PID) ResetDerivativeError(setPoint, input float64) {
	p.preError = setPoint - input
	p.derivative = 0
}

// ResetIntegralError clears the accumulated integral.
func (p *PID) ResetIntegralError() {
	p.integral = 0
}

// Tunings returns kp, ki and kd.
func (p *PID) Tunings() (kp, ki, kd float64) {
	return p.kp, p.ki, p.kd
}

// OutputLimits returns the current output bounds.
func (p *PID) OutputLimits() (minOut, maxOut float64) {
	return p.outMin, p.outMax
}

// Output is the last computed (and possibly re-clamped) output.
func (p *PID) Output() float64 { return p.output }

// Error is the error seen by the last step.
func (p *PID) Error() float64 { return p.preError }

// DerivativeError is the derivative term input of the last step.
func (p *PID) DerivativeError() float64 { return p.derivative }

// IntegralError is the accumulated integral.
func (p *PID) IntegralError() float64 { return p.integral }

func (p *PID) String() string {
	return fmt.Sprintf("err=%g deriv=%g integ=%g out=%g", p.preError, p.derivative, p.integral, p.output)
}
