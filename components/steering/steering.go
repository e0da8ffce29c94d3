// Package steering defines the steering actuator consumed by the motion-control loop and the
// servo-backed implementation used on the robot.
package steering

import (
	"context"
)

// Steering sets and reports the robot's path curvature, in m^-1. Positive curvature turns
// left. Implementations must be safe to call from the control tick while their own I/O runs
// elsewhere.
type Steering interface {
	SetAimCurvature(curvature float64)
	RealCurvature() float64
	// IsBlocked reports that the actuator cannot currently follow orders.
	IsBlocked() bool
}

// Controller is implemented by steering actuators that need their own periodic I/O cycle.
type Controller interface {
	Control(ctx context.Context) error
}

// Fault is the latched error state reported by a smart servo.
type Fault struct {
	// Environment is set for overload or overheating conditions that stop the servo from
	// holding a position.
	Environment bool
	// Recoverable is set when re-enabling torque may clear the fault.
	Recoverable bool
}

// A Servo is a position-controlled steering servo addressed in whole degrees.
type Servo interface {
	// Move sets the goal angle.
	Move(ctx context.Context, angleDeg uint32) error
	// Position returns the measured angle.
	Position(ctx context.Context) (uint32, error)
	// Fault returns the servo's latched error state.
	Fault(ctx context.Context) (Fault, error)
	// Recover re-enables torque after an environment fault.
	Recover(ctx context.Context) error
}
