// Package drive defines the propulsion actuator consumed by the motion-control loop and the
// closed-loop wheel speed controller that implements it on the robot.
package drive

import "context"

// Drive propels the robot and reports the odometry encoders. Speeds are in mm/s, positive
// forward.
type Drive interface {
	SetAimSpeed(speed float64)
	CurrentSpeed() float64
	// RawTicks returns the left and right odometry encoder counts accumulated since the
	// previous call.
	RawTicks() (left, right int32)
}

// Controller is implemented by drives that run their own closed loop once per control tick,
// after the aim speed for that tick has been set.
type Controller interface {
	Control()
}

// Stopper is implemented by drives that can be commanded to rest outside the control tick.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Motor is a power-controlled DC motor behind an H-bridge with current sensing.
type Motor interface {
	// SetPower applies a signed duty cycle in percent, [-100, 100].
	SetPower(pct float64) error
	// Current returns the averaged motor current in amps.
	Current() float64
	// Overcurrent reports the latched overcurrent flag. The bridge ignores power orders while it
	// is set.
	Overcurrent() bool
	ClearOvercurrent()
	SetMaxCurrent(amps float64)
}

// Encoder is an incremental quadrature encoder.
type Encoder interface {
	// ReadAndReset returns the ticks counted since the previous call.
	ReadAndReset() int32
}
