package drive

import (
	"context"

	"github.com/pkg/errors"
)

// Drivetrain is the robot's drive: a speed-controlled motor plus the two passive odometry
// encoders.
type Drivetrain struct {
	*MotorEncoder
	left, right Encoder
}

// NewDrivetrain returns a Drivetrain.
func NewDrivetrain(motor *MotorEncoder, left, right Encoder) *Drivetrain {
	return &Drivetrain{MotorEncoder: motor, left: left, right: right}
}

// RawTicks returns the odometry encoder deltas since the previous call.
func (d *Drivetrain) RawTicks() (left, right int32) {
	return d.left.ReadAndReset(), d.right.ReadAndReset()
}

// Stop zeroes the speed setpoint and cuts motor power.
func (d *Drivetrain) Stop(ctx context.Context) error {
	d.SetAimSpeed(0)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pwm = 0
	return errors.Wrap(d.motor.SetPower(0), "couldn't stop drive motor")
}
