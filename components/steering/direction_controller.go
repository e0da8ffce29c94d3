package steering

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/motioncore/logging"
)

const (
	// DefaultControlPeriod is the interval between two servo transactions.
	DefaultControlPeriod = 10 * time.Millisecond
	// DefaultRecoverDelay is how long a recoverable fault is left alone before torque is
	// re-enabled.
	DefaultRecoverDelay = 5 * time.Second

	maxReportedAngleDeg = 300
)

// DirectionController drives a steering servo toward an aim curvature. Control must be called
// every DefaultControlPeriod from a single goroutine; it alternates between reading the servo
// position and writing the goal angle. The curvature accessors are safe to call concurrently
// with Control.
type DirectionController struct {
	servo        Servo
	geometry     Geometry
	recoverDelay time.Duration
	clk          clock.Clock
	logger       logging.Logger

	aimCurvature  atomic.Float64
	realCurvature atomic.Float64
	realAngle     atomic.Uint32
	blocked       atomic.Bool

	// Owned by the Control goroutine.
	read         bool
	aimAngle     uint32
	blockedSince time.Time
}

// NewDirectionController checks the servo's fault state and returns a controller centered on
// the geometry's origin.
func NewDirectionController(
	ctx context.Context,
	servo Servo,
	geometry Geometry,
	recoverDelay time.Duration,
	clk clock.Clock,
	logger logging.Logger,
) (*DirectionController, error) {
	if recoverDelay <= 0 {
		recoverDelay = DefaultRecoverDelay
	}
	dc := &DirectionController{
		servo:        servo,
		geometry:     geometry,
		recoverDelay: recoverDelay,
		clk:          clk,
		logger:       logger,
		read:         true,
		aimAngle:     geometry.AngleOriginDeg,
	}
	dc.realAngle.Store(geometry.AngleOriginDeg)
	dc.realCurvature.Store(geometry.AngleToCurvature(geometry.AngleOriginDeg))

	fault, err := servo.Fault(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't read steering servo state")
	}
	dc.setBlocked(fault.Environment)
	if fault.Environment {
		logger.Warnw("steering servo starts in fault", "recoverable", fault.Recoverable)
	}
	return dc, nil
}

// SetAimCurvature sets the curvature the next write cycle will aim for.
func (dc *DirectionController) SetAimCurvature(curvature float64) {
	dc.aimCurvature.Store(curvature)
}

// AimCurvature returns the last aimed curvature.
func (dc *DirectionController) AimCurvature() float64 {
	return dc.aimCurvature.Load()
}

// RealCurvature returns the curvature matching the last measured servo angle.
func (dc *DirectionController) RealCurvature() float64 {
	return dc.realCurvature.Load()
}

// IsBlocked reports whether the servo is in an environment fault.
func (dc *DirectionController) IsBlocked() bool {
	return dc.blocked.Load()
}

// MotorAngle returns the last measured servo angle, clamped to the steering range.
func (dc *DirectionController) MotorAngle() uint32 {
	return dc.realAngle.Load()
}

// SetMotorAngle aims for a servo angle directly. The angle is clamped to the steering range.
func (dc *DirectionController) SetMotorAngle(angleDeg uint32) {
	clamped := dc.geometry.ClampAngle(int(angleDeg))
	dc.aimCurvature.Store(dc.geometry.AngleToCurvature(clamped))
}

// Control runs one servo transaction. While blocked it only polls the fault state and tries to
// recover.
func (dc *DirectionController) Control(ctx context.Context) error {
	if dc.blocked.Load() {
		return dc.tryRecover(ctx)
	}

	var err error
	if dc.read {
		var angle uint32
		angle, err = dc.servo.Position(ctx)
		switch {
		case err != nil:
			err = errors.Wrap(err, "couldn't read steering position")
		case angle > maxReportedAngleDeg:
			err = errors.Errorf("steering servo reported an invalid angle %d", angle)
		default:
			clamped := dc.geometry.ClampAngle(int(angle))
			dc.realAngle.Store(clamped)
			dc.realCurvature.Store(dc.geometry.AngleToCurvature(clamped))
		}
	} else {
		dc.aimAngle = dc.geometry.ClampAngle(dc.geometry.CurvatureToAngle(dc.aimCurvature.Load()))
		if moveErr := dc.servo.Move(ctx, dc.aimAngle); moveErr != nil {
			err = errors.Wrap(moveErr, "couldn't set steering goal")
		}
	}
	dc.read = !dc.read
	if err != nil {
		dc.logger.Errorw("steering communication error", "error", err)
		return err
	}

	fault, err := dc.servo.Fault(ctx)
	if err != nil {
		return errors.Wrap(err, "couldn't read steering servo state")
	}
	if fault.Environment {
		dc.logger.Warnw("steering servo blocked", "recoverable", fault.Recoverable)
		dc.setBlocked(true)
	}
	return nil
}

func (dc *DirectionController) tryRecover(ctx context.Context) error {
	fault, err := dc.servo.Fault(ctx)
	if err != nil {
		return errors.Wrap(err, "couldn't read steering servo state")
	}
	if !fault.Environment {
		dc.logger.Info("steering servo fault cleared")
		dc.setBlocked(false)
		return nil
	}
	if fault.Recoverable && dc.clk.Since(dc.blockedSince) > dc.recoverDelay {
		if err := dc.servo.Recover(ctx); err != nil {
			return errors.Wrap(err, "couldn't recover steering servo")
		}
		dc.logger.Info("steering servo recovered")
		dc.setBlocked(false)
	}
	return nil
}

func (dc *DirectionController) setBlocked(b bool) {
	dc.blocked.Store(b)
	dc.blockedSince = dc.clk.Now()
}

func (dc *DirectionController) String() string {
	return fmt.Sprintf("aim=%g real=%g", dc.aimCurvature.Load(), dc.realCurvature.Load())
}
