package motioncontrol

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/motioncore/components/drive"
	"go.viam.com/motioncore/components/steering"
	"go.viam.com/motioncore/control"
	"go.viam.com/motioncore/logging"
	"go.viam.com/motioncore/spatialmath"
)

const (
	// CurvatureTolerance is how close (m^-1) the steering must get to a leg's curvature before
	// the robot starts moving.
	CurvatureTolerance = 0.3
	// MoveInitTimeout bounds the wait for the steering at the start of a move.
	MoveInitTimeout = 2 * time.Second
	// InfiniteDistance is the translation setpoint of a move with no stop point ahead.
	InfiniteDistance = float64(math.MaxInt32)
	// ParkingMaxSpeed caps the position-holding loop while the parking brake is on, in mm/s.
	ParkingMaxSpeed = 500.
	// MaxMotionControlLevel enables every loop.
	MaxMotionControlLevel = 4
)

var (
	// ErrWrongControlLevel is returned for orders that the current motion-control level does
	// not accept.
	ErrWrongControlLevel = errors.New("not allowed at the current motion control level")
	// ErrMoveInProgress is returned for orders that need the current move to be over.
	ErrMoveInProgress = errors.New("a move is in progress")
)

// speedControlToggler is implemented by drives whose closed speed loop can be disabled.
type speedControlToggler interface {
	EnableSpeedControl(enable bool) error
	IsSpeedControlled() bool
}

// TrajectoryFollower runs one move at a time: it turns the current trajectory point, or manual
// setpoints, into steering and speed orders. It is driven by Control once per tick and is not
// safe for concurrent use; MotionControlSystem serializes every access. Phase, speed and
// curvature order are also published for lock-free reads.
type TrajectoryFollower struct {
	freq   float64
	steer  steering.Steering
	drv    drive.Drive
	status *statusRegister
	clk    clock.Clock
	logger logging.Logger

	pose           spatialmath.Pose
	odometry       *Odometry
	stopping       *StoppingMgr
	translationPID *control.PID
	curvaturePID   *control.CurvaturePID
	tunings        Tunings

	phase          atomic.Uint32
	currentSpeed   atomic.Float64
	curvatureOrder atomic.Float64

	trajectoryPoint TrajectoryPoint
	moveInitStart   time.Time

	translationSetPoint       float64 // mm
	translationSetPointBuffer float64 // mm
	movingSpeedSetPoint       float64 // mm/s, magnitude
	previousSpeedSetPoint     float64 // mm/s, after slew limiting
	maxMovingSpeed            float64 // mm/s, signed
	parkingMaxMovingSpeed     float64 // mm/s

	translationControlled bool
	trajectoryControlled  bool
}

// NewTrajectoryFollower returns a follower at rest, at the highest motion-control level, with
// default tunings.
func NewTrajectoryFollower(
	freq float64,
	odometryCfg OdometryConfig,
	steer steering.Steering,
	drv drive.Drive,
	status *statusRegister,
	clk clock.Clock,
	logger logging.Logger,
) *TrajectoryFollower {
	f := &TrajectoryFollower{
		freq:           freq,
		steer:          steer,
		drv:            drv,
		status:         status,
		clk:            clk,
		logger:         logger,
		odometry:       NewOdometry(odometryCfg, freq),
		stopping:       NewStoppingMgr(clk),
		translationPID: control.NewPID(freq),
		curvaturePID:   control.NewCurvaturePID(),
	}
	f.setPhase(MoveEnded)
	if err := f.SetMotionControlLevel(MaxMotionControlLevel); err != nil {
		logger.Errorw("couldn't enable drive speed control", "error", err)
	}
	f.SetTunings(DefaultTunings())
	f.finaliseStop()
	return f
}

// Phase returns the current move phase.
func (f *TrajectoryFollower) Phase() MovePhase {
	return MovePhase(f.phase.Load())
}

func (f *TrajectoryFollower) setPhase(p MovePhase) {
	f.phase.Store(uint32(p))
}

// Pose returns the dead-reckoned pose.
func (f *TrajectoryFollower) Pose() spatialmath.Pose {
	return f.pose
}

// SetPose overwrites the dead-reckoned pose.
func (f *TrajectoryFollower) SetPose(p spatialmath.Pose) {
	f.pose = p.Normalized()
}

// CurrentSpeed returns the measured speed in mm/s, negative in reverse.
func (f *TrajectoryFollower) CurrentSpeed() float64 {
	return f.currentSpeed.Load()
}

// Curvature returns the curvature order in m^-1.
func (f *TrajectoryFollower) Curvature() float64 {
	return f.curvatureOrder.Load()
}

// IsMovingForward reports the direction of the current or last leg.
func (f *TrajectoryFollower) IsMovingForward() bool {
	return f.maxMovingSpeed >= 0
}

// MovingDirection is 0 at rest, 1 forward and -1 in reverse.
func (f *TrajectoryFollower) MovingDirection() int {
	switch {
	case f.Phase() == MoveEnded:
		return 0
	case f.IsMovingForward():
		return 1
	default:
		return -1
	}
}

// IsBraking reports whether the robot is decelerating to a stop.
func (f *TrajectoryFollower) IsBraking() bool {
	return f.Phase() == Breaking || f.stopping.IsBraking()
}

// RawTicks returns the odometry encoder deltas of the last tick.
func (f *TrajectoryFollower) RawTicks() (left, right int32) {
	return f.odometry.RawTicks()
}

// TrajectoryPoint returns the point the current leg targets.
func (f *TrajectoryFollower) TrajectoryPoint() TrajectoryPoint {
	return f.trajectoryPoint
}

// SpeedSetPoint returns the speed order (mm/s, magnitude) after slew limiting and before the
// speed limits are applied.
func (f *TrajectoryFollower) SpeedSetPoint() float64 {
	return f.previousSpeedSetPoint
}

// Tunings returns the active tunings.
func (f *TrajectoryFollower) Tunings() Tunings {
	return f.tunings
}

// SetTunings replaces the tunings and pushes them to every loop.
func (f *TrajectoryFollower) SetTunings(t Tunings) {
	f.tunings = t
	f.translationPID.SetTunings(t.TranslationKp, 0, t.TranslationKd)
	f.stopping.SetTunings(t.StoppedSpeed, t.StoppingResponseTime())
	f.curvaturePID.SetCurvatureLimits(-t.MaxCurvature, t.MaxCurvature)
	f.curvaturePID.SetTunings(t.CurvatureK1, t.CurvatureK2)
	if tuned, ok := f.drv.(interface{ SetTunings(kp, ki, kd float64) }); ok {
		tuned.SetTunings(t.SpeedKp, t.SpeedKi, t.SpeedKd)
	}
}

// SetMotionControlLevel selects which loops are closed: above 1 the drive regulates its
// speed, above 2 the translation loop sets the speed, above 3 the curvature loop steers along
// the trajectory.
func (f *TrajectoryFollower) SetMotionControlLevel(level uint8) error {
	if level > MaxMotionControlLevel {
		return errors.Wrapf(ErrWrongControlLevel, "level %d is above %d", level, MaxMotionControlLevel)
	}
	f.translationControlled = level > 2
	f.trajectoryControlled = level > 3
	if toggler, ok := f.drv.(speedControlToggler); ok {
		return toggler.EnableSpeedControl(level > 1)
	}
	return nil
}

// MotionControlLevel returns the current level. Drives without a switchable speed loop count
// as speed controlled.
func (f *TrajectoryFollower) MotionControlLevel() uint8 {
	level := uint8(1)
	if toggler, ok := f.drv.(speedControlToggler); !ok || toggler.IsSpeedControlled() {
		level++
	}
	if f.translationControlled {
		level++
	}
	if f.trajectoryControlled {
		level++
	}
	return level
}

// IsTrajectoryControlled reports whether the curvature loop is enabled.
func (f *TrajectoryFollower) IsTrajectoryControlled() bool {
	return f.trajectoryControlled
}

// IsTranslationControlled reports whether the translation loop is enabled.
func (f *TrajectoryFollower) IsTranslationControlled() bool {
	return f.translationControlled
}

// SetTrajectoryPoint sets the target of the current leg. Its signed max speed becomes the
// speed limit and direction of travel.
func (f *TrajectoryFollower) SetTrajectoryPoint(tp TrajectoryPoint) error {
	if !f.trajectoryControlled {
		return errors.Wrap(ErrWrongControlLevel, "trajectory is not controlled")
	}
	f.trajectoryPoint = tp
	f.maxMovingSpeed = tp.SignedMaxSpeed
	return nil
}

// SetMaxSpeed sets the signed speed limit of a manual move.
func (f *TrajectoryFollower) SetMaxSpeed(speed float64) error {
	if f.trajectoryControlled {
		return errors.Wrap(ErrWrongControlLevel, "trajectory is controlled")
	}
	f.maxMovingSpeed = speed
	return nil
}

// MaxSpeed returns the signed speed limit of the current leg.
func (f *TrajectoryFollower) MaxSpeed() float64 {
	return f.maxMovingSpeed
}

// SetCurvature sets the curvature order of a manual move. Refused while a trajectory-controlled
// move is running.
func (f *TrajectoryFollower) SetCurvature(curvature float64) error {
	if f.trajectoryControlled && f.Phase() != MoveEnded {
		return errors.Wrap(ErrMoveInProgress, "curvature is controlled by the trajectory")
	}
	f.curvatureOrder.Store(curvature)
	f.steer.SetAimCurvature(curvature)
	return nil
}

// SetDistanceToDrive sets how far (mm) the move must go from the current position. It takes
// effect immediately while Moving, otherwise when the next move starts.
func (f *TrajectoryFollower) SetDistanceToDrive(distance float64) error {
	if !f.translationControlled {
		return errors.Wrap(ErrWrongControlLevel, "translation is not controlled")
	}
	f.translationSetPointBuffer = f.odometry.Translation() + distance
	if f.Phase() == Moving {
		f.updateTranslationSetPoint()
	}
	return nil
}

// SetInfiniteDistanceToDrive lets the move go on until stopped.
func (f *TrajectoryFollower) SetInfiniteDistanceToDrive() error {
	if !f.translationControlled {
		return errors.Wrap(ErrWrongControlLevel, "translation is not controlled")
	}
	f.translationSetPointBuffer = InfiniteDistance
	if f.Phase() == Moving {
		f.updateTranslationSetPoint()
	}
	return nil
}

// StartMove begins a move. Only allowed from MoveEnded.
func (f *TrajectoryFollower) StartMove() error {
	if f.Phase() != MoveEnded {
		return errors.Wrap(ErrMoveInProgress, "move already started")
	}
	f.setPhase(MoveInit)
	f.moveInitStart = f.clk.Now()
	return nil
}

// EmergencyStop brakes a running move, or finalises an ended one.
func (f *TrajectoryFollower) EmergencyStop() {
	if f.Phase() == MoveEnded {
		f.finaliseStop()
		return
	}
	if f.translationControlled {
		f.setPhase(Breaking)
		f.status.raise(EmergencyBreak)
		return
	}
	f.setPhase(MoveEnded)
	f.finaliseStop()
}

// EnableParkingBrake makes the translation loop hold the end position of each move.
func (f *TrajectoryFollower) EnableParkingBrake(enable bool) {
	if enable {
		f.parkingMaxMovingSpeed = ParkingMaxSpeed
	} else {
		f.parkingMaxMovingSpeed = 0
	}
	if f.Phase() == MoveEnded {
		f.finaliseStop()
	}
}

// ParkingBrakeEnabled reports whether the parking brake is on.
func (f *TrajectoryFollower) ParkingBrakeEnabled() bool {
	return f.parkingMaxMovingSpeed != 0
}

// Control runs one tick: odometry, stop detection, off-path detection, the phase step and the
// actuator orders.
func (f *TrajectoryFollower) Control() {
	left, right := f.drv.RawTicks()
	f.odometry.Compute(&f.pose, left, right, f.IsMovingForward())
	f.currentSpeed.Store(f.odometry.Speed())
	f.manageStop()
	f.checkPosition()

	switch f.Phase() {
	case MoveInit:
		f.stepMoveInit()
	case Moving:
		if f.trajectoryControlled {
			order := f.curvaturePID.Compute(f.pose, f.trajectoryPoint.Target, f.trajectoryPoint.Curvature,
				f.IsMovingForward())
			f.curvatureOrder.Store(order)
			f.steer.SetAimCurvature(order)
		}
		var speed float64
		if f.translationControlled {
			speed = f.computeTranslation()
		} else {
			speed = math.Abs(f.maxMovingSpeed)
		}
		f.movingSpeedSetPoint = f.slewLimit(speed)
	case Breaking:
		// Ramped down at MaxDeceleration rather than zeroed, so the slew bound holds in every
		// phase. The curvature order is frozen.
		f.movingSpeedSetPoint = f.slewLimit(0)
	case MoveEnded:
		if f.translationControlled {
			f.movingSpeedSetPoint = f.computeTranslation()
		} else {
			f.movingSpeedSetPoint = 0
		}
	}

	if f.translationControlled {
		f.movingSpeedSetPoint = f.enforceSpeedLimits(f.movingSpeedSetPoint)
		if f.IsMovingForward() {
			f.drv.SetAimSpeed(f.movingSpeedSetPoint)
		} else {
			f.drv.SetAimSpeed(-f.movingSpeedSetPoint)
		}
	}
	if ctrl, ok := f.drv.(drive.Controller); ok {
		ctrl.Control()
	}
}

func (f *TrajectoryFollower) stepMoveInit() {
	f.movingSpeedSetPoint = 0
	blocked := f.trajectoryControlled && f.steer.IsBlocked()
	switch {
	case blocked || f.clk.Since(f.moveInitStart) > MoveInitTimeout:
		f.logger.Warnw("steering did not reach the leg curvature",
			"aim", f.trajectoryPoint.Curvature, "real", f.steer.RealCurvature(), "blocked", blocked)
		f.setPhase(MoveEnded)
		f.status.raise(ExternallyBlocked)
		f.finaliseStop()
	case f.trajectoryControlled:
		aim := f.trajectoryPoint.Curvature
		f.curvatureOrder.Store(aim)
		f.steer.SetAimCurvature(aim)
		if math.Abs(f.steer.RealCurvature()-aim) < CurvatureTolerance {
			f.beginMoving()
		}
	default:
		f.beginMoving()
	}
}

func (f *TrajectoryFollower) beginMoving() {
	f.setPhase(Moving)
	f.stopping.MoveIsStarting()
	f.updateTranslationSetPoint()
}

// computeTranslation steps the translation loop. Its output is bounded by the leg's speed
// limit so the slew limiter never ramps past it.
func (f *TrajectoryFollower) computeTranslation() float64 {
	limit := math.Abs(f.maxMovingSpeed)
	f.translationPID.SetOutputLimits(-limit, limit)
	return f.translationPID.Compute(f.translationSetPoint, f.odometry.Translation())
}

// slewLimit bounds the change of the speed order since the previous tick by the acceleration
// and deceleration limits.
func (f *TrajectoryFollower) slewLimit(speed float64) float64 {
	maxUp := f.tunings.MaxAcceleration / f.freq
	maxDown := f.tunings.MaxDeceleration / f.freq
	switch {
	case speed-f.previousSpeedSetPoint > maxUp:
		speed = f.previousSpeedSetPoint + maxUp
	case f.previousSpeedSetPoint-speed > maxDown:
		speed = f.previousSpeedSetPoint - maxDown
	}
	f.previousSpeedSetPoint = speed
	return speed
}

func (f *TrajectoryFollower) enforceSpeedLimits(speed float64) float64 {
	limit := math.Abs(f.maxMovingSpeed)
	switch {
	case speed > limit:
		speed = limit
	case speed < -limit:
		speed = -limit
	}

	switch abs := math.Abs(speed); {
	case abs < f.tunings.StoppedSpeed:
		return 0
	case abs < f.tunings.MinAimSpeed:
		return math.Copysign(f.tunings.MinAimSpeed, speed)
	}
	return speed
}

func (f *TrajectoryFollower) manageStop() {
	f.stopping.Compute(f.odometry.Speed())
	if !f.translationControlled || !f.stopping.IsStopped() {
		return
	}
	switch f.Phase() {
	case Moving, Breaking:
		f.setPhase(MoveEnded)
		if f.trajectoryControlled && !f.trajectoryPoint.IsStopPoint {
			f.logger.Warnw("robot stopped before a pass-through point", "pose", f.pose, "target", f.trajectoryPoint.Target)
			f.status.raise(ExternallyBlocked)
		}
		f.finaliseStop()
	case MoveInit, MoveEnded:
	}
}

func (f *TrajectoryFollower) checkPosition() {
	if f.Phase() != Moving || !f.trajectoryControlled {
		return
	}
	if d := f.pose.DistanceTo(f.trajectoryPoint.Target); d > f.tunings.DistanceMaxToTraj {
		f.logger.Warnw("robot too far from trajectory", "distance", d, "pose", f.pose, "target", f.trajectoryPoint.Target)
		f.setPhase(Breaking)
		f.status.raise(FarAway)
	}
}

// updateTranslationSetPoint applies the buffered translation setpoint. The translation loop is
// reset when switching between a finite and an infinite distance.
func (f *TrajectoryFollower) updateTranslationSetPoint() {
	wasInfinite := f.translationSetPoint >= InfiniteDistance
	willBeInfinite := f.translationSetPointBuffer >= InfiniteDistance
	f.translationSetPoint = f.translationSetPointBuffer
	if wasInfinite != willBeInfinite {
		f.translationPID.ResetIntegralError()
		f.translationPID.ResetDerivativeError(f.translationSetPoint, f.odometry.Translation())
	}
}

func (f *TrajectoryFollower) finaliseStop() {
	f.odometry.ResetTranslation()
	f.translationSetPoint = 0
	f.translationSetPointBuffer = 0
	f.movingSpeedSetPoint = 0
	f.previousSpeedSetPoint = 0
	f.maxMovingSpeed = f.parkingMaxMovingSpeed
	f.drv.SetAimSpeed(0)
	f.translationPID.ResetIntegralError()
	f.translationPID.ResetDerivativeError(f.translationSetPoint, f.odometry.Translation())
}
