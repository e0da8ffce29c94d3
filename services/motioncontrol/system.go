// Package motioncontrol turns a queue of waypoints into steering and speed orders for a
// car-like robot, tracks its pose by wheel odometry and brings it safely to rest when it can
// not follow its path.
package motioncontrol

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.opencensus.io/trace"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"go.viam.com/motioncore/components/drive"
	"go.viam.com/motioncore/components/steering"
	"go.viam.com/motioncore/logging"
	"go.viam.com/motioncore/spatialmath"
)

// lookaheadPointSpacing is the distance, in mm, budgeted per waypoint between the robot and
// the next stop point.
const lookaheadPointSpacing = 20.

// ErrTrajectoryEdition is returned when a trajectory edit is refused. The trajectory is left
// unchanged.
var ErrTrajectoryEdition = errors.New("trajectory edition failure")

// MotionControlSystem owns the trajectory and drives a TrajectoryFollower along it, one leg
// at a time. Control is called by the periodic tick; every other method may be called
// concurrently from command handlers.
type MotionControlSystem struct {
	mu       sync.Mutex
	follower *TrajectoryFollower
	status   statusRegister
	logger   logging.Logger

	trajectory []TrajectoryPoint
	index      int
	complete   bool

	travelling    atomic.Bool
	wasTravelling bool
	highSpeed     bool

	runID      uuid.UUID
	idle       chan struct{}
	lastStatus MoveStatus
}

// NewMotionControlSystem returns a system at rest at the origin, with an empty trajectory and
// every control loop enabled. freq is the tick frequency in Hz.
func NewMotionControlSystem(
	freq float64,
	odometryCfg OdometryConfig,
	steer steering.Steering,
	drv drive.Drive,
	clk clock.Clock,
	logger logging.Logger,
) *MotionControlSystem {
	m := &MotionControlSystem{logger: logger}
	m.follower = NewTrajectoryFollower(freq, odometryCfg, steer, drv, &m.status, clk, logger.Sublogger("follower"))
	return m
}

// Control runs one tick: the follower first, then the waypoint sequencing.
func (m *MotionControlSystem) Control() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.follower.Control()
	m.sequence()
	if !m.travelling.Load() && m.follower.Phase() == MoveEnded && m.idle != nil {
		close(m.idle)
		m.idle = nil
	}
}

func (m *MotionControlSystem) sequence() {
	if !m.travelling.Load() {
		return
	}
	phase := m.follower.Phase()

	if m.index >= len(m.trajectory) {
		if phase == Breaking {
			return
		}
		m.stopAndClear()
		if phase != MoveEnded || !m.wasTravelling {
			m.logger.Warnw("trajectory exhausted", "index", m.index, "phase", phase, "run", m.runID)
			m.status.raise(EmptyTrajectory)
		}
		m.endTravel()
		return
	}

	if !m.wasTravelling {
		m.loadPoint()
		if err := m.follower.StartMove(); err != nil {
			m.logger.Debugw("couldn't start first leg", "error", err)
		}
		m.wasTravelling = true
		return
	}

	point := m.trajectory[m.index]
	switch phase {
	case Moving:
		if point.IsStopPoint {
			return
		}
		projection := m.follower.Pose().LongitudinalOffset(point.Target)
		if !m.follower.IsMovingForward() {
			projection = -projection
		}
		if projection <= 0 {
			return
		}
		if m.index+1 < len(m.trajectory) {
			m.index++
			m.loadPoint()
			return
		}
		m.logger.Warnw("passed the last point of an unfinished trajectory", "index", m.index, "run", m.runID)
		m.status.raise(EmptyTrajectory)
		m.stopAndClear()
	case MoveEnded:
		if point.IsEndOfTrajectory || m.status.load() != MoveOK {
			m.stopAndClear()
			m.endTravel()
			return
		}
		if m.index+1 < len(m.trajectory) {
			m.index++
			m.loadPoint()
			if err := m.follower.StartMove(); err != nil {
				m.logger.Debugw("couldn't start next leg", "error", err)
			}
			return
		}
		m.logger.Warnw("trajectory ended on a point that is not an end point", "index", m.index, "run", m.runID)
		m.status.raise(EmptyTrajectory)
		m.stopAndClear()
		m.endTravel()
	case MoveInit, Breaking:
	}
}

// loadPoint targets the current point and bounds the translation by the next stop point.
func (m *MotionControlSystem) loadPoint() {
	if err := m.follower.SetTrajectoryPoint(m.trajectory[m.index]); err != nil {
		m.logger.Debugw("couldn't set trajectory point", "error", err)
	}
	_, ahead, found := lo.FindIndexOf(m.trajectory[m.index:], func(tp TrajectoryPoint) bool {
		return tp.IsStopPoint
	})
	var err error
	if found {
		err = m.follower.SetDistanceToDrive(float64(ahead+1) * lookaheadPointSpacing)
	} else {
		err = m.follower.SetInfiniteDistanceToDrive()
	}
	if err != nil {
		m.logger.Debugw("couldn't set distance to drive", "error", err)
	}
}

func (m *MotionControlSystem) stopAndClear() {
	m.follower.EmergencyStop()
	m.index = 0
	m.trajectory = m.trajectory[:0]
	m.complete = false
}

func (m *MotionControlSystem) endTravel() {
	m.travelling.Store(false)
	m.wasTravelling = false
}

// FollowTrajectory starts driving along the trajectory. Points may still be appended while it
// runs. Requires trajectory control and a robot at rest: after StopAndClearTrajectory the
// call is refused with ErrMoveInProgress until the brake is over.
func (m *MotionControlSystem) FollowTrajectory() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.follower.IsTrajectoryControlled() {
		m.logger.Errorw("follow trajectory refused", "level", m.follower.MotionControlLevel())
		return errors.Wrap(ErrWrongControlLevel, "following a trajectory needs trajectory control")
	}
	if phase := m.follower.Phase(); m.travelling.Load() || phase != MoveEnded {
		return errors.Wrapf(ErrMoveInProgress, "previous move is %v", phase)
	}
	m.beginRun()
	m.wasTravelling = false
	m.travelling.Store(true)
	m.logger.Infow("following trajectory", "points", len(m.trajectory), "pose", m.follower.Pose(), "run", m.runID)
	return nil
}

// StartManualMove starts a move driven by the manual setpoints: max speed, curvature and
// distance to drive. Refused under trajectory control or while a move runs.
func (m *MotionControlSystem) StartManualMove() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.follower.IsTrajectoryControlled() {
		m.logger.Errorw("manual move refused", "level", m.follower.MotionControlLevel())
		return errors.Wrap(ErrWrongControlLevel, "manual moves are not allowed under trajectory control")
	}
	if err := m.follower.StartMove(); err != nil {
		return err
	}
	m.beginRun()
	m.logger.Infow("manual move started", "max_speed", m.follower.MaxSpeed(),
		"curvature", m.follower.Curvature(), "run", m.runID)
	return nil
}

func (m *MotionControlSystem) beginRun() {
	m.status.reset()
	m.runID = uuid.New()
	if m.idle == nil {
		m.idle = make(chan struct{})
	}
}

// StopAndClearTrajectory brakes to a stop, empties the trajectory and ends the current run.
// Points appended while the robot brakes are kept for the next FollowTrajectory. It always
// succeeds.
func (m *MotionControlSystem) StopAndClearTrajectory() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Infow("stop and clear trajectory", "pose", m.follower.Pose(), "phase", m.follower.Phase(), "run", m.runID)
	m.stopAndClear()
	m.endTravel()
}

// WaitForMoveEnd blocks until the current trajectory or manual move is over and returns its
// status.
func (m *MotionControlSystem) WaitForMoveEnd(ctx context.Context) (MoveStatus, error) {
	ctx, span := trace.StartSpan(ctx, "motioncontrol::WaitForMoveEnd")
	defer span.End()

	m.mu.Lock()
	idle := m.idle
	m.mu.Unlock()
	if idle != nil && !goutils.SelectContextOrWaitChan(ctx, idle) {
		return m.status.load(), ctx.Err()
	}
	return m.status.load(), nil
}

// AppendToTrajectory adds a point at the end of the trajectory. Refused once an end point
// has been appended.
func (m *MotionControlSystem) AppendToTrajectory(tp TrajectoryPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendToTrajectory(tp)
}

func (m *MotionControlSystem) appendToTrajectory(tp TrajectoryPoint) error {
	if m.complete {
		return errors.Wrap(ErrTrajectoryEdition, "trajectory already has an end point")
	}
	m.trajectory = append(m.trajectory, tp)
	if tp.IsEndOfTrajectory {
		m.complete = true
	}
	return nil
}

// UpdateTrajectoryPoint replaces a point that is still ahead of the robot. Setting an end
// point drops every point after it.
func (m *MotionControlSystem) UpdateTrajectoryPoint(index int, tp TrajectoryPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateTrajectoryPoint(index, tp)
}

func (m *MotionControlSystem) updateTrajectoryPoint(index int, tp TrajectoryPoint) error {
	if err := m.checkEditable(index); err != nil {
		return err
	}
	if m.trajectory[index].IsEndOfTrajectory {
		m.complete = false
	}
	m.trajectory[index] = tp
	if tp.IsEndOfTrajectory {
		m.complete = true
		m.trajectory = m.trajectory[:index+1]
	}
	return nil
}

// DeleteTrajectoryFrom drops the point at index and every point after it.
func (m *MotionControlSystem) DeleteTrajectoryFrom(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkEditable(index); err != nil {
		return err
	}
	m.trajectory = m.trajectory[:index]
	m.complete = false
	return nil
}

func (m *MotionControlSystem) checkEditable(index int) error {
	switch {
	case index < 0 || index >= len(m.trajectory):
		return errors.Wrapf(ErrTrajectoryEdition, "index %d out of range [0, %d)", index, len(m.trajectory))
	case index < m.index || (index == m.index && m.travelling.Load()):
		return errors.Wrapf(ErrTrajectoryEdition, "point %d already reached, current index is %d", index, m.index)
	}
	return nil
}

// Trajectory returns a copy of the queued points.
func (m *MotionControlSystem) Trajectory() []TrajectoryPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TrajectoryPoint(nil), m.trajectory...)
}

// TrajectoryIndex returns the index of the point being driven to.
func (m *MotionControlSystem) TrajectoryIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// IsTrajectoryComplete reports whether the trajectory holds an end point.
func (m *MotionControlSystem) IsTrajectoryComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.complete
}

// IsMovingToDestination reports whether a trajectory is being followed.
func (m *MotionControlSystem) IsMovingToDestination() bool {
	return m.travelling.Load()
}

// MoveStatus returns the faults raised since the last FollowTrajectory or StartManualMove.
func (m *MotionControlSystem) MoveStatus() MoveStatus {
	return m.status.load()
}

// MovePhase returns the phase of the current leg.
func (m *MotionControlSystem) MovePhase() MovePhase {
	return m.follower.Phase()
}

// MovingSpeed returns the measured speed in mm/s, negative in reverse.
func (m *MotionControlSystem) MovingSpeed() float64 {
	return m.follower.CurrentSpeed()
}

// Curvature returns the curvature order in m^-1.
func (m *MotionControlSystem) Curvature() float64 {
	return m.follower.Curvature()
}

// RunID identifies the last FollowTrajectory or StartManualMove in the logs.
func (m *MotionControlSystem) RunID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

// MovingDirection is 0 at rest, 1 forward and -1 in reverse.
func (m *MotionControlSystem) MovingDirection() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.MovingDirection()
}

// IsMovingForward reports the direction of the current or last leg.
func (m *MotionControlSystem) IsMovingForward() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.IsMovingForward()
}

// IsBraking reports whether the robot is decelerating to a stop.
func (m *MotionControlSystem) IsBraking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.IsBraking()
}

// RawTicks returns the odometry encoder deltas of the last tick.
func (m *MotionControlSystem) RawTicks() (left, right int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.RawTicks()
}

// Pose returns a snapshot of the dead-reckoned pose.
func (m *MotionControlSystem) Pose() spatialmath.Pose {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.Pose()
}

// SetPose overwrites the dead-reckoned pose.
func (m *MotionControlSystem) SetPose(p spatialmath.Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.follower.SetPose(p)
}

// EditPose shifts the dead-reckoned pose by dx, dy (mm) and dHeading (rad).
func (m *MotionControlSystem) EditPose(dx, dy, dHeading float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.follower.SetPose(m.follower.Pose().Add(dx, dy, dHeading))
}

// SetMotionControlLevel selects the closed loops, from 0 (none) to 4 (all).
func (m *MotionControlSystem) SetMotionControlLevel(level uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.SetMotionControlLevel(level)
}

// MotionControlLevel returns the current level.
func (m *MotionControlSystem) MotionControlLevel() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.MotionControlLevel()
}

// SetMaxSpeed sets the signed speed of a manual move, in mm/s.
func (m *MotionControlSystem) SetMaxSpeed(speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.SetMaxSpeed(speed)
}

// SetDistanceToDrive sets the distance of a manual move, in mm.
func (m *MotionControlSystem) SetDistanceToDrive(distance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.SetDistanceToDrive(distance)
}

// SetInfiniteDistanceToDrive makes a manual move go on until stopped.
func (m *MotionControlSystem) SetInfiniteDistanceToDrive() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.SetInfiniteDistanceToDrive()
}

// SetCurvature sets the curvature of a manual move and aims the steering at it.
func (m *MotionControlSystem) SetCurvature(curvature float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.SetCurvature(curvature)
}

// EnableParkingBrake makes the robot hold its position between moves.
func (m *MotionControlSystem) EnableParkingBrake(enable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.follower.EnableParkingBrake(enable)
}

// EnableHighSpeed switches between the default and the high-speed tunings.
func (m *MotionControlSystem) EnableHighSpeed(enable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.highSpeed = enable
	if enable {
		m.follower.SetTunings(HighSpeedTunings())
	} else {
		m.follower.SetTunings(DefaultTunings())
	}
}

// IsHighSpeed reports whether the high-speed tunings were selected last.
func (m *MotionControlSystem) IsHighSpeed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.highSpeed
}

// SetTunings replaces every tuning.
func (m *MotionControlSystem) SetTunings(t Tunings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.follower.SetTunings(t)
}

// Tunings returns the active tunings.
func (m *MotionControlSystem) Tunings() Tunings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follower.Tunings()
}

// LogStatus reports status changes and the state of every loop.
func (m *MotionControlSystem) LogStatus() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if status := m.status.load(); status != m.lastStatus {
		m.lastStatus = status
		if status == MoveOK {
			m.logger.Info("Move status is OK")
		} else {
			m.logger.Warnf("Move error: %v", status)
		}
	}
	if !m.logger.Enabled(logging.DEBUG) {
		return
	}
	f := m.follower
	m.logger.Debugw("motion control",
		"phase", f.Phase(),
		"pose", f.pose,
		"speed", f.CurrentSpeed(),
		"speed_setpoint", f.SpeedSetPoint(),
		"translation", f.odometry.Translation(),
		"translation_setpoint", f.translationSetPoint,
		"translation_pid", f.translationPID,
		"curvature_pid", f.curvaturePID,
		"stopping", f.stopping,
		"index", m.index,
		"points", len(m.trajectory),
	)
}
