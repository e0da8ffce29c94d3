// Package fake implements a simulated car-like vehicle for exercising the drive and the
// motion-control loop without hardware.
package fake

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/motioncore/components/drive"
	"go.viam.com/motioncore/spatialmath"
)

const simStep = time.Millisecond

// PlantConfig describes the simulated vehicle.
type PlantConfig struct {
	// MaxSpeed is the free-running speed at full power, in mm/s.
	MaxSpeed float64
	// TimeConstant is the first-order lag of the speed response.
	TimeConstant time.Duration
	// TickToMM and TickToRad describe the odometry encoders.
	TickToMM  float64
	TickToRad float64
	// MotorTickToMM describes the motor encoder.
	MotorTickToMM float64
	// AmpsPerPct is the simulated current drawn per percent of power.
	AmpsPerPct float64
}

// DefaultPlantConfig returns a vehicle matching the reference chassis.
func DefaultPlantConfig() PlantConfig {
	return PlantConfig{
		MaxSpeed:      1800,
		TimeConstant:  10 * time.Millisecond,
		TickToMM:      0.0829,
		TickToRad:     0.00108,
		MotorTickToMM: 0.1201,
		AmpsPerPct:    0.05,
	}
}

type tickCounter struct {
	frac float64
}

// take moves the whole part of the accumulated ticks out.
func (tc *tickCounter) take() int32 {
	whole := math.Trunc(tc.frac)
	tc.frac -= whole
	return int32(whole)
}

// Plant is a simulated vehicle with a single propulsion motor and steering given by a
// curvature source. Its state advances lazily from clock time whenever it is read or
// commanded, in steps of at most one millisecond.
type Plant struct {
	mu         sync.Mutex
	cfg        PlantConfig
	clk        clock.Clock
	curvature  func() float64
	lastUpdate time.Time

	pose        spatialmath.Pose
	speed       float64
	targetSpeed float64

	power       float64
	maxCurrent  float64
	overcurrent bool
	blocked     bool

	left, right, motor tickCounter
}

// NewPlant returns a vehicle at rest at the origin. curvature returns the steering's current
// curvature in m^-1; nil drives straight.
func NewPlant(cfg PlantConfig, clk clock.Clock, curvature func() float64) *Plant {
	if curvature == nil {
		curvature = func() float64 { return 0 }
	}
	return &Plant{cfg: cfg, clk: clk, curvature: curvature, lastUpdate: clk.Now(), maxCurrent: math.Inf(1)}
}

func (p *Plant) advance() {
	now := p.clk.Now()
	elapsed := now.Sub(p.lastUpdate)
	p.lastUpdate = now
	if elapsed <= 0 {
		return
	}
	curvature := p.curvature()
	tau := p.cfg.TimeConstant.Seconds()
	for elapsed > 0 {
		step := simStep
		if elapsed < step {
			step = elapsed
		}
		elapsed -= step
		dt := step.Seconds()

		target := p.targetSpeed
		if p.blocked {
			target = 0
			p.speed = 0
		}
		if tau > 0 {
			p.speed += (target - p.speed) * (1 - math.Exp(-dt/tau))
		} else {
			p.speed = target
		}

		ds := p.speed * dt
		dTheta := curvature * ds / 1000
		mid := p.pose.Heading + dTheta/2
		p.pose = spatialmath.NewPose(p.pose.X+ds*math.Cos(mid), p.pose.Y+ds*math.Sin(mid), p.pose.Heading+dTheta)

		p.right.frac += ds/p.cfg.TickToMM + dTheta/p.cfg.TickToRad
		p.left.frac += ds/p.cfg.TickToMM - dTheta/p.cfg.TickToRad
		p.motor.frac += ds / p.cfg.MotorTickToMM
	}
}

// Pose returns the true pose of the vehicle.
func (p *Plant) Pose() spatialmath.Pose {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	return p.pose
}

// SetPose teleports the vehicle without producing encoder ticks.
func (p *Plant) SetPose(pose spatialmath.Pose) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.pose = pose.Normalized()
}

// Speed returns the true speed of the vehicle.
func (p *Plant) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	return p.speed
}

// SetBlocked pins the vehicle in place, as if pushed against an obstacle.
func (p *Plant) SetBlocked(blocked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.blocked = blocked
}

// InjectOvercurrent latches the bridge's overcurrent flag, cutting power until cleared.
func (p *Plant) InjectOvercurrent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.overcurrent = true
	p.targetSpeed = 0
}

func (p *Plant) readAndReset(tc *tickCounter) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	return tc.take()
}

// Drive returns an ideal drive: the vehicle speed tracks the aim speed directly.
func (p *Plant) Drive() drive.Drive {
	return (*idealDrive)(p)
}

// Motor returns the plant's propulsion motor.
func (p *Plant) Motor() drive.Motor {
	return (*plantMotor)(p)
}

// MotorEncoder returns the encoder mounted on the propulsion motor.
func (p *Plant) MotorEncoder() drive.Encoder {
	return encoderFunc(func() int32 { return p.readAndReset(&p.motor) })
}

// LeftEncoder returns the left odometry encoder.
func (p *Plant) LeftEncoder() drive.Encoder {
	return encoderFunc(func() int32 { return p.readAndReset(&p.left) })
}

// RightEncoder returns the right odometry encoder.
func (p *Plant) RightEncoder() drive.Encoder {
	return encoderFunc(func() int32 { return p.readAndReset(&p.right) })
}

type encoderFunc func() int32

func (f encoderFunc) ReadAndReset() int32 { return f() }

type idealDrive Plant

func (d *idealDrive) SetAimSpeed(speed float64) {
	p := (*Plant)(d)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.targetSpeed = speed
}

func (d *idealDrive) CurrentSpeed() float64 {
	return (*Plant)(d).Speed()
}

func (d *idealDrive) RawTicks() (left, right int32) {
	p := (*Plant)(d)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	return p.left.take(), p.right.take()
}

type plantMotor Plant

func (m *plantMotor) SetPower(pct float64) error {
	p := (*Plant)(m)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	pct = math.Max(-100, math.Min(100, pct))
	if p.overcurrent {
		pct = 0
	}
	p.power = pct
	if math.Abs(pct)*p.cfg.AmpsPerPct > p.maxCurrent {
		p.overcurrent = true
		pct = 0
	}
	p.targetSpeed = pct / 100 * p.cfg.MaxSpeed
	return nil
}

func (m *plantMotor) Current() float64 {
	p := (*Plant)(m)
	p.mu.Lock()
	defer p.mu.Unlock()
	return math.Abs(p.power) * p.cfg.AmpsPerPct
}

func (m *plantMotor) Overcurrent() bool {
	p := (*Plant)(m)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overcurrent
}

func (m *plantMotor) ClearOvercurrent() {
	p := (*Plant)(m)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overcurrent = false
}

func (m *plantMotor) SetMaxCurrent(amps float64) {
	p := (*Plant)(m)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxCurrent = amps
}
