package drive

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/motioncore/control"
	"go.viam.com/motioncore/logging"
	"go.viam.com/motioncore/utils"
)

// ErrSpeedControlled is returned for raw power orders while the speed loop is active.
var ErrSpeedControlled = errors.New("motor speed is under closed-loop control")

// MotorEncoderConfig holds the motor encoder geometry and protection settings.
type MotorEncoderConfig struct {
	// TickToMM converts motor encoder ticks to millimeters of travel.
	TickToMM float64 `json:"motor_tick_to_mm"`
	// MinSpeed is the measured speed (mm/s) below which the motor is reported at rest.
	MinSpeed float64 `json:"min_speed"`
	// MaxCurrent is the bridge current limit in amps. Zero keeps the bridge default.
	MaxCurrent float64 `json:"max_current_amps,omitempty"`
	// OvercurrentRecoverMs is how long an overcurrent latch is held before power is restored.
	OvercurrentRecoverMs int `json:"overcurrent_recover_ms"`
	// SpeedAverageSize is the moving-average window of the measured speed, in ticks.
	SpeedAverageSize int `json:"speed_average_size"`
}

// DefaultMotorEncoderConfig returns the settings of the reference drive train.
func DefaultMotorEncoderConfig() MotorEncoderConfig {
	return MotorEncoderConfig{
		TickToMM:             0.1201,
		MinSpeed:             5,
		OvercurrentRecoverMs: 1000,
		SpeedAverageSize:     50,
	}
}

// MotorEncoder regulates the speed of a Motor from its own Encoder. Control is called once per
// tick at freq Hz; every method is safe for concurrent use.
type MotorEncoder struct {
	mu     sync.Mutex
	motor  Motor
	enc    Encoder
	cfg    MotorEncoderConfig
	freq   float64
	clk    clock.Clock
	logger logging.Logger

	speedPID        *control.PID
	speedAvg        *utils.RollingAverage
	speedControlled bool
	setPoint        float64 // mm/s
	currentSpeed    float64 // mm/s
	pwm             float64 // %
	deltaTicks      int32

	overcurrent      bool
	overcurrentSince time.Time
	motorErrLogged   bool
}

// NewMotorEncoder returns a speed-controlled MotorEncoder with zero speed gains.
func NewMotorEncoder(
	motor Motor,
	enc Encoder,
	cfg MotorEncoderConfig,
	freq float64,
	clk clock.Clock,
	logger logging.Logger,
) *MotorEncoder {
	pid := control.NewPID(freq)
	pid.SetOutputLimits(-100, 100)
	if cfg.MaxCurrent > 0 {
		motor.SetMaxCurrent(cfg.MaxCurrent)
	}
	return &MotorEncoder{
		motor:           motor,
		enc:             enc,
		cfg:             cfg,
		freq:            freq,
		clk:             clk,
		logger:          logger,
		speedPID:        pid,
		speedAvg:        utils.NewRollingAverage(cfg.SpeedAverageSize),
		speedControlled: true,
	}
}

// SetAimSpeed sets the wheel speed setpoint. A zero setpoint also clears the speed loop's
// integral and derivative state.
func (me *MotorEncoder) SetAimSpeed(speed float64) {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.setPoint = speed
	if speed == 0 {
		me.speedPID.ResetIntegralError()
		me.speedPID.ResetDerivativeError(me.setPoint, me.currentSpeed)
	}
}

// AimSpeed returns the wheel speed setpoint.
func (me *MotorEncoder) AimSpeed() float64 {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.setPoint
}

// CurrentSpeed returns the averaged wheel speed.
func (me *MotorEncoder) CurrentSpeed() float64 {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.currentSpeed
}

// MotorTicks returns the motor encoder ticks read by the last Control.
func (me *MotorEncoder) MotorTicks() int32 {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.deltaTicks
}

// EnableSpeedControl toggles the speed loop. Disabling it also cuts motor power.
func (me *MotorEncoder) EnableSpeedControl(enable bool) error {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.speedControlled = enable
	if !enable {
		me.pwm = 0
		return me.motor.SetPower(0)
	}
	return nil
}

// IsSpeedControlled reports whether the speed loop is active.
func (me *MotorEncoder) IsSpeedControlled() bool {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.speedControlled
}

// SetRawPWM applies power directly. Only allowed when the speed loop is disabled.
func (me *MotorEncoder) SetRawPWM(pct float64) error {
	me.mu.Lock()
	defer me.mu.Unlock()
	if me.speedControlled {
		return ErrSpeedControlled
	}
	me.pwm = pct
	return me.motor.SetPower(pct)
}

// SetTunings replaces the speed loop gains.
func (me *MotorEncoder) SetTunings(kp, ki, kd float64) {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.speedPID.SetTunings(kp, ki, kd)
}

// CurrentSense returns the motor current in amps.
func (me *MotorEncoder) CurrentSense() float64 {
	return me.motor.Current()
}

// SetMaximumCurrent sets the bridge current limit.
func (me *MotorEncoder) SetMaximumCurrent(amps float64) {
	me.motor.SetMaxCurrent(amps)
}

// IsOvercurrent reports whether an overcurrent latch is being held.
func (me *MotorEncoder) IsOvercurrent() bool {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.overcurrent
}

// Control measures the wheel speed, manages the overcurrent latch and, when speed controlled,
// steps the speed loop and applies its output.
func (me *MotorEncoder) Control() {
	me.mu.Lock()
	defer me.mu.Unlock()

	me.deltaTicks = me.enc.ReadAndReset()
	me.speedAvg.Add(float64(me.deltaTicks) * me.cfg.TickToMM * me.freq)
	me.currentSpeed = me.speedAvg.Average()
	if math.Abs(me.currentSpeed) < me.cfg.MinSpeed {
		me.currentSpeed = 0
	}

	if me.motor.Overcurrent() {
		now := me.clk.Now()
		recoverDelay := time.Duration(me.cfg.OvercurrentRecoverMs) * time.Millisecond
		switch {
		case !me.overcurrent:
			me.overcurrent = true
			me.overcurrentSince = now
			me.logger.Warnw("overcurrent", "amps", me.motor.Current())
		case now.Sub(me.overcurrentSince) > recoverDelay:
			me.overcurrent = false
			me.motor.ClearOvercurrent()
			me.logger.Info("returning to normal operation after overcurrent incident")
		}
	}

	if !me.speedControlled {
		return
	}
	me.pwm = me.speedPID.Compute(me.setPoint, me.currentSpeed)
	if err := me.motor.SetPower(me.pwm); err != nil {
		// Logged once per failure streak; the tick keeps running.
		if !me.motorErrLogged {
			me.logger.Errorw("couldn't set motor power", "error", err)
			me.motorErrLogged = true
		}
		return
	}
	me.motorErrLogged = false
}

// LogStatus writes the speed loop state at debug level.
func (me *MotorEncoder) LogStatus() {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.logger.Debugw("speed loop",
		"set_point", me.setPoint,
		"speed", me.currentSpeed,
		"pwm", me.pwm,
		"pid", me.speedPID.String(),
		"amps", me.motor.Current(),
	)
}

func (me *MotorEncoder) String() string {
	me.mu.Lock()
	defer me.mu.Unlock()
	return fmt.Sprintf("aim=%g speed=%g pwm=%g", me.setPoint, me.currentSpeed, me.pwm)
}
