// Package config describes a robot's motion-control setup and loads it from JSON files or
// attribute maps.
package config

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/motioncore/components/drive"
	"go.viam.com/motioncore/components/steering"
	"go.viam.com/motioncore/services/motioncontrol"
)

// SteeringConfig describes the steering servo.
type SteeringConfig struct {
	steering.Geometry
	ControlPeriodMs uint32 `json:"control_period_ms"`
	RecoverDelayMs  uint32 `json:"recover_delay_ms"`
}

// Config is the motion-control setup of a robot.
type Config struct {
	ConfigFilePath string `json:"-"`

	TickFrequencyHz   float64                      `json:"tick_frequency_hz"`
	TelemetryPeriodMs uint32                       `json:"telemetry_period_ms"`
	Odometry          motioncontrol.OdometryConfig `json:"odometry"`
	Steering          SteeringConfig               `json:"steering"`
	Drive             drive.MotorEncoderConfig     `json:"drive"`
	Tunings           motioncontrol.Tunings        `json:"tunings"`
	ParkingBrake      bool                         `json:"parking_brake"`
	HighSpeed         bool                         `json:"high_speed"`
}

// Default returns the setup of the reference robot. Fields missing from a file or attribute
// map keep these values.
func Default() *Config {
	return &Config{
		TickFrequencyHz:   1000,
		TelemetryPeriodMs: uint32(motioncontrol.DefaultTelemetryPeriod / time.Millisecond),
		Odometry:          motioncontrol.DefaultOdometryConfig(),
		Steering: SteeringConfig{
			Geometry:        steering.DefaultGeometry(),
			ControlPeriodMs: uint32(steering.DefaultControlPeriod / time.Millisecond),
			RecoverDelayMs:  uint32(steering.DefaultRecoverDelay / time.Millisecond),
		},
		Drive:   drive.DefaultMotorEncoderConfig(),
		Tunings: motioncontrol.DefaultTunings(),
	}
}

// Read reads a config from the given file, substituting ${VAR} references from the
// environment.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	cfg.ConfigFilePath = filePath
	if err := json.NewDecoder(bytes.NewReader(buf)).Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if err := cfg.Validate(filePath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromAttributes decodes a config from an attribute map keyed by the json field names.
// Strings holding numbers or booleans are accepted.
func FromAttributes(attributes map[string]interface{}) (*Config, error) {
	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Squash:           true,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error creating decoder for config")
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "error decoding config attributes")
	}
	if err := cfg.Validate("attributes"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that would make the control math undefined.
func (c *Config) Validate(path string) error {
	if c.TickFrequencyHz <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "tick_frequency_hz")
	}
	if c.Odometry.TickToMM == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "odometry.tick_to_mm")
	}
	if c.Odometry.TickToRad == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "odometry.tick_to_rad")
	}
	if c.Drive.TickToMM == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "drive.motor_tick_to_mm")
	}
	if c.Steering.WheelbaseMM <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "steering.wheelbase_mm")
	}
	g := c.Steering.Geometry
	if g.AngleMinDeg >= g.AngleMaxDeg {
		return utils.NewConfigValidationError(path,
			errors.Errorf("steering angle_min_deg (%d) must be below angle_max_deg (%d)", g.AngleMinDeg, g.AngleMaxDeg))
	}
	if g.AngleOriginDeg < g.AngleMinDeg || g.AngleOriginDeg > g.AngleMaxDeg {
		return utils.NewConfigValidationError(path,
			errors.Errorf("steering angle_origin_deg (%d) must be within [%d, %d]", g.AngleOriginDeg, g.AngleMinDeg, g.AngleMaxDeg))
	}
	return nil
}

// TickPeriod is the interval between two control ticks.
func (c *Config) TickPeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.TickFrequencyHz)
}

// TelemetryPeriod is the interval between two status reports.
func (c *Config) TelemetryPeriod() time.Duration {
	return time.Duration(c.TelemetryPeriodMs) * time.Millisecond
}

// SteeringControlPeriod is the interval between two steering servo transactions.
func (c *Config) SteeringControlPeriod() time.Duration {
	return time.Duration(c.Steering.ControlPeriodMs) * time.Millisecond
}

// SteeringRecoverDelay is how long a recoverable steering fault is held before recovery.
func (c *Config) SteeringRecoverDelay() time.Duration {
	return time.Duration(c.Steering.RecoverDelayMs) * time.Millisecond
}
