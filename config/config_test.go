package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/motioncore/components/drive"
	"go.viam.com/motioncore/components/steering"
	"go.viam.com/motioncore/services/motioncontrol"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robot.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestRead(t *testing.T) {
	t.Setenv("ROBOT_WHEELBASE", "142.5")
	path := writeConfig(t, `{
		"tick_frequency_hz": 500,
		"odometry": {"tick_to_mm": 0.09},
		"steering": {"wheelbase_mm": ${ROBOT_WHEELBASE}, "recover_delay_ms": 2000},
		"tunings": {"max_acceleration": 1500, "stopping_response_time_ms": 150},
		"parking_brake": true
	}`)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, cfg.TickFrequencyHz, test.ShouldEqual, 500)
	test.That(t, cfg.TickPeriod(), test.ShouldEqual, 2*time.Millisecond)
	test.That(t, cfg.Odometry.TickToMM, test.ShouldEqual, 0.09)
	test.That(t, cfg.Odometry.TickToRad, test.ShouldEqual, motioncontrol.DefaultOdometryConfig().TickToRad)
	test.That(t, cfg.Steering.WheelbaseMM, test.ShouldEqual, 142.5)
	test.That(t, cfg.Steering.AngleOriginDeg, test.ShouldEqual, steering.DefaultGeometry().AngleOriginDeg)
	test.That(t, cfg.SteeringRecoverDelay(), test.ShouldEqual, 2*time.Second)
	test.That(t, cfg.SteeringControlPeriod(), test.ShouldEqual, steering.DefaultControlPeriod)
	test.That(t, cfg.Tunings.MaxAcceleration, test.ShouldEqual, 1500)
	test.That(t, cfg.Tunings.StoppingResponseTime(), test.ShouldEqual, 150*time.Millisecond)
	test.That(t, cfg.Tunings.MaxDeceleration, test.ShouldEqual, motioncontrol.DefaultTunings().MaxDeceleration)
	test.That(t, cfg.Drive, test.ShouldResemble, drive.DefaultMotorEncoderConfig())
	test.That(t, cfg.TelemetryPeriod(), test.ShouldEqual, motioncontrol.DefaultTelemetryPeriod)
	test.That(t, cfg.ParkingBrake, test.ShouldBeTrue)
	test.That(t, cfg.HighSpeed, test.ShouldBeFalse)

	t.Run("errors", func(t *testing.T) {
		_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
		test.That(t, err, test.ShouldNotBeNil)

		_, err = Read(writeConfig(t, `{"tick_frequency_hz": `))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "failed to decode")

		_, err = Read(writeConfig(t, `{"odometry": {"tick_to_rad": 0}}`))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "odometry.tick_to_rad")
	})
}

func TestFromAttributes(t *testing.T) {
	cfg, err := FromAttributes(map[string]interface{}{
		"tick_frequency_hz": "2000",
		"steering": map[string]interface{}{
			"angle_min_deg": 100,
			"angle_max_deg": "250",
		},
		"drive": map[string]interface{}{
			"max_current_amps": 4.5,
		},
		"tunings": map[string]interface{}{
			"curvature_k2": 8,
		},
		"high_speed": "true",
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.TickFrequencyHz, test.ShouldEqual, 2000)
	test.That(t, cfg.Steering.AngleMinDeg, test.ShouldEqual, 100)
	test.That(t, cfg.Steering.AngleMaxDeg, test.ShouldEqual, 250)
	test.That(t, cfg.Steering.AngleOriginDeg, test.ShouldEqual, 150)
	test.That(t, cfg.Drive.MaxCurrent, test.ShouldEqual, 4.5)
	test.That(t, cfg.Drive.TickToMM, test.ShouldEqual, drive.DefaultMotorEncoderConfig().TickToMM)
	test.That(t, cfg.Tunings.CurvatureK2, test.ShouldEqual, 8)
	test.That(t, cfg.Tunings.CurvatureK1, test.ShouldEqual, motioncontrol.DefaultTunings().CurvatureK1)
	test.That(t, cfg.HighSpeed, test.ShouldBeTrue)

	_, err = FromAttributes(map[string]interface{}{"tick_frequency": 1000})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromAttributes(map[string]interface{}{"tick_frequency_hz": "fast"})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidate(t *testing.T) {
	test.That(t, Default().Validate("robot"), test.ShouldBeNil)

	for name, tc := range map[string]struct {
		mutate   func(c *Config)
		expected string
	}{
		"frequency":     {func(c *Config) { c.TickFrequencyHz = 0 }, "tick_frequency_hz"},
		"odometry":      {func(c *Config) { c.Odometry.TickToMM = 0 }, "odometry.tick_to_mm"},
		"motor encoder": {func(c *Config) { c.Drive.TickToMM = 0 }, "drive.motor_tick_to_mm"},
		"wheelbase":     {func(c *Config) { c.Steering.WheelbaseMM = -1 }, "steering.wheelbase_mm"},
		"angle range":   {func(c *Config) { c.Steering.AngleMaxDeg = 90 }, "angle_min_deg"},
		"origin":        {func(c *Config) { c.Steering.AngleOriginDeg = 250 }, "angle_origin_deg"},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate("robot")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.expected)
			test.That(t, err.Error(), test.ShouldContainSubstring, "robot")
		})
	}
}
