package fake

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/motioncore/spatialmath"
)

func TestPlantStraightLine(t *testing.T) {
	clk := clock.NewMock()
	cfg := DefaultPlantConfig()
	plant := NewPlant(cfg, clk, nil)
	d := plant.Drive()

	d.SetAimSpeed(500)
	clk.Add(time.Second)
	test.That(t, d.CurrentSpeed(), test.ShouldAlmostEqual, 500, 0.01)

	pose := plant.Pose()
	// A 10 ms lag costs about 5 mm over the first second.
	test.That(t, pose.X, test.ShouldAlmostEqual, 495, 0.5)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, pose.Heading, test.ShouldAlmostEqual, 0, 1e-9)

	left, right := d.RawTicks()
	test.That(t, left, test.ShouldEqual, right)
	test.That(t, float64(left)*cfg.TickToMM, test.ShouldAlmostEqual, pose.X, cfg.TickToMM)

	left, right = d.RawTicks()
	test.That(t, left, test.ShouldEqual, 0)
	test.That(t, right, test.ShouldEqual, 0)

	t.Run("blocked vehicle does not move", func(t *testing.T) {
		plant.SetBlocked(true)
		before := plant.Pose()
		clk.Add(100 * time.Millisecond)
		test.That(t, plant.Pose(), test.ShouldResemble, before)
		test.That(t, plant.Speed(), test.ShouldEqual, 0)
		plant.SetBlocked(false)
	})
}

func TestPlantTurning(t *testing.T) {
	clk := clock.NewMock()
	cfg := DefaultPlantConfig()
	plant := NewPlant(cfg, clk, func() float64 { return 2 })
	plant.SetPose(spatialmath.NewPose(100, 100, 0))
	d := plant.Drive()

	d.SetAimSpeed(-300)
	clk.Add(500 * time.Millisecond)
	pose := plant.Pose()

	travelled := pose.DistanceTo(spatialmath.NewPose(100, 100, 0))
	test.That(t, pose.X, test.ShouldBeLessThan, 100)
	// Reversing with a left curvature turns the heading clockwise.
	test.That(t, pose.Heading, test.ShouldBeGreaterThan, math.Pi)

	left, right := d.RawTicks()
	rotation := float64(right-left) / 2 * cfg.TickToRad
	test.That(t, rotation, test.ShouldAlmostEqual, pose.Heading-2*math.Pi, 2*cfg.TickToRad)
	test.That(t, math.Abs(float64(left+right)/2*cfg.TickToMM), test.ShouldAlmostEqual, travelled, 1)
}

func TestPlantMotor(t *testing.T) {
	clk := clock.NewMock()
	cfg := DefaultPlantConfig()
	plant := NewPlant(cfg, clk, nil)
	motor := plant.Motor()
	enc := plant.MotorEncoder()

	test.That(t, motor.SetPower(50), test.ShouldBeNil)
	test.That(t, motor.Current(), test.ShouldAlmostEqual, 2.5)
	clk.Add(time.Second)
	test.That(t, plant.Speed(), test.ShouldAlmostEqual, 900, 0.01)
	test.That(t, float64(enc.ReadAndReset())*cfg.MotorTickToMM, test.ShouldAlmostEqual, plant.Pose().X, cfg.MotorTickToMM)

	t.Run("overcurrent cuts power", func(t *testing.T) {
		motor.SetMaxCurrent(1)
		test.That(t, motor.SetPower(50), test.ShouldBeNil)
		test.That(t, motor.Overcurrent(), test.ShouldBeTrue)
		clk.Add(time.Second)
		test.That(t, plant.Speed(), test.ShouldAlmostEqual, 0, 0.01)

		motor.SetMaxCurrent(10)
		motor.ClearOvercurrent()
		test.That(t, motor.SetPower(50), test.ShouldBeNil)
		test.That(t, motor.Overcurrent(), test.ShouldBeFalse)
	})

	t.Run("injected overcurrent", func(t *testing.T) {
		plant.InjectOvercurrent()
		test.That(t, motor.Overcurrent(), test.ShouldBeTrue)
		test.That(t, motor.SetPower(80), test.ShouldBeNil)
		test.That(t, motor.Current(), test.ShouldEqual, 0)
	})

	_ = plant.LeftEncoder().ReadAndReset()
	_ = plant.RightEncoder().ReadAndReset()
}
