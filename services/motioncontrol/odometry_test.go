package motioncontrol

import (
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/motioncore/spatialmath"
)

func TestOdometryStraightLine(t *testing.T) {
	cfg := DefaultOdometryConfig()
	for _, heading := range []float64{0, math.Pi / 3, math.Pi, 5} {
		odo := NewOdometry(cfg, 1000)
		pose := spatialmath.NewPose(10, -20, heading)
		deltas := [][2]int32{{100, 100}, {3, 3}, {-7, -7}, {250, 250}}
		var ticks int32
		for _, d := range deltas {
			odo.Compute(&pose, d[0], d[1], true)
			ticks += d[0]
		}
		dist := float64(ticks) * cfg.TickToMM
		test.That(t, pose.Heading, test.ShouldAlmostEqual, heading)
		test.That(t, pose.X, test.ShouldAlmostEqual, 10+dist*math.Cos(heading))
		test.That(t, pose.Y, test.ShouldAlmostEqual, -20+dist*math.Sin(heading))
		test.That(t, odo.Translation(), test.ShouldAlmostEqual, dist)
	}
}

func TestOdometryRotation(t *testing.T) {
	cfg := DefaultOdometryConfig()
	odo := NewOdometry(cfg, 1000)
	pose := spatialmath.NewZeroPose()

	odo.Compute(&pose, -100, 100, true)
	test.That(t, pose.X, test.ShouldAlmostEqual, 0)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 0)
	test.That(t, pose.Heading, test.ShouldAlmostEqual, 100*cfg.TickToRad)

	// turning right past zero wraps into [0, 2pi)
	odo.Compute(&pose, 300, -300, true)
	test.That(t, pose.Heading, test.ShouldAlmostEqual, 2*math.Pi-200*cfg.TickToRad)

	left, right := odo.RawTicks()
	test.That(t, left, test.ShouldEqual, 300)
	test.That(t, right, test.ShouldEqual, -300)
}

func TestOdometryArc(t *testing.T) {
	cfg := DefaultOdometryConfig()
	odo := NewOdometry(cfg, 1000)
	pose := spatialmath.NewZeroPose()

	// a quarter turn of radius r in small steps ends at (r, r)
	const steps = 1000
	dTheta := math.Pi / 2 / steps
	r := 500.
	ds := r * dTheta
	odo.cfg.TickToMM = ds / 1000
	odo.cfg.TickToRad = dTheta / 100
	for i := 0; i < steps; i++ {
		odo.Compute(&pose, 900, 1100, true)
	}
	test.That(t, pose.Heading, test.ShouldAlmostEqual, math.Pi/2, 1e-9)
	test.That(t, pose.X, test.ShouldAlmostEqual, r, 1e-6)
	test.That(t, pose.Y, test.ShouldAlmostEqual, r, 1e-6)
}

func TestOdometrySpeedAndReverse(t *testing.T) {
	cfg := DefaultOdometryConfig()
	cfg.SpeedAverageSize = 10
	odo := NewOdometry(cfg, 1000)
	pose := spatialmath.NewZeroPose()

	for i := 0; i < 5; i++ {
		odo.Compute(&pose, 10, 10, true)
	}
	test.That(t, odo.Speed(), test.ShouldAlmostEqual, 10*cfg.TickToMM*1000/2)
	for i := 0; i < 5; i++ {
		odo.Compute(&pose, 10, 10, true)
	}
	test.That(t, odo.Speed(), test.ShouldAlmostEqual, 10*cfg.TickToMM*1000)

	odo.ResetTranslation()
	test.That(t, odo.Translation(), test.ShouldEqual, 0)
	for i := 0; i < 10; i++ {
		odo.Compute(&pose, -10, -10, false)
	}
	test.That(t, odo.Speed(), test.ShouldAlmostEqual, -10*cfg.TickToMM*1000)
	// translation counts distance in the direction of travel
	test.That(t, odo.Translation(), test.ShouldAlmostEqual, 100*cfg.TickToMM)
	test.That(t, pose.X, test.ShouldAlmostEqual, 0)
}
