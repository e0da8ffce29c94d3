package control

import (
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/motioncore/spatialmath"
)

func TestCurvaturePIDOnPath(t *testing.T) {
	c := NewCurvaturePID()
	c.SetTunings(0.1, 12)
	target := spatialmath.NewPose(250, -40, 3*math.Pi/4)

	for _, forward := range []bool{true, false} {
		test.That(t, c.Compute(target, target, 2.5, forward), test.ShouldAlmostEqual, 2.5)
		test.That(t, c.PositionError(), test.ShouldAlmostEqual, 0)
		test.That(t, c.OrientationError(), test.ShouldAlmostEqual, 0)
	}

	// Still clamped when on the path.
	test.That(t, c.Compute(target, target, 35, true), test.ShouldEqual, DefaultMaxCurvature)
	c.SetCurvatureLimits(-10, 10)
	test.That(t, c.Output(), test.ShouldEqual, 10)
	test.That(t, c.Compute(target, target, -35, true), test.ShouldEqual, -10)
}

func TestCurvaturePIDCorrection(t *testing.T) {
	c := NewCurvaturePID()
	c.SetTunings(0.1, 2)
	target := spatialmath.NewPose(0, 0, 0)

	t.Run("left of path steers right", func(t *testing.T) {
		current := spatialmath.NewPose(0, 10, 0)
		test.That(t, c.Compute(current, target, 0, true), test.ShouldAlmostEqual, -1)
		test.That(t, c.PositionError(), test.ShouldAlmostEqual, 10)
	})

	t.Run("heading error wraps", func(t *testing.T) {
		current := spatialmath.NewPose(0, 0, 2*math.Pi-0.1)
		test.That(t, c.Compute(current, target, 0, true), test.ShouldAlmostEqual, 0.2)
		test.That(t, c.OrientationError(), test.ShouldAlmostEqual, -0.1)
	})

	t.Run("heading term flips in reverse", func(t *testing.T) {
		current := spatialmath.NewPose(0, 0, 0.1)
		test.That(t, c.Compute(current, target, 0, true), test.ShouldAlmostEqual, -0.2)
		test.That(t, c.Compute(current, target, 0, false), test.ShouldAlmostEqual, 0.2)
	})

	t.Run("negative gain zeroes both", func(t *testing.T) {
		c.SetTunings(-1, 5)
		current := spatialmath.NewPose(0, 10, 0.3)
		test.That(t, c.Compute(current, target, 1.5, true), test.ShouldAlmostEqual, 1.5)
	})
}
