package control

import (
	"testing"

	"go.viam.com/test"
)

func TestPIDCompute(t *testing.T) {
	pid := NewPID(1000)
	pid.SetTunings(2, 10, 0.5)

	out := pid.Compute(10, 4)
	// e = 6, integral = 6/1000, derivative = 6*1000
	test.That(t, pid.Error(), test.ShouldEqual, 6)
	test.That(t, pid.IntegralError(), test.ShouldAlmostEqual, 0.006)
	test.That(t, pid.DerivativeError(), test.ShouldAlmostEqual, 6000)
	test.That(t, out, test.ShouldAlmostEqual, 2*6+10*0.006+0.5*6000)

	out = pid.Compute(10, 4)
	test.That(t, pid.DerivativeError(), test.ShouldEqual, 0)
	test.That(t, pid.IntegralError(), test.ShouldAlmostEqual, 0.012)
	test.That(t, out, test.ShouldAlmostEqual, 12+0.12)
}

func TestPIDNegativeGains(t *testing.T) {
	pid := NewPID(100)
	pid.SetTunings(1, 2, 3)
	pid.SetTunings(5, -1, 1)
	kp, ki, kd := pid.Tunings()
	test.That(t, kp, test.ShouldEqual, 0)
	test.That(t, ki, test.ShouldEqual, 0)
	test.That(t, kd, test.ShouldEqual, 0)
	test.That(t, pid.Compute(100, 0), test.ShouldEqual, 0)
}

func TestPIDOutputLimits(t *testing.T) {
	pid := NewPID(1000)
	pid.SetTunings(1, 0, 0)
	test.That(t, pid.Compute(500, 0), test.ShouldEqual, 500)

	t.Run("re-clamps the current output", func(t *testing.T) {
		pid.SetOutputLimits(-100, 100)
		test.That(t, pid.Output(), test.ShouldEqual, 100)
		test.That(t, pid.Compute(-500, 0), test.ShouldEqual, -100)
	})

	t.Run("ignores an empty range", func(t *testing.T) {
		pid.SetOutputLimits(50, 50)
		pid.SetOutputLimits(60, 10)
		minOut, maxOut := pid.OutputLimits()
		test.That(t, minOut, test.ShouldEqual, -100)
		test.That(t, maxOut, test.ShouldEqual, 100)
	})
}

func TestPIDResets(t *testing.T) {
	pid := NewPID(1000)
	pid.SetTunings(0, 1, 1)
	pid.Compute(1, 0)
	pid.Compute(1, 0)
	test.That(t, pid.IntegralError(), test.ShouldAlmostEqual, 0.002)

	pid.ResetIntegralError()
	test.That(t, pid.IntegralError(), test.ShouldEqual, 0)

	// A setpoint jump right after a derivative reset produces no derivative kick.
	pid.ResetDerivativeError(50, 0)
	test.That(t, pid.Error(), test.ShouldEqual, 50)
	test.That(t, pid.DerivativeError(), test.ShouldEqual, 0)
	pid.Compute(50, 0)
	test.That(t, pid.DerivativeError(), test.ShouldEqual, 0)
}
