package motioncontrol

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
)

func TestStoppingMgr(t *testing.T) {
	clk := clock.NewMock()
	sm := NewStoppingMgr(clk)
	sm.SetTunings(10, 100*time.Millisecond)

	sm.Compute(300)
	test.That(t, sm.IsStopped(), test.ShouldBeFalse)

	sm.Compute(5)
	test.That(t, sm.IsStopped(), test.ShouldBeFalse)
	clk.Add(100 * time.Millisecond)
	sm.Compute(-5)
	test.That(t, sm.IsStopped(), test.ShouldBeFalse)
	clk.Add(time.Millisecond)
	sm.Compute(0)
	test.That(t, sm.IsStopped(), test.ShouldBeTrue)

	t.Run("speed above threshold restarts the window", func(t *testing.T) {
		sm.Compute(11)
		test.That(t, sm.IsStopped(), test.ShouldBeFalse)
		sm.Compute(0)
		clk.Add(50 * time.Millisecond)
		test.That(t, sm.IsStopped(), test.ShouldBeFalse)
		clk.Add(51 * time.Millisecond)
		test.That(t, sm.IsStopped(), test.ShouldBeTrue)
	})

	t.Run("move start stretches the window", func(t *testing.T) {
		sm.MoveIsStarting()
		test.That(t, sm.IsStopped(), test.ShouldBeFalse)
		test.That(t, sm.IsMoveBegin(), test.ShouldBeTrue)
		sm.Compute(0)
		clk.Add(101 * time.Millisecond)
		test.That(t, sm.IsStopped(), test.ShouldBeFalse)
		clk.Add(400 * time.Millisecond)
		test.That(t, sm.IsStopped(), test.ShouldBeTrue)

		sm.MoveIsStarting()
		sm.Compute(50)
		test.That(t, sm.IsMoveBegin(), test.ShouldBeFalse)
		sm.Compute(0)
		clk.Add(101 * time.Millisecond)
		test.That(t, sm.IsStopped(), test.ShouldBeTrue)
	})

	eps, rt := sm.Tunings()
	test.That(t, eps, test.ShouldEqual, 10)
	test.That(t, rt, test.ShouldEqual, 100*time.Millisecond)
}

func TestStoppingMgrBraking(t *testing.T) {
	sm := NewStoppingMgr(clock.NewMock())
	sm.SetTunings(10, 100*time.Millisecond)

	for speed := 0.; speed < 500; speed += 10 {
		sm.Compute(speed)
	}
	test.That(t, sm.IsBraking(), test.ShouldBeFalse)
	for speed := 500.; speed > 0; speed -= 10 {
		sm.Compute(speed)
	}
	test.That(t, sm.IsBraking(), test.ShouldBeTrue)
	for i := 0; i <= accelerationSamples; i++ {
		sm.Compute(0)
	}
	test.That(t, sm.IsBraking(), test.ShouldBeFalse)
}
