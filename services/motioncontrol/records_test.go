package motioncontrol

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/motioncore/spatialmath"
)

func encode(t *testing.T, points ...TrajectoryPoint) []byte {
	t.Helper()
	var b []byte
	for _, tp := range points {
		record, err := tp.MarshalBinary()
		test.That(t, err, test.ShouldBeNil)
		b = append(b, record...)
	}
	return b
}

func TestTrajectoryPointRecord(t *testing.T) {
	tp := TrajectoryPoint{
		Target:         spatialmath.NewPose(-1234.4, 56.6, 1.25),
		Curvature:      -2.5,
		SignedMaxSpeed: -700,
		IsStopPoint:    true,
	}
	b, err := tp.MarshalBinary()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b, test.ShouldHaveLength, TrajectoryPointSize)
	// x and y travel as whole millimeters
	test.That(t, b[0:4], test.ShouldResemble, []byte{0x2e, 0xfb, 0xff, 0xff})
	test.That(t, b[4:8], test.ShouldResemble, []byte{57, 0, 0, 0})
	test.That(t, b[20:], test.ShouldResemble, []byte{1, 0})

	var decoded TrajectoryPoint
	test.That(t, decoded.UnmarshalBinary(b), test.ShouldBeNil)
	test.That(t, decoded.Target.X, test.ShouldEqual, -1234)
	test.That(t, decoded.Target.Y, test.ShouldEqual, 57)
	test.That(t, decoded.Target.Heading, test.ShouldAlmostEqual, 1.25, 1e-6)
	test.That(t, decoded.Curvature, test.ShouldEqual, -2.5)
	test.That(t, decoded.SignedMaxSpeed, test.ShouldEqual, -700)
	test.That(t, decoded.IsForward(), test.ShouldBeFalse)
	test.That(t, decoded.IsStopPoint, test.ShouldBeTrue)
	test.That(t, decoded.IsEndOfTrajectory, test.ShouldBeFalse)

	test.That(t, decoded.UnmarshalBinary(b[1:]), test.ShouldNotBeNil)
}

func TestDecodeTrajectoryPoints(t *testing.T) {
	points := straightTrajectory(3, math.Pi/2, 250)
	decoded, err := DecodeTrajectoryPoints(encode(t, points...))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded, test.ShouldHaveLength, 4)
	for i, tp := range decoded {
		test.That(t, tp.Target.DistanceTo(points[i].Target), test.ShouldBeLessThan, 1)
		test.That(t, tp.IsEndOfTrajectory, test.ShouldEqual, i == 3)
	}

	_, err = DecodeTrajectoryPoints(make([]byte, TrajectoryPointSize+3))
	test.That(t, err, test.ShouldNotBeNil)
	decoded, err = DecodeTrajectoryPoints(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded, test.ShouldBeEmpty)
}

func TestAppendRecords(t *testing.T) {
	ctx := context.Background()
	mcs, _, _ := newStubSystem(t)
	points := straightTrajectory(3, 0, 250)

	test.That(t, mcs.AppendRecords(ctx, encode(t, points[:2]...)), test.ShouldBeNil)
	test.That(t, mcs.Trajectory(), test.ShouldHaveLength, 2)

	err := mcs.AppendRecords(ctx, encode(t, points[2:]...)[:5])
	test.That(t, errors.Is(err, ErrTrajectoryEdition), test.ShouldBeTrue)
	test.That(t, mcs.Trajectory(), test.ShouldHaveLength, 2)

	test.That(t, mcs.AppendRecords(ctx, encode(t, points[2:]...)), test.ShouldBeNil)
	test.That(t, mcs.IsTrajectoryComplete(), test.ShouldBeTrue)

	t.Run("a refused append clears the trajectory", func(t *testing.T) {
		err := mcs.AppendRecords(ctx, encode(t, points[0]))
		test.That(t, EditionResult(err), test.ShouldEqual, TrajectoryEditionFailure)
		test.That(t, mcs.Trajectory(), test.ShouldBeEmpty)
		test.That(t, mcs.IsTrajectoryComplete(), test.ShouldBeFalse)
	})

	t.Run("the rest of a batch is dropped after a failure", func(t *testing.T) {
		batch := encode(t, points[3], points[0], points[1])
		test.That(t, errors.Is(mcs.AppendRecords(ctx, batch), ErrTrajectoryEdition), test.ShouldBeTrue)
		test.That(t, mcs.Trajectory(), test.ShouldBeEmpty)
	})
}

func TestEditRecords(t *testing.T) {
	ctx := context.Background()
	mcs, _, _ := newStubSystem(t)
	points := straightTrajectory(3, 0, 250)
	test.That(t, mcs.AppendRecords(ctx, encode(t, points...)), test.ShouldBeNil)

	slow := append([]TrajectoryPoint(nil), points[1:3]...)
	slow[0].SignedMaxSpeed = 100
	slow[1].SignedMaxSpeed = 100
	test.That(t, mcs.EditRecords(ctx, append([]byte{1}, encode(t, slow...)...)), test.ShouldBeNil)
	traj := mcs.Trajectory()
	test.That(t, traj, test.ShouldHaveLength, 4)
	test.That(t, traj[0].SignedMaxSpeed, test.ShouldEqual, 250)
	test.That(t, traj[1].SignedMaxSpeed, test.ShouldEqual, 100)
	test.That(t, traj[2].SignedMaxSpeed, test.ShouldEqual, 100)
	test.That(t, traj[3].SignedMaxSpeed, test.ShouldEqual, 250)

	err := mcs.EditRecords(ctx, nil)
	test.That(t, errors.Is(err, ErrTrajectoryEdition), test.ShouldBeTrue)
	test.That(t, mcs.Trajectory(), test.ShouldHaveLength, 4)

	t.Run("editing past the end clears the trajectory", func(t *testing.T) {
		err := mcs.EditRecords(ctx, append([]byte{3}, encode(t, points[2], points[3])...))
		test.That(t, EditionResult(err), test.ShouldEqual, TrajectoryEditionFailure)
		test.That(t, mcs.Trajectory(), test.ShouldBeEmpty)
	})
}

func TestEditionResult(t *testing.T) {
	test.That(t, EditionResult(nil), test.ShouldEqual, TrajectoryEditionSuccess)
	test.That(t, EditionResult(ErrTrajectoryEdition), test.ShouldEqual, TrajectoryEditionFailure)
	mcs, _, _ := newStubSystem(t)
	test.That(t, EditionResult(mcs.DeleteTrajectoryFrom(0)), test.ShouldEqual, TrajectoryEditionFailure)
}
