package motioncontrol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/motioncore/spatialmath"
)

// TrajectoryPointSize is the length of an encoded TrajectoryPoint.
const TrajectoryPointSize = 22

// TrajectoryPoint is one waypoint of a trajectory.
type TrajectoryPoint struct {
	Target spatialmath.Pose `json:"target"`
	// Curvature of the path at Target, in m^-1.
	Curvature float64 `json:"curvature"`
	// SignedMaxSpeed bounds the speed on the leg toward this point, in mm/s. Its sign is the
	// direction of travel.
	SignedMaxSpeed    float64 `json:"signed_max_speed"`
	IsStopPoint       bool    `json:"is_stop_point"`
	IsEndOfTrajectory bool    `json:"is_end_of_trajectory"`
}

// IsForward reports whether the leg toward this point is driven forward.
func (tp TrajectoryPoint) IsForward() bool {
	return tp.SignedMaxSpeed >= 0
}

// MarshalBinary encodes the point as a little-endian record:
// x int32 mm, y int32 mm, heading float32, curvature float32, signed max speed float32,
// stop point byte, end of trajectory byte.
func (tp TrajectoryPoint) MarshalBinary() ([]byte, error) {
	b := make([]byte, TrajectoryPointSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(int32(math.Round(tp.Target.X))))
	binary.LittleEndian.PutUint32(b[4:], uint32(int32(math.Round(tp.Target.Y))))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(tp.Target.Heading)))
	binary.LittleEndian.PutUint32(b[12:], math.Float32bits(float32(tp.Curvature)))
	binary.LittleEndian.PutUint32(b[16:], math.Float32bits(float32(tp.SignedMaxSpeed)))
	if tp.IsStopPoint {
		b[20] = 1
	}
	if tp.IsEndOfTrajectory {
		b[21] = 1
	}
	return b, nil
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (tp *TrajectoryPoint) UnmarshalBinary(b []byte) error {
	if len(b) != TrajectoryPointSize {
		return errors.Errorf("trajectory point record must be %d bytes, got %d", TrajectoryPointSize, len(b))
	}
	x := int32(binary.LittleEndian.Uint32(b[0:]))
	y := int32(binary.LittleEndian.Uint32(b[4:]))
	heading := math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
	*tp = TrajectoryPoint{
		Target:            spatialmath.NewPose(float64(x), float64(y), float64(heading)),
		Curvature:         float64(math.Float32frombits(binary.LittleEndian.Uint32(b[12:]))),
		SignedMaxSpeed:    float64(math.Float32frombits(binary.LittleEndian.Uint32(b[16:]))),
		IsStopPoint:       b[20] != 0,
		IsEndOfTrajectory: b[21] != 0,
	}
	return nil
}

func (tp TrajectoryPoint) String() string {
	return fmt.Sprintf("%v curv=%g vmax=%g stop=%t end=%t",
		tp.Target, tp.Curvature, tp.SignedMaxSpeed, tp.IsStopPoint, tp.IsEndOfTrajectory)
}
