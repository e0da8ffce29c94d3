// Package spatialmath defines the planar pose used for dead reckoning and waypoint targets.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/motioncore/utils"
)

// Pose is a planar position in millimeters and a heading in radians. Heading is kept in
// [0, 2π) by every constructor and mutator.
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// NewPose returns a pose with its heading normalized.
func NewPose(x, y, heading float64) Pose {
	return Pose{X: x, Y: y, Heading: utils.ModAngRad(heading)}
}

// NewZeroPose returns the origin facing +x.
func NewZeroPose() Pose {
	return Pose{}
}

// SetHeading stores heading normalized into [0, 2π).
func (p *Pose) SetHeading(heading float64) {
	p.Heading = utils.ModAngRad(heading)
}

// Normalized returns a copy with the heading folded back into [0, 2π). Poses built from struct
// literals or decoded from JSON go through this before use.
func (p Pose) Normalized() Pose {
	return NewPose(p.X, p.Y, p.Heading)
}

// Point returns the position part of the pose.
func (p Pose) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// HeadingVector is the unit vector the pose faces.
func (p Pose) HeadingVector() r2.Point {
	return r2.Point{X: math.Cos(p.Heading), Y: math.Sin(p.Heading)}
}

// DistanceTo returns the euclidean distance between the positions of p and other.
func (p Pose) DistanceTo(other Pose) float64 {
	return p.Point().Sub(other.Point()).Norm()
}

// LongitudinalOffset is the signed distance of p beyond ref, measured along ref's heading.
// Positive once p has passed ref.
func (p Pose) LongitudinalOffset(ref Pose) float64 {
	return p.Point().Sub(ref.Point()).Dot(ref.HeadingVector())
}

// LateralOffset is the signed distance of p from the line through ref along ref's heading.
// Positive when p is on the left of that line.
func (p Pose) LateralOffset(ref Pose) float64 {
	return ref.HeadingVector().Cross(p.Point().Sub(ref.Point()))
}

// Add returns p shifted by the given deltas, with the heading re-normalized.
func (p Pose) Add(dx, dy, dHeading float64) Pose {
	return NewPose(p.X+dx, p.Y+dy, p.Heading+dHeading)
}

// IsCloserToAThanB reports whether p is closer to a than to b.
func (p Pose) IsCloserToAThanB(a, b Pose) bool {
	return p.DistanceTo(a) < p.DistanceTo(b)
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.4f rad)", p.X, p.Y, p.Heading)
}
