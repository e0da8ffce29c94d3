package control

import (
	"fmt"

	"github.com/samber/lo"

	"go.viam.com/motioncore/spatialmath"
	"go.viam.com/motioncore/utils"
)

// Default curvature command bounds, in m^-1.
const (
	DefaultMinCurvature = -20.
	DefaultMaxCurvature = 20.
)

// CurvaturePID corrects a waypoint's nominal curvature from the lateral distance to the path
// and the heading error. It has no integral or derivative terms.
type CurvaturePID struct {
	k1, k2 float64

	outMin, outMax float64

	posError         float64
	orientationError float64
	correction       float64
	output           float64
}

// NewCurvaturePID returns a CurvaturePID with zero gains and the default curvature bounds.
func NewCurvaturePID() *CurvaturePID {
	return &CurvaturePID{outMin: DefaultMinCurvature, outMax: DefaultMaxCurvature}
}

// Compute returns the curvature order (m^-1) for a robot at current tracking target, whose
// nominal path curvature is curvature.
func (c *CurvaturePID) Compute(current, target spatialmath.Pose, curvature float64, movingForward bool) float64 {
	c.posError = current.LateralOffset(target)
	c.orientationError = utils.WrapAngleRad(current.Heading - target.Heading)

	if movingForward {
		c.correction = -c.k1*c.posError - c.k2*c.orientationError
	} else {
		c.correction = -c.k1*c.posError + c.k2*c.orientationError
	}
	c.output = lo.Clamp(curvature+c.correction, c.outMin, c.outMax)
	return c.output
}

// SetCurvatureLimits bounds future outputs and re-clamps the current one. Ignored when
// min >= max.
func (c *CurvaturePID) SetCurvatureLimits(minCurv, maxCurv float64) {
	if minCurv >= maxCurv {
		return
	}
	c.outMin, c.outMax = minCurv, maxCurv
	c.output = lo.Clamp(c.output, c.outMin, c.outMax)
}

// SetTunings replaces k1 (position gain) and k2 (heading gain). A negative gain zeroes both.
func (c *CurvaturePID) SetTunings(k1, k2 float64) {
	if k1 < 0 || k2 < 0 {
		c.k1, c.k2 = 0, 0
		return
	}
	c.k1, c.k2 = k1, k2
}

// PositionError is the signed lateral distance (mm) seen by the last Compute, positive on the
// left of the path.
func (c *CurvaturePID) PositionError() float64 { return c.posError }

// OrientationError is the heading error (rad, in (-π, π]) seen by the last Compute.
func (c *CurvaturePID) OrientationError() float64 { return c.orientationError }

// Output is the last curvature order.
func (c *CurvaturePID) Output() float64 { return c.output }

func (c *CurvaturePID) String() string {
	return fmt.Sprintf("pos=%g orient=%g corr=%g", c.posError*c.k1, c.orientationError*c.k2, c.correction)
}
