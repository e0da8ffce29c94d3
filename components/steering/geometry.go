package steering

import (
	"math"

	"go.viam.com/motioncore/utils"
)

// InfiniteCurvature is reported for steering angles at or beyond a quarter turn from origin.
const InfiniteCurvature = 1e6

// Geometry describes the mapping between servo angle and path curvature.
type Geometry struct {
	AngleMinDeg    uint32  `json:"angle_min_deg"`
	AngleOriginDeg uint32  `json:"angle_origin_deg"`
	AngleMaxDeg    uint32  `json:"angle_max_deg"`
	WheelbaseMM    float64 `json:"wheelbase_mm"`
}

// DefaultGeometry returns the geometry of the reference chassis.
func DefaultGeometry() Geometry {
	return Geometry{
		AngleMinDeg:    105,
		AngleOriginDeg: 150,
		AngleMaxDeg:    240,
		WheelbaseMM:    135,
	}
}

// ClampAngle bounds angleDeg to the steering range.
func (g Geometry) ClampAngle(angleDeg int) uint32 {
	if angleDeg < int(g.AngleMinDeg) {
		return g.AngleMinDeg
	}
	if angleDeg > int(g.AngleMaxDeg) {
		return g.AngleMaxDeg
	}
	return uint32(angleDeg)
}

// AngleToCurvature returns the curvature (m^-1) produced by a servo angle. Angles below origin
// turn left.
func (g Geometry) AngleToCurvature(angleDeg uint32) float64 {
	aDeg := int(angleDeg) - int(g.AngleOriginDeg)
	aRad := utils.DegToRad(float64(aDeg))
	wheelbaseM := g.WheelbaseMM / 1000

	switch {
	case aDeg > 0:
		if aDeg >= 90 {
			return -InfiniteCurvature
		}
		return 1 / (math.Tan(aRad-math.Pi/2) * wheelbaseM)
	case aDeg < 0:
		if aDeg <= -90 {
			return InfiniteCurvature
		}
		return 1 / (math.Tan(aRad+math.Pi/2) * wheelbaseM)
	default:
		return 0
	}
}

// CurvatureToAngle returns the servo angle, rounded to the degree, that produces curvature.
// The result is not clamped to the steering range.
func (g Geometry) CurvatureToAngle(curvature float64) int {
	origin := int(g.AngleOriginDeg)
	wheelbaseM := g.WheelbaseMM / 1000

	switch {
	case curvature >= InfiniteCurvature:
		return origin - 90
	case curvature <= -InfiniteCurvature:
		return origin + 90
	case curvature > 0:
		angle := utils.RadToDeg(math.Atan(1/(curvature*wheelbaseM)) - math.Pi/2)
		return int(math.Round(angle)) + origin
	case curvature < 0:
		angle := utils.RadToDeg(math.Atan(1/(curvature*wheelbaseM)) + math.Pi/2)
		return int(math.Round(angle)) + origin
	default:
		return origin
	}
}
