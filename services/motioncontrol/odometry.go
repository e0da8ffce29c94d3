package motioncontrol

import (
	"math"

	"go.viam.com/motioncore/spatialmath"
	"go.viam.com/motioncore/utils"
)

// OdometryConfig describes the two odometry wheels.
type OdometryConfig struct {
	// TickToMM converts the mean of both encoder deltas to travelled distance.
	TickToMM float64 `json:"tick_to_mm"`
	// TickToRad converts half the difference of the encoder deltas to rotation.
	TickToRad float64 `json:"tick_to_rad"`
	// SpeedAverageSize is the moving-average window of the measured speed, in ticks.
	SpeedAverageSize int `json:"speed_average_size"`
}

// DefaultOdometryConfig returns the geometry of the reference chassis.
func DefaultOdometryConfig() OdometryConfig {
	return OdometryConfig{
		TickToMM:         0.0829,
		TickToRad:        0.00108,
		SpeedAverageSize: 50,
	}
}

// Odometry integrates encoder deltas into a pose, a travelled distance and a speed. It is
// called once per control tick and is not safe for concurrent use.
type Odometry struct {
	cfg      OdometryConfig
	freq     float64
	speedAvg *utils.RollingAverage

	translation float64 // mm
	speed       float64 // mm/s, negative in reverse

	deltaLeft, deltaRight int32
}

// NewOdometry returns an Odometry stepped at freq Hz.
func NewOdometry(cfg OdometryConfig, freq float64) *Odometry {
	return &Odometry{cfg: cfg, freq: freq, speedAvg: utils.NewRollingAverage(cfg.SpeedAverageSize)}
}

// Compute applies one tick of encoder deltas to pose. The translation grows with distance
// driven in the current direction of travel.
func (o *Odometry) Compute(pose *spatialmath.Pose, deltaLeft, deltaRight int32, movingForward bool) {
	o.deltaLeft, o.deltaRight = deltaLeft, deltaRight

	deltaTranslation := (float64(deltaLeft) + float64(deltaRight)) / 2 * o.cfg.TickToMM
	halfDeltaRotation := (float64(deltaRight) - float64(deltaLeft)) / 4 * o.cfg.TickToRad

	midHeading := pose.Heading + halfDeltaRotation
	pose.SetHeading(pose.Heading + 2*halfDeltaRotation)
	// Second order correction of the chord length over the arc.
	corrector := 1 - utils.Square(halfDeltaRotation)/6
	pose.X += corrector * deltaTranslation * math.Cos(midHeading)
	pose.Y += corrector * deltaTranslation * math.Sin(midHeading)

	if movingForward {
		o.translation += deltaTranslation
	} else {
		o.translation -= deltaTranslation
	}

	o.speedAvg.Add(deltaTranslation * o.freq)
	o.speed = o.speedAvg.Average()
}

// Translation returns the distance driven since the last ResetTranslation, in mm.
func (o *Odometry) Translation() float64 {
	return o.translation
}

// ResetTranslation zeroes the driven distance.
func (o *Odometry) ResetTranslation() {
	o.translation = 0
}

// Speed returns the averaged speed along the robot's axis, in mm/s.
func (o *Odometry) Speed() float64 {
	return o.speed
}

// RawTicks returns the deltas of the last Compute.
func (o *Odometry) RawTicks() (left, right int32) {
	return o.deltaLeft, o.deltaRight
}
