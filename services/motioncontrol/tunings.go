package motioncontrol

import "time"

// Tunings is the full set of motion-control parameters. It is replaced as a whole.
type Tunings struct {
	MaxAcceleration float64 `json:"max_acceleration"` // mm/s^2
	MaxDeceleration float64 `json:"max_deceleration"` // mm/s^2
	MaxCurvature    float64 `json:"max_curvature"`    // m^-1
	MinAimSpeed     float64 `json:"min_aim_speed"`    // mm/s

	// StoppedSpeed is the speed (mm/s) under which the robot counts as stopped. Speed orders
	// below it are dropped to zero.
	StoppedSpeed           float64 `json:"stopped_speed"`
	StoppingResponseTimeMs uint32  `json:"stopping_response_time_ms"`

	CurvatureK1 float64 `json:"curvature_k1"`
	CurvatureK2 float64 `json:"curvature_k2"`

	TranslationKp float64 `json:"translation_kp"`
	TranslationKd float64 `json:"translation_kd"`

	SpeedKp float64 `json:"speed_kp"`
	SpeedKi float64 `json:"speed_ki"`
	SpeedKd float64 `json:"speed_kd"`

	// DistanceMaxToTraj is how far (mm) the robot may be from its current target point.
	DistanceMaxToTraj float64 `json:"distance_max_to_traj"`
}

// DefaultTunings returns the everyday tunings.
func DefaultTunings() Tunings {
	return Tunings{
		MaxAcceleration:        1000,
		MaxDeceleration:        12000,
		MaxCurvature:           10,
		MinAimSpeed:            80,
		StoppedSpeed:           10,
		StoppingResponseTimeMs: 100,
		CurvatureK1:            0.1,
		CurvatureK2:            12,
		TranslationKp:          6,
		TranslationKd:          0.2,
		SpeedKp:                0.01,
		SpeedKi:                0.3,
		SpeedKd:                0,
		DistanceMaxToTraj:      40,
	}
}

// HighSpeedTunings returns tunings for long straight runs: harder acceleration, gentler
// curvature tracking.
func HighSpeedTunings() Tunings {
	t := DefaultTunings()
	t.MaxAcceleration = 2000
	t.MaxCurvature = 5
	t.MinAimSpeed = 100
	t.CurvatureK1 = 0.05
	t.CurvatureK2 = 6
	t.DistanceMaxToTraj = 60
	return t
}

// StoppingResponseTime is StoppingResponseTimeMs as a duration.
func (t Tunings) StoppingResponseTime() time.Duration {
	return time.Duration(t.StoppingResponseTimeMs) * time.Millisecond
}
