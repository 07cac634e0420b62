package delivery

import "math"

// TrajectoryPoint is one accepted frame of a delivery.
type TrajectoryPoint struct {
	Frame     int     `json:"frame"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	SpeedKmph float64 `json:"speed_kmph"`
}

// ReleaseEvent is where and how fast the ball was when the release speed
// latched.
type ReleaseEvent struct {
	Frame     int     `json:"frame"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	SpeedKmph float64 `json:"speed_kmph"`
}

// BounceEvent is where the ball pitched.
type BounceEvent struct {
	Frame int `json:"frame"`
	X     int `json:"x"`
	Y     int `json:"y"`
}

// SpeedSummary aggregates the speed pipeline over the delivery.
type SpeedSummary struct {
	ReleaseKmph *float64 `json:"release_kmph"`
	MaxKmph     float64  `json:"max_kmph"`
	AverageKmph float64  `json:"average_kmph"`
}

// Record is the immutable summary of one finalized delivery. Absent
// release, bounce or pitch information serialises as null.
type Record struct {
	DeliveryID int               `json:"delivery_id"`
	StartFrame int               `json:"start_frame"`
	EndFrame   int               `json:"end_frame"`
	Release    *ReleaseEvent     `json:"release"`
	Bounce     *BounceEvent      `json:"bounce"`
	PitchType  *PitchType        `json:"pitch_type"`
	Speed      SpeedSummary      `json:"speed"`
	Trajectory []TrajectoryPoint `json:"trajectory"`
}

// Pitch returns the pitch type, or PitchUnknown when none was recorded.
func (r Record) Pitch() PitchType {
	if r.PitchType == nil {
		return PitchUnknown
	}
	return *r.PitchType
}

// Duration returns the number of frames from first to last accepted
// observation, inclusive.
func (r Record) Duration() int {
	return r.EndFrame - r.StartFrame + 1
}

// roundSpeed rounds km/h to two decimal places for export.
func roundSpeed(v float64) float64 {
	return math.Round(v*100) / 100
}

func pixel(v float64) int {
	return int(v)
}
