package delivery

import "math"

// PitchType buckets where the ball pitched along the strip.
type PitchType string

// Pitch categories, nearest the batter first. PitchUnknown means no bounce
// was seen.
const (
	PitchUnknown PitchType = ""
	PitchYorker  PitchType = "YORKER"
	PitchFull    PitchType = "FULL"
	PitchGood    PitchType = "GOOD"
	PitchShort   PitchType = "SHORT"
)

// Pitch length boundaries on bounce_y / frame_height. Each comparison is
// strict, so a value exactly on a boundary falls into the shorter bucket.
const (
	YorkerMinNorm = 0.75
	FullMinNorm   = 0.55
	GoodMinNorm   = 0.35
)

// ClassifyPitch maps a bounce row to a pitch length category. It returns
// PitchUnknown for a non-positive frame height or a non-finite row.
func ClassifyPitch(bounceY float64, frameHeight int) PitchType {
	if frameHeight <= 0 || math.IsNaN(bounceY) || math.IsInf(bounceY, 0) {
		return PitchUnknown
	}
	yNorm := bounceY / float64(frameHeight)
	switch {
	case yNorm > YorkerMinNorm:
		return PitchYorker
	case yNorm > FullMinNorm:
		return PitchFull
	case yNorm > GoodMinNorm:
		return PitchGood
	default:
		return PitchShort
	}
}
