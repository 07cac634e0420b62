package delivery

import "math"

// Observation is a single 2D position in pixel coordinates.
type Observation struct {
	X float64
	Y float64
}

// Distance returns the Euclidean distance between two observations.
func (o Observation) Distance(other Observation) float64 {
	return math.Hypot(o.X-other.X, o.Y-other.Y)
}

func (o Observation) finite() bool {
	return !math.IsNaN(o.X) && !math.IsInf(o.X, 0) && !math.IsNaN(o.Y) && !math.IsInf(o.Y, 0)
}

// Candidate is one detector output for a frame.
type Candidate struct {
	Observation
	Confidence float64
}

// Associate picks at most one candidate for the frame.
//
// Without a prediction the highest-confidence candidate wins, ties going to
// the earliest in slice order. With a prediction the candidate nearest to it
// wins (ties again to the earliest), but only when that distance is strictly
// less than maxDistance; otherwise every candidate is treated as spurious.
// Candidates with non-finite coordinates are never selected.
//
// Associate has no side effects and returns the same answer for the same
// inputs.
func Associate(candidates []Candidate, predicted *Observation, maxDistance float64) (Candidate, bool) {
	best := -1
	if predicted == nil {
		for i, c := range candidates {
			if !c.finite() {
				continue
			}
			if best < 0 || c.Confidence > candidates[best].Confidence {
				best = i
			}
		}
		if best < 0 {
			return Candidate{}, false
		}
		return candidates[best], true
	}

	bestDist := math.Inf(1)
	for i, c := range candidates {
		if !c.finite() {
			continue
		}
		if d := c.Distance(*predicted); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || !(bestDist < maxDistance) {
		return Candidate{}, false
	}
	return candidates[best], true
}
