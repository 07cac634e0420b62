package delivery

import (
	"fmt"
	"math"

	"github.com/banshee-data/delivery.report/internal/config"
)

// BounceSample is the per-frame input to a bounce strategy. Velocities and
// Speed are in px/s with y growing downwards.
type BounceSample struct {
	Frame  int
	X, Y   float64
	VX, VY float64
	Speed  float64
}

// BounceCandidate is where a strategy believes the ball pitched.
type BounceCandidate struct {
	Frame int
	X, Y  float64
}

// BounceStrategy decides whether the ball has just bounced. Strategies keep
// their own state and are built fresh for every delivery. Observe is called
// once per accepted frame, after the sample's position has been pushed onto
// history.
type BounceStrategy interface {
	Name() string
	Observe(s BounceSample, history *History) (BounceCandidate, bool)
}

// BounceConfig selects and parameterises a strategy.
type BounceConfig struct {
	Strategy       string
	CooldownFrames int
	SpeedDropPx    float64 // speed_drop: minimum frame-to-frame drop
	FlatVyPx       float64 // speed_drop: |vy| ceiling
}

// NewBounceStrategy builds the strategy named by cfg.Strategy.
func NewBounceStrategy(cfg BounceConfig) (BounceStrategy, error) {
	switch cfg.Strategy {
	case config.BounceVelocityInversion, "":
		return &velocityInversion{}, nil
	case config.BouncePositionPeak:
		return positionPeak{}, nil
	case config.BounceSpeedDrop:
		return &speedDrop{minDrop: cfg.SpeedDropPx, flatVy: cfg.FlatVyPx}, nil
	default:
		return nil, fmt.Errorf("unknown bounce strategy %q", cfg.Strategy)
	}
}

// velocityInversion fires when vertical velocity turns from downward to
// upward. The estimator smooths velocity, so the trigger lags the true
// contact by a few frames.
type velocityInversion struct {
	prevVY  float64
	hasPrev bool
}

func (v *velocityInversion) Name() string { return config.BounceVelocityInversion }

func (v *velocityInversion) Observe(s BounceSample, _ *History) (BounceCandidate, bool) {
	fired := v.hasPrev && v.prevVY > 0 && s.VY < 0
	v.prevVY, v.hasPrev = s.VY, true
	if !fired {
		return BounceCandidate{}, false
	}
	return BounceCandidate{Frame: s.Frame, X: s.X, Y: s.Y}, true
}

// positionPeak fires when the middle of the last three positions is the
// lowest point in the image (largest y). It reports the middle point.
type positionPeak struct{}

func (positionPeak) Name() string { return config.BouncePositionPeak }

func (positionPeak) Observe(_ BounceSample, h *History) (BounceCandidate, bool) {
	n := h.Len()
	if n < 3 {
		return BounceCandidate{}, false
	}
	a, b, c := h.At(n-3), h.At(n-2), h.At(n-1)
	if a.Y < b.Y && b.Y > c.Y {
		return BounceCandidate{Frame: b.Frame, X: b.X, Y: b.Y}, true
	}
	return BounceCandidate{}, false
}

// speedDrop fires on a sharp loss of speed while the ball is moving
// mostly sideways.
type speedDrop struct {
	minDrop   float64
	flatVy    float64
	prevSpeed float64
	hasPrev   bool
}

func (d *speedDrop) Name() string { return config.BounceSpeedDrop }

func (d *speedDrop) Observe(s BounceSample, _ *History) (BounceCandidate, bool) {
	fired := d.hasPrev && d.prevSpeed-s.Speed > d.minDrop && math.Abs(s.VY) < d.flatVy
	d.prevSpeed, d.hasPrev = s.Speed, true
	if !fired {
		return BounceCandidate{}, false
	}
	return BounceCandidate{Frame: s.Frame, X: s.X, Y: s.Y}, true
}
