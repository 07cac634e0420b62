package delivery

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/delivery.report/internal/units"
)

// SpeedConfig holds the calibration and smoothing parameters for the
// speed pipeline. All speeds are km/h.
type SpeedConfig struct {
	MetersPerPixel   float64
	PerspectiveScale float64 // constant foreshortening factor
	PerspectiveGain  float64 // extra factor per unit of y/frame_height

	MaxDeltaKmph   float64 // per-frame clamp on the raw reading
	SmoothingAlpha float64 // EMA weight of the newest reading
	CeilingKmph    float64

	ReleaseThresholdKmph float64
	ReleaseConfirmFrames int
}

// ScaleAt returns the perspective factor for a ball at image row y. A
// non-positive frame height disables the depth term.
func (c SpeedConfig) ScaleAt(y float64, frameHeight int) float64 {
	if frameHeight <= 0 || c.PerspectiveGain == 0 {
		return c.PerspectiveScale
	}
	return c.PerspectiveScale + c.PerspectiveGain*y/float64(frameHeight)
}

// SpeedState is the pipeline's view of the current delivery.
type SpeedState struct {
	Raw      float64
	Clamped  float64
	Smoothed float64
	Max      float64

	Release  float64
	Released bool
}

// SpeedSample is the outcome of one Compute call.
type SpeedSample struct {
	Raw      float64
	Clamped  float64
	Smoothed float64
	// Released is true only on the frame the release speed latched.
	Released bool
}

// SpeedPipeline turns estimator velocity into a display speed:
// raw conversion, per-frame clamp, EMA, ceiling, release latch and max.
// One pipeline serves one delivery.
type SpeedPipeline struct {
	cfg    SpeedConfig
	state  SpeedState
	primed bool
	above  int

	readings []float64
}

// NewSpeedPipeline returns an empty pipeline.
func NewSpeedPipeline(cfg SpeedConfig) *SpeedPipeline {
	if cfg.ReleaseConfirmFrames < 1 {
		cfg.ReleaseConfirmFrames = 1
	}
	if !(cfg.SmoothingAlpha > 0 && cfg.SmoothingAlpha <= 1) {
		cfg.SmoothingAlpha = 1
	}
	return &SpeedPipeline{cfg: cfg}
}

// Compute converts an image-plane speed in px/s to km/h and runs it through
// the pipeline stages. The returned Smoothed value never exceeds the
// configured ceiling.
func (p *SpeedPipeline) Compute(pxPerSecond, perspectiveScale float64) SpeedSample {
	raw := units.PixelSpeedToKmph(pxPerSecond, p.cfg.MetersPerPixel, perspectiveScale)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		raw = p.state.Clamped
	}

	clamped := raw
	smoothed := raw
	if p.primed {
		prev := p.state.Clamped
		clamped = math.Max(prev-p.cfg.MaxDeltaKmph, math.Min(prev+p.cfg.MaxDeltaKmph, raw))
		a := p.cfg.SmoothingAlpha
		smoothed = a*clamped + (1-a)*p.state.Smoothed
	}
	smoothed = math.Min(smoothed, p.cfg.CeilingKmph)
	p.primed = true

	p.state.Raw = raw
	p.state.Clamped = clamped
	p.state.Smoothed = smoothed
	if smoothed > p.state.Max {
		p.state.Max = smoothed
	}
	p.readings = append(p.readings, smoothed)

	sample := SpeedSample{Raw: raw, Clamped: clamped, Smoothed: smoothed}
	if !p.state.Released {
		if smoothed > p.cfg.ReleaseThresholdKmph {
			p.above++
		} else {
			p.above = 0
		}
		if p.above >= p.cfg.ReleaseConfirmFrames {
			p.state.Released = true
			p.state.Release = smoothed
			sample.Released = true
		}
	}
	return sample
}

// State returns a copy of the current state.
func (p *SpeedPipeline) State() SpeedState {
	return p.state
}

// Average returns the mean smoothed speed over every Compute call, or 0
// before the first one.
func (p *SpeedPipeline) Average() float64 {
	if len(p.readings) == 0 {
		return 0
	}
	return stat.Mean(p.readings, nil)
}
