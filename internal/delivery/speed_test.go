package delivery

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kmphConfig makes 1 px/s equal 1 km/h so tests can reason in km/h.
func kmphConfig() SpeedConfig {
	return SpeedConfig{
		MetersPerPixel:       1 / 3.6,
		PerspectiveScale:     1,
		MaxDeltaKmph:         18,
		SmoothingAlpha:       0.25,
		CeilingKmph:          160,
		ReleaseThresholdKmph: 30,
		ReleaseConfirmFrames: 1,
	}
}

func TestSpeedPipelineFirstValuePassesThrough(t *testing.T) {
	t.Parallel()
	p := NewSpeedPipeline(kmphConfig())
	s := p.Compute(100, 1)
	assert.InDelta(t, 100, s.Raw, 1e-9)
	assert.InDelta(t, 100, s.Clamped, 1e-9)
	assert.InDelta(t, 100, s.Smoothed, 1e-9)
}

func TestSpeedPipelineClamp(t *testing.T) {
	t.Parallel()
	cfg := kmphConfig()
	p := NewSpeedPipeline(cfg)

	raws := []float64{10, 200, 0, 90, 91, 500, 499, 3, 3, 140, 0, 0, 60}
	prev := math.NaN()
	for i, r := range raws {
		s := p.Compute(r, 1)
		if i > 0 {
			assert.LessOrEqual(t, math.Abs(s.Clamped-prev), cfg.MaxDeltaKmph+1e-9, "step %d", i)
		}
		prev = s.Clamped
	}

	t.Run("clamp tracks the previous clamped value", func(t *testing.T) {
		p := NewSpeedPipeline(cfg)
		p.Compute(10, 1)
		s := p.Compute(200, 1)
		assert.InDelta(t, 28, s.Clamped, 1e-9)
		s = p.Compute(200, 1)
		assert.InDelta(t, 46, s.Clamped, 1e-9)
	})
}

func TestSpeedPipelineSmoothing(t *testing.T) {
	t.Parallel()
	p := NewSpeedPipeline(kmphConfig())
	p.Compute(40, 1)
	s := p.Compute(48, 1)
	assert.InDelta(t, 0.25*48+0.75*40, s.Smoothed, 1e-9)
}

func TestSpeedPipelineCeiling(t *testing.T) {
	t.Parallel()
	cfg := kmphConfig()
	p := NewSpeedPipeline(cfg)
	for i := 0; i < 50; i++ {
		s := p.Compute(1e9, 1)
		assert.LessOrEqual(t, s.Smoothed, cfg.CeilingKmph)
	}
	assert.Equal(t, cfg.CeilingKmph, p.State().Max)
}

func TestSpeedPipelineMaxMonotonic(t *testing.T) {
	t.Parallel()
	p := NewSpeedPipeline(kmphConfig())
	last := 0.0
	for _, r := range []float64{50, 80, 20, 5, 120, 90, 0, 140, 10} {
		p.Compute(r, 1)
		m := p.State().Max
		assert.GreaterOrEqual(t, m, last)
		last = m
	}
}

func TestSpeedPipelineReleaseLatch(t *testing.T) {
	t.Parallel()

	t.Run("latched once", func(t *testing.T) {
		p := NewSpeedPipeline(kmphConfig())
		assert.False(t, p.Compute(20, 1).Released)
		s := p.Compute(38, 1) // 0.25*38 + 0.75*20 = 24.5
		assert.False(t, s.Released)
		var latched []float64
		for i := 0; i < 10; i++ {
			if s := p.Compute(100, 1); s.Released {
				latched = append(latched, s.Smoothed)
			}
		}
		require.Len(t, latched, 1)
		st := p.State()
		assert.True(t, st.Released)
		assert.Equal(t, latched[0], st.Release)
		assert.Greater(t, st.Release, 30.0)
		assert.Less(t, st.Release, st.Max)
	})

	t.Run("confirmation frames", func(t *testing.T) {
		cfg := kmphConfig()
		cfg.ReleaseConfirmFrames = 3
		cfg.SmoothingAlpha = 1
		cfg.MaxDeltaKmph = 1000
		p := NewSpeedPipeline(cfg)
		p.Compute(40, 1)
		p.Compute(40, 1)
		p.Compute(10, 1) // drops below, resets the count
		assert.False(t, p.State().Released)
		p.Compute(40, 1)
		p.Compute(40, 1)
		assert.False(t, p.State().Released)
		assert.True(t, p.Compute(40, 1).Released)
	})
}

func TestSpeedPipelinePerspective(t *testing.T) {
	t.Parallel()
	cfg := kmphConfig()
	cfg.PerspectiveGain = 0.5

	assert.Equal(t, 1.0, cfg.ScaleAt(360, 0))
	assert.InDelta(t, 1.25, cfg.ScaleAt(360, 720), 1e-9)

	p := NewSpeedPipeline(cfg)
	s := p.Compute(100, cfg.ScaleAt(720, 720))
	assert.InDelta(t, 150, s.Raw, 1e-9)
}

func TestSpeedPipelineAverage(t *testing.T) {
	t.Parallel()
	p := NewSpeedPipeline(kmphConfig())
	assert.Zero(t, p.Average())
	p.Compute(40, 1)
	p.Compute(40, 1)
	assert.InDelta(t, 40, p.Average(), 1e-9)
}

func TestSpeedPipelineNonFiniteInput(t *testing.T) {
	t.Parallel()
	p := NewSpeedPipeline(kmphConfig())
	p.Compute(50, 1)
	s := p.Compute(math.Inf(1), 1)
	assert.InDelta(t, 50, s.Smoothed, 1e-9)
}
