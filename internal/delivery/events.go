package delivery

// BounceState records the single bounce of a delivery.
type BounceState struct {
	HasBounced bool
	Frame      int
	X, Y       float64
}

// EventDetector wraps a BounceStrategy with the AWAITING_BOUNCE → BOUNCED
// state machine. Once bounced it never fires again.
type EventDetector struct {
	strategy BounceStrategy
	cooldown int
	seen     int
	state    BounceState
}

// NewEventDetector returns a detector in the awaiting state. Triggers
// during the first cooldownFrames observations of a delivery are ignored.
func NewEventDetector(strategy BounceStrategy, cooldownFrames int) *EventDetector {
	if cooldownFrames < 0 {
		cooldownFrames = 0
	}
	return &EventDetector{strategy: strategy, cooldown: cooldownFrames}
}

// Observe feeds one accepted frame. It reports true exactly once per
// delivery, on the frame the bounce is recognised.
func (d *EventDetector) Observe(s BounceSample, history *History) (BounceState, bool) {
	d.seen++
	// The strategy sees every frame so its own state stays current.
	c, fired := d.strategy.Observe(s, history)
	if d.state.HasBounced || !fired || d.seen <= d.cooldown {
		return d.state, false
	}
	d.state = BounceState{HasBounced: true, Frame: c.Frame, X: c.X, Y: c.Y}
	return d.state, true
}

// State returns the current bounce state.
func (d *EventDetector) State() BounceState {
	return d.state
}

// Pitch classifies the recorded bounce, or PitchUnknown before one.
func (d *EventDetector) Pitch(frameHeight int) PitchType {
	if !d.state.HasBounced {
		return PitchUnknown
	}
	return ClassifyPitch(d.state.Y, frameHeight)
}
