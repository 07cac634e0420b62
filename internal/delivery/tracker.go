package delivery

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/delivery.report/internal/config"
	"github.com/banshee-data/delivery.report/internal/kinematics"
	"github.com/banshee-data/delivery.report/internal/monitoring"
	"github.com/banshee-data/delivery.report/internal/timeutil"
)

// Phase is the lifecycle phase of the tracker.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTracking
	// PhaseFinalized is transient: the tracker passes through it while
	// emitting a record and is back in PhaseIdle before ProcessFrame returns.
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseTracking:
		return "TRACKING"
	case PhaseFinalized:
		return "FINALIZED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Config is the runtime configuration of a Tracker.
type Config struct {
	FPS               float64
	FrameHeight       int // used when a frame carries no height
	GateMaxDistancePx float64

	DropoutMode    string
	DropoutFrames  int           // frames mode: finalize when misses > DropoutFrames
	DropoutTimeout time.Duration // elapsed mode: finalize when idle for > DropoutTimeout

	HistoryWindow       int
	MinTrajectoryPoints int

	Estimator kinematics.EstimatorConfig
	Speed     SpeedConfig
	Bounce    BounceConfig
}

// DefaultConfig returns the configuration built from the code defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.DefaultTuningConfig())
}

// ConfigFromTuning maps a tuning file onto the runtime configuration.
// Absent fields take their defaults.
func ConfigFromTuning(t *config.TuningConfig) Config {
	return Config{
		FPS:               t.GetFPS(),
		FrameHeight:       t.GetFrameHeight(),
		GateMaxDistancePx: t.GetGateMaxDistancePx(),

		DropoutMode:    t.GetDropoutMode(),
		DropoutFrames:  t.GetDropoutFrames(),
		DropoutTimeout: t.GetDropoutTimeout(),

		HistoryWindow:       t.GetHistoryWindow(),
		MinTrajectoryPoints: t.GetMinTrajectoryPoints(),

		Estimator: kinematics.EstimatorConfig{
			InitialPositionVariance: t.GetInitialPositionVariance(),
			InitialVelocityVariance: t.GetInitialVelocityVariance(),
			ProcessNoisePos:         t.GetProcessNoisePos(),
			ProcessNoiseVel:         t.GetProcessNoiseVel(),
			MeasurementNoise:        t.GetMeasurementNoise(),
			MinDeterminant:          t.GetMinDeterminant(),
		},
		Speed: SpeedConfig{
			MetersPerPixel:       t.GetMetersPerPixel(),
			PerspectiveScale:     t.GetPerspectiveScale(),
			PerspectiveGain:      t.GetPerspectiveGain(),
			MaxDeltaKmph:         t.GetSpeedMaxDeltaKmph(),
			SmoothingAlpha:       t.GetSpeedSmoothingAlpha(),
			CeilingKmph:          t.GetSpeedCeilingKmph(),
			ReleaseThresholdKmph: t.GetReleaseThresholdKmph(),
			ReleaseConfirmFrames: t.GetReleaseConfirmFrames(),
		},
		Bounce: BounceConfig{
			Strategy:       t.GetBounceStrategy(),
			CooldownFrames: t.GetBounceCooldownFrames(),
			SpeedDropPx:    t.GetBounceSpeedDropPx(),
			FlatVyPx:       t.GetBounceFlatVyPx(),
		},
	}
}

// Validate reports the first configuration problem that would stop a
// Tracker from running.
func (c Config) Validate() error {
	if !(c.FPS > 0) {
		return fmt.Errorf("fps must be positive, got %f", c.FPS)
	}
	if !(c.GateMaxDistancePx > 0) {
		return fmt.Errorf("gate max distance must be positive, got %f", c.GateMaxDistancePx)
	}
	switch c.DropoutMode {
	case config.DropoutModeFrames:
		if c.DropoutFrames < 0 {
			return fmt.Errorf("dropout frames must be non-negative, got %d", c.DropoutFrames)
		}
	case config.DropoutModeElapsed:
		if c.DropoutTimeout <= 0 {
			return fmt.Errorf("dropout timeout must be positive, got %s", c.DropoutTimeout)
		}
	default:
		return fmt.Errorf("unknown dropout mode %q", c.DropoutMode)
	}
	if _, err := NewBounceStrategy(c.Bounce); err != nil {
		return err
	}
	return nil
}

// FrameResult describes what a single ProcessFrame call did.
type FrameResult struct {
	Frame int
	Phase Phase // phase after the frame

	Predicted   *Observation // nil when no delivery was active
	Accepted    bool
	Observation Observation // the accepted candidate
	Position    Observation // estimator position after the frame
	SpeedKmph   float64

	Released bool
	Bounced  bool

	// Finalized is set when the delivery ended on this frame. Record is nil
	// if it was discarded for having too few points.
	Finalized bool
	Record    *Record
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used by the elapsed dropout mode.
func WithClock(c timeutil.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithCounters shares a counter set with the tracker.
func WithCounters(c *monitoring.Counters) Option {
	return func(t *Tracker) { t.counters = c }
}

// track is the per-delivery state. It is replaced wholesale on reset.
type track struct {
	est     *kinematics.Estimator
	speed   *SpeedPipeline
	events  *EventDetector
	history *History

	startFrame  int
	lastFrame   int
	lastSeen    time.Time
	misses      int
	frameHeight int

	trajectory []TrajectoryPoint
	release    *ReleaseEvent
}

// Tracker drives the delivery lifecycle over a frame stream. Delivery ids
// are assigned to emitted records in sequence starting at 1 and continue
// across resets.
type Tracker struct {
	cfg      Config
	clock    timeutil.Clock
	counters *monitoring.Counters

	phase     Phase
	active    *track
	emitted   int
	prevFrame int
	hasPrev   bool
}

// NewTracker validates cfg and returns an idle tracker.
func NewTracker(cfg Config, opts ...Option) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}
	t := &Tracker{
		cfg:      cfg,
		clock:    timeutil.RealClock{},
		counters: &monitoring.Counters{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Phase returns the current lifecycle phase.
func (t *Tracker) Phase() Phase { return t.phase }

// Counters returns the tracker's counters.
func (t *Tracker) Counters() *monitoring.Counters { return t.counters }

// ProcessFrame consumes one frame's candidates. frameHeight may be zero,
// in which case the configured height is used. Frames must arrive in
// increasing index order; the index gap sets the prediction step.
func (t *Tracker) ProcessFrame(frame, frameHeight int, candidates []Candidate) FrameResult {
	t.counters.Frames.Add(1)
	if frameHeight <= 0 {
		frameHeight = t.cfg.FrameHeight
	}

	gap := 1
	if t.hasPrev && frame > t.prevFrame {
		gap = frame - t.prevFrame
	}
	t.prevFrame, t.hasPrev = frame, true

	res := FrameResult{Frame: frame}
	if t.phase != PhaseTracking {
		c, ok := Associate(candidates, nil, t.cfg.GateMaxDistancePx)
		if !ok {
			t.counters.NoObservationAccepted.Add(1)
			res.Phase = t.phase
			return res
		}
		if !t.start(frame, frameHeight, c) {
			res.Phase = t.phase
			return res
		}
		res.Phase = t.phase
		res.Accepted = true
		res.Observation = c.Observation
		res.Position = c.Observation
		return res
	}

	tr := t.active
	tr.frameHeight = frameHeight
	px, py, _ := tr.est.Predict(float64(gap) / t.cfg.FPS)
	res.Predicted = &Observation{X: px, Y: py}

	c, ok := Associate(candidates, res.Predicted, t.cfg.GateMaxDistancePx)
	if ok {
		if err := tr.est.Update(c.X, c.Y); err != nil {
			if errors.Is(err, kinematics.ErrDegenerateUpdate) {
				t.counters.DegenerateUpdates.Add(1)
			}
			opsf("frame %d: update skipped: %v", frame, err)
			ok = false
		}
	}

	if ok {
		t.accept(frame, c, &res)
	} else {
		tr.misses++
		t.counters.NoObservationAccepted.Add(1)
		res.Position = *res.Predicted
		tracef("frame %d: no observation (misses=%d, candidates=%d)", frame, tr.misses, len(candidates))
	}

	if t.expired() {
		res.Finalized = true
		res.Record = t.finalize()
	}
	res.Phase = t.phase
	return res
}

// Flush finalizes the active delivery, if any. It is called at end of
// stream so an in-flight delivery is not lost.
func (t *Tracker) Flush() *Record {
	if t.phase != PhaseTracking {
		return nil
	}
	return t.finalize()
}

func (t *Tracker) start(frame, frameHeight int, c Candidate) bool {
	est := kinematics.NewEstimator(t.cfg.Estimator)
	if err := est.Initialize(c.X, c.Y); err != nil {
		// Associate never hands out non-finite candidates.
		opsf("frame %d: initialize failed: %v", frame, err)
		return false
	}
	strategy, _ := NewBounceStrategy(t.cfg.Bounce)
	tr := &track{
		est:         est,
		speed:       NewSpeedPipeline(t.cfg.Speed),
		events:      NewEventDetector(strategy, t.cfg.Bounce.CooldownFrames),
		history:     NewHistory(t.cfg.HistoryWindow),
		startFrame:  frame,
		lastFrame:   frame,
		lastSeen:    t.clock.Now(),
		frameHeight: frameHeight,
	}
	tr.history.Push(HistoryPoint{Frame: frame, X: c.X, Y: c.Y})
	tr.trajectory = append(tr.trajectory, TrajectoryPoint{Frame: frame, X: pixel(c.X), Y: pixel(c.Y)})

	t.active = tr
	t.phase = PhaseTracking
	t.counters.ObservationsAccepted.Add(1)
	diagf("frame %d: delivery started at (%.1f, %.1f) using %s", frame, c.X, c.Y, strategy.Name())
	return true
}

func (t *Tracker) accept(frame int, c Candidate, res *FrameResult) {
	tr := t.active
	tr.misses = 0
	tr.lastFrame = frame
	tr.lastSeen = t.clock.Now()
	t.counters.ObservationsAccepted.Add(1)

	x, y, _ := tr.est.Position()
	vx, vy, pxSpeed, _ := tr.est.Velocity()

	sample := tr.speed.Compute(pxSpeed, t.cfg.Speed.ScaleAt(y, tr.frameHeight))
	tr.trajectory = append(tr.trajectory, TrajectoryPoint{
		Frame:     frame,
		X:         pixel(x),
		Y:         pixel(y),
		SpeedKmph: roundSpeed(sample.Smoothed),
	})
	if sample.Released {
		tr.release = &ReleaseEvent{Frame: frame, X: pixel(x), Y: pixel(y), SpeedKmph: roundSpeed(sample.Smoothed)}
		diagf("frame %d: release latched at %.2f km/h", frame, sample.Smoothed)
	}

	tr.history.Push(HistoryPoint{Frame: frame, X: x, Y: y})
	b, bounced := tr.events.Observe(BounceSample{Frame: frame, X: x, Y: y, VX: vx, VY: vy, Speed: pxSpeed}, tr.history)
	if bounced {
		diagf("frame %d: bounce at frame %d y=%.1f", frame, b.Frame, b.Y)
	}

	res.Accepted = true
	res.Observation = c.Observation
	res.Position = Observation{X: x, Y: y}
	res.SpeedKmph = sample.Smoothed
	res.Released = sample.Released
	res.Bounced = bounced
	tracef("frame %d: accepted (%.1f, %.1f) speed=%.2f km/h", frame, c.X, c.Y, sample.Smoothed)
}

func (t *Tracker) expired() bool {
	tr := t.active
	if tr == nil {
		return false
	}
	if t.cfg.DropoutMode == config.DropoutModeElapsed {
		return t.clock.Since(tr.lastSeen) > t.cfg.DropoutTimeout
	}
	return tr.misses > t.cfg.DropoutFrames
}

// finalize moves TRACKING → FINALIZED → IDLE, dropping all per-delivery
// state. It returns nil when the delivery is discarded.
func (t *Tracker) finalize() *Record {
	tr := t.active
	t.phase = PhaseFinalized
	defer func() {
		t.active = nil
		t.phase = PhaseIdle
	}()

	if tr == nil {
		return nil
	}
	// The init frame always records a point, so short deliveries reach this
	// branch only through MinTrajectoryPoints.
	if len(tr.trajectory) == 0 || len(tr.trajectory) < t.cfg.MinTrajectoryPoints {
		t.counters.EmptyDeliveryDiscarded.Add(1)
		opsf("delivery starting frame %d discarded: %d trajectory points", tr.startFrame, len(tr.trajectory))
		return nil
	}

	t.emitted++
	rec := t.buildRecord(t.emitted, tr)
	t.counters.DeliveriesEmitted.Add(1)
	diagf("delivery %d finalized: frames %d-%d, %d points, max %.2f km/h, pitch %q",
		rec.DeliveryID, rec.StartFrame, rec.EndFrame, len(rec.Trajectory), rec.Speed.MaxKmph, rec.Pitch())
	return rec
}

func (t *Tracker) buildRecord(id int, tr *track) *Record {
	speed := tr.speed.State()
	rec := &Record{
		DeliveryID: id,
		StartFrame: tr.startFrame,
		EndFrame:   tr.lastFrame,
		Speed: SpeedSummary{
			MaxKmph:     roundSpeed(speed.Max),
			AverageKmph: roundSpeed(tr.speed.Average()),
		},
		Trajectory: append([]TrajectoryPoint(nil), tr.trajectory...),
	}
	if tr.release != nil {
		release := *tr.release
		rec.Release = &release
		v := release.SpeedKmph
		rec.Speed.ReleaseKmph = &v
	}
	if b := tr.events.State(); b.HasBounced {
		rec.Bounce = &BounceEvent{Frame: b.Frame, X: pixel(b.X), Y: pixel(b.Y)}
		if p := ClassifyPitch(b.Y, tr.frameHeight); p != PitchUnknown {
			rec.PitchType = &p
		}
	}
	return rec
}
