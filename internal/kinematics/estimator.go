package kinematics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Numerical stability constants. These are not user-tunable.
const (
	// DefaultMinDeterminant is the smallest innovation covariance determinant
	// accepted for inversion when the config leaves it unset.
	DefaultMinDeterminant = 1e-6
	// MinDt is the floor applied to non-positive or non-finite time steps.
	MinDt = 1e-3
)

var (
	// ErrNotInitialized is returned by operations that need a seeded state.
	ErrNotInitialized = errors.New("kinematics: estimator not initialized")
	// ErrAlreadyInitialized is returned when Initialize is called twice on
	// the same estimator. Construct a new Estimator to start over.
	ErrAlreadyInitialized = errors.New("kinematics: estimator already initialized")
	// ErrDegenerateUpdate is returned when the innovation covariance cannot
	// be inverted or the correction would produce a non-finite state. The
	// state is left exactly as it was before the call.
	ErrDegenerateUpdate = errors.New("kinematics: degenerate update")
)

// EstimatorConfig holds the noise model. Variances are in px² for position
// terms and (px/s)² for velocity terms.
type EstimatorConfig struct {
	InitialPositionVariance float64 // P₀ diagonal for x, y
	InitialVelocityVariance float64 // P₀ diagonal for vx, vy
	ProcessNoisePos         float64 // Q diagonal for x, y (per predict step)
	ProcessNoiseVel         float64 // Q diagonal for vx, vy (per predict step)
	MeasurementNoise        float64 // R diagonal
	MinDeterminant          float64 // singular-S threshold
}

// DefaultEstimatorConfig returns the production-default noise model.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		InitialPositionVariance: 500,
		InitialVelocityVariance: 250000,
		ProcessNoisePos:         0.1,
		ProcessNoiseVel:         2500,
		MeasurementNoise:        10,
		MinDeterminant:          DefaultMinDeterminant,
	}
}

// State is a copy of the estimator state. Mutating it has no effect on the
// estimator.
type State struct {
	X, Y   float64
	VX, VY float64
	P      [16]float64 // covariance, row-major
}

// Speed returns the scalar image-plane speed in px/s.
func (s State) Speed() float64 {
	return math.Hypot(s.VX, s.VY)
}

// Estimator is a linear Kalman filter over [x, y, vx, vy] with a
// constant-velocity motion model and a position-only measurement.
// An Estimator is owned by exactly one delivery; it is not safe for
// concurrent use.
type Estimator struct {
	cfg   EstimatorConfig
	ready bool

	x *mat.VecDense // state, 4
	p *mat.Dense    // covariance, 4x4

	h *mat.Dense // measurement model, 2x4
	q *mat.Dense // process noise, 4x4
	r *mat.Dense // measurement noise, 2x2
}

// NewEstimator creates an uninitialized estimator.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	if cfg.MinDeterminant <= 0 {
		cfg.MinDeterminant = DefaultMinDeterminant
	}
	return &Estimator{
		cfg: cfg,
		x:   mat.NewVecDense(4, nil),
		p:   mat.NewDense(4, 4, nil),
		h: mat.NewDense(2, 4, []float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
		}),
		q: diag(cfg.ProcessNoisePos, cfg.ProcessNoisePos, cfg.ProcessNoiseVel, cfg.ProcessNoiseVel),
		r: diag(cfg.MeasurementNoise, cfg.MeasurementNoise),
	}
}

// Ready reports whether Initialize has been called.
func (e *Estimator) Ready() bool {
	return e.ready
}

// Initialize seeds the state at the given position with zero velocity and
// the large initial covariance.
func (e *Estimator) Initialize(x, y float64) error {
	if e.ready {
		return ErrAlreadyInitialized
	}
	if !isFinite(x) || !isFinite(y) {
		return fmt.Errorf("kinematics: non-finite initial position (%f, %f)", x, y)
	}
	e.x = mat.NewVecDense(4, []float64{x, y, 0, 0})
	e.p = diag(
		e.cfg.InitialPositionVariance, e.cfg.InitialPositionVariance,
		e.cfg.InitialVelocityVariance, e.cfg.InitialVelocityVariance,
	)
	e.ready = true
	return nil
}

// transition returns F(dt) for the constant-velocity model:
//
//	[1  0  dt 0 ]
//	[0  1  0  dt]
//	[0  0  1  0 ]
//	[0  0  0  1 ]
func transition(dt float64) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

// sanitizeDt floors dt at MinDt so a repeated or reordered frame timestamp
// can never produce a zero or negative step.
func sanitizeDt(dt float64) float64 {
	if !(dt >= MinDt) || math.IsInf(dt, 0) {
		return MinDt
	}
	return dt
}

// Predict propagates the state by dt seconds and returns the predicted
// position. ok is false when the estimator has not been initialized, in
// which case nothing changes.
func (e *Estimator) Predict(dt float64) (x, y float64, ok bool) {
	if !e.ready {
		return 0, 0, false
	}
	f := transition(sanitizeDt(dt))

	// x' = F·x
	var next mat.VecDense
	next.MulVec(f, e.x)

	// P' = F·P·Fᵀ + Q
	var fp, fpft, p mat.Dense
	fp.Mul(f, e.p)
	fpft.Mul(&fp, f.T())
	p.Add(&fpft, e.q)

	if !isFiniteVec(&next) || !isFiniteDense(&p) {
		// Leave the last good state in place; the caller sees the old position.
		return e.x.AtVec(0), e.x.AtVec(1), true
	}
	e.x = &next
	e.p = &p
	return e.x.AtVec(0), e.x.AtVec(1), true
}

// Update corrects the state with a measured position. It returns
// ErrNotInitialized before Initialize and ErrDegenerateUpdate when the
// correction cannot be applied; in both cases the state is unchanged.
func (e *Estimator) Update(zx, zy float64) error {
	if !e.ready {
		return ErrNotInitialized
	}
	if !isFinite(zx) || !isFinite(zy) {
		return fmt.Errorf("%w: non-finite measurement (%f, %f)", ErrDegenerateUpdate, zx, zy)
	}

	// Innovation y = z − H·x
	z := mat.NewVecDense(2, []float64{zx, zy})
	var hx, innovation mat.VecDense
	hx.MulVec(e.h, e.x)
	innovation.SubVec(z, &hx)

	// S = H·P·Hᵀ + R
	var pht, hpht, s mat.Dense
	pht.Mul(e.p, e.h.T())
	hpht.Mul(e.h, &pht)
	s.Add(&hpht, e.r)

	det := mat.Det(&s)
	if !(det >= e.cfg.MinDeterminant) {
		return fmt.Errorf("%w: det(S)=%g", ErrDegenerateUpdate, det)
	}
	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return fmt.Errorf("%w: %v", ErrDegenerateUpdate, err)
	}

	// K = P·Hᵀ·S⁻¹
	var k mat.Dense
	k.Mul(&pht, &sInv)

	// x = x + K·y
	var correction, next mat.VecDense
	correction.MulVec(&k, &innovation)
	next.AddVec(e.x, &correction)

	// P = (I − K·H)·P
	var kh, ikh, p mat.Dense
	kh.Mul(&k, e.h)
	ikh.Sub(identity4(), &kh)
	p.Mul(&ikh, e.p)

	if !isFiniteVec(&next) || !isFiniteDense(&p) {
		return fmt.Errorf("%w: non-finite state after correction", ErrDegenerateUpdate)
	}
	e.x = &next
	e.p = &p
	return nil
}

// Position returns the current position estimate.
func (e *Estimator) Position() (x, y float64, err error) {
	if !e.ready {
		return 0, 0, ErrNotInitialized
	}
	return e.x.AtVec(0), e.x.AtVec(1), nil
}

// Velocity returns (vx, vy) and the scalar speed, all in px/s.
func (e *Estimator) Velocity() (vx, vy, speed float64, err error) {
	if !e.ready {
		return 0, 0, 0, ErrNotInitialized
	}
	vx, vy = e.x.AtVec(2), e.x.AtVec(3)
	return vx, vy, math.Hypot(vx, vy), nil
}

// State returns a copy of the full state and covariance.
func (e *Estimator) State() (State, error) {
	if !e.ready {
		return State{}, ErrNotInitialized
	}
	s := State{
		X:  e.x.AtVec(0),
		Y:  e.x.AtVec(1),
		VX: e.x.AtVec(2),
		VY: e.x.AtVec(3),
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			s.P[i*4+j] = e.p.At(i, j)
		}
	}
	return s, nil
}

func identity4() *mat.Dense {
	return diag(1, 1, 1, 1)
}

// diag returns a dense square matrix with the given diagonal.
func diag(values ...float64) *mat.Dense {
	return mat.DenseCopyOf(mat.NewDiagDense(len(values), values))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isFiniteVec(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		if !isFinite(v.AtVec(i)) {
			return false
		}
	}
	return true
}

func isFiniteDense(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if !isFinite(m.At(i, j)) {
				return false
			}
		}
	}
	return true
}
