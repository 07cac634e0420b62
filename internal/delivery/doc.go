// Package delivery segments a single-ball detection stream into deliveries.
//
// A Tracker owns at most one active delivery. Every frame it predicts the
// ball position with a kinematics.Estimator, gates the frame's candidate
// detections against that prediction, feeds the accepted observation back
// into the estimator, and derives a smoothed km/h speed and a one-shot
// bounce event. When the ball has been missing for longer than the dropout
// threshold the delivery is finalized into an immutable Record and every
// per-delivery component is rebuilt from scratch for the next one.
//
// Lifecycle:
//
//	IDLE ──first accepted observation──▶ TRACKING
//	TRACKING ──dropout exceeded / Flush──▶ FINALIZED ──▶ IDLE
//
// The package is single-threaded: a Tracker must be driven by one goroutine
// in strict frame order.
package delivery
