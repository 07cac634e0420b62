// Package kinematics owns the recursive state estimator for a single
// moving point in image coordinates.
//
// Responsibilities: constant-velocity prediction, linear measurement
// correction, and covariance bookkeeping over the state [x, y, vx, vy].
// Key types: Estimator, EstimatorConfig, State.
//
// Positions are pixels and velocities are pixels/second. The package knows
// nothing about deliveries, speeds in physical units, or detections.
package kinematics
