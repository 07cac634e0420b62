// Package pipeline runs the per-frame loop: it pulls detection batches from
// a detection.Source, hands them to a delivery.Tracker in strict frame
// order, and fans finalized delivery records out to sinks.
//
// The pipeline does not own domain logic. Association, estimation, speed
// and bounce detection all live in the delivery package.
package pipeline
