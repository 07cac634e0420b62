// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"

	"github.com/banshee-data/delivery.report/internal/detection"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// LinearFrames returns n frames starting at index start, each with a single
// detection moving (dx, dy) pixels per frame from (x0, y0).
func LinearFrames(start, n int, x0, y0, dx, dy float64) []detection.Frame {
	frames := make([]detection.Frame, n)
	for k := range frames {
		x := x0 + dx*float64(k)
		y := y0 + dy*float64(k)
		frames[k] = detection.Frame{
			Index: start + k,
			Detections: []detection.Detection{{
				CenterX:    x,
				CenterY:    y,
				Box:        detection.Box{x - 4, y - 4, x + 4, y + 4},
				Confidence: 0.9,
			}},
		}
	}
	return frames
}

// EmptyFrames returns n frames with no detections starting at index start.
func EmptyFrames(start, n int) []detection.Frame {
	frames := make([]detection.Frame, n)
	for k := range frames {
		frames[k] = detection.Frame{Index: start + k}
	}
	return frames
}

// Concat joins frame slices in order.
func Concat(parts ...[]detection.Frame) []detection.Frame {
	var out []detection.Frame
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
