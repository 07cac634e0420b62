package testutil

import (
	"errors"
	"testing"
)

// TestAssertNoError_NilErr tests nil error path.
func TestAssertNoError_NilErr(t *testing.T) {
	fakeT := &testing.T{}
	AssertNoError(fakeT, nil)
	if fakeT.Failed() {
		t.Error("expected no failure for nil error")
	}
}

// TestAssertError_WithErr tests non-nil error path.
func TestAssertError_WithErr(t *testing.T) {
	fakeT := &testing.T{}
	AssertError(fakeT, errors.New("something wrong"))
	if fakeT.Failed() {
		t.Error("expected no failure when error is present")
	}
}

func TestLinearFrames(t *testing.T) {
	frames := LinearFrames(10, 3, 100, 50, 5, -2)
	if len(frames) != 3 {
		t.Fatalf("len = %d, want 3", len(frames))
	}
	last := frames[2]
	if last.Index != 12 {
		t.Errorf("index = %d, want 12", last.Index)
	}
	d := last.Detections[0]
	if d.CenterX != 110 || d.CenterY != 46 {
		t.Errorf("center = (%v, %v), want (110, 46)", d.CenterX, d.CenterY)
	}
	if d.Box.Width() != 8 {
		t.Errorf("box width = %v, want 8", d.Box.Width())
	}
}

func TestEmptyFramesAndConcat(t *testing.T) {
	frames := Concat(LinearFrames(0, 2, 0, 0, 1, 1), EmptyFrames(2, 3))
	if len(frames) != 5 {
		t.Fatalf("len = %d, want 5", len(frames))
	}
	for i, f := range frames {
		if f.Index != i {
			t.Errorf("frames[%d].Index = %d", i, f.Index)
		}
	}
	if len(frames[4].Detections) != 0 {
		t.Error("expected no detections in empty frame")
	}
}
