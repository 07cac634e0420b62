package detection

import (
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"

	"github.com/banshee-data/delivery.report/internal/monitoring"
)

func readAll(t *testing.T, src Source) []Frame {
	t.Helper()
	var out []Frame
	for {
		f, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, f)
	}
}

func indices(frames []Frame) []int {
	out := make([]int, len(frames))
	for i, f := range frames {
		out[i] = f.Index
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestJSONLReaderParsesFrames(t *testing.T) {
	input := `{"frame":0,"frame_height":720,"detections":[{"center_x":10.5,"center_y":20,"box":[5,15,16,25],"confidence":0.9}]}
{"frame":1,"detections":[]}
`
	frames := readAll(t, NewJSONLReader(strings.NewReader(input), nil))
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Height != 720 {
		t.Errorf("height = %d, want 720", frames[0].Height)
	}
	if len(frames[0].Detections) != 1 {
		t.Fatalf("got %d detections, want 1", len(frames[0].Detections))
	}
	d := frames[0].Detections[0]
	if d.CenterX != 10.5 {
		t.Errorf("center_x = %v, want 10.5", d.CenterX)
	}
	if d.Box != (Box{5, 15, 16, 25}) {
		t.Errorf("box = %v", d.Box)
	}
	if d.Box.Width() != 11 || d.Box.Height() != 10 {
		t.Errorf("box size = %vx%v, want 11x10", d.Box.Width(), d.Box.Height())
	}
	// Height carries forward.
	if frames[1].Height != 720 {
		t.Errorf("carried height = %d, want 720", frames[1].Height)
	}
}

func TestJSONLReaderFillsGaps(t *testing.T) {
	input := `{"frame":3,"frame_height":480,"detections":[{"center_x":1,"center_y":1,"confidence":1}]}
{"frame":7,"detections":[{"center_x":2,"center_y":2,"confidence":1}]}
`
	frames := readAll(t, NewJSONLReader(strings.NewReader(input), nil))
	if got, want := indices(frames), []int{3, 4, 5, 6, 7}; !equalInts(got, want) {
		t.Fatalf("indices = %v, want %v", got, want)
	}
	for _, f := range frames[1:4] {
		if len(f.Detections) != 0 || f.Height != 480 {
			t.Errorf("gap frame %d = %+v, want empty with height 480", f.Index, f)
		}
	}
	if len(frames[4].Detections) != 1 {
		t.Errorf("frame 7 lost its detection")
	}
}

func TestJSONLReaderLargeGapIsLazy(t *testing.T) {
	input := `{"frame":0,"detections":[]}
{"frame":20000000,"detections":[{"center_x":5,"center_y":5,"confidence":1}]}
`
	r := NewJSONLReader(strings.NewReader(input), nil)
	ctx := context.Background()
	if f, err := r.Next(ctx); err != nil || f.Index != 0 {
		t.Fatalf("first frame = %+v, %v", f, err)
	}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	var last Frame
	for i := 0; i < 1000; i++ {
		f, err := r.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		last = f
	}
	runtime.ReadMemStats(&after)

	if last.Index != 1000 || len(last.Detections) != 0 {
		t.Errorf("last gap frame = %+v, want empty frame 1000", last)
	}
	if grew := after.TotalAlloc - before.TotalAlloc; grew > 1<<20 {
		t.Errorf("gap fill allocated %d bytes, want under 1MiB", grew)
	}
}

func TestJSONLReaderMalformedLineKeepsNextFrame(t *testing.T) {
	counters := &monitoring.Counters{}
	input := `{"frame":0,"detections":[]}
{garbage
{"frame":1,"detections":[{"center_x":3,"center_y":4,"confidence":0.8}]}
`
	frames := readAll(t, NewJSONLReader(strings.NewReader(input), counters))
	if got, want := indices(frames), []int{0, 1}; !equalInts(got, want) {
		t.Fatalf("indices = %v, want %v", got, want)
	}
	if len(frames[1].Detections) != 1 {
		t.Errorf("frame 1 has %d detections, want 1", len(frames[1].Detections))
	}
	if n := counters.MalformedInput.Load(); n != 1 {
		t.Errorf("malformed count = %d, want 1", n)
	}
}

func TestJSONLReaderMalformedLines(t *testing.T) {
	counters := &monitoring.Counters{}
	input := `not json
{"frame":0,"detections":[]}

{"frame":1,"detections":[{"center_x":"oops"}]}
{"frame":2,"detections":[]}
{"frame":2,"detections":[]}
{"frame":1,"detections":[]}
{"frame":3,"detections":[]}
`
	frames := readAll(t, NewJSONLReader(strings.NewReader(input), counters))
	// Bad lines are dropped; frame 1 comes back as gap fill ahead of
	// frame 2. The repeated and backwards lines are dropped.
	if got, want := indices(frames), []int{0, 1, 2, 3}; !equalInts(got, want) {
		t.Fatalf("indices = %v, want %v", got, want)
	}
	if len(frames[1].Detections) != 0 {
		t.Errorf("gap frame 1 has detections")
	}
	if n := counters.MalformedInput.Load(); n != 4 {
		t.Errorf("malformed count = %d, want 4", n)
	}
}

func TestJSONLReaderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewJSONLReader(strings.NewReader(`{"frame":0}`), nil).Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestJSONLReaderEmptyInput(t *testing.T) {
	_, err := NewJSONLReader(strings.NewReader(""), nil).Next(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]Frame{{Index: 0}, {Index: 1}})
	if got := indices(readAll(t, src)); !equalInts(got, []int{0, 1}) {
		t.Errorf("indices = %v, want [0 1]", got)
	}
}
