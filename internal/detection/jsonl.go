package detection

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/delivery.report/internal/monitoring"
)

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 1 << 20

// JSONLReader reads one Frame per line of JSON:
//
//	{"frame": 12, "frame_height": 720, "detections": [{"center_x": 1, "center_y": 2, "box": [0,0,4,4], "confidence": 0.8}]}
//
// Skipped frame indices are filled with empty frames so downstream miss
// counting stays frame-accurate. The fill is produced one frame per call,
// so a large jump in index costs no memory. Malformed lines and lines
// whose index does not advance are counted and dropped.
type JSONLReader struct {
	scan     *bufio.Scanner
	counters *monitoring.Counters

	line    int
	next    int // index the next emitted frame must have
	started bool
	held    *Frame // decoded frame waiting behind a gap fill
	height  int
}

// NewJSONLReader wraps r. counters may be nil.
func NewJSONLReader(r io.Reader, counters *monitoring.Counters) *JSONLReader {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	if counters == nil {
		counters = &monitoring.Counters{}
	}
	return &JSONLReader{scan: scan, counters: counters}
}

// Next implements Source.
func (j *JSONLReader) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if j.held != nil {
			if j.next < j.held.Index {
				f := Frame{Index: j.next, Height: j.height}
				j.next++
				return f, nil
			}
			f := *j.held
			j.held = nil
			j.next = f.Index + 1
			return f, nil
		}
		if !j.scan.Scan() {
			if err := j.scan.Err(); err != nil {
				return Frame{}, fmt.Errorf("read detections line %d: %w", j.line+1, err)
			}
			return Frame{}, io.EOF
		}
		j.line++
		raw := bytes.TrimSpace(j.scan.Bytes())
		if len(raw) == 0 {
			continue
		}

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			j.counters.MalformedInput.Add(1)
			opsf("line %d: malformed detection record: %v", j.line, err)
			continue
		}
		if j.started && f.Index < j.next {
			j.counters.MalformedInput.Add(1)
			opsf("line %d: frame %d out of order (expected >= %d), dropped", j.line, f.Index, j.next)
			continue
		}
		if f.Height > 0 {
			j.height = f.Height
		} else {
			f.Height = j.height
		}
		if !j.started {
			j.started = true
			j.next = f.Index
		}
		j.held = &f
	}
}
