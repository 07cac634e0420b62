package detection

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/delivery.report/internal/monitoring"
)

// DetectorSource runs a Detector over a FrameReader, numbering frames from
// zero. A detector failure on one frame yields an empty frame.
type DetectorSource struct {
	reader   FrameReader
	detector Detector
	counters *monitoring.Counters
	index    int
}

// NewDetectorSource returns a Source backed by an external detector.
// counters may be nil.
func NewDetectorSource(reader FrameReader, detector Detector, counters *monitoring.Counters) *DetectorSource {
	if counters == nil {
		counters = &monitoring.Counters{}
	}
	return &DetectorSource{reader: reader, detector: detector, counters: counters}
}

// Next implements Source.
func (s *DetectorSource) Next(ctx context.Context) (Frame, error) {
	img, err := s.reader.ReadFrame(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("read frame %d: %w", s.index, err)
	}
	f := Frame{Index: s.index, Height: img.Bounds().Dy()}
	s.index++

	dets, err := s.detector.Detect(ctx, img)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Frame{}, ctxErr
		}
		s.counters.MalformedInput.Add(1)
		opsf("frame %d: detector failed: %v", f.Index, err)
		return f, nil
	}
	f.Detections = dets
	return f, nil
}
