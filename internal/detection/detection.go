// Package detection is the boundary with the external ball detector. It
// defines the per-frame detection batch and the sources that produce
// batches in strict frame order.
package detection

import (
	"context"
	"image"
	"io"
)

// Box is a bounding box as (x1, y1, x2, y2) in pixels.
type Box [4]float64

// Width returns x2 - x1.
func (b Box) Width() float64 { return b[2] - b[0] }

// Height returns y2 - y1.
func (b Box) Height() float64 { return b[3] - b[1] }

// Detection is one candidate ball from the detector. Filtering by class,
// confidence and shape is the detector's job.
type Detection struct {
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// Frame is the detection batch for one video frame. Height is zero when the
// source does not know the frame size.
type Frame struct {
	Index      int         `json:"frame"`
	Height     int         `json:"frame_height,omitempty"`
	Detections []Detection `json:"detections"`
}

// Source yields frames in strictly increasing index order. Next returns
// io.EOF once the stream is exhausted.
type Source interface {
	Next(ctx context.Context) (Frame, error)
}

// Detector finds ball candidates in a decoded image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// FrameReader yields decoded video frames and returns io.EOF at the end.
type FrameReader interface {
	ReadFrame(ctx context.Context) (image.Image, error)
}

// SliceSource replays a fixed list of frames.
type SliceSource struct {
	frames []Frame
	pos    int
}

// NewSliceSource returns a Source over frames, which must already be in
// frame order.
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}
