package detection

import (
	"context"
	"errors"
	"image"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/delivery.report/internal/monitoring"
)

type fakeReader struct {
	n    int
	read int
	err  error
}

func (r *fakeReader) ReadFrame(context.Context) (image.Image, error) {
	if r.read >= r.n {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}
	r.read++
	return image.NewGray(image.Rect(0, 0, 64, 48)), nil
}

type fakeDetector struct {
	failOn map[int]bool
	calls  int
}

func (d *fakeDetector) Detect(_ context.Context, img image.Image) ([]Detection, error) {
	call := d.calls
	d.calls++
	if d.failOn[call] {
		return nil, errors.New("inference failed")
	}
	b := img.Bounds()
	return []Detection{{CenterX: float64(b.Dx()) / 2, CenterY: float64(call), Confidence: 0.7}}, nil
}

func TestDetectorSource(t *testing.T) {
	counters := &monitoring.Counters{}
	src := NewDetectorSource(&fakeReader{n: 3}, &fakeDetector{failOn: map[int]bool{1: true}}, counters)

	frames := readAll(t, src)
	require.Len(t, frames, 3)
	assert.Equal(t, []int{0, 1, 2}, indices(frames))
	assert.Equal(t, 48, frames[0].Height)
	assert.Len(t, frames[0].Detections, 1)
	assert.Equal(t, 32.0, frames[0].Detections[0].CenterX)
	assert.Empty(t, frames[1].Detections)
	assert.EqualValues(t, 1, counters.MalformedInput.Load())
}

func TestDetectorSourceReadError(t *testing.T) {
	boom := errors.New("decoder crashed")
	src := NewDetectorSource(&fakeReader{n: 0, err: boom}, &fakeDetector{}, nil)
	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}
