package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/delivery.report/internal/delivery"
	"github.com/banshee-data/delivery.report/internal/detection"
	"github.com/banshee-data/delivery.report/internal/monitoring"
)

// RecordSink receives every finalized delivery.
type RecordSink interface {
	PersistDelivery(rec delivery.Record) error
}

// RecordSinkFunc adapts a function to RecordSink.
type RecordSinkFunc func(rec delivery.Record) error

// PersistDelivery implements RecordSink.
func (f RecordSinkFunc) PersistDelivery(rec delivery.Record) error { return f(rec) }

// Processor owns the frame loop. It is not safe for concurrent use; Run
// must be called once.
type Processor struct {
	source   detection.Source
	tracker  *delivery.Tracker
	sinks    []RecordSink
	counters *monitoring.Counters

	// OnFrame, if set, is called after every processed frame.
	OnFrame func(delivery.FrameResult)

	lastIndex int
	started   bool
}

// NewProcessor wires a source and a tracker to zero or more sinks. The
// processor shares the tracker's counters.
func NewProcessor(source detection.Source, tracker *delivery.Tracker, sinks ...RecordSink) *Processor {
	return &Processor{
		source:   source,
		tracker:  tracker,
		sinks:    sinks,
		counters: tracker.Counters(),
	}
}

// Run processes frames until the source is exhausted, the context is
// cancelled, or the source fails. At end of stream the active delivery is
// flushed. Per-frame problems never stop the loop; sink failures are
// logged and counted.
func (p *Processor) Run(ctx context.Context) error {
	for {
		frame, err := p.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			if rec := p.tracker.Flush(); rec != nil {
				p.emit(rec)
			}
			diagf("run complete: %s", p.counters.Snapshot())
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read detections: %w", err)
		}

		if p.started && frame.Index <= p.lastIndex {
			opsf("frame %d arrived after frame %d, dropped", frame.Index, p.lastIndex)
			p.counters.MalformedInput.Add(1)
			continue
		}
		p.started = true
		p.lastIndex = frame.Index

		res := p.tracker.ProcessFrame(frame.Index, frame.Height, Candidates(frame.Detections))
		if res.Record != nil {
			p.emit(res.Record)
		}
		if p.OnFrame != nil {
			p.OnFrame(res)
		}
		tracef("frame %d: phase=%s accepted=%t", frame.Index, res.Phase, res.Accepted)
	}
}

func (p *Processor) emit(rec *delivery.Record) {
	for _, sink := range p.sinks {
		if err := sink.PersistDelivery(*rec); err != nil {
			p.counters.SinkErrors.Add(1)
			opsf("persist delivery %d: %v", rec.DeliveryID, err)
		}
	}
}

// Candidates converts detector output into gate candidates, keeping order.
func Candidates(dets []detection.Detection) []delivery.Candidate {
	if len(dets) == 0 {
		return nil
	}
	out := make([]delivery.Candidate, len(dets))
	for i, d := range dets {
		out[i] = delivery.Candidate{
			Observation: delivery.Observation{X: d.CenterX, Y: d.CenterY},
			Confidence:  d.Confidence,
		}
	}
	return out
}
