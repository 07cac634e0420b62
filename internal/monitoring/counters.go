package monitoring

import (
	"fmt"
	"sync/atomic"
)

// Counters tracks the recoverable outcomes of frame processing. None of
// these are errors from the caller's point of view; they are counted so a
// run can be audited afterwards.
type Counters struct {
	Frames                 atomic.Int64
	ObservationsAccepted   atomic.Int64
	NoObservationAccepted  atomic.Int64
	DegenerateUpdates      atomic.Int64
	DeliveriesEmitted      atomic.Int64
	EmptyDeliveryDiscarded atomic.Int64
	MalformedInput         atomic.Int64
	SinkErrors             atomic.Int64
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Frames                 int64 `json:"frames"`
	ObservationsAccepted   int64 `json:"observations_accepted"`
	NoObservationAccepted  int64 `json:"no_observation_accepted"`
	DegenerateUpdates      int64 `json:"degenerate_updates"`
	DeliveriesEmitted      int64 `json:"deliveries_emitted"`
	EmptyDeliveryDiscarded int64 `json:"empty_delivery_discarded"`
	MalformedInput         int64 `json:"malformed_input"`
	SinkErrors             int64 `json:"sink_errors"`
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Frames:                 c.Frames.Load(),
		ObservationsAccepted:   c.ObservationsAccepted.Load(),
		NoObservationAccepted:  c.NoObservationAccepted.Load(),
		DegenerateUpdates:      c.DegenerateUpdates.Load(),
		DeliveriesEmitted:      c.DeliveriesEmitted.Load(),
		EmptyDeliveryDiscarded: c.EmptyDeliveryDiscarded.Load(),
		MalformedInput:         c.MalformedInput.Load(),
		SinkErrors:             c.SinkErrors.Load(),
	}
}

// String renders the snapshot as a single log line.
func (s CounterSnapshot) String() string {
	return fmt.Sprintf("frames=%d accepted=%d rejected=%d degenerate=%d emitted=%d discarded=%d malformed=%d sink_errors=%d",
		s.Frames, s.ObservationsAccepted, s.NoObservationAccepted, s.DegenerateUpdates,
		s.DeliveriesEmitted, s.EmptyDeliveryDiscarded, s.MalformedInput, s.SinkErrors)
}
