package delivery

// HistoryPoint is one accepted position in the history window.
type HistoryPoint struct {
	Frame int
	X, Y  float64
}

// History is a fixed-capacity ring buffer of the most recent accepted
// positions. Pushing onto a full buffer evicts the oldest point.
type History struct {
	buf   []HistoryPoint
	start int
	n     int
}

// NewHistory returns an empty history holding at most capacity points.
// Capacities below 1 are raised to 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]HistoryPoint, capacity)}
}

// Push appends p, evicting the oldest point when full.
func (h *History) Push(p HistoryPoint) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = p
		h.n++
		return
	}
	h.buf[h.start] = p
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of points held.
func (h *History) Len() int { return h.n }

// Cap returns the fixed capacity.
func (h *History) Cap() int { return len(h.buf) }

// At returns the i-th point, 0 being the oldest. It panics when i is out of
// range.
func (h *History) At(i int) HistoryPoint {
	if i < 0 || i >= h.n {
		panic("delivery: history index out of range")
	}
	return h.buf[(h.start+i)%len(h.buf)]
}

// Points returns the held points oldest first, as a new slice.
func (h *History) Points() []HistoryPoint {
	out := make([]HistoryPoint, h.n)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}
