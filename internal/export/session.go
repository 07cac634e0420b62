// Package export writes finished sessions out as JSON, an HTML report and
// PNG plots.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/delivery.report/internal/delivery"
)

// Session is the persisted output of one run over a video.
type Session struct {
	VideoID           string            `json:"video_id"`
	FPS               float64           `json:"fps"`
	PitchLengthMeters float64           `json:"pitch_length_meters"`
	Deliveries        []delivery.Record `json:"deliveries"`
}

// SessionWriter collects delivery records into a Session. It implements
// pipeline.RecordSink and is safe for concurrent use.
type SessionWriter struct {
	mu      sync.Mutex
	session Session
}

// NewSessionWriter starts an empty session. An empty videoID is replaced
// with a random UUID.
func NewSessionWriter(videoID string, fps, pitchLengthMeters float64) *SessionWriter {
	if videoID == "" {
		videoID = uuid.NewString()
	}
	return &SessionWriter{session: Session{
		VideoID:           videoID,
		FPS:               fps,
		PitchLengthMeters: pitchLengthMeters,
		Deliveries:        []delivery.Record{},
	}}
}

// PersistDelivery appends rec to the session.
func (w *SessionWriter) PersistDelivery(rec delivery.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session.Deliveries = append(w.session.Deliveries, rec)
	return nil
}

// Session returns a copy of the collected session.
func (w *SessionWriter) Session() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.session
	s.Deliveries = append([]delivery.Record{}, w.session.Deliveries...)
	return s
}

// Write encodes the session as indented JSON.
func (w *SessionWriter) Write(out io.Writer) error {
	s := w.Session()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode session %s: %w", s.VideoID, err)
	}
	return nil
}

// Save writes the session JSON to path, replacing any existing file.
func (w *SessionWriter) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	if err := w.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	return nil
}

// LoadSession reads a session file written by Save.
func LoadSession(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, fmt.Errorf("read session file: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("parse session file: %w", err)
	}
	if s.Deliveries == nil {
		s.Deliveries = []delivery.Record{}
	}
	return s, nil
}

// PitchCounts tallies deliveries by pitch type. Deliveries without a bounce
// are not counted.
func (s Session) PitchCounts() map[delivery.PitchType]int {
	counts := make(map[delivery.PitchType]int)
	for _, rec := range s.Deliveries {
		if p := rec.Pitch(); p != delivery.PitchUnknown {
			counts[p]++
		}
	}
	return counts
}
