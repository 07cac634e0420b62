package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/delivery.report/internal/delivery"
	"github.com/banshee-data/delivery.report/internal/monitoring"
)

// ErrNoSession is returned by PersistDelivery before InsertSession.
var ErrNoSession = errors.New("db: no session started")

// SessionInfo is one row of the sessions table.
type SessionInfo struct {
	SessionID         string  `json:"session_id"`
	VideoID           string  `json:"video_id"`
	FPS               float64 `json:"fps"`
	PitchLengthMeters float64 `json:"pitch_length_meters"`
}

// DeliveryStore persists delivery records for one session at a time. It
// implements pipeline.RecordSink.
type DeliveryStore struct {
	db        *sql.DB
	sessionID string
}

// NewDeliveryStore creates a new DeliveryStore.
func NewDeliveryStore(db *sql.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

// InsertSession records a new session and makes it the target of
// subsequent PersistDelivery calls. If info.SessionID is empty, a new UUID
// is generated. The session id is returned.
func (s *DeliveryStore) InsertSession(info SessionInfo) (string, error) {
	if info.SessionID == "" {
		info.SessionID = uuid.New().String()
	}
	_, err := s.db.Exec(`
		INSERT INTO sessions (session_id, video_id, fps, pitch_length_meters)
		VALUES (?, ?, ?, ?)
	`, info.SessionID, info.VideoID, info.FPS, info.PitchLengthMeters)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	s.sessionID = info.SessionID
	return info.SessionID, nil
}

// SessionID returns the active session id, or "" before InsertSession.
func (s *DeliveryStore) SessionID() string {
	return s.sessionID
}

// PersistDelivery writes rec and its trajectory in one transaction.
func (s *DeliveryStore) PersistDelivery(rec delivery.Record) error {
	if s.sessionID == "" {
		return ErrNoSession
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delivery tx: %w", err)
	}
	defer tx.Rollback()

	var releaseFrame, releaseX, releaseY sql.NullInt64
	var releaseKmph sql.NullFloat64
	if rec.Release != nil {
		releaseFrame = sql.NullInt64{Int64: int64(rec.Release.Frame), Valid: true}
		releaseX = sql.NullInt64{Int64: int64(rec.Release.X), Valid: true}
		releaseY = sql.NullInt64{Int64: int64(rec.Release.Y), Valid: true}
	}
	if rec.Speed.ReleaseKmph != nil {
		releaseKmph = sql.NullFloat64{Float64: *rec.Speed.ReleaseKmph, Valid: true}
	}
	var bounceFrame, bounceX, bounceY sql.NullInt64
	if rec.Bounce != nil {
		bounceFrame = sql.NullInt64{Int64: int64(rec.Bounce.Frame), Valid: true}
		bounceX = sql.NullInt64{Int64: int64(rec.Bounce.X), Valid: true}
		bounceY = sql.NullInt64{Int64: int64(rec.Bounce.Y), Valid: true}
	}
	var pitch sql.NullString
	if p := rec.Pitch(); p != delivery.PitchUnknown {
		pitch = sql.NullString{String: string(p), Valid: true}
	}

	_, err = tx.Exec(`
		INSERT INTO deliveries (
			session_id, delivery_id, start_frame, end_frame,
			release_frame, release_x, release_y, release_kmph,
			bounce_frame, bounce_x, bounce_y, pitch_type,
			max_kmph, average_kmph, num_points
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.sessionID, rec.DeliveryID, rec.StartFrame, rec.EndFrame,
		releaseFrame, releaseX, releaseY, releaseKmph,
		bounceFrame, bounceX, bounceY, pitch,
		rec.Speed.MaxKmph, rec.Speed.AverageKmph, len(rec.Trajectory),
	)
	if err != nil {
		return fmt.Errorf("insert delivery %d: %w", rec.DeliveryID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO trajectory_points (session_id, delivery_id, seq, frame, x, y, speed_kmph)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare trajectory insert: %w", err)
	}
	defer stmt.Close()
	for i, p := range rec.Trajectory {
		if _, err := stmt.Exec(s.sessionID, rec.DeliveryID, i, p.Frame, p.X, p.Y, p.SpeedKmph); err != nil {
			return fmt.Errorf("insert trajectory point %d of delivery %d: %w", i, rec.DeliveryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delivery %d: %w", rec.DeliveryID, err)
	}
	return nil
}

// SaveCounters stores the run counters against the active session.
func (s *DeliveryStore) SaveCounters(c monitoring.CounterSnapshot) error {
	if s.sessionID == "" {
		return ErrNoSession
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO session_counters (
			session_id, frames, observations_accepted, no_observation_accepted,
			degenerate_updates, deliveries_emitted, empty_delivery_discarded,
			malformed_input, sink_errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.sessionID, c.Frames, c.ObservationsAccepted, c.NoObservationAccepted,
		c.DegenerateUpdates, c.DeliveriesEmitted, c.EmptyDeliveryDiscarded,
		c.MalformedInput, c.SinkErrors)
	if err != nil {
		return fmt.Errorf("save counters: %w", err)
	}
	return nil
}

// Counters loads the counters saved for a session.
func (s *DeliveryStore) Counters(sessionID string) (monitoring.CounterSnapshot, error) {
	var c monitoring.CounterSnapshot
	err := s.db.QueryRow(`
		SELECT frames, observations_accepted, no_observation_accepted,
		       degenerate_updates, deliveries_emitted, empty_delivery_discarded,
		       malformed_input, sink_errors
		FROM session_counters
		WHERE session_id = ?
	`, sessionID).Scan(&c.Frames, &c.ObservationsAccepted, &c.NoObservationAccepted,
		&c.DegenerateUpdates, &c.DeliveriesEmitted, &c.EmptyDeliveryDiscarded,
		&c.MalformedInput, &c.SinkErrors)
	if err != nil {
		return c, fmt.Errorf("load counters: %w", err)
	}
	return c, nil
}

// Sessions lists every stored session, oldest first.
func (s *DeliveryStore) Sessions() ([]SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT session_id, video_id, fps, pitch_length_meters
		FROM sessions
		ORDER BY created_at, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.SessionID, &info.VideoID, &info.FPS, &info.PitchLengthMeters); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// ListDeliveries returns all deliveries of a session, with trajectories,
// ordered by delivery id.
func (s *DeliveryStore) ListDeliveries(sessionID string) ([]delivery.Record, error) {
	rows, err := s.db.Query(`
		SELECT delivery_id, start_frame, end_frame,
		       release_frame, release_x, release_y, release_kmph,
		       bounce_frame, bounce_x, bounce_y, pitch_type,
		       max_kmph, average_kmph
		FROM deliveries
		WHERE session_id = ?
		ORDER BY delivery_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}

	var records []delivery.Record
	for rows.Next() {
		var rec delivery.Record
		var releaseFrame, releaseX, releaseY sql.NullInt64
		var releaseKmph sql.NullFloat64
		var bounceFrame, bounceX, bounceY sql.NullInt64
		var pitch sql.NullString

		err := rows.Scan(
			&rec.DeliveryID, &rec.StartFrame, &rec.EndFrame,
			&releaseFrame, &releaseX, &releaseY, &releaseKmph,
			&bounceFrame, &bounceX, &bounceY, &pitch,
			&rec.Speed.MaxKmph, &rec.Speed.AverageKmph,
		)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan delivery: %w", err)
		}

		if releaseFrame.Valid {
			rec.Release = &delivery.ReleaseEvent{
				Frame: int(releaseFrame.Int64),
				X:     int(releaseX.Int64),
				Y:     int(releaseY.Int64),
			}
		}
		if releaseKmph.Valid {
			v := releaseKmph.Float64
			rec.Speed.ReleaseKmph = &v
			if rec.Release != nil {
				rec.Release.SpeedKmph = v
			}
		}
		if bounceFrame.Valid {
			rec.Bounce = &delivery.BounceEvent{
				Frame: int(bounceFrame.Int64),
				X:     int(bounceX.Int64),
				Y:     int(bounceY.Int64),
			}
		}
		if pitch.Valid {
			p := delivery.PitchType(pitch.String)
			rec.PitchType = &p
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	// Close before issuing more queries on the single connection.
	rows.Close()

	for i := range records {
		traj, err := s.Trajectory(sessionID, records[i].DeliveryID)
		if err != nil {
			return nil, err
		}
		records[i].Trajectory = traj
	}
	return records, nil
}

// Trajectory returns one delivery's points in order.
func (s *DeliveryStore) Trajectory(sessionID string, deliveryID int) ([]delivery.TrajectoryPoint, error) {
	rows, err := s.db.Query(`
		SELECT frame, x, y, speed_kmph
		FROM trajectory_points
		WHERE session_id = ? AND delivery_id = ?
		ORDER BY seq
	`, sessionID, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("query trajectory: %w", err)
	}
	defer rows.Close()

	points := []delivery.TrajectoryPoint{}
	for rows.Next() {
		var p delivery.TrajectoryPoint
		if err := rows.Scan(&p.Frame, &p.X, &p.Y, &p.SpeedKmph); err != nil {
			return nil, fmt.Errorf("scan trajectory point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// PitchCounts tallies a session's deliveries by pitch type. Deliveries
// without a bounce are not counted.
func (s *DeliveryStore) PitchCounts(sessionID string) (map[delivery.PitchType]int, error) {
	rows, err := s.db.Query(`
		SELECT pitch_type, COUNT(*)
		FROM deliveries
		WHERE session_id = ? AND pitch_type IS NOT NULL
		GROUP BY pitch_type
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count pitch types: %w", err)
	}
	defer rows.Close()

	counts := make(map[delivery.PitchType]int)
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, fmt.Errorf("scan pitch count: %w", err)
		}
		counts[delivery.PitchType(p)] = n
	}
	return counts, rows.Err()
}
