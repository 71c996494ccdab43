// Package db records control sessions and their cycles in sqlite for
// offline analysis.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/pathtrack/internal/loop"
)

type DB struct {
	*sql.DB
}

// New opens (creating if needed) the sqlite database at path. Run MigrateUp
// before first use.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &DB{db}, nil
}

// Session is one simulator connection's recorded run.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Cycle is one recorded control cycle.
type Cycle struct {
	RecordedAt time.Time
	X          float64
	Y          float64
	Psi        float64
	Speed      float64
	CTE        float64
	EPsi       float64
	Steering   float64
	Throttle   float64
	Fallback   bool
}

// StartSession registers a new session and returns its id.
func (db *DB) StartSession(startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec("INSERT INTO sessions (session_id, started_at) VALUES (?, ?)", id, startedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(id string, endedAt time.Time) error {
	_, err := db.Exec("UPDATE sessions SET ended_at = ? WHERE session_id = ?", endedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// Sessions lists recorded sessions, most recent first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query("SELECT session_id, started_at, ended_at FROM sessions ORDER BY started_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var ended sql.NullTime
		if err := rows.Scan(&s.ID, &s.StartedAt, &ended); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// LatestSessionID returns the most recently started session.
func (db *DB) LatestSessionID() (string, error) {
	var id string
	err := db.QueryRow("SELECT session_id FROM sessions ORDER BY started_at DESC LIMIT 1").Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to find latest session: %w", err)
	}
	return id, nil
}

// SessionCycles returns a session's cycles in recording order.
func (db *DB) SessionCycles(sessionID string) ([]Cycle, error) {
	rows, err := db.Query(`
		SELECT recorded_at, x, y, psi, speed, cte, epsi, steering, throttle, fallback
		FROM cycles WHERE session_id = ? ORDER BY cycle_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var c Cycle
		if err := rows.Scan(&c.RecordedAt, &c.X, &c.Y, &c.Psi, &c.Speed, &c.CTE, &c.EPsi, &c.Steering, &c.Throttle, &c.Fallback); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// SessionRecorder binds cycle recording to one session id. It implements
// loop.Recorder.
type SessionRecorder struct {
	db        *DB
	sessionID string
}

// Recorder returns a loop recorder writing into the given session.
func (db *DB) Recorder(sessionID string) *SessionRecorder {
	return &SessionRecorder{db: db, sessionID: sessionID}
}

// RecordCycle persists one completed cycle.
func (r *SessionRecorder) RecordCycle(rec loop.CycleRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO cycles (session_id, recorded_at, x, y, psi, speed, cte, epsi, steering, throttle, fallback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.sessionID, rec.At.UTC(), rec.Pose.X, rec.Pose.Y, rec.Pose.Psi,
		rec.Speed, rec.CTE, rec.EPsi, rec.Steering, rec.Throttle, rec.Fallback)
	if err != nil {
		return fmt.Errorf("failed to record cycle: %w", err)
	}
	return nil
}
