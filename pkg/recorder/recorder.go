// Package recorder appends every relayed step to a SQLite database, one
// session per bridge run.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/open-teleop/mujoco-bridge/pkg/bridge"
	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
	"github.com/open-teleop/mujoco-bridge/pkg/telemetry"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Errors returned by the recorder.
var (
	ErrNoSession       = errors.New("no recording session started")
	ErrSessionNotFound = errors.New("recording session not found")
)

// SessionInfo describes the run a session records.
type SessionInfo struct {
	ModelPath string
	Joints    []string
	Objects   int
}

// Session is one recorded bridge run.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	ModelPath string    `json:"model_path"`
	Joints    []string  `json:"joints"`
	Objects   int       `json:"objects"`
	Steps     int       `json:"steps"`
}

// Step is one recorded relay step.
type Step struct {
	SessionID     string                 `json:"session_id"`
	Call          int                    `json:"call"`
	SimTime       float64                `json:"sim_time"`
	Stamp         time.Time              `json:"stamp"`
	Duration      time.Duration          `json:"duration_ns"`
	Command       []float64              `json:"command"`
	Position      []float64              `json:"position"`
	Velocity      []float64              `json:"velocity"`
	GravityTorque []float64              `json:"gravity_torque"`
	Objects       []telemetry.ObjectPose `json:"objects"`
}

// Recorder writes steps of the current session.
type Recorder struct {
	db     *sql.DB
	logger customlog.Logger
	clock  clock.Clock

	mu      sync.Mutex
	session string
}

// Open opens or creates the recording database at path. A nil clock uses
// the wall clock.
func Open(path string, logger customlog.Logger, clk clock.Clock) (*Recorder, error) {
	if clk == nil {
		clk = clock.New()
	}

	dsn := path + "?_pragma=foreign_keys(1)"
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create recording directory: %w", err)
			}
		}
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite works best with a single writer; an in-memory database also
	// exists only on its one connection.
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Infof("Recording steps to %s", path)
	return &Recorder{db: db, logger: logger, clock: clk}, nil
}

// StartSession opens a new session and makes it current. It returns the
// session ID.
func (r *Recorder) StartSession(ctx context.Context, info SessionInfo) (string, error) {
	joints, err := json.Marshal(info.Joints)
	if err != nil {
		return "", fmt.Errorf("failed to marshal joint names: %w", err)
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, model_path, joints, objects) VALUES (?, ?, ?, ?, ?)`,
		id, r.clock.Now().UTC().Format(time.RFC3339Nano), info.ModelPath, string(joints), info.Objects)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	r.mu.Lock()
	r.session = id
	r.mu.Unlock()

	r.logger.Infof("Started recording session %s", id)
	return id, nil
}

// SessionID returns the current session, or "".
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Record appends step to the current session.
func (r *Recorder) Record(step *bridge.StepResult) error {
	session := r.SessionID()
	if session == "" {
		return ErrNoSession
	}

	var command, position, velocity []float64
	if step.Command != nil {
		command = step.Command.Position
	}
	if step.State != nil {
		position, velocity = step.State.Position, step.State.Velocity
	}
	objects := make([]telemetry.ObjectPose, len(step.Markers))
	for i, m := range step.Markers {
		objects[i] = telemetry.ObjectPose{
			ID:          int32(m.ID),
			Position:    [3]float64{m.Position.X, m.Position.Y, m.Position.Z},
			Orientation: [4]float64{m.Orientation.Real, m.Orientation.Imag, m.Orientation.Jmag, m.Orientation.Kmag},
		}
	}

	cols, err := jsonColumns(command, position, velocity, step.GravityTorque, objects)
	if err != nil {
		return fmt.Errorf("failed to encode step %d: %w", step.Call, err)
	}

	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO steps
		 (session_id, call, sim_time, stamp_ns, duration_ns, command, position, velocity, gravity_torque, objects)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session, step.Call, step.SimTime, step.Stamp.UnixNano(), int64(step.Duration),
		cols[0], cols[1], cols[2], cols[3], cols[4])
	if err != nil {
		return fmt.Errorf("failed to insert step %d: %w", step.Call, err)
	}
	return nil
}

// Sessions lists every session, newest first, with its step count.
func (r *Recorder) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, COALESCE(s.model_path, ''), s.joints, s.objects, COUNT(st.call)
		FROM sessions s
		LEFT JOIN steps st ON st.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var started, joints string
		if err := rows.Scan(&s.ID, &started, &s.ModelPath, &joints, &s.Objects, &s.Steps); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if s.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("session %s has bad start time %q: %w", s.ID, started, err)
		}
		if err := json.Unmarshal([]byte(joints), &s.Joints); err != nil {
			return nil, fmt.Errorf("session %s has bad joint list: %w", s.ID, err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ResolveSession returns the single session whose ID starts with prefix.
// An empty prefix picks the newest session.
func (r *Recorder) ResolveSession(ctx context.Context, prefix string) (string, error) {
	var ids []string
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE id LIKE ? ESCAPE '\' ORDER BY started_at DESC`, escapeLike(prefix)+"%")
	if err != nil {
		return "", fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan session: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch {
	case len(ids) == 0:
		return "", fmt.Errorf("%w: %q", ErrSessionNotFound, prefix)
	case prefix == "" || len(ids) == 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("session prefix %q is ambiguous (%d matches)", prefix, len(ids))
	}
}

// Steps returns the steps of a session in call order. limit <= 0 returns
// all of them.
func (r *Recorder) Steps(ctx context.Context, sessionID string, limit int) ([]Step, error) {
	query := `SELECT call, sim_time, stamp_ns, duration_ns, command, position, velocity, gravity_torque, objects
		FROM steps WHERE session_id = ? ORDER BY call`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		s := Step{SessionID: sessionID}
		var stampNs, durationNs int64
		var command, position, velocity, gravity, objects sql.NullString
		if err := rows.Scan(&s.Call, &s.SimTime, &stampNs, &durationNs,
			&command, &position, &velocity, &gravity, &objects); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		s.Stamp = time.Unix(0, stampNs)
		s.Duration = time.Duration(durationNs)

		for _, c := range []struct {
			col sql.NullString
			dst interface{}
		}{
			{command, &s.Command},
			{position, &s.Position},
			{velocity, &s.Velocity},
			{gravity, &s.GravityTorque},
			{objects, &s.Objects},
		} {
			if !c.col.Valid {
				continue
			}
			if err := json.Unmarshal([]byte(c.col.String), c.dst); err != nil {
				return nil, fmt.Errorf("step %d has bad column data: %w", s.Call, err)
			}
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

func jsonColumns(values ...interface{}) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[i] = string(data)
	}
	return out, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
