// Package persistence keeps run checkpoints in a SQLite database so long
// simulations can be stopped and resumed.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/san-kum/demonsim/internal/sim"
)

var ErrNotFound = errors.New("persistence: checkpoint not found")

// DB wraps a SQLite connection holding checkpoints.
type DB struct {
	conn   *sqlx.DB
	logger *slog.Logger
}

// Entry is the listing row for one stored checkpoint.
type Entry struct {
	ID        string  `db:"id"`
	Label     string  `db:"label"`
	Lattice   string  `db:"lattice"`
	Size      int     `db:"size"`
	Dim       int     `db:"dim"`
	Step      int     `db:"step"`
	Demon     float64 `db:"demon"`
	Energy    float64 `db:"energy"`
	CreatedAt int64   `db:"created_at"`
}

func (e Entry) Created() time.Time { return time.Unix(0, e.CreatedAt) }

// Open opens or creates a checkpoint database at path.
func Open(path string, logger *slog.Logger) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	db := &DB{conn: conn, logger: logger}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		lattice TEXT NOT NULL,
		size INTEGER NOT NULL,
		dim INTEGER NOT NULL,
		step INTEGER NOT NULL,
		demon REAL NOT NULL,
		energy REAL NOT NULL,
		created_at INTEGER NOT NULL,
		payload_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_label ON checkpoints(label);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_created ON checkpoints(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveCheckpoint stores cp under a new id and returns it.
func (db *DB) SaveCheckpoint(label string, cp sim.Checkpoint) (string, error) {
	payload, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("encode checkpoint: %w", err)
	}

	id := uuid.NewString()
	_, err = db.conn.Exec(`INSERT INTO checkpoints
		(id, label, lattice, size, dim, step, demon, energy, created_at, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, label, cp.Kind, cp.Size, cp.Dim, cp.Step,
		cp.Engine.Demon, cp.Engine.Lattice, time.Now().UnixNano(), string(payload))
	if err != nil {
		return "", fmt.Errorf("insert checkpoint: %w", err)
	}

	db.logger.Debug("checkpoint saved", "id", id, "label", label, "step", cp.Step)
	return id, nil
}

func (db *DB) LoadCheckpoint(id string) (sim.Checkpoint, error) {
	var payload string
	err := db.conn.Get(&payload, "SELECT payload_json FROM checkpoints WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return sim.Checkpoint{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return sim.Checkpoint{}, err
	}

	var cp sim.Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return sim.Checkpoint{}, fmt.Errorf("decode checkpoint %s: %w", id, err)
	}
	return cp, nil
}

// LatestCheckpoint returns the most recent checkpoint saved under label.
func (db *DB) LatestCheckpoint(label string) (string, sim.Checkpoint, error) {
	var id string
	err := db.conn.Get(&id,
		"SELECT id FROM checkpoints WHERE label = ? ORDER BY created_at DESC, step DESC LIMIT 1", label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sim.Checkpoint{}, fmt.Errorf("%w: label %s", ErrNotFound, label)
	}
	if err != nil {
		return "", sim.Checkpoint{}, err
	}
	cp, err := db.LoadCheckpoint(id)
	return id, cp, err
}

// ListCheckpoints returns stored checkpoints, newest first.
func (db *DB) ListCheckpoints() ([]Entry, error) {
	entries := make([]Entry, 0)
	err := db.conn.Select(&entries,
		`SELECT id, label, lattice, size, dim, step, demon, energy, created_at
		 FROM checkpoints ORDER BY created_at DESC, step DESC`)
	return entries, err
}

func (db *DB) DeleteCheckpoint(id string) error {
	res, err := db.conn.Exec("DELETE FROM checkpoints WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
