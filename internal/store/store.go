// Package store indexes synthesized groups in SQLite so that downstream
// consumers can look a group up by run and group id.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/claimsynth/internal/model"
)

var (
	// ErrGroupNotFound is returned when no group matches the lookup
	ErrGroupNotFound = errors.New("group not found")
	// ErrRunNotFound is returned when no run matches the lookup
	ErrRunNotFound = errors.New("run not found")
)

// Run describes one persisted synthesis run
type Run struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Claims    int
	Groups    int
	Conflicts int
}

// Entry is a group together with how it was produced
type Entry struct {
	Group    model.Group
	Method   model.GroupMethod
	Cohesion float64
}

// Store wraps the SQLite connection
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and initializes the schema
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		claims INTEGER NOT NULL DEFAULT 0,
		groups_count INTEGER NOT NULL DEFAULT 0,
		conflicts INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS synth_groups (
		run_id TEXT NOT NULL REFERENCES runs(id),
		group_id INTEGER NOT NULL,
		topic TEXT NOT NULL,
		method TEXT NOT NULL,
		cohesion REAL NOT NULL,
		conflict INTEGER NOT NULL DEFAULT 0,
		record TEXT NOT NULL,
		PRIMARY KEY (run_id, group_id)
	);

	CREATE INDEX IF NOT EXISTS idx_groups_topic ON synth_groups(topic);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// SaveRun stores a run and all of its groups in one transaction
func (s *Store) SaveRun(ctx context.Context, run Run, entries []Entry) error {
	if run.ID == uuid.Nil {
		return errors.New("save run: missing run id")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, claims, groups_count, conflicts) VALUES (?, ?, ?, ?, ?)`,
		run.ID.String(),
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.Claims,
		run.Groups,
		run.Conflicts,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO synth_groups (run_id, group_id, topic, method, cohesion, conflict, record)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare group insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		record, err := json.Marshal(e.Group)
		if err != nil {
			return fmt.Errorf("marshal group %d: %w", e.Group.GroupID, err)
		}
		_, err = stmt.ExecContext(ctx,
			run.ID.String(),
			e.Group.GroupID,
			e.Group.Topic,
			string(e.Method),
			e.Cohesion,
			e.Group.Conflict,
			string(record),
		)
		if err != nil {
			return fmt.Errorf("insert group %d: %w", e.Group.GroupID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LatestRun returns the most recently created run
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	runs, err := s.queryRuns(ctx, `
	SELECT id, created_at, claims, groups_count, conflicts
	FROM runs ORDER BY created_at DESC LIMIT 1
	`)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrRunNotFound
	}
	return runs[0], nil
}

// ListRuns returns every run, newest first
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `
	SELECT id, created_at, claims, groups_count, conflicts
	FROM runs ORDER BY created_at DESC
	`)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			id      string
			created string
		)
		if err := rows.Scan(&id, &created, &run.Claims, &run.Groups, &run.Conflicts); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse run id: %w", err)
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse run time: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns one group of a run. A nil run id selects the latest run.
func (s *Store) Get(ctx context.Context, runID uuid.UUID, groupID int) (Entry, error) {
	if runID == uuid.Nil {
		run, err := s.LatestRun(ctx)
		if errors.Is(err, ErrRunNotFound) {
			return Entry{}, ErrGroupNotFound
		}
		if err != nil {
			return Entry{}, err
		}
		runID = run.ID
	}

	entries, err := s.queryGroups(ctx, `
	SELECT method, cohesion, record FROM synth_groups WHERE run_id = ? AND group_id = ?
	`, runID.String(), groupID)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrGroupNotFound
	}
	return entries[0], nil
}

// ListGroups returns the groups of a run ordered by group id
func (s *Store) ListGroups(ctx context.Context, runID uuid.UUID) ([]Entry, error) {
	return s.queryGroups(ctx, `
	SELECT method, cohesion, record FROM synth_groups WHERE run_id = ? ORDER BY group_id
	`, runID.String())
}

func (s *Store) queryGroups(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e      Entry
			method string
			record string
		)
		if err := rows.Scan(&method, &e.Cohesion, &record); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		if err := json.Unmarshal([]byte(record), &e.Group); err != nil {
			return nil, fmt.Errorf("unmarshal group: %w", err)
		}
		e.Method = model.GroupMethod(method)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
