package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/emit"
)

// SQLiteStore is a single-file Store backed by modernc.org/sqlite, the
// pure-Go driver that avoids a cgo build requirement. Suited to desktop
// and kiosk deployments per the platform adapter contract.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) the database at path, enables
// WAL mode, and ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			version TEXT NOT NULL,
			org_id TEXT NOT NULL,
			status TEXT NOT NULL,
			trigger_type TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			duration_ms INTEGER,
			error_message TEXT,
			steps_json TEXT NOT NULL DEFAULT '[]',
			paused_json TEXT,
			metadata_json TEXT,
			public_slug TEXT,
			ip_hash TEXT,
			user_agent TEXT,
			is_anonymous INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_public_slug ON runs(public_slug)`,
		`CREATE TABLE IF NOT EXISTS rate_limit_hits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_limit_slug_ip ON rate_limit_hits(slug, ip_hash, at)`,
		`CREATE TABLE IF NOT EXISTS events_outbox (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			emitted INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_outbox_pending ON events_outbox(emitted)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run RunRecord) error {
	steps, paused, meta, err := marshalRun(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, workflow_id, version, org_id, status, trigger_type, started_at,
			completed_at, duration_ms, error_message, steps_json, paused_json, metadata_json,
			public_slug, ip_hash, user_agent, is_anonymous)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowID, run.Version, run.OrgID, run.Status, run.TriggerType, run.StartedAt,
		run.CompletedAt, run.DurationMs, run.ErrorMessage, steps, paused, meta,
		nullableString(run.PublicSlug), nullableString(run.IPHash), nullableString(run.UserAgent), run.IsAnonymous,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, version, org_id, status, trigger_type, started_at,
			completed_at, duration_ms, error_message, steps_json, paused_json, metadata_json,
			COALESCE(public_slug,''), COALESCE(ip_hash,''), COALESCE(user_agent,''), is_anonymous
		FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run RunRecord) error {
	steps, paused, meta, err := marshalRun(run)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status=?, completed_at=?, duration_ms=?, error_message=?,
			steps_json=?, paused_json=?, metadata_json=? WHERE id=?`,
		run.Status, run.CompletedAt, run.DurationMs, run.ErrorMessage, steps, paused, meta, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs WHERE public_slug = ?`, slug).Scan(&n)
	return n > 0, err
}

func (s *SQLiteStore) RecordRateLimitHit(ctx context.Context, slug, ipHash string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO rate_limit_hits (slug, ip_hash, at) VALUES (?, ?, ?)`, slug, ipHash, at)
	return err
}

func (s *SQLiteStore) CountRateLimitHits(ctx context.Context, slug, ipHash string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM rate_limit_hits WHERE slug=? AND ip_hash=? AND at >= ?`,
		slug, ipHash, since).Scan(&n)
	return n, err
}

func (s *SQLiteStore) EnqueueEvent(ctx context.Context, runID string, e emit.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO events_outbox (run_id, payload_json, emitted) VALUES (?, ?, 0)`, runID, payload)
	return err
}

func (s *SQLiteStore) PendingEvents(ctx context.Context, limit int) ([]PendingEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, payload_json FROM events_outbox WHERE emitted = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingEvent
	for rows.Next() {
		var pe PendingEvent
		var payload string
		if err := rows.Scan(&pe.ID, &pe.RunID, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &pe.Event); err != nil {
			return nil, err
		}
		out = append(out, pe)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkEventsEmitted(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `UPDATE events_outbox SET emitted = 1 WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

func marshalRun(run RunRecord) (stepsJSON, pausedJSON, metaJSON string, err error) {
	stepsB, err := json.Marshal(run.Steps)
	if err != nil {
		return "", "", "", err
	}
	var pausedB []byte
	if run.Paused != nil {
		pausedB, err = json.Marshal(run.Paused)
		if err != nil {
			return "", "", "", err
		}
	}
	var metaB []byte
	if run.Metadata != nil {
		metaB, err = json.Marshal(run.Metadata)
		if err != nil {
			return "", "", "", err
		}
	}
	return string(stepsB), string(pausedB), string(metaB), nil
}

func scanRun(row *sql.Row) (RunRecord, error) {
	var run RunRecord
	var stepsJSON string
	var pausedJSON, metaJSON sql.NullString

	err := row.Scan(&run.ID, &run.WorkflowID, &run.Version, &run.OrgID, &run.Status, &run.TriggerType,
		&run.StartedAt, &run.CompletedAt, &run.DurationMs, &run.ErrorMessage, &stepsJSON, &pausedJSON, &metaJSON,
		&run.PublicSlug, &run.IPHash, &run.UserAgent, &run.IsAnonymous)
	if err == sql.ErrNoRows {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, err
	}

	if stepsJSON != "" {
		if err := json.Unmarshal([]byte(stepsJSON), &run.Steps); err != nil {
			return RunRecord{}, err
		}
	}
	if pausedJSON.Valid && pausedJSON.String != "" {
		run.Paused = &engine.PausedRunState{}
		if err := json.Unmarshal([]byte(pausedJSON.String), run.Paused); err != nil {
			return RunRecord{}, err
		}
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &run.Metadata); err != nil {
			return RunRecord{}, err
		}
	}
	return run, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
