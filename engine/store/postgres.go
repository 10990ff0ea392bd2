package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/emit"
)

// PostgresStore is the relational Store for multi-instance server
// deployments, where SQLite's single-writer constraint doesn't fit.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects using dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.createTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			version TEXT NOT NULL,
			org_id TEXT NOT NULL,
			status TEXT NOT NULL,
			trigger_type TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			duration_ms BIGINT,
			error_message TEXT,
			steps_json JSONB NOT NULL DEFAULT '[]',
			paused_json JSONB,
			metadata_json JSONB,
			public_slug TEXT,
			ip_hash TEXT,
			user_agent TEXT,
			is_anonymous BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_public_slug ON runs(public_slug)`,
		`CREATE TABLE IF NOT EXISTS rate_limit_hits (
			id BIGSERIAL PRIMARY KEY,
			slug TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_limit_slug_ip ON rate_limit_hits(slug, ip_hash, at)`,
		`CREATE TABLE IF NOT EXISTS events_outbox (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			payload_json JSONB NOT NULL,
			emitted BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_outbox_pending ON events_outbox(emitted)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run RunRecord) error {
	steps, paused, meta, err := marshalRun(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (id, workflow_id, version, org_id, status, trigger_type, started_at,
			completed_at, duration_ms, error_message, steps_json, paused_json, metadata_json,
			public_slug, ip_hash, user_agent, is_anonymous)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		run.ID, run.WorkflowID, run.Version, run.OrgID, run.Status, run.TriggerType, run.StartedAt,
		run.CompletedAt, run.DurationMs, run.ErrorMessage, steps, nullableJSON(paused), nullableJSON(meta),
		nullableString(run.PublicSlug), nullableString(run.IPHash), nullableString(run.UserAgent), run.IsAnonymous,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, workflow_id, version, org_id, status, trigger_type, started_at,
			completed_at, duration_ms, error_message, steps_json, paused_json, metadata_json,
			COALESCE(public_slug,''), COALESCE(ip_hash,''), COALESCE(user_agent,''), is_anonymous
		FROM runs WHERE id = $1`, id)
	return scanPgRun(row)
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run RunRecord) error {
	steps, paused, meta, err := marshalRun(run)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE runs SET status=$1, completed_at=$2, duration_ms=$3, error_message=$4,
			steps_json=$5, paused_json=$6, metadata_json=$7 WHERE id=$8`,
		run.Status, run.CompletedAt, run.DurationMs, run.ErrorMessage, steps, nullableJSON(paused), nullableJSON(meta), run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(1) FROM runs WHERE public_slug = $1`, slug).Scan(&n)
	return n > 0, err
}

func (s *PostgresStore) RecordRateLimitHit(ctx context.Context, slug, ipHash string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO rate_limit_hits (slug, ip_hash, at) VALUES ($1,$2,$3)`, slug, ipHash, at)
	return err
}

func (s *PostgresStore) CountRateLimitHits(ctx context.Context, slug, ipHash string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM rate_limit_hits WHERE slug=$1 AND ip_hash=$2 AND at >= $3`,
		slug, ipHash, since).Scan(&n)
	return n, err
}

func (s *PostgresStore) EnqueueEvent(ctx context.Context, runID string, e emit.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO events_outbox (run_id, payload_json, emitted) VALUES ($1,$2,FALSE)`, runID, payload)
	return err
}

func (s *PostgresStore) PendingEvents(ctx context.Context, limit int) ([]PendingEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `SELECT id, run_id, payload_json FROM events_outbox WHERE emitted = FALSE ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingEvent
	for rows.Next() {
		var pe PendingEvent
		var payload []byte
		if err := rows.Scan(&pe.ID, &pe.RunID, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &pe.Event); err != nil {
			return nil, err
		}
		out = append(out, pe)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkEventsEmitted(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE events_outbox SET emitted = TRUE WHERE id = ANY($1)`, ids)
	return err
}

func nullableJSON(s string) any {
	if s == "" {
		return nil
	}
	return []byte(s)
}

func scanPgRun(row pgx.Row) (RunRecord, error) {
	var run RunRecord
	var stepsJSON []byte
	var pausedJSON, metaJSON []byte

	err := row.Scan(&run.ID, &run.WorkflowID, &run.Version, &run.OrgID, &run.Status, &run.TriggerType,
		&run.StartedAt, &run.CompletedAt, &run.DurationMs, &run.ErrorMessage, &stepsJSON, &pausedJSON, &metaJSON,
		&run.PublicSlug, &run.IPHash, &run.UserAgent, &run.IsAnonymous)
	if errors.Is(err, pgx.ErrNoRows) {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, err
	}

	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &run.Steps); err != nil {
			return RunRecord{}, err
		}
	}
	if len(pausedJSON) > 0 {
		run.Paused = &engine.PausedRunState{}
		if err := json.Unmarshal(pausedJSON, run.Paused); err != nil {
			return RunRecord{}, err
		}
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &run.Metadata); err != nil {
			return RunRecord{}, err
		}
	}
	return run, nil
}
