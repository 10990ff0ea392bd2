// Package store provides persistence for Run rows, the public-run rate
// limit ledger, and the transactional-outbox event queue the broadcast
// layer drains.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/emit"
)

// ErrNotFound is returned when a requested run or slug does not exist.
var ErrNotFound = errors.New("not found")

// RunRecord is the persisted outer record (§3's Run entity, plus the
// public_runs columns inlined behind optional fields).
type RunRecord struct {
	ID           string
	WorkflowID   string
	Version      string
	OrgID        string
	Status       string
	TriggerType  string
	StartedAt    time.Time
	CompletedAt  *time.Time
	DurationMs   *int64
	ErrorMessage string
	Steps        []engine.Step
	Paused       *engine.PausedRunState
	Metadata     map[string]any

	// Public-run fields; zero values for private runs.
	PublicSlug  string
	IPHash      string
	UserAgent   string
	IsAnonymous bool
}

// PendingEvent is a row in the event outbox: an Event written by
// EnqueueEvent after the run update that produced it (the two are separate
// writes, not one transaction), waiting to be emitted.
type PendingEvent struct {
	ID    int64
	RunID string
	Event emit.Event
}

// Store is the persistence seam for the Execution Service (C5). All methods
// must be safe for concurrent use; UpdateRun calls for the same RunID must
// be serialized by the caller or the implementation (§5's "no two writers
// to the same Run row").
type Store interface {
	CreateRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	UpdateRun(ctx context.Context, run RunRecord) error

	// SlugExists supports generateUniqueSlug's collision-retry loop.
	SlugExists(ctx context.Context, slug string) (bool, error)

	// RecordRateLimitHit appends one ledger entry; the ledger is append-only.
	RecordRateLimitHit(ctx context.Context, slug, ipHash string, at time.Time) error
	// CountRateLimitHits counts entries for (slug, ipHash) with at >= since.
	CountRateLimitHits(ctx context.Context, slug, ipHash string, since time.Time) (int, error)

	PendingEvents(ctx context.Context, limit int) ([]PendingEvent, error)
	MarkEventsEmitted(ctx context.Context, ids []int64) error
	EnqueueEvent(ctx context.Context, runID string, e emit.Event) error
}
