// Package service implements the Execution Service (C5): it owns run
// lifecycle (trigger, persist, cancel, pause/resume, submit UI action) on
// top of the Interpreter, the Store, and the Broadcaster.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/emit"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/store"
)

// Service is the Execution Service. It serializes per-run access with a
// lock keyed by run ID (store.UpdateRun's "no two writers" requirement) and
// tracks cancellation requests in a process-wide flag map polled by the
// Interpreter via CancelChecker.
type Service struct {
	interp      *engine.Interpreter
	store       store.Store
	broadcaster *Broadcaster
	rateLimit   *RateLimiter
	metrics     *engine.Metrics

	mu        sync.Mutex
	cancelled map[string]bool
	runLocks  map[string]*sync.Mutex
}

func New(interp *engine.Interpreter, st store.Store, broadcaster *Broadcaster, rateLimit *RateLimiter) *Service {
	return &Service{
		interp:      interp,
		store:       st,
		broadcaster: broadcaster,
		rateLimit:   rateLimit,
		cancelled:   map[string]bool{},
		runLocks:    map[string]*sync.Mutex{},
	}
}

// WithMetrics attaches run-level Prometheus counters (runs_active,
// runs_terminal_total). Step-level metrics are recorded separately by
// wiring engine.NewMetricsEmitter into the Executor.
func (s *Service) WithMetrics(m *engine.Metrics) *Service {
	s.metrics = m
	return s
}

// SetInterpreter attaches the Interpreter after construction. This exists
// because the Interpreter needs s.IsCancelled as its CancelChecker, and
// IsCancelled needs no interp-dependent state, so callers can build Service
// first, hand its IsCancelled method to NewInterpreter, then close the loop.
func (s *Service) SetInterpreter(i *engine.Interpreter) *Service {
	s.interp = i
	return s
}

// Broadcaster exposes the configured Broadcaster (nil if none was passed to
// New) so a transport layer can subscribe callers to a run's event stream.
func (s *Service) Broadcaster() *Broadcaster { return s.broadcaster }

// IsCancelled implements engine.CancelChecker, handed to the Interpreter at
// construction time.
func (s *Service) IsCancelled(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled[runID]
}

// Cancel flags runID for cooperative cancellation. The interpreter observes
// this on its next poll tick or suspension point.
func (s *Service) Cancel(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled[runID] = true
}

func (s *Service) lockFor(runID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.runLocks[runID]
	if !ok {
		l = &sync.Mutex{}
		s.runLocks[runID] = l
	}
	return l
}

// TriggerInput is everything the caller (HTTP handler, scheduler, hook
// receiver) supplies to start a run.
type TriggerInput struct {
	OrgID        string
	DeviceID     string
	WorkflowID   string
	VersionID    string
	Platform     string
	TriggerType  string
	Blocks       []engine.Block
	Event        map[string]any
	InitialState map[string]any
	Secrets      map[string]any
	Public       bool
	PublicSlug   string
	IPHash       string
	UserAgent    string
}

// Trigger validates and admits a new run, persists its pending Run row, and
// returns immediately — the interpreter runs in a background goroutine the
// caller never waits on. A public run whose blocks include a type outside
// the public allowlist is refused with ErrRestrictedBlock before any row is
// created, and never reaches the rate limiter or the store.
func (s *Service) Trigger(ctx context.Context, in TriggerInput) (store.RunRecord, error) {
	if in.Public {
		for _, b := range in.Blocks {
			if !engine.AllowedForPublicRun(b.Type) {
				return store.RunRecord{}, engine.ErrRestrictedBlock
			}
		}
	}

	if in.Public && s.rateLimit != nil {
		allowed, err := s.rateLimit.Allow(ctx, in.PublicSlug, in.IPHash)
		if err != nil {
			return store.RunRecord{}, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			return store.RunRecord{}, engine.ErrRateLimited
		}
	}

	runID := uuid.NewString()
	rec := store.RunRecord{
		ID: runID, WorkflowID: in.WorkflowID, Version: in.VersionID, OrgID: in.OrgID,
		Status: "pending", TriggerType: in.TriggerType, StartedAt: time.Now(),
		PublicSlug: in.PublicSlug, IPHash: in.IPHash, UserAgent: in.UserAgent, IsAnonymous: in.Public,
	}
	if err := s.store.CreateRun(ctx, rec); err != nil {
		return store.RunRecord{}, fmt.Errorf("create run: %w", err)
	}

	go s.runInBackground(rec, in)

	return rec, nil
}

// runInBackground drives a just-admitted run to completion off the
// triggering request's context, which is gone by the time this executes.
// It holds the per-run lock for the run's entire lifetime so a Resume/Cancel
// call racing the initial dispatch can't observe or write a half-settled
// Run row.
func (s *Service) runInBackground(rec store.RunRecord, in TriggerInput) {
	lock := s.lockFor(rec.ID)
	lock.Lock()
	defer lock.Unlock()

	ctx := context.Background()

	rec.Status = "running"
	if err := s.store.UpdateRun(ctx, rec); err != nil {
		return
	}

	s.broadcastEvent(ctx, rec.ID, "run.started", nil)
	if s.metrics != nil {
		s.metrics.RunStarted()
	}

	cfg := engine.RunConfig{
		RunID: rec.ID, OrgID: in.OrgID, DeviceID: in.DeviceID,
		WorkflowID: in.WorkflowID, VersionID: in.VersionID,
		Platform: in.Platform, TriggerType: in.TriggerType,
		Blocks: in.Blocks, Event: in.Event,
		InitialState: in.InitialState, Secrets: in.Secrets, Public: in.Public,
	}
	result := s.interp.ExecuteRun(ctx, cfg)
	_, _ = s.settle(ctx, rec, result)
}

// Resume continues a paused run with submitted UI-action data merged into
// state under bind_to's target (the caller resolves bind_to before calling
// this — Resume only needs the already-bound delta).
func (s *Service) Resume(ctx context.Context, runID string, actionDelta map[string]any, secrets map[string]any) (store.RunRecord, error) {
	lock := s.lockFor(runID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return store.RunRecord{}, fmt.Errorf("load run: %w", err)
	}
	if rec.Paused == nil {
		return store.RunRecord{}, fmt.Errorf("run %s is not paused", runID)
	}

	snap := rec.Paused.ContextSnapshot
	if snap.State == nil {
		snap.State = map[string]any{}
	}
	for k, v := range actionDelta {
		snap.State[k] = v
	}

	cfg := engine.RunConfig{
		RunID: runID, OrgID: rec.OrgID, WorkflowID: rec.WorkflowID, VersionID: rec.Version,
		TriggerType: rec.TriggerType, Secrets: secrets,
	}
	result := s.interp.ResumeRun(ctx, cfg, rec.Paused.CurrentBlockIndex+1, snap, len(rec.Steps))
	return s.settle(ctx, rec, result)
}

func (s *Service) settle(ctx context.Context, rec store.RunRecord, result engine.RunResult) (store.RunRecord, error) {
	rec.Steps = append(rec.Steps, result.Steps...)
	rec.Status = string(result.Status)
	rec.Paused = result.Paused

	if result.Error != nil {
		rec.ErrorMessage = result.Error.Message
	}

	if result.Status != engine.RunStatusAwaitingAction {
		now := time.Now()
		rec.CompletedAt = &now
		duration := now.Sub(rec.StartedAt).Milliseconds()
		rec.DurationMs = &duration
		if s.metrics != nil {
			s.metrics.RunTerminated(result.Status)
		}
	}

	if err := s.store.UpdateRun(ctx, rec); err != nil {
		return rec, fmt.Errorf("update run: %w", err)
	}

	s.broadcastEvent(ctx, rec.ID, "run."+string(result.Status), map[string]any{"status": string(result.Status)})
	return rec, nil
}

func (s *Service) broadcastEvent(ctx context.Context, runID, msg string, meta map[string]any) {
	e := emit.Event{RunID: runID, Msg: msg, Timestamp: time.Now(), Meta: meta}
	_ = s.store.EnqueueEvent(ctx, runID, e)
	if s.broadcaster != nil {
		s.broadcaster.Publish(e)
	}
}
