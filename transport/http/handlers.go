package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/service"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/store"
)

// WorkflowResolver looks up a workflow version's blocks for triggering, and
// resolves a public slug to its (workflow, version) pair. A real
// implementation backs this with the workflow/version tables; tests can
// supply an in-memory stub.
type WorkflowResolver interface {
	ResolveVersion(ctx context.Context, workflowID, versionID string) ([]engine.Block, error)
	ResolvePublishedVersion(ctx context.Context, workflowID string) (versionID string, blocks []engine.Block, err error)
	ResolveSlug(ctx context.Context, slug string) (workflowID, versionID string, public bool, err error)
}

// Handlers groups the HTTP surface's dependencies.
type Handlers struct {
	svc      *service.Service
	resolver WorkflowResolver
	store    store.Store
	log      *zap.Logger
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type triggerRequest struct {
	VersionID    string         `json:"version_id"`
	Event        map[string]any `json:"event"`
	InitialState map[string]any `json:"initial_state"`
	DeviceID     string         `json:"device_id"`
	Platform     string         `json:"platform"`
}

// TriggerRun starts a run for an authenticated caller against a specific or
// latest-published workflow version.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var blocks []engine.Block
	var versionID string
	var err error
	if req.VersionID != "" {
		versionID = req.VersionID
		blocks, err = h.resolver.ResolveVersion(r.Context(), workflowID, req.VersionID)
	} else {
		versionID, blocks, err = h.resolver.ResolvePublishedVersion(r.Context(), workflowID)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	rec, err := h.svc.Trigger(r.Context(), service.TriggerInput{
		WorkflowID: workflowID, VersionID: versionID,
		Platform: req.Platform, DeviceID: req.DeviceID,
		TriggerType: "api", Blocks: blocks,
		Event: req.Event, InitialState: req.InitialState,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunView(rec))
}

type publicTriggerRequest struct {
	Event        map[string]any `json:"event"`
	InitialState map[string]any `json:"initial_state"`
}

// TriggerPublicRun starts an anonymous run via its public slug, rate-limited
// on (slug, hashed client IP) and restricted to the public block allowlist.
func (h *Handlers) TriggerPublicRun(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	workflowID, versionID, public, err := h.resolver.ResolveSlug(r.Context(), slug)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !public {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var req publicTriggerRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	blocks, err := h.resolver.ResolveVersion(r.Context(), workflowID, versionID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	rec, err := h.svc.Trigger(r.Context(), service.TriggerInput{
		WorkflowID: workflowID, VersionID: versionID,
		TriggerType: "api", Blocks: blocks,
		Event: req.Event, InitialState: req.InitialState,
		Public: true, PublicSlug: slug,
		IPHash:    service.HashIP(clientIP(r)),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunView(rec))
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rec, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunView(rec))
}

func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	h.svc.Cancel(runID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel_requested"})
}

type submitActionRequest struct {
	BindTo string `json:"bind_to"`
	Value  any    `json:"value"`
}

// SubmitAction resumes a paused run with a UI block's submitted value, bound
// into state the same way bind_to binds any other block's output.
func (h *Handlers) SubmitAction(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	var req submitActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	delta := map[string]any{}
	if req.BindTo != "" {
		engine.BindTo(delta, req.BindTo, req.Value)
	}

	rec, err := h.svc.Resume(r.Context(), runID, delta, nil)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunView(rec))
}

type runView struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	WorkflowID   string `json:"workflow_id"`
	StepCount    int    `json:"step_count"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func toRunView(rec store.RunRecord) runView {
	return runView{
		ID: rec.ID, Status: rec.Status, WorkflowID: rec.WorkflowID,
		StepCount: len(rec.Steps), ErrorMessage: rec.ErrorMessage,
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case err == engine.ErrRateLimited:
		writeError(w, http.StatusTooManyRequests, err.Error())
	case err == engine.ErrRunNotFound, err == engine.ErrWorkflowNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case err == engine.ErrWorkflowDisabled, err == engine.ErrNoPublishedVersion, err == engine.ErrRestrictedBlock:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
