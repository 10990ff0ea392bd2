// Package http exposes the trigger/cancel/resume/stream surface over HTTP,
// per §6's platform adapters: this is the Server adapter's front door.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/moizaamir12/vsync-workflow-sub000/engine/service"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/store"
)

// NewRouter builds the chi router: request ID/logging/recoverer middleware,
// permissive CORS for public-run endpoints, and the workflow routes.
func NewRouter(svc *service.Service, resolver WorkflowResolver, st store.Store, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(zapRequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := &Handlers{svc: svc, resolver: resolver, store: st, log: log}

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/workflows/{workflowID}/runs", h.TriggerRun)
		api.Get("/runs/{runID}", h.GetRun)
		api.Post("/runs/{runID}/cancel", h.CancelRun)
		api.Post("/runs/{runID}/actions", h.SubmitAction)
		api.Get("/runs/{runID}/events", h.StreamEvents)
	})

	r.Route("/p", func(pub chi.Router) {
		pub.Post("/{slug}", h.TriggerPublicRun)
	})

	return r
}

func zapRequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
