/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/routines/*       Routine authoring and regeneration
  /api/activities/*     Timeline and lifecycle transitions
  /api/outcomes/*       Outcome history
  /api/scenarios/*      Demo data loaders (dev only)
  /api/admin/*          Bulk operations and reset (dev only)

SECURITY NOTE:
  Single-user engine, no authentication middleware. All endpoints are
  public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Routine routes
		r.Route("/routines", func(r chi.Router) {
			r.Get("/", h.ListRoutines)
			r.Post("/", h.CreateRoutine)
			r.Get("/{id}", h.GetRoutine)
			r.Put("/{id}", h.UpdateRoutine)
			r.Delete("/{id}", h.DeleteRoutine)
			r.Post("/{id}/regenerate", h.RegenerateRoutine)
			r.Post("/{id}/reschedule", h.RescheduleRoutine)
			r.Get("/{id}/activities", h.ListRoutineActivities)
			r.Get("/{id}/runs", h.ListRoutineRuns)
		})

		// Activity routes
		r.Route("/activities", func(r chi.Router) {
			r.Get("/", h.ListActivities)
			r.Get("/{id}", h.GetActivity)
			r.Post("/{id}/complete", h.CompleteActivity)
			r.Post("/{id}/skip", h.SkipActivity)
		})

		// Outcome history routes
		r.Route("/outcomes", func(r chi.Router) {
			r.Get("/blood-pressure", h.ListBloodPressureReadings)
			r.Get("/weigh-ins", h.ListWeighIns)
			r.Get("/notes", h.ListNotes)
		})

		// Scenario routes (dev/demo)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/regenerate-all", h.RegenerateAll)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Routine Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Routine Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/routines">/api/routines</a> - List routines</li>
<li><a href="/api/activities">/api/activities</a> - Today's activities</li>
<li><a href="/api/outcomes/weigh-ins">/api/outcomes/weigh-ins</a> - Weigh-in history</li>
</ul>
</body>
</html>`))
	})

	return r
}
