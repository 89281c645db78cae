/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/timer/*          Timer state machine
  /api/entries/*        Time entries
  /api/leaves/*         Leave requests and balances
  /api/workspaces/*     Reports, holidays, rules, members

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/timer", func(r chi.Router) {
			r.Get("/", h.CurrentTimer)
			r.Post("/start", h.StartTimer)
			r.Post("/pause", h.PauseTimer)
			r.Post("/resume", h.ResumeTimer)
			r.Post("/stop", h.StopTimer)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.FetchEntries)
			r.Post("/", h.CreateManualEntry)
		})

		r.Route("/leaves", func(r chi.Router) {
			r.Post("/", h.CreateLeave)
			r.Put("/status", h.SetLeaveStatus)
			r.Get("/balance/{userID}/{workspaceID}", h.GetBalance)
			r.Get("/{userID}", h.ListLeaves)
			r.Put("/{id}", h.UpdateLeave)
			r.Delete("/{id}", h.DeleteLeave)
		})

		r.Route("/workspaces/{workspaceID}", func(r chi.Router) {
			r.Post("/reports/monthly", h.GenerateMonthlyReport)
			r.Post("/reports/monthly/save", h.SaveMonthlyReport)

			r.Get("/holidays", h.ListHolidays)
			r.Post("/holidays", h.CreateHoliday)

			r.Get("/rules", h.GetActiveRule)
			r.Post("/rules", h.CreateRule)

			r.Post("/members", h.OnboardMember)
		})
	})

	return r
}
