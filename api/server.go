/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RequestLog: zap access log carrying the request id
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/employees/*      Employees, balances, ledger writes, leave
  /api/settings/*       Workshop roster
  /api/admin/*          Admin operations
  /health               Liveness and database ping

SECURITY NOTE:
  No authentication middleware. The X-Actor header is trusted as is and
  must be set by an authenticating proxy in front of this server.

SEE ALSO:
  - handlers.go:       Handler implementations
  - middleware.go:     Request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, logger *zap.Logger, corsOrigins []string) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetEmployee)
				r.Put("/", h.UpdateEmployee)
				r.Get("/balance", h.GetBalance)
				r.Get("/entries", h.GetEntries)

				r.Post("/seed", h.SeedOpening)
				r.Post("/accruals", h.PostAccruals)
				r.Put("/carryover/{year}", h.SetCarryover)
				r.Post("/adjustments", h.CreateAdjustment)

				r.Post("/leave/preview", h.PreviewLeave)
				r.Post("/leave/approve", h.ApproveLeave)
				r.Post("/leave/{requestID}/cancel", h.CancelLeave)
			})
		})

		// Settings routes
		r.Route("/settings", func(r chi.Router) {
			r.Get("/roster", h.GetRoster)
			r.Put("/roster", h.UpdateRoster)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/accruals/refresh", h.RefreshAccruals)
		})
	})

	return r
}
