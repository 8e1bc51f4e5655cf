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

	/api/allocate            One-shot allocation
	/api/cost-tables/*       Weight tables and shared costs
	/api/units/*             Schedules and unit-level settlement
	/api/installments/*      Status and single-installment settlement
	/api/reports/*           Competency reports
	/api/scenarios/*         Demo scenarios
	/metrics                 Prometheus scrape endpoint

SECURITY NOTE:

	No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
		r.Post("/allocate", h.Allocate)

		// Cost table routes
		r.Route("/cost-tables", func(r chi.Router) {
			r.Post("/", h.CreateCostTable)
			r.Get("/{projectID}", h.GetCostTable)
			r.Post("/{projectID}/land", h.SetLandValue)
			r.Post("/{projectID}/monthly", h.AddMonthlyCost)
			r.Get("/{projectID}/allocations", h.GetAllocations)
		})

		// Unit routes
		r.Route("/units", func(r chi.Router) {
			r.Post("/{unitID}/plan", h.CreatePlan)
			r.Get("/{unitID}/installments", h.ListInstallments)
			r.Post("/{unitID}/settle-lot", h.SettleLot)
			r.Post("/{unitID}/settle", h.SettleUnit)
		})

		// Installment routes
		r.Route("/installments", func(r chi.Router) {
			r.Get("/{id}/status", h.GetStatus)
			r.Post("/{id}/settle", h.SettleOne)
		})

		// Report routes
		r.Get("/reports/{year}/{month}", h.GetReport)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Prometheus scrape endpoint
	if h.Metrics != nil {
		r.Method("GET", "/metrics", promhttp.HandlerFor(h.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	return r
}
