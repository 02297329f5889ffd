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
  /api/agents/*          Agent management
  /api/policies/*        Policy management
  /api/commissions/*     Commission lifecycle
  /api/payments/*        Payment lifecycle
  /api/reconciliation/*  Sweeps and audit history
  /api/plans/*           Commission plan documents
  /api/admin/*           Admin operations (reset)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
		// Agent routes
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)
			r.Get("/{id}", h.GetAgent)
			r.Get("/{id}/policies", h.GetAgentPolicies)
			r.Get("/{id}/commissions", h.GetAgentCommissions)
			r.Get("/{id}/payments", h.GetAgentPayments)
		})

		// Policy routes
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Post("/", h.CreatePolicy)
			r.Get("/{id}", h.GetPolicy)
			r.Post("/{id}/status", h.TransitionPolicy)
		})

		// Commission routes
		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", h.ListCommissions)
			r.Post("/", h.CalculateCommission)
			r.Post("/preview", h.PreviewCalculation)
			r.Get("/{id}", h.GetCommission)
			r.Post("/{id}/status", h.TransitionCommission)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.CreatePayment)
			r.Get("/{id}", h.GetPayment)
			r.Put("/{id}", h.UpdatePayment)
			r.Post("/{id}/status", h.TransitionPayment)
		})

		// Reconciliation routes
		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/sweep", h.TriggerSweep)
			r.Post("/run/{op}", h.RunOperation)
			r.Get("/runs", h.ListSweepRuns)
			r.Get("/renewals", h.ListRenewalsDue)
		})

		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Get("/current", h.GetCurrentPlan)
			r.Get("/standard", h.GetStandardPlan)
			r.Post("/validate", h.ValidatePlan)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Landing page with endpoint index
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Commission Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Commission Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/agents">/api/agents</a> - List agents</li>
<li><a href="/api/policies">/api/policies</a> - List policies</li>
<li><a href="/api/commissions">/api/commissions</a> - List pending commissions</li>
<li><a href="/api/payments">/api/payments</a> - List pending payments</li>
<li><a href="/api/reconciliation/runs">/api/reconciliation/runs</a> - Sweep history</li>
<li><a href="/api/plans/current">/api/plans/current</a> - Active commission plan</li>
</ul>
</body>
</html>`))
	})

	return r
}
