/*
handlers.go - HTTP request handlers

PURPOSE:
  Implements all HTTP handlers for the commission engine API. Handlers
  decode requests, delegate to the engine lifecycles, persist the results
  through the store, and encode responses.

ARCHITECTURE:
  Handler struct holds dependencies (store, lifecycles, reconciler,
  plan factory) for injection. The engine functions are pure: they
  return mutated copies and the handler is the one that persists.

ENDPOINT GROUPS:
  /api/agents/*          Agent management
  /api/policies/*        Policy management and status transitions
  /api/commissions/*     Commission calculation and lifecycle
  /api/payments/*        Payment disbursement with optimistic locking
  /api/reconciliation/*  Batch sweeps and audit history
  /api/plans/*           Commission plan documents

ERROR HANDLING:
  Engine errors map to HTTP status codes:
  - ErrNotFound                              -> 404
  - duplicates, stale version                -> 409
  - validation / transition / mismatch       -> 400
  - everything else                          -> 500

SEE ALSO:
  - dto.go: Request/response types
  - server.go: Route definitions
  - engine/: Domain logic
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/commission-engine/engine"
	"github.com/ledgerline/commission-engine/factory"
	"github.com/ledgerline/commission-engine/store/sqlite"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Config      engine.Config
	PlanFactory *factory.PlanFactory

	Policies    engine.PolicyLifecycle
	Commissions *engine.CommissionLifecycle
	Payments    *engine.PaymentLifecycle
	Reconciler  *engine.Reconciler

	// Clock supplies "today" for every operation; tests pin it.
	Clock func() engine.Date

	currentScenario string
}

// NewHandler creates a handler wired to the given store and plan.
func NewHandler(store *sqlite.Store, cfg engine.Config) *Handler {
	calc := engine.NewCalculator(cfg.Calculation)
	commissions := engine.NewCommissionLifecycle(calc, store)
	payments := engine.NewPaymentLifecycle(store)

	return &Handler{
		Store:       store,
		Config:      cfg,
		PlanFactory: factory.NewPlanFactory(),
		Commissions: commissions,
		Payments:    payments,
		Reconciler:  engine.NewReconciler(store, commissions, payments, cfg.Reconciler),
		Clock:       engine.Today,
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, msg string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, msg, err)
	case engine.IsConflict(err):
		writeError(w, http.StatusConflict, msg, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, msg, err)
	default:
		writeError(w, http.StatusInternalServerError, msg, err)
	}
}

func parseDateField(field, value string) (engine.Date, error) {
	if value == "" {
		return engine.Date{}, nil
	}
	d, err := engine.ParseDate(value)
	if err != nil {
		return engine.Date{}, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func parseDecimalParam(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: not a decimal: %q", field, value)
	}
	return d, nil
}

// =============================================================================
// AGENT HANDLERS
// =============================================================================

// ListAgents returns all agents.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Store.ListAgents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list agents", err)
		return
	}

	dtos := make([]AgentDTO, len(agents))
	for i, a := range agents {
		dtos[i] = toAgentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAgent creates a new agent.
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.AgentCode == "" || req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "agent_code, first_name and last_name are required", nil)
		return
	}

	hireDate, err := parseDateField("hire_date", req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date", err)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	agent := engine.Agent{
		ID:        engine.AgentID(id),
		AgentCode: req.AgentCode,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Status:    engine.AgentActive,
		HireDate:  hireDate,
	}

	if err := h.Store.SaveAgent(r.Context(), agent); err != nil {
		writeEngineError(w, "Failed to create agent", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAgentDTO(agent))
}

// GetAgent returns a single agent by ID.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	agent, err := h.Store.AgentByID(r.Context(), engine.AgentID(id))
	if err != nil {
		writeEngineError(w, "Failed to get agent", err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentDTO(*agent))
}

// GetAgentPolicies returns the agent's book of business.
func (h *Handler) GetAgentPolicies(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	policies, err := h.Store.PoliciesByAgent(r.Context(), engine.AgentID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get policies", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTOs(policies))
}

// GetAgentCommissions returns all commissions earned by an agent.
func (h *Handler) GetAgentCommissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	commissions, err := h.Store.CommissionsByAgent(r.Context(), engine.AgentID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTOs(commissions))
}

// GetAgentPayments returns all payments disbursed to an agent.
func (h *Handler) GetAgentPayments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	payments, err := h.Store.PaymentsByAgent(r.Context(), engine.AgentID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns policies, optionally filtered by ?status=.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	status := engine.PolicyStatus(r.URL.Query().Get("status"))

	policies, err := h.Store.ListPolicies(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTOs(policies))
}

// CreatePolicy creates a policy after date and premium validation.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	premium, err := parseDecimalParam("premium", req.Premium)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid premium", err)
		return
	}

	effective, err := parseDateField("effective_date", req.EffectiveDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_date", err)
		return
	}
	expiration, err := parseDateField("expiration_date", req.ExpirationDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expiration_date", err)
		return
	}
	renewal, err := parseDateField("renewal_date", req.RenewalDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid renewal_date", err)
		return
	}

	ctx := r.Context()
	if _, err := h.Store.AgentByID(ctx, engine.AgentID(req.AgentID)); err != nil {
		writeEngineError(w, "Agent not found", err)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	policy, err := h.Policies.NewPolicy(
		engine.PolicyID(id), req.PolicyNumber, req.PolicyType,
		engine.AgentID(req.AgentID), premium, effective, expiration, renewal)
	if err != nil {
		writeEngineError(w, "Invalid policy", err)
		return
	}

	if req.CoverageAmount != "" {
		coverage, err := parseDecimalParam("coverage_amount", req.CoverageAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid coverage_amount", err)
			return
		}
		policy.CoverageAmount = coverage
	}
	policy.Description = req.Description

	if err := h.Store.SavePolicy(ctx, policy); err != nil {
		writeEngineError(w, "Failed to create policy", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPolicyDTO(policy))
}

// GetPolicy returns a single policy by ID.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	policy, err := h.Store.PolicyByID(r.Context(), engine.PolicyID(id))
	if err != nil {
		writeEngineError(w, "Failed to get policy", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(*policy))
}

// TransitionPolicy moves a policy through its status machine.
// RETIRED is the tombstone state and replaces deletion.
func (h *Handler) TransitionPolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PolicyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	policy, err := h.Store.PolicyByID(ctx, engine.PolicyID(id))
	if err != nil {
		writeEngineError(w, "Failed to get policy", err)
		return
	}

	updated, err := h.Policies.TransitionStatus(*policy, engine.PolicyStatus(req.Status), h.Clock())
	if err != nil {
		writeEngineError(w, "Transition rejected", err)
		return
	}
	if req.Reason != "" {
		updated.CancellationReason = req.Reason
	}

	if err := h.Store.SavePolicy(ctx, updated); err != nil {
		writeEngineError(w, "Failed to save policy", err)
		return
	}

	writeJSON(w, http.StatusOK, toPolicyDTO(updated))
}

// =============================================================================
// COMMISSION HANDLERS
// =============================================================================

// ListCommissions returns commissions filtered by ?status=.
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	status := engine.CommissionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = engine.CommissionPending
	}

	commissions, err := h.Store.CommissionsByStatus(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTOs(commissions))
}

// CalculateCommission calculates and creates a commission for a
// policy/agent pair. One live commission per pair; retiring the old one
// frees the slot.
func (h *Handler) CalculateCommission(w http.ResponseWriter, r *http.Request) {
	var req CalculateCommissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var customRate *decimal.Decimal
	if req.CustomRate != nil {
		rate, err := parseDecimalParam("custom_rate", *req.CustomRate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid custom_rate", err)
			return
		}
		customRate = &rate
	}

	ctx := r.Context()
	policy, err := h.Store.PolicyByID(ctx, engine.PolicyID(req.PolicyID))
	if err != nil {
		writeEngineError(w, "Failed to get policy", err)
		return
	}
	agent, err := h.Store.AgentByID(ctx, engine.AgentID(req.AgentID))
	if err != nil {
		writeEngineError(w, "Failed to get agent", err)
		return
	}

	commission, err := h.Commissions.CalculateAndCreate(
		ctx, *policy, *agent, engine.CommissionType(req.Type), customRate, h.Clock())
	if err != nil {
		writeEngineError(w, "Calculation rejected", err)
		return
	}

	if err := h.Store.CreateCommission(ctx, *commission); err != nil {
		writeEngineError(w, "Failed to create commission", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommissionDTO(*commission))
}

// PreviewCalculation runs the calculator without persisting anything.
func (h *Handler) PreviewCalculation(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	premium, err := parseDecimalParam("premium", req.Premium)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid premium", err)
		return
	}

	var customRate *decimal.Decimal
	if req.CustomRate != nil {
		rate, err := parseDecimalParam("custom_rate", *req.CustomRate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid custom_rate", err)
			return
		}
		customRate = &rate
	}

	commissionType := engine.CommissionType(req.Type)
	if err := engine.ValidateCalculationInputs(premium, commissionType, customRate); err != nil {
		writeEngineError(w, "Invalid calculation inputs", err)
		return
	}

	result, err := h.Commissions.Calculator.Calculate(premium, commissionType, customRate, h.Clock())
	if err != nil {
		writeEngineError(w, "Calculation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, CalculationResultDTO{
		Amount:          result.Amount.StringFixed(2),
		EffectiveRate:   result.EffectiveRate.StringFixed(4),
		Premium:         result.Premium.StringFixed(2),
		Type:            string(result.Type),
		CalculationDate: result.CalculationDate.String(),
	})
}

// GetCommission returns a single commission by ID.
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	commission, err := h.Store.CommissionByID(r.Context(), engine.CommissionID(id))
	if err != nil {
		writeEngineError(w, "Failed to get commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTO(*commission))
}

// TransitionCommission moves a commission through its status machine.
func (h *Handler) TransitionCommission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CommissionStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	commission, err := h.Store.CommissionByID(ctx, engine.CommissionID(id))
	if err != nil {
		writeEngineError(w, "Failed to get commission", err)
		return
	}

	updated, err := h.Commissions.TransitionStatus(*commission, engine.CommissionStatus(req.Status), h.Clock())
	if err != nil {
		writeEngineError(w, "Transition rejected", err)
		return
	}
	if req.Notes != "" {
		updated.Notes = req.Notes
	}

	if err := h.Store.SaveCommission(ctx, updated); err != nil {
		writeEngineError(w, "Failed to save commission", err)
		return
	}

	writeJSON(w, http.StatusOK, toCommissionDTO(updated))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns payments filtered by ?status= or ?reference=.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if ref := r.URL.Query().Get("reference"); ref != "" {
		payment, err := h.Store.PaymentByReference(ctx, ref)
		if err != nil {
			writeEngineError(w, "Failed to get payment", err)
			return
		}
		writeJSON(w, http.StatusOK, []PaymentDTO{toPaymentDTO(*payment)})
		return
	}

	status := engine.PaymentStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = engine.PaymentPending
	}

	payments, err := h.Store.PaymentsByStatus(ctx, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// CreatePayment disburses a settled commission. The commission must be
// PAID, the amount must match to the cent, and at most one live payment
// exists per commission.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseDecimalParam("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	paymentDate, err := parseDateField("payment_date", req.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_date", err)
		return
	}

	ctx := r.Context()
	commission, err := h.Store.CommissionByID(ctx, engine.CommissionID(req.CommissionID))
	if err != nil {
		writeEngineError(w, "Failed to get commission", err)
		return
	}
	agent, err := h.Store.AgentByID(ctx, commission.AgentID)
	if err != nil {
		writeEngineError(w, "Failed to get agent", err)
		return
	}

	payment, err := h.Payments.Create(ctx, *commission, *agent, engine.CreatePaymentRequest{
		Amount:      amount,
		Method:      engine.PaymentMethod(req.Method),
		Reference:   req.Reference,
		PaymentDate: paymentDate,
		BankAccount: req.BankAccount,
		BankName:    req.BankName,
		Notes:       req.Notes,
	}, h.Clock())
	if err != nil {
		writeEngineError(w, "Payment rejected", err)
		return
	}

	if err := h.Store.CreatePayment(ctx, *payment); err != nil {
		writeEngineError(w, "Failed to create payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPaymentDTO(*payment))
}

// GetPayment returns a single payment by ID.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	payment, err := h.Store.PaymentByID(r.Context(), engine.PaymentID(id))
	if err != nil {
		writeEngineError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*payment))
}

// UpdatePayment updates payment details. The caller presents the version
// it last read; a mismatch is a 409 and nothing changes.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	payment, err := h.Store.PaymentByID(ctx, engine.PaymentID(id))
	if err != nil {
		writeEngineError(w, "Failed to get payment", err)
		return
	}

	update := engine.UpdatePaymentRequest{
		BankAccount: req.BankAccount,
		BankName:    req.BankName,
		Notes:       req.Notes,
	}
	if req.Method != nil {
		m := engine.PaymentMethod(*req.Method)
		update.Method = &m
	}
	if req.PaymentDate != nil {
		d, err := parseDateField("payment_date", *req.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment_date", err)
			return
		}
		update.PaymentDate = &d
	}

	updated, err := h.Payments.Update(*payment, update, req.Version)
	if err != nil {
		writeEngineError(w, "Update rejected", err)
		return
	}

	if err := h.Store.UpdatePayment(ctx, updated, req.Version); err != nil {
		writeEngineError(w, "Failed to save payment", err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentDTO(updated))
}

// TransitionPayment moves a payment through its status machine under
// optimistic locking.
func (h *Handler) TransitionPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PaymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	payment, err := h.Store.PaymentByID(ctx, engine.PaymentID(id))
	if err != nil {
		writeEngineError(w, "Failed to get payment", err)
		return
	}

	updated, err := h.Payments.TransitionStatus(*payment, engine.PaymentStatus(req.Status), req.Version, h.Clock())
	if err != nil {
		writeEngineError(w, "Transition rejected", err)
		return
	}

	if err := h.Store.UpdatePayment(ctx, updated, req.Version); err != nil {
		writeEngineError(w, "Failed to save payment", err)
		return
	}

	writeJSON(w, http.StatusOK, toPaymentDTO(updated))
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// TriggerSweep runs a full reconciliation sweep now and persists every
// record it touched plus an audit row.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	run, err := RunSweep(r.Context(), h.Store, h.Reconciler, h.Clock())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}

	writeJSON(w, http.StatusOK, SweepResultDTO{
		RunDate:              run.RunDate.String(),
		CommissionsApproved:  run.CommissionsApproved,
		CommissionsPaid:      run.CommissionsPaid,
		CommissionsForfeited: run.CommissionsForfeited,
		PoliciesExpired:      run.PoliciesExpired,
		PaymentsProcessing:   run.PaymentsProcessing,
		PaymentsFailed:       run.PaymentsFailed,
		PaymentsRetried:      run.PaymentsRetried,
		RenewalsDue:          run.RenewalsDue,
		Skipped:              run.Skipped,
	})
}

// ListSweepRuns returns recent sweep audit records, newest first.
func (h *Handler) ListSweepRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListSweepRuns(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sweep runs", err)
		return
	}

	dtos := make([]SweepRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toSweepRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunOperation runs a single batch operation by name and persists what it
// touched. Useful when one queue needs a pass without a full sweep.
func (h *Handler) RunOperation(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	ctx := r.Context()
	today := h.Clock()

	type opReport struct {
		Operation string `json:"operation"`
		Scanned   int    `json:"scanned"`
		Updated   int    `json:"updated"`
		Skipped   int    `json:"skipped"`
	}

	persistCommissions := func(run *engine.CommissionRun, err error) (opReport, error) {
		if err != nil {
			return opReport{}, err
		}
		for _, c := range run.Updated {
			if err := h.Store.SaveCommission(ctx, c); err != nil {
				return opReport{}, err
			}
		}
		return opReport{Operation: op, Scanned: run.Scanned, Updated: len(run.Updated), Skipped: len(run.Skipped)}, nil
	}
	persistPayments := func(run *engine.PaymentRun, err error) (opReport, error) {
		if err != nil {
			return opReport{}, err
		}
		for _, p := range run.Updated {
			if err := h.Store.UpdatePayment(ctx, p, p.Version-1); err != nil {
				return opReport{}, err
			}
		}
		return opReport{Operation: op, Scanned: run.Scanned, Updated: len(run.Updated), Skipped: len(run.Skipped)}, nil
	}

	var report opReport
	var err error
	switch op {
	case "pending-commissions":
		report, err = persistCommissions(h.Reconciler.ProcessPendingCommissions(ctx, today))
	case "approved-for-payment":
		report, err = persistCommissions(h.Reconciler.ProcessApprovedForPayment(ctx, today))
	case "expired-commissions":
		report, err = persistCommissions(h.Reconciler.ProcessExpiredCommissions(ctx, today))
	case "expired-policies":
		run, runErr := h.Reconciler.ProcessExpiredPolicies(ctx, today)
		if runErr != nil {
			err = runErr
			break
		}
		for _, p := range run.Updated {
			if err = h.Store.SavePolicy(ctx, p); err != nil {
				break
			}
		}
		report = opReport{Operation: op, Scanned: run.Scanned, Updated: len(run.Updated), Skipped: len(run.Skipped)}
	case "pending-payments":
		report, err = persistPayments(h.Reconciler.ProcessPendingPayments(ctx, today))
	case "stuck-payments":
		report, err = persistPayments(h.Reconciler.ProcessStuckPayments(ctx, today))
	case "retry-failed":
		report, err = persistPayments(h.Reconciler.RetryFailedPayments(ctx, today))
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown operation: %s", op), nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Operation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListRenewalsDue returns policies whose renewal window has opened.
// Report-only: nothing is mutated.
func (h *Handler) ListRenewalsDue(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Reconciler.PoliciesDueForRenewal(r.Context(), h.Clock())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list renewals", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTOs(policies))
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// GetStandardPlan returns the built-in standard commission plan document.
func (h *Handler) GetStandardPlan(w http.ResponseWriter, r *http.Request) {
	var pj factory.PlanJSON
	if err := json.Unmarshal([]byte(factory.StandardPlanJSON("standard", "Standard Commission Plan")), &pj); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build plan", err)
		return
	}
	writeJSON(w, http.StatusOK, pj)
}

// GetCurrentPlan returns the plan the running engine was configured with.
func (h *Handler) GetCurrentPlan(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.PlanFactory.ToJSON("current", "Active Plan", h.Config))
}

// ValidatePlan parses a plan document and reports whether it is usable.
func (h *Handler) ValidatePlan(w http.ResponseWriter, r *http.Request) {
	var pj factory.PlanJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if _, err := h.PlanFactory.FromJSON(pj); err != nil {
		writeError(w, http.StatusBadRequest, "Plan rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDatabase wipes all data (dev/demo only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SWEEP PERSISTENCE
// =============================================================================

// RunSweep executes one reconciliation sweep, persists all mutated
// records, and saves the audit row. Shared between TriggerSweep and the
// background scheduler.
func RunSweep(ctx context.Context, store *sqlite.Store, reconciler *engine.Reconciler, today engine.Date) (*sqlite.SweepRun, error) {
	startedAt := time.Now().UTC()
	run := sqlite.SweepRun{
		ID:        fmt.Sprintf("sweep-%d", startedAt.UnixNano()),
		RunDate:   today,
		StartedAt: &startedAt,
	}

	result, err := reconciler.Sweep(ctx, today)
	if err != nil {
		run.Error = err.Error()
		if saveErr := store.SaveSweepRun(ctx, run); saveErr != nil {
			log.Printf("Failed to record failed sweep: %v", saveErr)
		}
		return nil, err
	}

	persist := func(err error, id string) {
		if err != nil {
			log.Printf("Sweep: failed to persist %s: %v", id, err)
			run.Skipped++
		}
	}

	for _, c := range result.PendingCommissions.Updated {
		persist(store.SaveCommission(ctx, c), string(c.ID))
	}
	for _, c := range result.ApprovedForPayment.Updated {
		persist(store.SaveCommission(ctx, c), string(c.ID))
	}
	for _, c := range result.ExpiredCommissions.Updated {
		persist(store.SaveCommission(ctx, c), string(c.ID))
	}
	for _, p := range result.ExpiredPolicies.Updated {
		persist(store.SavePolicy(ctx, p), string(p.ID))
	}
	// Payment mutations already bumped Version in memory; the stored row
	// still carries the previous one.
	for _, p := range result.PendingPayments.Updated {
		persist(store.UpdatePayment(ctx, p, p.Version-1), string(p.ID))
	}
	for _, p := range result.StuckPayments.Updated {
		persist(store.UpdatePayment(ctx, p, p.Version-1), string(p.ID))
	}
	for _, p := range result.RetriedPayments.Updated {
		persist(store.UpdatePayment(ctx, p, p.Version-1), string(p.ID))
	}

	run.CommissionsApproved = len(result.PendingCommissions.Updated)
	run.CommissionsPaid = len(result.ApprovedForPayment.Updated)
	run.CommissionsForfeited = len(result.ExpiredCommissions.Updated)
	run.PoliciesExpired = len(result.ExpiredPolicies.Updated)
	run.PaymentsProcessing = len(result.PendingPayments.Updated)
	run.PaymentsFailed = len(result.StuckPayments.Updated)
	run.PaymentsRetried = len(result.RetriedPayments.Updated)
	run.RenewalsDue = len(result.RenewalsDue)
	run.Skipped += len(result.PendingCommissions.Skipped) +
		len(result.ApprovedForPayment.Skipped) +
		len(result.ExpiredCommissions.Skipped) +
		len(result.ExpiredPolicies.Skipped) +
		len(result.PendingPayments.Skipped) +
		len(result.StuckPayments.Skipped) +
		len(result.RetriedPayments.Skipped)

	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt

	if err := store.SaveSweepRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save sweep run: %w", err)
	}
	return &run, nil
}
