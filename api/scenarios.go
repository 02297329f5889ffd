/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates agents, policies,
	commissions, and payments that demonstrate specific features.

AVAILABLE SCENARIOS:

	fresh-book:       One agent, active policies, freshly calculated commissions
	settlement-cycle: Commissions at every lifecycle stage plus a live payment
	month-end:        Aged records so the next sweep has work to do

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create agents and policies
 3. Calculate commissions through the lifecycle
 4. Optionally advance commissions/payments through their machines

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "settlement-cycle"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Lifecycle wiring
  - engine/: Domain logic the loaders exercise
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ledgerline/commission-engine/engine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-book",
		Name:        "Fresh Book of Business",
		Description: "One agent with active policies and freshly calculated commissions",
	},
	{
		ID:          "settlement-cycle",
		Name:        "Settlement Cycle",
		Description: "Commissions at every lifecycle stage plus a payment in flight",
	},
	{
		ID:          "month-end",
		Name:        "Month-End Reconciliation",
		Description: "Aged pending/approved commissions and a stuck payment for the sweep to pick up",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario wipes the database and loads the named scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "fresh-book":
		err = h.loadFreshBook(ctx)
	case "settlement-cycle":
		err = h.loadSettlementCycle(ctx)
	case "month-end":
		err = h.loadMonthEnd(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) seedAgent(ctx context.Context, id, code, first, last string) (engine.Agent, error) {
	agent := engine.Agent{
		ID:        engine.AgentID(id),
		AgentCode: code,
		FirstName: first,
		LastName:  last,
		Email:     fmt.Sprintf("%s.%s@ledgerline.example", first, last),
		Status:    engine.AgentActive,
		HireDate:  h.Clock().AddYears(-2),
	}
	return agent, h.Store.SaveAgent(ctx, agent)
}

func (h *Handler) seedPolicy(ctx context.Context, id, number, policyType string, agentID engine.AgentID, premium string) (engine.Policy, error) {
	today := h.Clock()
	policy, err := h.Policies.NewPolicy(
		engine.PolicyID(id), number, policyType, agentID,
		engine.MustDecimal(premium),
		today.AddDays(-90), today.AddDays(275), engine.Date{})
	if err != nil {
		return engine.Policy{}, err
	}
	return policy, h.Store.SavePolicy(ctx, policy)
}

func (h *Handler) seedCommission(ctx context.Context, policy engine.Policy, agent engine.Agent, commissionType engine.CommissionType) (*engine.Commission, error) {
	commission, err := h.Commissions.CalculateAndCreate(ctx, policy, agent, commissionType, nil, h.Clock())
	if err != nil {
		return nil, err
	}
	return commission, h.Store.CreateCommission(ctx, *commission)
}

// loadFreshBook: one agent, three active policies, pending commissions.
func (h *Handler) loadFreshBook(ctx context.Context) error {
	agent, err := h.seedAgent(ctx, "agent-demo-1", "AGT-100", "Dana", "Reyes")
	if err != nil {
		return err
	}

	books := []struct {
		id, number, policyType, premium string
		commissionType                  engine.CommissionType
	}{
		{"policy-demo-1", "POL-2026-1001", "AUTO", "850.00", engine.CommissionPercentage},
		{"policy-demo-2", "POL-2026-1002", "HOME", "2400.00", engine.CommissionTiered},
		{"policy-demo-3", "POL-2026-1003", "LIFE", "6200.00", engine.CommissionTiered},
	}

	for _, b := range books {
		policy, err := h.seedPolicy(ctx, b.id, b.number, b.policyType, agent.ID, b.premium)
		if err != nil {
			return err
		}
		if _, err := h.seedCommission(ctx, policy, agent, b.commissionType); err != nil {
			return err
		}
	}
	return nil
}

// loadSettlementCycle: commissions at PENDING, APPROVED, and PAID, with
// the paid one carrying a live payment.
func (h *Handler) loadSettlementCycle(ctx context.Context) error {
	agent, err := h.seedAgent(ctx, "agent-demo-2", "AGT-200", "Marco", "Iniesta")
	if err != nil {
		return err
	}
	today := h.Clock()

	stages := []struct {
		id, number, premium string
		advance             []engine.CommissionStatus
	}{
		{"policy-cycle-1", "POL-2026-2001", "500.00", nil},
		{"policy-cycle-2", "POL-2026-2002", "1800.00", []engine.CommissionStatus{engine.CommissionApproved}},
		{"policy-cycle-3", "POL-2026-2003", "3200.00", []engine.CommissionStatus{engine.CommissionApproved, engine.CommissionPaid}},
	}

	var settled *engine.Commission
	for _, s := range stages {
		policy, err := h.seedPolicy(ctx, s.id, s.number, "AUTO", agent.ID, s.premium)
		if err != nil {
			return err
		}
		commission, err := h.seedCommission(ctx, policy, agent, engine.CommissionPercentage)
		if err != nil {
			return err
		}
		current := *commission
		for _, target := range s.advance {
			current, err = h.Commissions.TransitionStatus(current, target, today)
			if err != nil {
				return err
			}
			if err := h.Store.SaveCommission(ctx, current); err != nil {
				return err
			}
		}
		if current.Status == engine.CommissionPaid {
			settled = &current
		}
	}

	if settled == nil {
		return nil
	}

	payment, err := h.Payments.Create(ctx, *settled, agent, engine.CreatePaymentRequest{
		Amount:      settled.Amount,
		Method:      engine.MethodBankTransfer,
		BankAccount: "****4821",
		BankName:    "First Meridian",
	}, today)
	if err != nil {
		return err
	}
	return h.Store.CreatePayment(ctx, *payment)
}

// loadMonthEnd: aged records the next sweep will act on — a small
// pending commission due for auto-approval, an approved one past the
// settlement delay, and a payment stuck in PROCESSING.
func (h *Handler) loadMonthEnd(ctx context.Context) error {
	agent, err := h.seedAgent(ctx, "agent-demo-3", "AGT-300", "Priya", "Natarajan")
	if err != nil {
		return err
	}
	today := h.Clock()
	aged := today.AddDays(-14)

	// Small pending commission, already due.
	p1, err := h.seedPolicy(ctx, "policy-me-1", "POL-2026-3001", "AUTO", agent.ID, "600.00")
	if err != nil {
		return err
	}
	c1, err := h.Commissions.CalculateAndCreate(ctx, p1, agent, engine.CommissionPercentage, nil, aged)
	if err != nil {
		return err
	}
	if err := h.Store.CreateCommission(ctx, *c1); err != nil {
		return err
	}

	// Approved commission past the auto-pay delay.
	p2, err := h.seedPolicy(ctx, "policy-me-2", "POL-2026-3002", "HOME", agent.ID, "2100.00")
	if err != nil {
		return err
	}
	c2, err := h.Commissions.CalculateAndCreate(ctx, p2, agent, engine.CommissionPercentage, nil, aged)
	if err != nil {
		return err
	}
	approved, err := h.Commissions.TransitionStatus(*c2, engine.CommissionApproved, aged)
	if err != nil {
		return err
	}
	if err := h.Store.CreateCommission(ctx, approved); err != nil {
		return err
	}

	// Settled commission whose payment is stuck in PROCESSING.
	p3, err := h.seedPolicy(ctx, "policy-me-3", "POL-2026-3003", "LIFE", agent.ID, "4000.00")
	if err != nil {
		return err
	}
	c3, err := h.Commissions.CalculateAndCreate(ctx, p3, agent, engine.CommissionPercentage, nil, aged)
	if err != nil {
		return err
	}
	current := *c3
	for _, target := range []engine.CommissionStatus{engine.CommissionApproved, engine.CommissionPaid} {
		current, err = h.Commissions.TransitionStatus(current, target, aged)
		if err != nil {
			return err
		}
	}
	if err := h.Store.CreateCommission(ctx, current); err != nil {
		return err
	}

	payment, err := h.Payments.Create(ctx, current, agent, engine.CreatePaymentRequest{
		Amount:      current.Amount,
		Method:      engine.MethodWireTransfer,
		PaymentDate: aged,
		BankAccount: "****9155",
		BankName:    "Coastal Trust",
	}, aged)
	if err != nil {
		return err
	}
	processing, err := h.Payments.TransitionStatus(*payment, engine.PaymentProcessing, payment.Version, aged)
	if err != nil {
		return err
	}
	// Persist the post-transition record directly; CreatePayment stores
	// whatever version it is handed.
	return h.Store.CreatePayment(ctx, processing)
}
