// Package store provides an in-memory persistence implementation for
// testing and development. It enforces the same uniqueness invariants the
// SQLite schema does: one non-retired commission per (policy, agent), one
// payment per commission, unique payment references, and compare-and-set
// payment versions.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgerline/commission-engine/engine"
)

// Memory holds every record in maps guarded by one RWMutex. Records are
// plain value structs, so map reads hand out copies.
type Memory struct {
	mu          sync.RWMutex
	agents      map[engine.AgentID]engine.Agent
	policies    map[engine.PolicyID]engine.Policy
	commissions map[engine.CommissionID]engine.Commission
	payments    map[engine.PaymentID]engine.Payment
}

func NewMemory() *Memory {
	return &Memory{
		agents:      make(map[engine.AgentID]engine.Agent),
		policies:    make(map[engine.PolicyID]engine.Policy),
		commissions: make(map[engine.CommissionID]engine.Commission),
		payments:    make(map[engine.PaymentID]engine.Payment),
	}
}

// =============================================================================
// AGENTS
// =============================================================================

func (m *Memory) SaveAgent(_ context.Context, agent engine.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.ID] = agent
	return nil
}

func (m *Memory) AgentByID(_ context.Context, id engine.AgentID) (*engine.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, engine.ErrNotFound)
	}
	return &agent, nil
}

// =============================================================================
// POLICIES
// =============================================================================

func (m *Memory) SavePolicy(_ context.Context, policy engine.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.policies {
		if existing.PolicyNumber == policy.PolicyNumber && existing.ID != policy.ID {
			return fmt.Errorf("policy number %s: %w", policy.PolicyNumber, engine.ErrDuplicate)
		}
	}
	m.policies[policy.ID] = policy
	return nil
}

func (m *Memory) PolicyByID(_ context.Context, id engine.PolicyID) (*engine.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	policy, ok := m.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, engine.ErrNotFound)
	}
	return &policy, nil
}

// =============================================================================
// COMMISSIONS
// =============================================================================

// CreateCommission inserts a commission, rejecting a second non-retired
// commission for the same (policy, agent) pair. This is the storage-level
// guarantee behind the workflow's fast-path check.
func (m *Memory) CreateCommission(_ context.Context, commission engine.Commission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.commissions {
		if existing.PolicyID == commission.PolicyID &&
			existing.AgentID == commission.AgentID &&
			existing.Status != engine.CommissionRetired {
			return &engine.DuplicateCommissionError{
				PolicyID: commission.PolicyID,
				AgentID:  commission.AgentID,
				Existing: existing.ID,
			}
		}
	}
	m.commissions[commission.ID] = commission
	return nil
}

func (m *Memory) SaveCommission(_ context.Context, commission engine.Commission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commissions[commission.ID] = commission
	return nil
}

func (m *Memory) CommissionByID(_ context.Context, id engine.CommissionID) (*engine.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	commission, ok := m.commissions[id]
	if !ok {
		return nil, fmt.Errorf("commission %s: %w", id, engine.ErrNotFound)
	}
	return &commission, nil
}

func (m *Memory) CommissionByPolicyAndAgent(_ context.Context, policyID engine.PolicyID, agentID engine.AgentID) (*engine.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, commission := range m.commissions {
		if commission.PolicyID == policyID && commission.AgentID == agentID &&
			commission.Status != engine.CommissionRetired {
			c := commission
			return &c, nil
		}
	}
	return nil, fmt.Errorf("commission for policy %s agent %s: %w", policyID, agentID, engine.ErrNotFound)
}

// =============================================================================
// PAYMENTS
// =============================================================================

// CreatePayment inserts a payment, rejecting a second payment for the same
// commission and colliding references.
func (m *Memory) CreatePayment(_ context.Context, payment engine.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.CommissionID == payment.CommissionID && existing.Status != engine.PaymentRetired {
			return &engine.DuplicatePaymentError{CommissionID: payment.CommissionID, Existing: existing.ID}
		}
		if existing.Reference == payment.Reference {
			return &engine.DuplicateReferenceError{Reference: payment.Reference}
		}
	}
	m.payments[payment.ID] = payment
	return nil
}

func (m *Memory) PaymentByID(_ context.Context, id engine.PaymentID) (*engine.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, engine.ErrNotFound)
	}
	return &payment, nil
}

func (m *Memory) PaymentByCommission(_ context.Context, commissionID engine.CommissionID) (*engine.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, payment := range m.payments {
		if payment.CommissionID == commissionID && payment.Status != engine.PaymentRetired {
			p := payment
			return &p, nil
		}
	}
	return nil, fmt.Errorf("payment for commission %s: %w", commissionID, engine.ErrNotFound)
}

func (m *Memory) PaymentByReference(_ context.Context, reference string) (*engine.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, payment := range m.payments {
		if payment.Reference == reference {
			p := payment
			return &p, nil
		}
	}
	return nil, fmt.Errorf("payment reference %s: %w", reference, engine.ErrNotFound)
}

// UpdatePayment commits an updated payment with a compare-and-set on the
// version the caller read. The record is untouched on a version mismatch.
func (m *Memory) UpdatePayment(_ context.Context, payment engine.Payment, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.payments[payment.ID]
	if !ok {
		return fmt.Errorf("payment %s: %w", payment.ID, engine.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return &engine.StaleVersionError{PaymentID: payment.ID, Given: expectedVersion, Stored: stored.Version}
	}
	m.payments[payment.ID] = payment
	return nil
}

// =============================================================================
// RECONCILER SOURCE
// =============================================================================

func (m *Memory) PendingCommissionsDue(_ context.Context, asOf engine.Date) ([]engine.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Commission
	for _, c := range m.commissions {
		if c.Status == engine.CommissionPending && c.CalculationDate.BeforeOrEqual(asOf) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) ApprovedCommissionsUnpaid(_ context.Context) ([]engine.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Commission
	for _, c := range m.commissions {
		if c.Status == engine.CommissionApproved && c.PaymentDate.IsZero() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) ExpiredPendingCommissions(_ context.Context, asOf engine.Date) ([]engine.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Commission
	for _, c := range m.commissions {
		if c.Status == engine.CommissionPending && !c.ExpiryDate.IsZero() && c.ExpiryDate.BeforeOrEqual(asOf) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) PoliciesExpiredBy(_ context.Context, asOf engine.Date) ([]engine.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Policy
	for _, p := range m.policies {
		if p.Status == engine.PolicyExpired || p.Status == engine.PolicyRetired {
			continue
		}
		if !p.ExpirationDate.IsZero() && p.ExpirationDate.BeforeOrEqual(asOf) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) PoliciesDueForRenewal(_ context.Context, horizon engine.Date) ([]engine.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Policy
	for _, p := range m.policies {
		if p.Status == engine.PolicyRetired {
			continue
		}
		if !p.RenewalDate.IsZero() && p.RenewalDate.BeforeOrEqual(horizon) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) PaymentsInStatusBefore(_ context.Context, status engine.PaymentStatus, cutoff engine.Date) ([]engine.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Payment
	for _, p := range m.payments {
		if p.Status == status && !p.PaymentDate.IsZero() && p.PaymentDate.BeforeOrEqual(cutoff) {
			out = append(out, p)
		}
	}
	return out, nil
}
