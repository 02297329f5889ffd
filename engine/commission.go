/*
commission.go - Commission lifecycle and creation workflow

PURPOSE:
  The commission creation workflow (uniqueness check, validity-window
  check, calculation) and the commission status machine with its side
  effects.

CREATION WORKFLOW:
  1. Reject if a commission already exists for (policy, agent) - any
     status except RETIRED holds the slot.
  2. Validate calculation inputs; reject when today falls outside the
     policy's effective/expiration window.
  3. Calculate, snapshot the premium, start at PENDING.
  The returned commission is NOT persisted; the caller saves it inside
  its own transaction. Storage must also enforce the uniqueness invariant
  (see store.go) - the lookup here is the fast path only.

SIDE EFFECTS ON TRANSITION:
  PAID:      payment date = today
  CANCELLED: expiry date = today when unset

SEE ALSO:
  - calculator.go:  The amount computation
  - transitions.go: The commission transition table
*/
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionLifecycle drives commissions from calculation to settlement.
type CommissionLifecycle struct {
	Calculator  *Calculator
	Commissions CommissionLookup
}

func NewCommissionLifecycle(calc *Calculator, lookup CommissionLookup) *CommissionLifecycle {
	return &CommissionLifecycle{Calculator: calc, Commissions: lookup}
}

// CalculateAndCreate runs the full creation workflow against an
// already-loaded policy and agent. At most one commission may exist per
// (policy, agent) pair.
func (cl *CommissionLifecycle) CalculateAndCreate(ctx context.Context, policy Policy, agent Agent, commissionType CommissionType, customRate *decimal.Decimal, today Date) (*Commission, error) {
	existing, err := cl.Commissions.CommissionByPolicyAndAgent(ctx, policy.ID, agent.ID)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, &DuplicateCommissionError{PolicyID: policy.ID, AgentID: agent.ID, Existing: existing.ID}
	}

	if err := ValidateCalculationInputs(policy.Premium, commissionType, customRate); err != nil {
		return nil, err
	}
	if !InCalculationWindow(policy.EffectiveDate, policy.ExpirationDate, today) {
		return nil, ErrOutsideWindow
	}

	result, err := cl.Calculator.Calculate(policy.Premium, commissionType, customRate, today)
	if err != nil {
		return nil, err
	}

	return &Commission{
		ID:              CommissionID(uuid.NewString()),
		PolicyID:        policy.ID,
		AgentID:         agent.ID,
		PremiumAmount:   result.Premium,
		Amount:          result.Amount,
		Rate:            result.EffectiveRate,
		Type:            result.Type,
		Status:          CommissionPending,
		CalculationDate: today,
		EffectiveDate:   today,
	}, nil
}

// TransitionStatus moves a commission to the target status with the
// status-specific side effects. Pure: the caller persists the result.
func (cl *CommissionLifecycle) TransitionStatus(commission Commission, target CommissionStatus, today Date) (Commission, error) {
	if err := CheckCommissionTransition(commission.Status, target); err != nil {
		return commission, err
	}

	switch target {
	case CommissionPaid:
		commission.PaymentDate = today
	case CommissionCancelled:
		if commission.ExpiryDate.IsZero() {
			commission.ExpiryDate = today
		}
	}

	commission.Status = target
	return commission, nil
}
