/*
policy.go - Policy lifecycle

PURPOSE:
  Creation validation and status transitions for policies. Policies are
  created by an external request, mutated only through TransitionStatus,
  and never physically deleted (RETIRED tombstoning).

SIDE EFFECTS ON TRANSITION:
  CANCELLED: cancellation date = today (reason is set separately)
  EXPIRED:   expiration date = today

SEE ALSO:
  - transitions.go: The policy transition table
  - validation.go:  Date-ordering rules
*/
package engine

import "github.com/shopspring/decimal"

// PolicyLifecycle validates policy records and drives their status.
// All operations are pure: the caller persists the returned value.
type PolicyLifecycle struct{}

// NewPolicy validates and assembles a policy record in its initial status.
func (PolicyLifecycle) NewPolicy(id PolicyID, number, policyType string, agentID AgentID, premium decimal.Decimal, effective, expiration, renewal Date) (Policy, error) {
	if premium.LessThanOrEqual(decimal.Zero) {
		return Policy{}, &InvalidInputError{Field: "premium", Detail: "premium must be greater than 0"}
	}
	if number == "" {
		return Policy{}, &InvalidInputError{Field: "policy_number", Detail: "policy number is required"}
	}
	if err := ValidatePolicyDates(effective, expiration, renewal); err != nil {
		return Policy{}, err
	}

	return Policy{
		ID:             id,
		PolicyNumber:   number,
		PolicyType:     policyType,
		AgentID:        agentID,
		Premium:        premium,
		Status:         PolicyActive,
		EffectiveDate:  effective,
		ExpirationDate: expiration,
		RenewalDate:    renewal,
	}, nil
}

// TransitionStatus moves a policy to the target status, applying
// status-specific side effects. The input is untouched; the mutated copy
// is returned for the caller to persist.
func (PolicyLifecycle) TransitionStatus(policy Policy, target PolicyStatus, today Date) (Policy, error) {
	if err := CheckPolicyTransition(policy.Status, target); err != nil {
		return policy, err
	}

	switch target {
	case PolicyCancelled:
		policy.CancellationDate = today
	case PolicyExpired:
		// Manual expiry stamps today; batch expiry of policies already past
		// their end date keeps the original expiration date.
		if policy.ExpirationDate.IsZero() || policy.ExpirationDate.After(today) {
			policy.ExpirationDate = today
		}
	}

	policy.Status = target
	return policy, nil
}
