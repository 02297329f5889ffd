/*
transitions.go - Status state machines as data

PURPOSE:
  The three lifecycles (policy, commission, payment) are governed by
  explicit transition tables: map from current status to the set of
  allowed targets. A transition is legal if and only if the table says
  so, which makes the machines trivially testable by iterating every
  (status, target) pair.

RETIRED:
  Records are never physically deleted. "Deleting" a record transitions
  it to RETIRED, a terminal tombstone reachable from every other status
  (including terminal ones - the original system allowed removing
  cancelled records). RETIRED has no outgoing transitions.

SEE ALSO:
  - policy.go, commission.go, payment.go: Side effects on transition
*/
package engine

// =============================================================================
// TRANSITION TABLES
// =============================================================================

var policyTransitions = map[PolicyStatus][]PolicyStatus{
	PolicyActive:    {PolicyInactive, PolicyCancelled, PolicyExpired, PolicySuspended, PolicyRetired},
	PolicyInactive:  {PolicyActive, PolicyCancelled, PolicyRetired},
	PolicyPending:   {PolicyActive, PolicyCancelled, PolicyRetired},
	PolicyCancelled: {PolicyActive, PolicyRetired}, // cancelled policies can be reactivated
	PolicyExpired:   {PolicyRenewed, PolicyRetired},
	PolicyRenewed:   {PolicyActive, PolicyRetired},
	PolicySuspended: {PolicyActive, PolicyCancelled, PolicyRetired},
	PolicyRetired:   nil,
}

var commissionTransitions = map[CommissionStatus][]CommissionStatus{
	CommissionPending:   {CommissionApproved, CommissionCancelled, CommissionForfeited, CommissionRetired},
	CommissionApproved:  {CommissionPaid, CommissionCancelled, CommissionHeld, CommissionRetired},
	CommissionHeld:      {CommissionApproved, CommissionCancelled, CommissionRetired},
	CommissionPaid:      {CommissionCancelled, CommissionRetired},
	CommissionCancelled: {CommissionRetired},
	CommissionForfeited: {CommissionRetired},
	CommissionRetired:   nil,
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentCancelled, PaymentRetired},
	PaymentProcessing: {PaymentCompleted, PaymentFailed, PaymentCancelled, PaymentRetired},
	PaymentCompleted:  {PaymentReversed, PaymentCancelled, PaymentRetired},
	PaymentFailed:     {PaymentPending, PaymentCancelled, PaymentRetired},
	PaymentCancelled:  {PaymentRetired},
	PaymentReversed:   {PaymentRetired},
	PaymentRetired:    nil,
}

// =============================================================================
// GENERIC LOOKUP
// =============================================================================

func canTransition[S comparable](table map[S][]S, from, to S) bool {
	for _, allowed := range table[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckPolicyTransition validates a policy status change against the table.
func CheckPolicyTransition(from, to PolicyStatus) error {
	if !canTransition(policyTransitions, from, to) {
		return &InvalidTransitionError{Entity: "policy", From: string(from), To: string(to)}
	}
	return nil
}

// CheckCommissionTransition validates a commission status change.
func CheckCommissionTransition(from, to CommissionStatus) error {
	if !canTransition(commissionTransitions, from, to) {
		return &InvalidTransitionError{Entity: "commission", From: string(from), To: string(to)}
	}
	return nil
}

// CheckPaymentTransition validates a payment status change.
func CheckPaymentTransition(from, to PaymentStatus) error {
	if !canTransition(paymentTransitions, from, to) {
		return &InvalidTransitionError{Entity: "payment", From: string(from), To: string(to)}
	}
	return nil
}

// Enumerations used by the full-table tests and the API layer.

func AllPolicyStatuses() []PolicyStatus {
	return []PolicyStatus{PolicyActive, PolicyInactive, PolicyPending, PolicyCancelled,
		PolicyExpired, PolicyRenewed, PolicySuspended, PolicyRetired}
}

func AllCommissionStatuses() []CommissionStatus {
	return []CommissionStatus{CommissionPending, CommissionApproved, CommissionPaid,
		CommissionCancelled, CommissionHeld, CommissionForfeited, CommissionRetired}
}

func AllPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentPending, PaymentProcessing, PaymentCompleted,
		PaymentFailed, PaymentCancelled, PaymentReversed, PaymentRetired}
}
