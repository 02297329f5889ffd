/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines what the engine needs from its persistence collaborator: point
  lookups for the creation workflows and bulk selections for the batch
  reconciler. The engine only READS through these interfaces - lifecycle
  operations return mutated records and leave the write (and its
  transaction scope) to the caller.

UNIQUENESS:
  The creation workflows run a check-then-create sequence through these
  lookups. That check is a fast path, NOT the guarantee: implementations
  must enforce the uniqueness invariants themselves (unique index on
  commission (policy, agent), on payment commission, and on payment
  reference), because under concurrent requests the application-level
  check races.

IMPLEMENTATIONS:
  - engine/store/memory.go: In-memory for testing/dev
  - store/sqlite/sqlite.go:  Production SQLite
*/
package engine

import "context"

// =============================================================================
// POINT LOOKUPS - Creation workflow collaborators
// =============================================================================

// CommissionLookup resolves existing commissions. Absence is reported as
// an error wrapping ErrNotFound. Retired (tombstoned) commissions are
// excluded - they no longer hold the (policy, agent) slot.
type CommissionLookup interface {
	CommissionByPolicyAndAgent(ctx context.Context, policyID PolicyID, agentID AgentID) (*Commission, error)
}

// PaymentLookup resolves existing payments for the payment creation
// workflow's duplicate and reference-collision checks.
type PaymentLookup interface {
	PaymentByCommission(ctx context.Context, commissionID CommissionID) (*Payment, error)
	PaymentByReference(ctx context.Context, reference string) (*Payment, error)
}

// =============================================================================
// BULK SELECTIONS - Batch reconciler collaborators
// =============================================================================

// ReconcilerSource supplies the status+date selections the batch
// operations scan. Every method is a plain read; selections must exclude
// RETIRED records.
type ReconcilerSource interface {
	// PendingCommissionsDue returns PENDING commissions whose calculation
	// date is on or before asOf.
	PendingCommissionsDue(ctx context.Context, asOf Date) ([]Commission, error)

	// ApprovedCommissionsUnpaid returns APPROVED commissions that have no
	// payment date yet.
	ApprovedCommissionsUnpaid(ctx context.Context) ([]Commission, error)

	// ExpiredPendingCommissions returns PENDING commissions whose expiry
	// date is set and on or before asOf.
	ExpiredPendingCommissions(ctx context.Context, asOf Date) ([]Commission, error)

	// PoliciesExpiredBy returns policies whose expiration date is on or
	// before asOf and whose status is not yet EXPIRED.
	PoliciesExpiredBy(ctx context.Context, asOf Date) ([]Policy, error)

	// PoliciesDueForRenewal returns policies whose renewal date falls on
	// or before the given horizon.
	PoliciesDueForRenewal(ctx context.Context, horizon Date) ([]Policy, error)

	// PaymentsInStatusBefore returns payments in the given status whose
	// payment date is on or before the cutoff.
	PaymentsInStatusBefore(ctx context.Context, status PaymentStatus, cutoff Date) ([]Payment, error)
}
