/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every structured error unwraps to a sentinel so callers can classify
  with errors.Is and inspect with errors.As.

ERROR CATEGORIES:
  1. Lookup errors     - Referenced records that do not exist
  2. Validation errors - Date ordering, rate bounds, non-positive amounts
  3. Conflict errors   - Duplicates, stale versions, bad transitions

PROPAGATION POLICY:
  Every error is returned to the immediate caller. No internal retries,
  no silent recovery. Batch operations skip the failing record, continue,
  and report it in the run summary.

SEE ALSO:
  - api/handlers.go: Maps these to HTTP statuses
  - reconciler.go: Per-record skip-and-report
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced policy, agent, commission,
	// or payment does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrValidation covers cross-field rule violations: date ordering,
	// rate bounds, non-positive amounts.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate is returned when a commission or payment already exists,
	// or a payment reference collides.
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidTransition is returned for any (status, target) pair not in
	// the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOutsideWindow is returned when a commission calculation is
	// attempted outside the policy's effective/expiration window.
	ErrOutsideWindow = errors.New("calculation outside policy validity window")

	// ErrAmountMismatch is returned when a payment amount differs from the
	// commission amount by any nonzero value.
	ErrAmountMismatch = errors.New("payment amount does not match commission amount")

	// ErrCommissionNotSettled is returned when a payment is attempted
	// before the commission reaches the paid state.
	ErrCommissionNotSettled = errors.New("commission not settled")

	// ErrStaleVersion is returned when an optimistic-lock version check
	// fails. The stored record is never modified in that case.
	ErrStaleVersion = errors.New("stale version")

	// ErrUnsupportedType is returned for a commission type outside the
	// four supported kinds.
	ErrUnsupportedType = errors.New("unsupported commission type")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DateOrderError reports a policy date-ordering violation.
type DateOrderError struct {
	Field  string // "effective_date" or "renewal_date"
	Detail string
}

func (e *DateOrderError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

func (e *DateOrderError) Unwrap() error { return ErrValidation }

// InvalidInputError reports a calculation input violation.
type InvalidInputError struct {
	Field  string
	Detail string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

func (e *InvalidInputError) Unwrap() error { return ErrValidation }

// DuplicateCommissionError reports an existing commission for the same
// (policy, agent) pair, regardless of that commission's status.
type DuplicateCommissionError struct {
	PolicyID PolicyID
	AgentID  AgentID
	Existing CommissionID
}

func (e *DuplicateCommissionError) Error() string {
	return fmt.Sprintf("commission already exists for policy %s and agent %s (commission: %s)",
		e.PolicyID, e.AgentID, e.Existing)
}

func (e *DuplicateCommissionError) Unwrap() error { return ErrDuplicate }

// DuplicatePaymentError reports an existing payment for a commission.
type DuplicatePaymentError struct {
	CommissionID CommissionID
	Existing     PaymentID
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("payment already exists for commission %s (payment: %s)",
		e.CommissionID, e.Existing)
}

func (e *DuplicatePaymentError) Unwrap() error { return ErrDuplicate }

// DuplicateReferenceError reports a caller-supplied payment reference that
// collides with an existing one.
type DuplicateReferenceError struct {
	Reference string
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("payment reference already exists: %s", e.Reference)
}

func (e *DuplicateReferenceError) Unwrap() error { return ErrDuplicate }

// InvalidTransitionError names the attempted source/target pair.
type InvalidTransitionError struct {
	Entity string // "policy", "commission", "payment"
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition from %s to %s", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// AmountMismatchError carries both sides of a failed equality check.
type AmountMismatchError struct {
	PaymentAmount    string
	CommissionAmount string
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("payment amount %s must match commission amount %s",
		e.PaymentAmount, e.CommissionAmount)
}

func (e *AmountMismatchError) Unwrap() error { return ErrAmountMismatch }

// StaleVersionError reports an optimistic-lock conflict.
type StaleVersionError struct {
	PaymentID PaymentID
	Given     int64
	Stored    int64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("payment %s: version %d is stale (stored version %d)",
		e.PaymentID, e.Given, e.Stored)
}

func (e *StaleVersionError) Unwrap() error { return ErrStaleVersion }

// UnsupportedTypeError reports an unknown commission type.
type UnsupportedTypeError struct {
	Type CommissionType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported commission type: %s", e.Type)
}

func (e *UnsupportedTypeError) Unwrap() error { return ErrUnsupportedType }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrOutsideWindow) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrCommissionNotSettled) ||
		errors.Is(err, ErrUnsupportedType)
}

// IsConflict returns true for duplicate records and optimistic-lock clashes.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, ErrStaleVersion)
}
