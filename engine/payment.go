/*
payment.go - Payment lifecycle and creation workflow

PURPOSE:
  Records the disbursement of settled commissions. A commission must have
  reached PAID in its own lifecycle before a payment can be created for
  it ("approved for disbursement, now disburse it"), at most one payment
  exists per commission, and the amounts must match to the cent.

OPTIMISTIC LOCKING:
  Payments carry a version counter. Every update and status transition
  must present the version the caller last read; a mismatch fails with
  StaleVersionError and leaves the stored record untouched. This is the
  one concurrency guarantee the engine provides without storage help.

REFERENCES:
  Payment references follow "PAY-{year}-{6-digit sequence}". The sequence
  source is injectable so tests stay deterministic; the default derives
  from the clock.

SIDE EFFECTS ON TRANSITION:
  COMPLETED: processed date = today, transaction id generated when absent
  CANCELLED: processed date = today

SEE ALSO:
  - transitions.go: The payment transition table
*/
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReferenceSequence yields the numeric part of generated payment
// references.
type ReferenceSequence func() int64

func clockSequence() int64 {
	return time.Now().UnixMilli() % 1000000
}

// PaymentLifecycle drives payments from creation to completion.
type PaymentLifecycle struct {
	Payments PaymentLookup
	Sequence ReferenceSequence
}

func NewPaymentLifecycle(lookup PaymentLookup) *PaymentLifecycle {
	return &PaymentLifecycle{Payments: lookup, Sequence: clockSequence}
}

// CreatePaymentRequest carries the caller-supplied payment fields.
type CreatePaymentRequest struct {
	Amount      decimal.Decimal
	Method      PaymentMethod
	Reference   string // optional; generated when empty
	PaymentDate Date   // optional; defaults to today
	BankAccount string
	BankName    string
	Notes       string
}

// Create runs the payment creation workflow against an already-loaded
// commission and agent. The returned payment is NOT persisted; the caller
// saves it, and storage enforces the one-payment-per-commission and
// unique-reference invariants as the real guarantee.
func (pl *PaymentLifecycle) Create(ctx context.Context, commission Commission, agent Agent, req CreatePaymentRequest, today Date) (*Payment, error) {
	existing, err := pl.Payments.PaymentByCommission(ctx, commission.ID)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, &DuplicatePaymentError{CommissionID: commission.ID, Existing: existing.ID}
	}

	if commission.Status != CommissionPaid {
		return nil, ErrCommissionNotSettled
	}

	reference := req.Reference
	if reference == "" {
		reference = pl.GenerateReference(today)
	} else {
		collision, err := pl.Payments.PaymentByReference(ctx, reference)
		if err != nil && !IsNotFound(err) {
			return nil, err
		}
		if collision != nil {
			return nil, &DuplicateReferenceError{Reference: reference}
		}
	}

	if !req.Amount.Equal(commission.Amount) {
		return nil, &AmountMismatchError{
			PaymentAmount:    req.Amount.StringFixed(2),
			CommissionAmount: commission.Amount.StringFixed(2),
		}
	}

	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = today
	}

	return &Payment{
		ID:           PaymentID(uuid.NewString()),
		CommissionID: commission.ID,
		AgentID:      agent.ID,
		Amount:       req.Amount,
		Method:       req.Method,
		Status:       PaymentPending,
		Reference:    reference,
		PaymentDate:  paymentDate,
		BankAccount:  req.BankAccount,
		BankName:     req.BankName,
		Notes:        req.Notes,
		Version:      1,
	}, nil
}

// TransitionStatus moves a payment to the target status. callerVersion
// must equal the stored version or the transition fails before the table
// is even consulted. On success the version is bumped; the caller commits
// the returned record with a compare-and-set on the old version.
func (pl *PaymentLifecycle) TransitionStatus(payment Payment, target PaymentStatus, callerVersion int64, today Date) (Payment, error) {
	if callerVersion != payment.Version {
		return payment, &StaleVersionError{PaymentID: payment.ID, Given: callerVersion, Stored: payment.Version}
	}
	if err := CheckPaymentTransition(payment.Status, target); err != nil {
		return payment, err
	}

	switch target {
	case PaymentCompleted:
		payment.ProcessedDate = today
		if payment.TransactionID == "" {
			payment.TransactionID = GenerateTransactionID()
		}
	case PaymentCancelled:
		payment.ProcessedDate = today
	}

	payment.Status = target
	payment.Version++
	return payment, nil
}

// UpdatePaymentRequest carries the mutable payment details. Commission,
// agent, and reference are immutable after creation; status changes go
// through TransitionStatus.
type UpdatePaymentRequest struct {
	Method      *PaymentMethod
	PaymentDate *Date
	BankAccount *string
	BankName    *string
	Notes       *string
}

// Update applies detail changes under the optimistic-lock contract.
func (pl *PaymentLifecycle) Update(payment Payment, req UpdatePaymentRequest, callerVersion int64) (Payment, error) {
	if callerVersion != payment.Version {
		return payment, &StaleVersionError{PaymentID: payment.ID, Given: callerVersion, Stored: payment.Version}
	}

	if req.Method != nil {
		payment.Method = *req.Method
	}
	if req.PaymentDate != nil {
		payment.PaymentDate = *req.PaymentDate
	}
	if req.BankAccount != nil {
		payment.BankAccount = *req.BankAccount
	}
	if req.BankName != nil {
		payment.BankName = *req.BankName
	}
	if req.Notes != nil {
		payment.Notes = *req.Notes
	}

	payment.Version++
	return payment, nil
}

// GenerateReference builds a "PAY-{year}-{6-digit}" reference.
func (pl *PaymentLifecycle) GenerateReference(today Date) string {
	seq := pl.Sequence
	if seq == nil {
		seq = clockSequence
	}
	return fmt.Sprintf("PAY-%d-%06d", today.Year(), seq()%1000000)
}

// GenerateTransactionID builds a "TXN-{8 hex}" bank transaction id.
func GenerateTransactionID() string {
	return "TXN-" + strings.ToUpper(uuid.NewString()[:8])
}
