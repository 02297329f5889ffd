/*
reconciler.go - Batch reconciliation operations

PURPOSE:
  Scans records by status and date and pushes them through their
  lifecycles in bulk: auto-approve pending commissions, auto-pay approved
  ones, forfeit expired ones, expire policies, fail stuck payments, retry
  eligible failed payments.

CONTRACT:
  - Every operation takes "today" explicitly; the reconciler never reads
    a wall clock, so repeated runs with the same inputs are deterministic.
  - Selections come from the ReconcilerSource collaborator; the mutated
    records are returned in the run report for the CALLER to persist.
  - A per-record error means "skip this record, continue the batch,
    report it" - a single bad record never aborts the run.
  - Idempotent: a record transitioned out of the target status is simply
    absent from the next selection.

SEE ALSO:
  - store.go:  ReconcilerSource selection queries
  - config.go: Thresholds and ages
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// Reconciler drives records through their lifecycles in bulk.
type Reconciler struct {
	Source      ReconcilerSource
	Commissions *CommissionLifecycle
	Payments    *PaymentLifecycle
	Policies    PolicyLifecycle
	Config      ReconcilerConfig
}

func NewReconciler(source ReconcilerSource, commissions *CommissionLifecycle, payments *PaymentLifecycle, cfg ReconcilerConfig) *Reconciler {
	return &Reconciler{
		Source:      source,
		Commissions: commissions,
		Payments:    payments,
		Config:      cfg,
	}
}

// =============================================================================
// RUN REPORTS
// =============================================================================

// Skip records one record the batch left behind and why.
type Skip struct {
	ID     string
	Reason error
}

// CommissionRun reports one commission batch operation.
type CommissionRun struct {
	Scanned int
	Updated []Commission // mutated records, to be persisted by the caller
	Skipped []Skip
}

// PolicyRun reports one policy batch operation.
type PolicyRun struct {
	Scanned int
	Updated []Policy
	Skipped []Skip
}

// PaymentRun reports one payment batch operation.
type PaymentRun struct {
	Scanned int
	Updated []Payment
	Skipped []Skip
}

// =============================================================================
// COMMISSION OPERATIONS
// =============================================================================

// ProcessPendingCommissions auto-approves pending commissions below the
// auto-approval limit. Larger ones stay PENDING for manual review.
func (r *Reconciler) ProcessPendingCommissions(ctx context.Context, today Date) (*CommissionRun, error) {
	pending, err := r.Source.PendingCommissionsDue(ctx, today)
	if err != nil {
		return nil, err
	}

	run := &CommissionRun{Scanned: len(pending)}
	for _, commission := range pending {
		if !commission.Amount.LessThan(r.Config.AutoApproveLimit) {
			continue // above the limit: manual review
		}
		approved, err := r.Commissions.TransitionStatus(commission, CommissionApproved, today)
		if err != nil {
			run.Skipped = append(run.Skipped, Skip{ID: string(commission.ID), Reason: err})
			continue
		}
		run.Updated = append(run.Updated, approved)
	}
	return run, nil
}

// ProcessApprovedForPayment auto-pays approved commissions whose
// calculation date is at least AutoPayAfterDays old, stamping the payment
// date and a generated payment reference.
func (r *Reconciler) ProcessApprovedForPayment(ctx context.Context, today Date) (*CommissionRun, error) {
	approved, err := r.Source.ApprovedCommissionsUnpaid(ctx)
	if err != nil {
		return nil, err
	}

	run := &CommissionRun{Scanned: len(approved)}
	for _, commission := range approved {
		if today.Before(commission.CalculationDate.AddDays(r.Config.AutoPayAfterDays)) {
			continue // too fresh
		}
		paid, err := r.Commissions.TransitionStatus(commission, CommissionPaid, today)
		if err != nil {
			run.Skipped = append(run.Skipped, Skip{ID: string(commission.ID), Reason: err})
			continue
		}
		if paid.PaymentReference == "" {
			paid.PaymentReference = r.Payments.GenerateReference(today)
		}
		run.Updated = append(run.Updated, paid)
	}
	return run, nil
}

// ProcessExpiredCommissions forfeits pending commissions whose expiry
// date has passed.
func (r *Reconciler) ProcessExpiredCommissions(ctx context.Context, today Date) (*CommissionRun, error) {
	expired, err := r.Source.ExpiredPendingCommissions(ctx, today)
	if err != nil {
		return nil, err
	}

	run := &CommissionRun{Scanned: len(expired)}
	for _, commission := range expired {
		forfeited, err := r.Commissions.TransitionStatus(commission, CommissionForfeited, today)
		if err != nil {
			run.Skipped = append(run.Skipped, Skip{ID: string(commission.ID), Reason: err})
			continue
		}
		run.Updated = append(run.Updated, forfeited)
	}
	return run, nil
}

// =============================================================================
// POLICY OPERATIONS
// =============================================================================

// ProcessExpiredPolicies expires policies past their end date.
func (r *Reconciler) ProcessExpiredPolicies(ctx context.Context, today Date) (*PolicyRun, error) {
	policies, err := r.Source.PoliciesExpiredBy(ctx, today)
	if err != nil {
		return nil, err
	}

	run := &PolicyRun{Scanned: len(policies)}
	for _, policy := range policies {
		expired, err := r.Policies.TransitionStatus(policy, PolicyExpired, today)
		if err != nil {
			run.Skipped = append(run.Skipped, Skip{ID: string(policy.ID), Reason: err})
			continue
		}
		run.Updated = append(run.Updated, expired)
	}
	return run, nil
}

// PoliciesDueForRenewal reports policies whose renewal date falls within
// the notice window. Report-only: nothing is transitioned.
func (r *Reconciler) PoliciesDueForRenewal(ctx context.Context, today Date) ([]Policy, error) {
	return r.Source.PoliciesDueForRenewal(ctx, today.AddDays(r.Config.RenewalNoticeDays))
}

// =============================================================================
// PAYMENT OPERATIONS
// =============================================================================

const stuckPaymentNote = "payment processing timeout - marked as failed"

// ProcessStuckPayments fails payments stuck in PROCESSING longer than the
// configured age.
func (r *Reconciler) ProcessStuckPayments(ctx context.Context, today Date) (*PaymentRun, error) {
	cutoff := today.AddDays(-r.Config.StuckPaymentAgeDays)
	stuck, err := r.Source.PaymentsInStatusBefore(ctx, PaymentProcessing, cutoff)
	if err != nil {
		return nil, err
	}

	run := &PaymentRun{Scanned: len(stuck)}
	for _, payment := range stuck {
		failed, err := r.Payments.TransitionStatus(payment, PaymentFailed, payment.Version, today)
		if err != nil {
			run.Skipped = append(run.Skipped, Skip{ID: string(payment.ID), Reason: err})
			continue
		}
		failed.Notes = stuckPaymentNote
		run.Updated = append(run.Updated, failed)
	}
	return run, nil
}

// RetryFailedPayments sends old failed payments below the retry ceiling
// back to PENDING.
func (r *Reconciler) RetryFailedPayments(ctx context.Context, today Date) (*PaymentRun, error) {
	cutoff := today.AddDays(-r.Config.RetryAfterDays)
	failed, err := r.Source.PaymentsInStatusBefore(ctx, PaymentFailed, cutoff)
	if err != nil {
		return nil, err
	}

	run := &PaymentRun{Scanned: len(failed)}
	for _, payment := range failed {
		if !payment.Amount.LessThan(r.Config.RetryCeiling) {
			continue // too large to retry automatically
		}
		retried, err := r.Payments.TransitionStatus(payment, PaymentPending, payment.Version, today)
		if err != nil {
			run.Skipped = append(run.Skipped, Skip{ID: string(payment.ID), Reason: err})
			continue
		}
		retried.Notes = "retrying failed payment"
		run.Updated = append(run.Updated, retried)
	}
	return run, nil
}

// ProcessPendingPayments moves due pending payments with complete bank
// details into PROCESSING.
func (r *Reconciler) ProcessPendingPayments(ctx context.Context, today Date) (*PaymentRun, error) {
	pending, err := r.Source.PaymentsInStatusBefore(ctx, PaymentPending, today)
	if err != nil {
		return nil, err
	}

	run := &PaymentRun{Scanned: len(pending)}
	for _, payment := range pending {
		if payment.BankAccount == "" || payment.BankName == "" || !payment.Amount.GreaterThan(decimal.Zero) {
			continue // incomplete bank details: stays pending
		}
		processing, err := r.Payments.TransitionStatus(payment, PaymentProcessing, payment.Version, today)
		if err != nil {
			run.Skipped = append(run.Skipped, Skip{ID: string(payment.ID), Reason: err})
			continue
		}
		run.Updated = append(run.Updated, processing)
	}
	return run, nil
}

// =============================================================================
// FULL SWEEP
// =============================================================================

// SweepResult aggregates one full reconciliation pass.
type SweepResult struct {
	PendingCommissions *CommissionRun
	ApprovedForPayment *CommissionRun
	ExpiredCommissions *CommissionRun
	ExpiredPolicies    *PolicyRun
	PendingPayments    *PaymentRun
	StuckPayments      *PaymentRun
	RetriedPayments    *PaymentRun
	RenewalsDue        []Policy
}

// Sweep runs every batch operation once, in dependency order. Selection
// errors abort the sweep; per-record errors are reported per run.
func (r *Reconciler) Sweep(ctx context.Context, today Date) (*SweepResult, error) {
	result := &SweepResult{}
	var err error

	if result.PendingCommissions, err = r.ProcessPendingCommissions(ctx, today); err != nil {
		return nil, err
	}
	if result.ApprovedForPayment, err = r.ProcessApprovedForPayment(ctx, today); err != nil {
		return nil, err
	}
	if result.ExpiredCommissions, err = r.ProcessExpiredCommissions(ctx, today); err != nil {
		return nil, err
	}
	if result.ExpiredPolicies, err = r.ProcessExpiredPolicies(ctx, today); err != nil {
		return nil, err
	}
	if result.PendingPayments, err = r.ProcessPendingPayments(ctx, today); err != nil {
		return nil, err
	}
	if result.StuckPayments, err = r.ProcessStuckPayments(ctx, today); err != nil {
		return nil, err
	}
	if result.RetriedPayments, err = r.RetryFailedPayments(ctx, today); err != nil {
		return nil, err
	}
	if result.RenewalsDue, err = r.PoliciesDueForRenewal(ctx, today); err != nil {
		return nil, err
	}

	return result, nil
}
