package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/commission-engine/engine"
	"github.com/ledgerline/commission-engine/engine/store"
)

func newReconciler(t *testing.T) (*engine.Reconciler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	payments := engine.NewPaymentLifecycle(mem)
	payments.Sequence = func() int64 { return 42 }
	commissions := engine.NewCommissionLifecycle(newCalculator(), mem)
	return engine.NewReconciler(mem, commissions, payments, engine.DefaultConfig().Reconciler), mem
}

// persistCommissionRun saves a run's mutated records the way the scheduler
// does, so follow-up selections see the new statuses.
func persistCommissionRun(t *testing.T, mem *store.Memory, run *engine.CommissionRun) {
	t.Helper()
	for _, c := range run.Updated {
		require.NoError(t, mem.SaveCommission(context.Background(), c))
	}
}

func persistPaymentRun(t *testing.T, mem *store.Memory, run *engine.PaymentRun) {
	t.Helper()
	for _, p := range run.Updated {
		require.NoError(t, mem.UpdatePayment(context.Background(), p, p.Version-1))
	}
}

func seedCommission(t *testing.T, mem *store.Memory, c engine.Commission) {
	t.Helper()
	require.NoError(t, mem.CreateCommission(context.Background(), c))
}

func seedPayment(t *testing.T, mem *store.Memory, p engine.Payment) {
	t.Helper()
	require.NoError(t, mem.CreatePayment(context.Background(), p))
}

// =============================================================================
// COMMISSION BATCHES
// =============================================================================

func TestProcessPendingCommissions_ApprovesBelowLimit(t *testing.T) {
	// GIVEN: two due pending commissions, one under and one over the
	//        1000.00 auto-approval limit
	// WHEN:  the pending batch runs
	// THEN:  only the small one is approved; the large one stays for review

	reconciler, mem := newReconciler(t)
	today := date(2025, time.July, 10)

	seedCommission(t, mem, engine.Commission{
		ID: "small", PolicyID: "p1", AgentID: "a1",
		Amount: dec("150.00"), Status: engine.CommissionPending,
		CalculationDate: date(2025, time.July, 1),
	})
	seedCommission(t, mem, engine.Commission{
		ID: "large", PolicyID: "p2", AgentID: "a1",
		Amount: dec("2500.00"), Status: engine.CommissionPending,
		CalculationDate: date(2025, time.July, 1),
	})

	run, err := reconciler.ProcessPendingCommissions(context.Background(), today)
	require.NoError(t, err)

	assert.Equal(t, 2, run.Scanned)
	require.Len(t, run.Updated, 1)
	assert.Equal(t, engine.CommissionID("small"), run.Updated[0].ID)
	assert.Equal(t, engine.CommissionApproved, run.Updated[0].Status)
	assert.Empty(t, run.Skipped)
}

func TestProcessPendingCommissions_LimitIsExclusive(t *testing.T) {
	// exactly 1000.00 is NOT below the limit
	reconciler, mem := newReconciler(t)
	seedCommission(t, mem, engine.Commission{
		ID: "at-limit", PolicyID: "p1", AgentID: "a1",
		Amount: dec("1000.00"), Status: engine.CommissionPending,
		CalculationDate: date(2025, time.July, 1),
	})

	run, err := reconciler.ProcessPendingCommissions(context.Background(), date(2025, time.July, 10))
	require.NoError(t, err)
	assert.Empty(t, run.Updated)
}

func TestProcessPendingCommissions_SkipsNotYetDue(t *testing.T) {
	reconciler, mem := newReconciler(t)
	seedCommission(t, mem, engine.Commission{
		ID: "future", PolicyID: "p1", AgentID: "a1",
		Amount: dec("150.00"), Status: engine.CommissionPending,
		CalculationDate: date(2025, time.August, 1),
	})

	run, err := reconciler.ProcessPendingCommissions(context.Background(), date(2025, time.July, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, run.Scanned, "future calculation dates are not selected")
}

func TestProcessApprovedForPayment(t *testing.T) {
	// auto-pay fires once the commission is AutoPayAfterDays old
	reconciler, mem := newReconciler(t)
	today := date(2025, time.July, 10)

	seedCommission(t, mem, engine.Commission{
		ID: "ripe", PolicyID: "p1", AgentID: "a1",
		Amount: dec("150.00"), Status: engine.CommissionApproved,
		CalculationDate: date(2025, time.July, 3), // exactly 7 days old
	})
	seedCommission(t, mem, engine.Commission{
		ID: "fresh", PolicyID: "p2", AgentID: "a1",
		Amount: dec("150.00"), Status: engine.CommissionApproved,
		CalculationDate: date(2025, time.July, 4), // 6 days old
	})

	run, err := reconciler.ProcessApprovedForPayment(context.Background(), today)
	require.NoError(t, err)

	assert.Equal(t, 2, run.Scanned)
	require.Len(t, run.Updated, 1)
	paid := run.Updated[0]
	assert.Equal(t, engine.CommissionID("ripe"), paid.ID)
	assert.Equal(t, engine.CommissionPaid, paid.Status)
	assert.Equal(t, today, paid.PaymentDate)
	assert.Equal(t, "PAY-2025-000042", paid.PaymentReference)
}

func TestProcessExpiredCommissions_Forfeits(t *testing.T) {
	reconciler, mem := newReconciler(t)
	today := date(2025, time.July, 10)

	seedCommission(t, mem, engine.Commission{
		ID: "expired", PolicyID: "p1", AgentID: "a1",
		Amount: dec("150.00"), Status: engine.CommissionPending,
		CalculationDate: date(2025, time.June, 1),
		ExpiryDate:      date(2025, time.July, 1),
	})
	seedCommission(t, mem, engine.Commission{
		ID: "no-expiry", PolicyID: "p2", AgentID: "a1",
		Amount: dec("150.00"), Status: engine.CommissionPending,
		CalculationDate: date(2025, time.June, 1),
	})

	run, err := reconciler.ProcessExpiredCommissions(context.Background(), today)
	require.NoError(t, err)

	require.Len(t, run.Updated, 1)
	assert.Equal(t, engine.CommissionID("expired"), run.Updated[0].ID)
	assert.Equal(t, engine.CommissionForfeited, run.Updated[0].Status)
}

// =============================================================================
// POLICY BATCHES
// =============================================================================

func TestProcessExpiredPolicies(t *testing.T) {
	reconciler, mem := newReconciler(t)
	ctx := context.Background()
	today := date(2025, time.July, 10)

	past := testPolicy()
	past.ExpirationDate = date(2025, time.June, 30)
	require.NoError(t, mem.SavePolicy(ctx, past))

	current := testPolicy()
	current.ID = "policy-2"
	current.PolicyNumber = "POL-2025-0002"
	require.NoError(t, mem.SavePolicy(ctx, current))

	run, err := reconciler.ProcessExpiredPolicies(ctx, today)
	require.NoError(t, err)

	require.Len(t, run.Updated, 1)
	expired := run.Updated[0]
	assert.Equal(t, past.ID, expired.ID)
	assert.Equal(t, engine.PolicyExpired, expired.Status)
	assert.Equal(t, date(2025, time.June, 30), expired.ExpirationDate, "historical end date preserved")
}

func TestPoliciesDueForRenewal_ReportOnly(t *testing.T) {
	reconciler, mem := newReconciler(t)
	ctx := context.Background()
	today := date(2025, time.July, 10)

	due := testPolicy()
	due.RenewalDate = date(2025, time.August, 1) // within the 30-day notice window
	require.NoError(t, mem.SavePolicy(ctx, due))

	far := testPolicy()
	far.ID = "policy-2"
	far.PolicyNumber = "POL-2025-0002"
	far.RenewalDate = date(2025, time.October, 1)
	require.NoError(t, mem.SavePolicy(ctx, far))

	renewals, err := reconciler.PoliciesDueForRenewal(ctx, today)
	require.NoError(t, err)
	require.Len(t, renewals, 1)
	assert.Equal(t, due.ID, renewals[0].ID)

	// nothing transitioned
	stored, err := mem.PolicyByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.PolicyActive, stored.Status)
}

// =============================================================================
// PAYMENT BATCHES
// =============================================================================

func TestProcessPendingPayments_RequiresBankDetails(t *testing.T) {
	reconciler, mem := newReconciler(t)
	today := date(2025, time.July, 10)

	complete := pendingPayment()
	complete.BankAccount = "DE89370400440532013000"
	complete.BankName = "First National"
	seedPayment(t, mem, complete)

	incomplete := pendingPayment()
	incomplete.ID = "pay-2"
	incomplete.CommissionID = "comm-2"
	incomplete.Reference = "PAY-2025-000043"
	seedPayment(t, mem, incomplete)

	run, err := reconciler.ProcessPendingPayments(context.Background(), today)
	require.NoError(t, err)

	assert.Equal(t, 2, run.Scanned)
	require.Len(t, run.Updated, 1)
	assert.Equal(t, complete.ID, run.Updated[0].ID)
	assert.Equal(t, engine.PaymentProcessing, run.Updated[0].Status)
	assert.Equal(t, int64(2), run.Updated[0].Version)
}

func TestProcessStuckPayments(t *testing.T) {
	// payments in PROCESSING with a payment date on or before
	// today - StuckPaymentAgeDays are failed with an explanatory note
	reconciler, mem := newReconciler(t)
	today := date(2025, time.July, 10)

	stuck := pendingPayment()
	stuck.Status = engine.PaymentProcessing
	stuck.PaymentDate = date(2025, time.July, 9)
	seedPayment(t, mem, stuck)

	recent := pendingPayment()
	recent.ID = "pay-2"
	recent.CommissionID = "comm-2"
	recent.Reference = "PAY-2025-000043"
	recent.Status = engine.PaymentProcessing
	recent.PaymentDate = today
	seedPayment(t, mem, recent)

	run, err := reconciler.ProcessStuckPayments(context.Background(), today)
	require.NoError(t, err)

	require.Len(t, run.Updated, 1)
	failed := run.Updated[0]
	assert.Equal(t, stuck.ID, failed.ID)
	assert.Equal(t, engine.PaymentFailed, failed.Status)
	assert.Equal(t, "payment processing timeout - marked as failed", failed.Notes)
}

func TestRetryFailedPayments_CeilingAndAge(t *testing.T) {
	reconciler, mem := newReconciler(t)
	today := date(2025, time.July, 10)

	old := pendingPayment()
	old.Status = engine.PaymentFailed
	old.PaymentDate = date(2025, time.July, 1) // 9 days old, retry window is 7
	seedPayment(t, mem, old)

	huge := pendingPayment()
	huge.ID = "pay-2"
	huge.CommissionID = "comm-2"
	huge.Reference = "PAY-2025-000043"
	huge.Status = engine.PaymentFailed
	huge.PaymentDate = date(2025, time.July, 1)
	huge.Amount = dec("10000.00") // at the ceiling: not retried
	seedPayment(t, mem, huge)

	run, err := reconciler.RetryFailedPayments(context.Background(), today)
	require.NoError(t, err)

	assert.Equal(t, 2, run.Scanned)
	require.Len(t, run.Updated, 1)
	retried := run.Updated[0]
	assert.Equal(t, old.ID, retried.ID)
	assert.Equal(t, engine.PaymentPending, retried.Status)
	assert.Equal(t, "retrying failed payment", retried.Notes)
}

// =============================================================================
// IDEMPOTENCY AND FULL SWEEP
// =============================================================================

func TestReconciler_SecondRunIsNoOp(t *testing.T) {
	reconciler, mem := newReconciler(t)
	ctx := context.Background()
	today := date(2025, time.July, 10)

	seedCommission(t, mem, engine.Commission{
		ID: "c1", PolicyID: "p1", AgentID: "a1",
		Amount: dec("150.00"), Status: engine.CommissionPending,
		CalculationDate: date(2025, time.July, 1),
	})

	first, err := reconciler.ProcessPendingCommissions(ctx, today)
	require.NoError(t, err)
	require.Len(t, first.Updated, 1)
	persistCommissionRun(t, mem, first)

	second, err := reconciler.ProcessPendingCommissions(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Scanned, "approved records leave the selection")
	assert.Empty(t, second.Updated)
}

func TestSweep_RunsEveryOperation(t *testing.T) {
	reconciler, mem := newReconciler(t)
	ctx := context.Background()
	today := date(2025, time.July, 10)

	seedCommission(t, mem, engine.Commission{
		ID: "c1", PolicyID: "p1", AgentID: "a1",
		Amount: dec("150.00"), Status: engine.CommissionPending,
		CalculationDate: date(2025, time.July, 1),
	})
	policy := testPolicy()
	policy.ExpirationDate = date(2025, time.June, 30)
	require.NoError(t, mem.SavePolicy(ctx, policy))

	result, err := reconciler.Sweep(ctx, today)
	require.NoError(t, err)

	require.NotNil(t, result.PendingCommissions)
	require.NotNil(t, result.ApprovedForPayment)
	require.NotNil(t, result.ExpiredCommissions)
	require.NotNil(t, result.ExpiredPolicies)
	require.NotNil(t, result.PendingPayments)
	require.NotNil(t, result.StuckPayments)
	require.NotNil(t, result.RetriedPayments)

	assert.Len(t, result.PendingCommissions.Updated, 1)
	assert.Len(t, result.ExpiredPolicies.Updated, 1)
}

func TestReconcilerRun_PersistedPaymentsSurviveCAS(t *testing.T) {
	// the scheduler persists payment runs with a compare-and-set on the
	// pre-transition version; a clean run must never be stale
	reconciler, mem := newReconciler(t)
	today := date(2025, time.July, 10)

	payment := pendingPayment()
	payment.BankAccount = "DE89370400440532013000"
	payment.BankName = "First National"
	seedPayment(t, mem, payment)

	run, err := reconciler.ProcessPendingPayments(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, run.Updated, 1)

	persistPaymentRun(t, mem, run)

	stored, err := mem.PaymentByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.PaymentProcessing, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}
