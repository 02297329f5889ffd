package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/commission-engine/engine"
	"github.com/ledgerline/commission-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedPolicy(id engine.PolicyID, number string) engine.Policy {
	return engine.Policy{
		ID:             id,
		PolicyNumber:   number,
		PolicyType:     "AUTO",
		Status:         engine.PolicyActive,
		AgentID:        "agent-1",
		Premium:        engine.MustDecimal("1000.00"),
		EffectiveDate:  engine.NewDate(2025, time.January, 1),
		ExpirationDate: engine.NewDate(2025, time.December, 31),
	}
}

func seedCommission(id engine.CommissionID, policyID engine.PolicyID) engine.Commission {
	return engine.Commission{
		ID:              id,
		PolicyID:        policyID,
		AgentID:         "agent-1",
		PremiumAmount:   engine.MustDecimal("1000.00"),
		Amount:          engine.MustDecimal("150.00"),
		Rate:            engine.MustDecimal("0.1500"),
		Type:            engine.CommissionPercentage,
		Status:          engine.CommissionPending,
		CalculationDate: engine.NewDate(2025, time.June, 15),
		EffectiveDate:   engine.NewDate(2025, time.June, 15),
	}
}

func seedPayment(id engine.PaymentID, commissionID engine.CommissionID, reference string) engine.Payment {
	return engine.Payment{
		ID:           id,
		CommissionID: commissionID,
		AgentID:      "agent-1",
		Amount:       engine.MustDecimal("150.00"),
		Method:       engine.MethodBankTransfer,
		Status:       engine.PaymentPending,
		Reference:    reference,
		PaymentDate:  engine.NewDate(2025, time.July, 1),
		Version:      1,
	}
}

func TestSQLite_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	policy := seedPolicy("p1", "POL-2025-0001")
	require.NoError(t, store.SavePolicy(ctx, policy))

	loaded, err := store.PolicyByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, policy.PolicyNumber, loaded.PolicyNumber)
	assert.True(t, loaded.Premium.Equal(policy.Premium), "premium survives the TEXT round trip")
	assert.Equal(t, policy.EffectiveDate, loaded.EffectiveDate)
	assert.Equal(t, policy.ExpirationDate, loaded.ExpirationDate)
	assert.True(t, loaded.RenewalDate.IsZero(), "unset dates stay unset")
}

func TestSQLite_PolicyNumberUnique(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SavePolicy(ctx, seedPolicy("p1", "POL-1")))

	err := store.SavePolicy(ctx, seedPolicy("p2", "POL-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrDuplicate)
}

func TestSQLite_CommissionPairUniqueUntilRetired(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := seedCommission("c1", "p1")
	require.NoError(t, store.CreateCommission(ctx, first))

	err := store.CreateCommission(ctx, seedCommission("c2", "p1"))
	require.Error(t, err)
	var dup *engine.DuplicateCommissionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, engine.CommissionID("c1"), dup.Existing)

	// retiring the first frees the slot
	first.Status = engine.CommissionRetired
	require.NoError(t, store.SaveCommission(ctx, first))
	require.NoError(t, store.CreateCommission(ctx, seedCommission("c3", "p1")))

	// and the pair lookup skips the tombstone
	live, err := store.CommissionByPolicyAndAgent(ctx, "p1", "agent-1")
	require.NoError(t, err)
	assert.Equal(t, engine.CommissionID("c3"), live.ID)
}

func TestSQLite_PaymentReferenceUnique(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreatePayment(ctx, seedPayment("pay1", "c1", "PAY-2025-000001")))

	err := store.CreatePayment(ctx, seedPayment("pay2", "c2", "PAY-2025-000001"))
	require.Error(t, err)
	var dup *engine.DuplicateReferenceError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "PAY-2025-000001", dup.Reference)
}

func TestSQLite_OnePaymentPerCommission(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreatePayment(ctx, seedPayment("pay1", "c1", "PAY-2025-000001")))

	err := store.CreatePayment(ctx, seedPayment("pay2", "c1", "PAY-2025-000002"))
	require.Error(t, err)
	var dup *engine.DuplicatePaymentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, engine.PaymentID("pay1"), dup.Existing)
}

func TestSQLite_UpdatePaymentCAS(t *testing.T) {
	// GIVEN: a stored payment at version 1
	// WHEN:  two writers race with the same read version
	// THEN:  the second write fails with StaleVersionError and the first
	//        writer's state is preserved

	store := newStore(t)
	ctx := context.Background()

	payment := seedPayment("pay1", "c1", "PAY-2025-000001")
	require.NoError(t, store.CreatePayment(ctx, payment))

	winner := payment
	winner.Status = engine.PaymentProcessing
	winner.Version = 2
	require.NoError(t, store.UpdatePayment(ctx, winner, 1))

	loser := payment
	loser.Status = engine.PaymentCancelled
	loser.Version = 2
	err := store.UpdatePayment(ctx, loser, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrStaleVersion)

	stored, err := store.PaymentByID(ctx, "pay1")
	require.NoError(t, err)
	assert.Equal(t, engine.PaymentProcessing, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestSQLite_ReconcilerSelections(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	asOf := engine.NewDate(2025, time.July, 10)

	due := seedCommission("due", "p1")
	require.NoError(t, store.CreateCommission(ctx, due))

	future := seedCommission("future", "p2")
	future.CalculationDate = engine.NewDate(2025, time.August, 1)
	require.NoError(t, store.CreateCommission(ctx, future))

	pending, err := store.PendingCommissionsDue(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, engine.CommissionID("due"), pending[0].ID)

	approved := seedCommission("approved", "p3")
	approved.Status = engine.CommissionApproved
	require.NoError(t, store.CreateCommission(ctx, approved))

	unpaid, err := store.ApprovedCommissionsUnpaid(ctx)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, engine.CommissionID("approved"), unpaid[0].ID)

	// policies past their end date, excluding already-expired ones
	past := seedPolicy("pp1", "POL-PAST")
	past.ExpirationDate = engine.NewDate(2025, time.June, 30)
	require.NoError(t, store.SavePolicy(ctx, past))

	alreadyExpired := seedPolicy("pp2", "POL-DONE")
	alreadyExpired.Status = engine.PolicyExpired
	alreadyExpired.ExpirationDate = engine.NewDate(2025, time.June, 30)
	require.NoError(t, store.SavePolicy(ctx, alreadyExpired))

	expired, err := store.PoliciesExpiredBy(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, engine.PolicyID("pp1"), expired[0].ID)

	// payments stuck in a status by cutoff
	stuck := seedPayment("stuck", "c9", "PAY-2025-000009")
	stuck.Status = engine.PaymentProcessing
	stuck.PaymentDate = engine.NewDate(2025, time.July, 8)
	require.NoError(t, store.CreatePayment(ctx, stuck))

	inStatus, err := store.PaymentsInStatusBefore(ctx, engine.PaymentProcessing, engine.NewDate(2025, time.July, 9))
	require.NoError(t, err)
	require.Len(t, inStatus, 1)
	assert.Equal(t, engine.PaymentID("stuck"), inStatus[0].ID)
}

func TestSQLite_SweepRunRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	completed := started.Add(2 * time.Second)
	run := sqlite.SweepRun{
		ID:                  "run-1",
		RunDate:             engine.NewDate(2025, time.July, 10),
		CommissionsApproved: 3,
		PoliciesExpired:     1,
		StartedAt:           &started,
		CompletedAt:         &completed,
	}
	require.NoError(t, store.SaveSweepRun(ctx, run))

	runs, err := store.ListSweepRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, 3, runs[0].CommissionsApproved)
	assert.Equal(t, engine.NewDate(2025, time.July, 10), runs[0].RunDate)
}
