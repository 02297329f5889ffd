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

func testAgent() engine.Agent {
	return engine.Agent{
		ID:        "agent-1",
		AgentCode: "AGT-001",
		FirstName: "Dana",
		LastName:  "Reyes",
		Email:     "dana.reyes@example.com",
		Status:    engine.AgentActive,
		HireDate:  date(2020, time.January, 6),
	}
}

func testPolicy() engine.Policy {
	return engine.Policy{
		ID:             "policy-1",
		PolicyNumber:   "POL-2025-0001",
		PolicyType:     "AUTO",
		Status:         engine.PolicyActive,
		AgentID:        "agent-1",
		Premium:        dec("1000.00"),
		EffectiveDate:  date(2025, time.January, 1),
		ExpirationDate: date(2025, time.December, 31),
	}
}

func newCommissionLifecycle(t *testing.T) (*engine.CommissionLifecycle, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return engine.NewCommissionLifecycle(newCalculator(), mem), mem
}

// =============================================================================
// CREATION
// =============================================================================

func TestCalculateAndCreate_Success(t *testing.T) {
	// GIVEN: an active policy inside its validity window
	// WHEN:  a percentage commission is calculated
	// THEN:  a PENDING commission with snapshotted premium and amount

	lifecycle, _ := newCommissionLifecycle(t)
	today := date(2025, time.June, 15)

	commission, err := lifecycle.CalculateAndCreate(context.Background(), testPolicy(), testAgent(), engine.CommissionPercentage, nil, today)
	require.NoError(t, err)

	assert.NotEmpty(t, commission.ID)
	assert.Equal(t, engine.CommissionPending, commission.Status)
	assert.True(t, commission.Amount.Equal(dec("150.00")), "amount = %s", commission.Amount)
	assert.True(t, commission.PremiumAmount.Equal(dec("1000.00")), "premium snapshot = %s", commission.PremiumAmount)
	assert.True(t, commission.Rate.Equal(dec("0.1500")), "rate = %s", commission.Rate)
	assert.Equal(t, today, commission.CalculationDate)
	assert.Equal(t, today, commission.EffectiveDate)
}

func TestCalculateAndCreate_DuplicatePair(t *testing.T) {
	// A second commission for the same (policy, agent) is rejected even
	// when the first one is already cancelled - only RETIRED frees the slot.

	lifecycle, mem := newCommissionLifecycle(t)
	ctx := context.Background()
	today := date(2025, time.June, 15)

	first, err := lifecycle.CalculateAndCreate(ctx, testPolicy(), testAgent(), engine.CommissionPercentage, nil, today)
	require.NoError(t, err)
	require.NoError(t, mem.CreateCommission(ctx, *first))

	cancelled, err := lifecycle.TransitionStatus(*first, engine.CommissionCancelled, today)
	require.NoError(t, err)
	require.NoError(t, mem.SaveCommission(ctx, cancelled))

	_, err = lifecycle.CalculateAndCreate(ctx, testPolicy(), testAgent(), engine.CommissionTiered, nil, today)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrDuplicate)

	var dup *engine.DuplicateCommissionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.Existing)
}

func TestCalculateAndCreate_RetiredFreesTheSlot(t *testing.T) {
	lifecycle, mem := newCommissionLifecycle(t)
	ctx := context.Background()
	today := date(2025, time.June, 15)

	first, err := lifecycle.CalculateAndCreate(ctx, testPolicy(), testAgent(), engine.CommissionPercentage, nil, today)
	require.NoError(t, err)
	require.NoError(t, mem.CreateCommission(ctx, *first))

	retired, err := lifecycle.TransitionStatus(*first, engine.CommissionRetired, today)
	require.NoError(t, err)
	require.NoError(t, mem.SaveCommission(ctx, retired))

	second, err := lifecycle.CalculateAndCreate(ctx, testPolicy(), testAgent(), engine.CommissionPercentage, nil, today)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCalculateAndCreate_OutsideWindow(t *testing.T) {
	lifecycle, _ := newCommissionLifecycle(t)

	cases := []struct {
		name  string
		today engine.Date
	}{
		{"before effective", date(2024, time.December, 31)},
		{"after expiration", date(2026, time.January, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := lifecycle.CalculateAndCreate(context.Background(), testPolicy(), testAgent(), engine.CommissionPercentage, nil, tc.today)
			assert.ErrorIs(t, err, engine.ErrOutsideWindow)
		})
	}
}

func TestCalculateAndCreate_WindowBoundariesInclusive(t *testing.T) {
	lifecycle, mem := newCommissionLifecycle(t)
	ctx := context.Background()

	onEffective, err := lifecycle.CalculateAndCreate(ctx, testPolicy(), testAgent(), engine.CommissionPercentage, nil, date(2025, time.January, 1))
	require.NoError(t, err)
	require.NoError(t, mem.CreateCommission(ctx, *onEffective))

	other := testPolicy()
	other.ID = "policy-2"
	other.PolicyNumber = "POL-2025-0002"
	_, err = lifecycle.CalculateAndCreate(ctx, other, testAgent(), engine.CommissionPercentage, nil, date(2025, time.December, 31))
	require.NoError(t, err)
}

func TestCalculateAndCreate_InvalidInputs(t *testing.T) {
	lifecycle, _ := newCommissionLifecycle(t)
	ctx := context.Background()
	today := date(2025, time.June, 15)

	zeroPremium := testPolicy()
	zeroPremium.Premium = dec("0")
	_, err := lifecycle.CalculateAndCreate(ctx, zeroPremium, testAgent(), engine.CommissionPercentage, nil, today)
	assert.ErrorIs(t, err, engine.ErrValidation)

	_, err = lifecycle.CalculateAndCreate(ctx, testPolicy(), testAgent(), "", nil, today)
	assert.ErrorIs(t, err, engine.ErrValidation)

	_, err = lifecycle.CalculateAndCreate(ctx, testPolicy(), testAgent(), engine.CommissionPercentage, decPtr("1.5"), today)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestCommissionTransition_PaidStampsPaymentDate(t *testing.T) {
	lifecycle, _ := newCommissionLifecycle(t)
	today := date(2025, time.July, 1)

	commission := engine.Commission{ID: "c-1", Status: engine.CommissionApproved, Amount: dec("150.00")}
	paid, err := lifecycle.TransitionStatus(commission, engine.CommissionPaid, today)
	require.NoError(t, err)

	assert.Equal(t, engine.CommissionPaid, paid.Status)
	assert.Equal(t, today, paid.PaymentDate)
}

func TestCommissionTransition_CancelledStampsExpiryWhenUnset(t *testing.T) {
	lifecycle, _ := newCommissionLifecycle(t)
	today := date(2025, time.July, 1)

	commission := engine.Commission{ID: "c-1", Status: engine.CommissionPending}
	cancelled, err := lifecycle.TransitionStatus(commission, engine.CommissionCancelled, today)
	require.NoError(t, err)
	assert.Equal(t, today, cancelled.ExpiryDate)

	// an already-set expiry date is preserved
	preset := engine.Commission{ID: "c-2", Status: engine.CommissionPending, ExpiryDate: date(2025, time.March, 1)}
	cancelled, err = lifecycle.TransitionStatus(preset, engine.CommissionCancelled, today)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 1), cancelled.ExpiryDate)
}

func TestCommissionTransition_IllegalLeavesRecordUntouched(t *testing.T) {
	lifecycle, _ := newCommissionLifecycle(t)

	commission := engine.Commission{ID: "c-1", Status: engine.CommissionPending}
	out, err := lifecycle.TransitionStatus(commission, engine.CommissionPaid, date(2025, time.July, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
	assert.Equal(t, commission, out, "failed transition must return the input unchanged")
}
