package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/commission-engine/engine"
)

func TestNewPolicy_Valid(t *testing.T) {
	var lifecycle engine.PolicyLifecycle

	policy, err := lifecycle.NewPolicy("policy-1", "POL-2025-0001", "AUTO", "agent-1",
		dec("1200.00"), date(2025, time.January, 1), date(2025, time.December, 31), date(2026, time.January, 1))
	require.NoError(t, err)

	assert.Equal(t, engine.PolicyActive, policy.Status)
	assert.Equal(t, "POL-2025-0001", policy.PolicyNumber)
	assert.True(t, policy.Premium.Equal(dec("1200.00")))
}

func TestNewPolicy_Rejections(t *testing.T) {
	var lifecycle engine.PolicyLifecycle
	effective := date(2025, time.January, 1)
	expiration := date(2025, time.December, 31)

	cases := []struct {
		name string
		run  func() error
	}{
		{"zero premium", func() error {
			_, err := lifecycle.NewPolicy("p", "POL-1", "AUTO", "a", dec("0"), effective, expiration, engine.Date{})
			return err
		}},
		{"negative premium", func() error {
			_, err := lifecycle.NewPolicy("p", "POL-1", "AUTO", "a", dec("-10"), effective, expiration, engine.Date{})
			return err
		}},
		{"missing policy number", func() error {
			_, err := lifecycle.NewPolicy("p", "", "AUTO", "a", dec("100"), effective, expiration, engine.Date{})
			return err
		}},
		{"effective after expiration", func() error {
			_, err := lifecycle.NewPolicy("p", "POL-1", "AUTO", "a", dec("100"), expiration, effective, engine.Date{})
			return err
		}},
		{"renewal before expiration", func() error {
			_, err := lifecycle.NewPolicy("p", "POL-1", "AUTO", "a", dec("100"), effective, expiration, date(2025, time.June, 1))
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			require.Error(t, err)
			assert.ErrorIs(t, err, engine.ErrValidation)
		})
	}
}

func TestPolicyTransition_CancelledStampsDate(t *testing.T) {
	var lifecycle engine.PolicyLifecycle
	today := date(2025, time.August, 10)

	policy := engine.Policy{ID: "p", Status: engine.PolicyActive}
	cancelled, err := lifecycle.TransitionStatus(policy, engine.PolicyCancelled, today)
	require.NoError(t, err)
	assert.Equal(t, engine.PolicyCancelled, cancelled.Status)
	assert.Equal(t, today, cancelled.CancellationDate)
}

func TestPolicyTransition_ExpiredKeepsPastEndDate(t *testing.T) {
	// Batch expiry of a policy already past its end date must not rewrite
	// the historical expiration date; manual expiry of one still in force
	// stamps today.
	var lifecycle engine.PolicyLifecycle
	today := date(2025, time.August, 10)

	past := engine.Policy{ID: "p", Status: engine.PolicyActive, ExpirationDate: date(2025, time.March, 31)}
	expired, err := lifecycle.TransitionStatus(past, engine.PolicyExpired, today)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 31), expired.ExpirationDate)

	inForce := engine.Policy{ID: "p", Status: engine.PolicyActive, ExpirationDate: date(2026, time.March, 31)}
	expired, err = lifecycle.TransitionStatus(inForce, engine.PolicyExpired, today)
	require.NoError(t, err)
	assert.Equal(t, today, expired.ExpirationDate)
}

func TestPolicyTransition_RenewalChain(t *testing.T) {
	var lifecycle engine.PolicyLifecycle
	today := date(2025, time.August, 10)

	policy := engine.Policy{ID: "p", Status: engine.PolicyExpired}
	renewed, err := lifecycle.TransitionStatus(policy, engine.PolicyRenewed, today)
	require.NoError(t, err)

	active, err := lifecycle.TransitionStatus(renewed, engine.PolicyActive, today)
	require.NoError(t, err)
	assert.Equal(t, engine.PolicyActive, active.Status)
}
