package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/commission-engine/engine"
	"github.com/ledgerline/commission-engine/engine/store"
)

func TestMemory_PolicyNumberUnique(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.SavePolicy(ctx, engine.Policy{ID: "p1", PolicyNumber: "POL-1", Status: engine.PolicyActive}))

	// same number under a different id is rejected
	err := mem.SavePolicy(ctx, engine.Policy{ID: "p2", PolicyNumber: "POL-1", Status: engine.PolicyActive})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrDuplicate)

	// re-saving the same record is an update, not a collision
	require.NoError(t, mem.SavePolicy(ctx, engine.Policy{ID: "p1", PolicyNumber: "POL-1", Status: engine.PolicySuspended}))
}

func TestMemory_CommissionPairUnique(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	first := engine.Commission{ID: "c1", PolicyID: "p1", AgentID: "a1", Status: engine.CommissionPending}
	require.NoError(t, mem.CreateCommission(ctx, first))

	err := mem.CreateCommission(ctx, engine.Commission{ID: "c2", PolicyID: "p1", AgentID: "a1", Status: engine.CommissionPending})
	require.Error(t, err)
	var dup *engine.DuplicateCommissionError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, engine.CommissionID("c1"), dup.Existing)

	// retiring the first frees the (policy, agent) slot
	first.Status = engine.CommissionRetired
	require.NoError(t, mem.SaveCommission(ctx, first))
	require.NoError(t, mem.CreateCommission(ctx, engine.Commission{ID: "c3", PolicyID: "p1", AgentID: "a1", Status: engine.CommissionPending}))
}

func TestMemory_LookupsExcludeRetired(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.CreateCommission(ctx, engine.Commission{
		ID: "c1", PolicyID: "p1", AgentID: "a1", Status: engine.CommissionRetired,
	}))

	_, err := mem.CommissionByPolicyAndAgent(ctx, "p1", "a1")
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))

	// ...but direct id lookup still reaches the tombstoned record
	c, err := mem.CommissionByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, engine.CommissionRetired, c.Status)
}

func TestMemory_NotFoundSentinel(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	_, err := mem.AgentByID(ctx, "missing")
	assert.True(t, engine.IsNotFound(err))
	_, err = mem.PolicyByID(ctx, "missing")
	assert.True(t, engine.IsNotFound(err))
	_, err = mem.PaymentByID(ctx, "missing")
	assert.True(t, engine.IsNotFound(err))
	_, err = mem.PaymentByReference(ctx, "PAY-0000-000000")
	assert.True(t, engine.IsNotFound(err))
}
