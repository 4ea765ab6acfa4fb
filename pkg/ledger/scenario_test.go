package ledger

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/traceledger/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An unauthorized wallet is turned away, then an authorized one registers
// a product and records a step on it
func TestScenario_ProductLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []common.Address{userA})
	h.chain.SetAuthorized(userB, true)

	a := h.connect(t)
	require.True(t, a.IsConnected)
	require.False(t, a.IsAuthorized)

	handles := h.chain.Handles()
	_, err := h.client.CreateProduct(ctx, a, "SP-1", "Widget", "hash1", "Hanoi")
	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, handles, h.chain.Handles(), "the denied command makes no network call")

	h.wallet.SwitchAccounts(userB)
	b := h.connect(t)
	require.True(t, b.IsAuthorized)
	assert.False(t, b.IsOwner)

	_, err = h.client.CreateProduct(ctx, b, "SP-1", "Widget", "hash1", "Hanoi")
	require.NoError(t, err)

	product, err := h.client.GetProduct(ctx, "SP-1")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "SP-1", product.ID)
	assert.Equal(t, "Widget", product.Name)
	assert.Equal(t, "hash1", product.ContentHash)
	assert.Equal(t, "Hanoi", product.Location)
	assert.Equal(t, userB.Hex(), product.Creator)
	assert.Equal(t, uint8(types.ProductCreated), product.Status)
	assert.Empty(t, product.Steps)

	_, err = h.client.AddStep(ctx, b, "SP-1", "Warehouse", "Stored", types.StepStatus(3))
	require.NoError(t, err)

	steps, err := h.client.GetSteps(ctx, "SP-1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "Warehouse", steps[0].Location)
	assert.Equal(t, "Stored", steps[0].Description)
	assert.Equal(t, types.StepStored, steps[0].Status)
	assert.Equal(t, userB.Hex(), steps[0].Actor)
	assert.Positive(t, steps[0].Timestamp)

	assert.Equal(t, 2, h.chain.Transactions())
	assert.Zero(t, h.chain.OpenHandles(), "every handle is closed")
}
