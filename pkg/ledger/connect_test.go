package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/traceledger/pkg/contract"
	"github.com/sigweihq/traceledger/pkg/types"
	"github.com/sigweihq/traceledger/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Owner(t *testing.T) {
	h := newHarness(t, []common.Address{ownerAddr})

	sess := h.connect(t)
	assert.Equal(t, types.WalletSession{
		Address:      ownerAddr.Hex(),
		IsConnected:  true,
		IsAuthorized: true,
		IsOwner:      true,
	}, sess)
	assert.Equal(t, sess, h.client.Session())
	assert.Equal(t, []string{ownerAddr.Hex()}, h.verifier.calls)
}

func TestConnect_UnauthorizedUser(t *testing.T) {
	h := newHarness(t, []common.Address{userA})

	sess := h.connect(t)
	assert.True(t, sess.IsConnected)
	assert.False(t, sess.IsAuthorized)
	assert.False(t, sess.IsOwner)
	assert.Equal(t, userA.Hex(), sess.Address)
}

func TestConnect_NoWallet(t *testing.T) {
	h := newHarness(t, nil)

	sess, err := h.client.Connect(context.Background())
	assert.ErrorIs(t, err, wallet.ErrNoWallet)
	assert.Equal(t, types.WalletSession{}, sess)
	assert.Equal(t, LevelError, h.lastNotification(t).Level)
}

func TestConnect_ContractNotDeployed(t *testing.T) {
	h := newHarness(t, []common.Address{ownerAddr})
	h.chain.SetDeployed(false)

	_, err := h.client.Connect(context.Background())
	assert.ErrorIs(t, err, contract.ErrContractNotDeployed)
	assert.Zero(t, h.wallet.Requests(), "accounts are not requested on the wrong network")
}

func TestConnect_UserRejectedKeepsPriorSession(t *testing.T) {
	h := newHarness(t, []common.Address{ownerAddr})
	prior := h.connect(t)

	h.wallet.RejectAccounts(true)
	sess, err := h.client.Connect(context.Background())
	assert.ErrorIs(t, err, wallet.ErrUserRejected)
	assert.Equal(t, prior, sess)
	assert.Equal(t, prior, h.client.Session())
}

func TestConnect_WalletMismatch(t *testing.T) {
	h := newHarness(t, []common.Address{userA})
	h.verifier.resp = &types.WalletVerifyResponse{Success: false, Error: "Wallet address does not match your account"}

	sess, err := h.client.Connect(context.Background())
	var mismatch *WalletMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "Wallet address does not match your account", mismatch.Message)
	assert.False(t, sess.IsConnected)
	assert.Equal(t, "Wallet address does not match your account", h.lastNotification(t).Message)
}

func TestConnect_VerifierUnavailable(t *testing.T) {
	h := newHarness(t, []common.Address{userA})
	h.verifier.err = errors.New("connection refused")

	_, err := h.client.Connect(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestConnect_PermissionChecksTimeOut(t *testing.T) {
	h := newHarness(t, []common.Address{ownerAddr})
	h.client.cfg.PermissionCheckTimeout = 50 * time.Millisecond
	h.chain.Hang("owner")
	h.chain.Hang("isAuthorized")

	start := time.Now()
	sess, err := h.client.Connect(context.Background())
	require.NoError(t, err)

	assert.True(t, sess.IsConnected)
	assert.False(t, sess.IsAuthorized)
	assert.False(t, sess.IsOwner)
	assert.Less(t, time.Since(start), 2*time.Second, "the checks time out independently and concurrently")
}

func TestConnect_OneFailingCheckKeepsTheOther(t *testing.T) {
	h := newHarness(t, []common.Address{ownerAddr})
	h.chain.FailNext("owner", 100)

	sess := h.connect(t)
	assert.True(t, sess.IsAuthorized)
	assert.False(t, sess.IsOwner)
}

func TestDisconnect(t *testing.T) {
	h := newHarness(t, []common.Address{ownerAddr})
	h.connect(t)

	assert.Equal(t, types.WalletSession{}, h.client.Disconnect())
	assert.Equal(t, types.WalletSession{}, h.client.Session())
}

type watchResult struct {
	session types.WalletSession
	err     error
}

func TestWatch(t *testing.T) {
	h := newHarness(t, []common.Address{ownerAddr})
	h.connect(t)
	h.chain.SetAuthorized(userB, true)

	results := make(chan watchResult, 8)
	done := make(chan error, 1)
	go func() {
		done <- h.client.Watch(context.Background(), func(sess types.WalletSession, err error) {
			results <- watchResult{sess, err}
		})
	}()

	h.wallet.SwitchAccounts(userB)
	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, userB.Hex(), res.session.Address)
	assert.True(t, res.session.IsAuthorized)
	assert.False(t, res.session.IsOwner)

	pool, err := h.registry.Get(1337)
	require.NoError(t, err)
	pool.SetPreferred(1)

	h.wallet.SwitchChain(1337)
	res = <-results
	require.NoError(t, res.err)
	assert.Equal(t, userB.Hex(), res.session.Address)
	assert.Equal(t, 0, pool.Preferred(), "a chain switch drops the known-good endpoints")

	h.wallet.SwitchAccounts()
	res = <-results
	require.NoError(t, res.err)
	assert.Equal(t, types.WalletSession{}, res.session)

	h.wallet.Close()
	assert.NoError(t, <-done)
}

func TestWatch_ContextCancel(t *testing.T) {
	h := newHarness(t, []common.Address{ownerAddr})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.client.Watch(ctx, func(types.WalletSession, error) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatch_NoWallet(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.client.Watch(context.Background(), nil), wallet.ErrNoWallet)
}
