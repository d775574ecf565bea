package txs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/ledger"
	"github.com/homestead-network/go-homestead/signing"
	"github.com/homestead-network/go-homestead/sql"
)

type testState struct {
	accounts map[types.Address]types.Account
}

func newTestState() *testState {
	return &testState{accounts: make(map[types.Address]types.Account)}
}

func (s *testState) credit(address types.Address, balance uint64) {
	s.accounts[address] = types.Account{Address: address, Balance: balance}
}

func (s *testState) Account(address types.Address) types.Account {
	if account, ok := s.accounts[address]; ok {
		return account
	}
	return types.Account{Address: address}
}

func signedTx(t *testing.T, signer *signing.EdSigner, to types.Address, amount, nonce uint64) *types.Transaction {
	t.Helper()
	tx := &types.Transaction{
		TxBody: types.TxBody{
			Sender:    signer.Address(),
			SenderKey: signer.NodeID(),
			Receiver:  to,
			Amount:    amount,
			Nonce:     nonce,
		},
	}
	tx.Signature = signer.Sign(signing.TRANSACTION, tx.SignedBytes())
	return tx
}

func TestValidator(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	v := NewValidator(verifier)
	to := types.Address{7}

	state := newTestState()
	state.credit(signer.Address(), 100)

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, v.Validate(signedTx(t, signer, to, 10, 1), state))
	})
	t.Run("tampered body", func(t *testing.T) {
		tx := signedTx(t, signer, to, 10, 1)
		tx.Amount = 99
		require.ErrorIs(t, v.Validate(tx, state), ErrInvalidSignature)
	})
	t.Run("sender not matching key", func(t *testing.T) {
		tx := signedTx(t, signer, to, 10, 1)
		tx.Sender = types.Address{1, 2, 3}
		require.ErrorIs(t, v.Validate(tx, state), ErrInvalidSignature)
	})
	t.Run("zero amount", func(t *testing.T) {
		require.ErrorIs(t, v.Validate(signedTx(t, signer, to, 0, 1), state), ledger.ErrNonPositiveAmount)
	})
	t.Run("nonce gap", func(t *testing.T) {
		require.ErrorIs(t, v.Validate(signedTx(t, signer, to, 10, 3), state), ledger.ErrNonceMismatch)
	})
	t.Run("overdraft", func(t *testing.T) {
		require.ErrorIs(t, v.Validate(signedTx(t, signer, to, 101, 1), state), ledger.ErrInsufficientBalance)
	})
}

func TestMempoolProjection(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	to := types.Address{7}
	state := newTestState()
	state.credit(signer.Address(), 100)
	pool := NewMempool()

	require.NoError(t, pool.Add(signedTx(t, signer, to, 60, 1), state))
	// Consecutive nonce rides on the projection.
	require.NoError(t, pool.Add(signedTx(t, signer, to, 30, 2), state))
	// Pool already spends 90 of 100.
	require.ErrorIs(t, pool.Add(signedTx(t, signer, to, 20, 3), state), ledger.ErrInsufficientBalance)
	// Gap after the projected nonce.
	require.ErrorIs(t, pool.Add(signedTx(t, signer, to, 1, 5), state), ledger.ErrNonceMismatch)
	// Same body signs to the same id.
	tx := signedTx(t, signer, to, 60, 1)
	require.ErrorIs(t, pool.Add(tx, state), ErrTxInPool)
	require.Equal(t, 2, pool.Len())
}

func TestMempoolNextNonce(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	to := types.Address{7}
	state := newTestState()
	state.credit(signer.Address(), 100)
	pool := NewMempool()

	// Empty pool falls back to the committed nonce.
	require.Equal(t, uint64(1), pool.NextNonce(signer.Address(), state))

	// Queueing consecutive sends at the suggested nonce always succeeds.
	for i := 0; i < 3; i++ {
		nonce := pool.NextNonce(signer.Address(), state)
		require.NoError(t, pool.Add(signedTx(t, signer, to, 10, nonce), state))
	}
	require.Equal(t, uint64(4), pool.NextNonce(signer.Address(), state))
	require.Equal(t, 3, pool.Len())
}

func TestMempoolProposalOrder(t *testing.T) {
	s1, err := signing.NewEdSigner()
	require.NoError(t, err)
	s2, err := signing.NewEdSigner()
	require.NoError(t, err)
	state := newTestState()
	state.credit(s1.Address(), 100)
	state.credit(s2.Address(), 100)
	pool := NewMempool()

	first := signedTx(t, s1, s2.Address(), 10, 1)
	second := signedTx(t, s2, s1.Address(), 20, 1)
	third := signedTx(t, s1, s2.Address(), 5, 2)
	require.NoError(t, pool.Add(first, state))
	require.NoError(t, pool.Add(second, state))
	require.NoError(t, pool.Add(third, state))

	proposal := pool.Proposal(state, 10)
	require.Equal(t, []*types.Transaction{first, second, third}, proposal)

	limited := pool.Proposal(state, 2)
	require.Equal(t, []*types.Transaction{first, second}, limited)
}

func TestMempoolRemoveApplied(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	to := types.Address{7}
	state := newTestState()
	state.credit(signer.Address(), 100)
	pool := NewMempool()

	first := signedTx(t, signer, to, 60, 1)
	second := signedTx(t, signer, to, 30, 2)
	require.NoError(t, pool.Add(first, state))
	require.NoError(t, pool.Add(second, state))

	// The block applied only the first transaction.
	applied := newTestState()
	applied.accounts[signer.Address()] = types.Account{Address: signer.Address(), Balance: 40, Nonce: 1}
	pool.RemoveApplied([]*types.Transaction{first}, applied)
	require.Equal(t, 1, pool.Len())
	require.True(t, pool.Has(second.ID()))

	// A conflicting block spent the balance, evicting the leftover.
	conflicting := newTestState()
	conflicting.accounts[signer.Address()] = types.Account{Address: signer.Address(), Balance: 10, Nonce: 1}
	pool.RemoveApplied(nil, conflicting)
	require.Equal(t, 0, pool.Len())
}

func TestMempoolSnapshotSource(t *testing.T) {
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	require.NoError(t, ledger.Credit(db, signer.Address(), 100))
	snap, err := ledger.NewSnapshot(db)
	require.NoError(t, err)

	pool := NewMempool()
	require.NoError(t, pool.Add(signedTx(t, signer, types.Address{9}, 10, 1), snap))
	require.Equal(t, 1, pool.Len())
}
