package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockIDStable(t *testing.T) {
	block := &Block{
		Header: BlockHeader{
			Height:   7,
			PrevHash: CalcHash32([]byte("parent")),
			Producer: GenerateAddress([]byte("producer")),
		},
	}
	other := &Block{Header: block.Header}
	require.Equal(t, block.ID(), other.ID())

	other = &Block{Header: block.Header}
	other.Header.Height = 8
	require.NotEqual(t, block.ID(), other.ID())
}

func TestBlockIDCoversSignature(t *testing.T) {
	block := &Block{Header: BlockHeader{Height: 1}}
	signed := &Block{Header: BlockHeader{Height: 1}, Signature: EdSignature{1}}
	require.NotEqual(t, block.ID(), signed.ID())
}

func TestTxRootDependsOnOrder(t *testing.T) {
	a := TransactionID(CalcHash32([]byte("a")))
	b := TransactionID(CalcHash32([]byte("b")))
	require.NotEqual(t, CalcTxRoot([]TransactionID{a, b}), CalcTxRoot([]TransactionID{b, a}))
}

func TestCalcClaimIDDeterministic(t *testing.T) {
	seed := CalcHash32([]byte("seed"))
	owner := GenerateAddress([]byte("owner"))
	require.Equal(t, CalcClaimID(seed, 10, owner), CalcClaimID(seed, 10, owner))
	require.NotEqual(t, CalcClaimID(seed, 10, owner), CalcClaimID(seed, 11, owner))
}

func TestTransactionID(t *testing.T) {
	tx := &Transaction{TxBody: TxBody{Amount: 10, Nonce: 1}}
	same := &Transaction{TxBody: TxBody{Amount: 10, Nonce: 1}}
	require.Equal(t, tx.ID(), same.ID())

	other := &Transaction{TxBody: TxBody{Amount: 11, Nonce: 1}}
	require.NotEqual(t, tx.ID(), other.ID())
}
