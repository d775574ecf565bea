package types

import (
	"bytes"
	"sync"
)

// TransactionID is the sha256 sum of the canonical transaction encoding,
// used as an identifier.
type TransactionID Hash32

// EmptyTransactionID is the zero value of TransactionID.
var EmptyTransactionID = TransactionID{}

// Hash32 returns the TransactionID as a Hash32.
func (id TransactionID) Hash32() Hash32 { return Hash32(id) }

// Bytes returns the TransactionID as a byte slice.
func (id TransactionID) Bytes() []byte { return id[:] }

// String implements the fmt.Stringer interface.
func (id TransactionID) String() string { return Hash32(id).Hex() }

// ShortString returns a truncated id, for logging.
func (id TransactionID) ShortString() string { return Hash32(id).ShortString() }

// Compare returns true if id is less than other, by lexicographic comparison.
func (id TransactionID) Compare(other TransactionID) bool {
	return bytes.Compare(id.Bytes(), other.Bytes()) < 0
}

// TxBody is the signed portion of a transaction.
type TxBody struct {
	Sender    Address
	SenderKey NodeID
	Receiver  Address
	Amount    uint64
	Nonce     uint64
}

// Transaction moves Amount from Sender to Receiver. It is immutable once
// signed; Signature covers the canonical encoding of TxBody.
type Transaction struct {
	TxBody
	Signature EdSignature

	idOnce sync.Once
	id     TransactionID
}

// SignedBytes returns the canonical encoding covered by the signature.
func (t *Transaction) SignedBytes() []byte {
	return CalcObjectHash32(&t.TxBody).Bytes()
}

// ID returns the transaction id, computing and caching it on first use.
func (t *Transaction) ID() TransactionID {
	t.idOnce.Do(func() {
		wire := struct {
			TxBody
			Signature EdSignature
		}{t.TxBody, t.Signature}
		t.id = TransactionID(CalcObjectHash32(&wire))
	})
	return t.id
}

// ToTransactionIDs returns a slice of TransactionID corresponding to the
// given transactions.
func ToTransactionIDs(txs []*Transaction) []TransactionID {
	ids := make([]TransactionID, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID())
	}
	return ids
}
