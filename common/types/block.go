package types

import (
	"sync"

	"go.uber.org/zap/zapcore"
)

// Height is the position of a block in the chain. Genesis is height 0.
type Height uint64

// Add returns the height incremented by the given number of blocks.
func (h Height) Add(blocks uint64) Height { return h + Height(blocks) }

// Uint64 returns the height as a uint64.
func (h Height) Uint64() uint64 { return uint64(h) }

// BlockID is the sha256 sum of the block header and producer signature,
// used as an identifier.
type BlockID Hash32

// EmptyBlockID is the zero value of BlockID.
var EmptyBlockID = BlockID{}

// Hash32 returns the BlockID as a Hash32.
func (id BlockID) Hash32() Hash32 { return Hash32(id) }

// Bytes returns the BlockID as a byte slice.
func (id BlockID) Bytes() []byte { return id[:] }

// String implements the fmt.Stringer interface.
func (id BlockID) String() string { return Hash32(id).Hex() }

// ShortString returns a truncated id, for logging.
func (id BlockID) ShortString() string { return Hash32(id).ShortString() }

// BlockHeader is the signed portion of a block. TxRoot commits to the
// ordered list of included transactions so the signature covers them.
type BlockHeader struct {
	Height      Height
	PrevHash    Hash32
	Timestamp   int64
	Producer    Address
	ProducerKey NodeID
	ClaimID     ClaimID
	TxRoot      Hash32
}

// Block is an immutable, signed batch of transactions plus the claim it
// consumes, linked to its parent by hash.
type Block struct {
	Header       BlockHeader
	Transactions []*Transaction
	Signature    EdSignature

	idOnce sync.Once
	id     BlockID
}

// CalcTxRoot computes the commitment over an ordered list of transaction ids.
func CalcTxRoot(ids []TransactionID) Hash32 {
	wire := struct{ IDs []TransactionID }{ids}
	return CalcObjectHash32(&wire)
}

// SignedBytes returns the canonical encoding covered by the producer
// signature.
func (b *Block) SignedBytes() []byte {
	return CalcObjectHash32(&b.Header).Bytes()
}

// ID returns the block id, computing and caching it on first use.
func (b *Block) ID() BlockID {
	b.idOnce.Do(func() {
		wire := struct {
			Header    BlockHeader
			Signature EdSignature
		}{b.Header, b.Signature}
		b.id = BlockID(CalcObjectHash32(&wire))
	})
	return b.id
}

// MarshalLogObject implements logging encoder for a block.
func (b *Block) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("block_id", b.ID().ShortString())
	encoder.AddUint64("height", b.Header.Height.Uint64())
	encoder.AddString("prev_hash", b.Header.PrevHash.ShortString())
	encoder.AddString("producer", b.Header.Producer.ShortString())
	encoder.AddInt("transactions", len(b.Transactions))
	return nil
}
