package types

// SyncRequest asks a peer for the ledger state starting at a height. The
// responder streams the full state as an ordered sequence of chunks.
type SyncRequest struct {
	From Height
}

// StateChunk is one verifiable slice of ledger and claim state transferred
// during synchronization. PayloadHash covers Payload; FinalHash is the hash
// of the complete rebuilt state and is identical across all chunks of one
// stream. Chunks are transient: they are consumed during sync and not
// retained.
type StateChunk struct {
	Index       uint32
	Total       uint32
	Head        Height
	PayloadHash Hash32
	FinalHash   Hash32
	Payload     []byte
}

// StateSnapshot is the full transferable node state: every account, every
// claim and the accepted block log. It is chunked for transfer and replayed
// on the receiving side in one pass.
type StateSnapshot struct {
	Head     Height
	Accounts []Account
	Claims   []Claim
	Blocks   []*Block
}

// Hash returns the canonical hash of the snapshot, used as the stream's
// declared final-state hash.
func (s *StateSnapshot) Hash() Hash32 {
	return CalcObjectHash32(s)
}
