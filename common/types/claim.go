package types

import "go.uber.org/zap/zapcore"

// ClaimID is the sha256 sum of the claim allocation tuple (seed, height,
// owner), used as an identifier. Every honest node derives the same id for
// the same allocation.
type ClaimID Hash32

// EmptyClaimID is the zero value of ClaimID.
var EmptyClaimID = ClaimID{}

// Hash32 returns the ClaimID as a Hash32.
func (id ClaimID) Hash32() Hash32 { return Hash32(id) }

// Bytes returns the ClaimID as a byte slice.
func (id ClaimID) Bytes() []byte { return id[:] }

// String implements the fmt.Stringer interface.
func (id ClaimID) String() string { return Hash32(id).Hex() }

// ShortString returns a truncated id, for logging.
func (id ClaimID) ShortString() string { return Hash32(id).ShortString() }

// ClaimState is the lifecycle state of a claim.
type ClaimState uint8

const (
	// ClaimPending is allocated but not yet usable (target height not reached).
	ClaimPending ClaimState = iota
	// ClaimAvailable grants its owner the right to produce the target block.
	ClaimAvailable
	// ClaimClaimed was consumed by an accepted block. Terminal.
	ClaimClaimed
	// ClaimExpired passed its validity window unused. Terminal.
	ClaimExpired
)

// String implements the fmt.Stringer interface.
func (s ClaimState) String() string {
	switch s {
	case ClaimPending:
		return "pending"
	case ClaimAvailable:
		return "available"
	case ClaimClaimed:
		return "claimed"
	case ClaimExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Claim grants one address the exclusive right to produce the block at the
// target height. AllocatedAt records the chain height whose state seeded
// the allocation; OwnerClaims records how many claims the owner held at
// that point (allocation provenance).
type Claim struct {
	ID          ClaimID
	Owner       Address
	Height      Height
	State       ClaimState
	AllocatedAt Height
	OwnerClaims uint64
}

// CalcClaimID derives the deterministic claim id for an allocation.
func CalcClaimID(seed Hash32, height Height, owner Address) ClaimID {
	wire := struct {
		Seed   Hash32
		Height Height
		Owner  Address
	}{seed, height, owner}
	return ClaimID(CalcObjectHash32(&wire))
}

// MarshalLogObject implements logging encoder for a claim.
func (c *Claim) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("claim_id", c.ID.ShortString())
	encoder.AddString("owner", c.Owner.ShortString())
	encoder.AddUint64("height", c.Height.Uint64())
	encoder.AddString("state", c.State.String())
	return nil
}
