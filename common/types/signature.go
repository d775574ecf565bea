package types

import "encoding/hex"

const (
	// NodeIDSize is the size of an ed25519 public key.
	NodeIDSize = 32
	// EdSignatureSize is the size of an ed25519 signature.
	EdSignatureSize = 64
)

// NodeID is the ed25519 public key identifying a participant.
type NodeID [NodeIDSize]byte

// EmptyNodeID is the zero value of NodeID.
var EmptyNodeID = NodeID{}

// Bytes returns the byte representation of the node id.
func (id NodeID) Bytes() []byte { return id[:] }

// String implements the fmt.Stringer interface.
func (id NodeID) String() string { return hex.EncodeToString(id[:]) }

// ShortString returns the first 5 hex characters of the id, for logging.
func (id NodeID) ShortString() string {
	s := id.String()
	return s[:min(5, len(s))]
}

// ToAddress derives the account address owned by this node id.
func (id NodeID) ToAddress() Address {
	return GenerateAddress(id[:])
}

// EdSignature is an ed25519 signature.
type EdSignature [EdSignatureSize]byte

// EmptyEdSignature is the zero value of EdSignature.
var EmptyEdSignature = EdSignature{}

// Bytes returns the byte representation of the signature.
func (s EdSignature) Bytes() []byte { return s[:] }

// String implements the fmt.Stringer interface.
func (s EdSignature) String() string { return hex.EncodeToString(s[:]) }
