// Package types defines the domain types shared by the ledger, consensus
// and sync components.
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/homestead-network/go-homestead/codec"
	"github.com/homestead-network/go-homestead/hash"
)

const (
	// Hash32Length is the expected length of a Hash32.
	Hash32Length = hash.Size
)

// Hash32 represents the 32-byte sha256 hash of arbitrary data.
type Hash32 [Hash32Length]byte

// EmptyHash32 is the zero value of Hash32.
var EmptyHash32 = Hash32{}

// Bytes gets the byte representation of the underlying hash.
func (h Hash32) Bytes() []byte { return h[:] }

// Hex converts a hash to a hex string.
func (h Hash32) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements the fmt.Stringer interface.
func (h Hash32) String() string { return h.Hex() }

// ShortString returns the first 5 hex characters of the hash, for logging.
func (h Hash32) ShortString() string {
	s := hex.EncodeToString(h[:])
	return s[:min(5, len(s))]
}

// IsEmpty returns true if the hash is the zero value.
func (h Hash32) IsEmpty() bool { return h == EmptyHash32 }

// SetBytes sets the hash to the value of b.
// If b is larger than len(h), b will be cropped from the left.
func (h *Hash32) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-Hash32Length:]
	}
	copy(h[Hash32Length-len(b):], b)
}

// Format implements fmt.Formatter, forcing the byte slice to be formatted
// as is, without going through the stringer interface used for logging.
func (h Hash32) Format(s fmt.State, c rune) {
	fmt.Fprintf(s, "%"+string(c), h[:])
}

// CalcHash32 returns the 32-byte sha256 sum of the given data.
func CalcHash32(data []byte) Hash32 {
	return hash.Sum(data)
}

// CalcObjectHash32 returns the 32-byte sha256 sum of the canonical encoding
// of the given object.
func CalcObjectHash32(obj codec.Encodable) Hash32 {
	return CalcHash32(codec.MustEncode(obj))
}
