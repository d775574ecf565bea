package types

import (
	"errors"
	"fmt"

	"github.com/cosmos/btcutil/bech32"

	"github.com/homestead-network/go-homestead/hash"
)

const (
	// AddressLength is the expected length of an address.
	AddressLength = 24
)

var (
	// ErrWrongAddressLength is returned when the length of the address is not correct.
	ErrWrongAddressLength = errors.New("wrong address length")
	// ErrUnsupportedNetwork is returned when an address belongs to another network.
	ErrUnsupportedNetwork = errors.New("unsupported network")
	// ErrDecodeBech32 is returned when an error occurs during decoding bech32.
	ErrDecodeBech32 = errors.New("error decoding bech32")
)

var networkHRP = "hs"

// SetNetworkHRP updates the human-readable part used when encoding and
// decoding addresses. It is set once at startup from the config.
func SetNetworkHRP(update string) {
	networkHRP = update
}

// NetworkHRP returns the currently configured human-readable part.
func NetworkHRP() string {
	return networkHRP
}

// Address represents the bech32-encoded identifier of an account.
type Address [AddressLength]byte

// StringToAddress returns a new Address from a given string like `hs1abc...`.
func StringToAddress(src string) (Address, error) {
	var addr Address
	hrp, data, err := bech32.DecodeNoLimit(src)
	if err != nil {
		return addr, fmt.Errorf("%w: %s", ErrDecodeBech32, err)
	}
	// bech32 uses 5-bit groups; convert back to 8-bit bytes.
	converted, err := bech32.ConvertBits(data, 5, 8, true)
	if err != nil {
		return addr, fmt.Errorf("error converting bech32 bits: %w", err)
	}
	// ConvertBits appends an empty byte to the end of the slice.
	if len(converted) != AddressLength+1 {
		return addr, fmt.Errorf("expected %d bytes, got %d: %w", AddressLength, len(converted), ErrWrongAddressLength)
	}
	if hrp != networkHRP {
		return addr, fmt.Errorf("wrong network: expected `%s`, got `%s`: %w", networkHRP, hrp, ErrUnsupportedNetwork)
	}
	copy(addr[:], converted[:])
	return addr, nil
}

// GenerateAddress derives an address from an ed25519 public key.
func GenerateAddress(publicKey []byte) Address {
	var addr Address
	sum := hash.Sum(publicKey)
	copy(addr[:], sum[hash.Size-AddressLength:])
	return addr
}

// Bytes gets the byte representation of the underlying address.
func (a Address) Bytes() []byte { return a[:] }

// IsEmpty returns true if the address is the zero value.
func (a Address) IsEmpty() bool { return a == Address{} }

// String implements the fmt.Stringer interface, returning the bech32 form.
func (a Address) String() string {
	converted, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(fmt.Sprintf("convert address bits: %v", err))
	}
	result, err := bech32.Encode(networkHRP, converted)
	if err != nil {
		panic(fmt.Sprintf("encode address to bech32: %v", err))
	}
	return result
}

// ShortString returns a truncated bech32 form, for logging.
func (a Address) ShortString() string {
	s := a.String()
	return s[:min(10, len(s))]
}
