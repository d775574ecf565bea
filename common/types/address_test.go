package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	addr := GenerateAddress([]byte("some ed25519 public key material."))
	parsed, err := StringToAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)
}

func TestAddressWrongNetwork(t *testing.T) {
	addr := GenerateAddress([]byte("key"))
	encoded := addr.String()

	SetNetworkHRP("other")
	t.Cleanup(func() { SetNetworkHRP("hs") })

	_, err := StringToAddress(encoded)
	require.ErrorIs(t, err, ErrUnsupportedNetwork)
}

func TestGenerateAddressDeterministic(t *testing.T) {
	require.Equal(t, GenerateAddress([]byte("key")), GenerateAddress([]byte("key")))
	require.NotEqual(t, GenerateAddress([]byte("key")), GenerateAddress([]byte("other")))
}

func TestStringToAddressGarbage(t *testing.T) {
	_, err := StringToAddress("not an address")
	require.ErrorIs(t, err, ErrDecodeBech32)
}
