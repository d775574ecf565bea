package signing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/homestead-network/go-homestead/common/types"
)

func TestSignVerify(t *testing.T) {
	signer, err := NewEdSigner(WithPrefix([]byte("testnet")))
	require.NoError(t, err)
	verifier, err := NewEdVerifier(WithVerifierPrefix([]byte("testnet")))
	require.NoError(t, err)

	msg := []byte("payload")
	sig := signer.Sign(TRANSACTION, msg)
	require.True(t, verifier.Verify(TRANSACTION, signer.NodeID(), msg, sig))
}

func TestDomainSeparation(t *testing.T) {
	signer, err := NewEdSigner()
	require.NoError(t, err)
	verifier, err := NewEdVerifier()
	require.NoError(t, err)

	msg := []byte("payload")
	sig := signer.Sign(TRANSACTION, msg)
	require.False(t, verifier.Verify(BLOCK, signer.NodeID(), msg, sig))
}

func TestPrefixSeparation(t *testing.T) {
	signer, err := NewEdSigner(WithPrefix([]byte("mainnet")))
	require.NoError(t, err)
	verifier, err := NewEdVerifier(WithVerifierPrefix([]byte("testnet")))
	require.NoError(t, err)

	msg := []byte("payload")
	require.False(t, verifier.Verify(BLOCK, signer.NodeID(), msg, signer.Sign(BLOCK, msg)))
}

func TestWrongKeyRejected(t *testing.T) {
	signer, err := NewEdSigner()
	require.NoError(t, err)
	other, err := NewEdSigner()
	require.NoError(t, err)
	verifier, err := NewEdVerifier()
	require.NoError(t, err)

	msg := []byte("payload")
	require.False(t, verifier.Verify(TRANSACTION, other.NodeID(), msg, signer.Sign(TRANSACTION, msg)))
}

func TestIdentityFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.key")
	signer, err := NewEdSigner(ToFile(path))
	require.NoError(t, err)

	restored, err := NewEdSigner(FromFile(path))
	require.NoError(t, err)
	require.Equal(t, signer.NodeID(), restored.NodeID())
	require.Equal(t, signer.Address(), restored.Address())
}

func TestAddressDerivation(t *testing.T) {
	signer, err := NewEdSigner()
	require.NoError(t, err)
	require.Equal(t, types.GenerateAddress(signer.NodeID().Bytes()), signer.Address())
}
