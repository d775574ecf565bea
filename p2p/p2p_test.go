package p2p

import (
	"context"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHost(t *testing.T) host.Host {
	t.Helper()
	key, _, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	h, err := New(Config{Listen: "/ip4/127.0.0.1/tcp/0"}, key)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func bootnodeAddr(h host.Host) string {
	return fmt.Sprintf("%s/p2p/%s", h.Addrs()[0], h.ID())
}

func TestBootstrapMinPeers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger := zap.NewNop()

	h := newHost(t)
	boot := newHost(t)
	dead := newHost(t)
	deadAddr := bootnodeAddr(dead)
	require.NoError(t, dead.Close())

	t.Run("no bootnodes", func(t *testing.T) {
		require.NoError(t, Bootstrap(ctx, logger, h, Config{MinPeers: 3}))
	})
	t.Run("below threshold", func(t *testing.T) {
		cfg := Config{Bootnodes: []string{bootnodeAddr(boot), deadAddr}, MinPeers: 2}
		require.ErrorContains(t, Bootstrap(ctx, logger, h, cfg), "need 2")
	})
	t.Run("threshold met", func(t *testing.T) {
		cfg := Config{Bootnodes: []string{bootnodeAddr(boot), deadAddr}, MinPeers: 1}
		require.NoError(t, Bootstrap(ctx, logger, h, cfg))
	})
	t.Run("min peers capped by bootnode count", func(t *testing.T) {
		cfg := Config{Bootnodes: []string{bootnodeAddr(boot)}, MinPeers: 5}
		require.NoError(t, Bootstrap(ctx, logger, h, cfg))
	})
}
