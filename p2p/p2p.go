// Package p2p wires the libp2p host used for gossip and direct requests.
package p2p

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Peer is an alias to libp2p's peer.ID.
type Peer = peer.ID

// NoPeer is a zero value of the Peer type.
var NoPeer Peer

// Config for the p2p host.
type Config struct {
	Listen   string   `mapstructure:"listen"`
	Bootnodes []string `mapstructure:"bootnodes"`
	MinPeers int      `mapstructure:"min-peers"`
}

// New creates a libp2p host listening per config. The node identity is
// derived from the given ed25519 private key so peer ids are stable across
// restarts.
func New(cfg Config, key crypto.PrivKey) (host.Host, error) {
	listen, err := ma.NewMultiaddr(cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("parse listen address %q: %w", cfg.Listen, err)
	}
	h, err := libp2p.New(
		libp2p.Identity(key),
		libp2p.ListenAddrs(listen),
		libp2p.DisableRelay(),
	)
	if err != nil {
		return nil, fmt.Errorf("create host: %w", err)
	}
	return h, nil
}

// Bootstrap connects the host to the configured bootnodes. Individual
// failures are logged, the call fails only when fewer bootnodes are
// reachable than cfg.MinPeers asks for. MinPeers is capped by the number
// of configured bootnodes so a short bootnode list stays usable.
func Bootstrap(ctx context.Context, logger *zap.Logger, h host.Host, cfg Config) error {
	if len(cfg.Bootnodes) == 0 {
		return nil
	}
	var eg errgroup.Group
	connected := make(chan struct{}, len(cfg.Bootnodes))
	for _, raw := range cfg.Bootnodes {
		addr, err := peer.AddrInfoFromString(raw)
		if err != nil {
			return fmt.Errorf("parse bootnode %q: %w", raw, err)
		}
		eg.Go(func() error {
			if err := h.Connect(ctx, *addr); err != nil {
				logger.Warn("failed to connect to bootnode",
					zap.Stringer("peer", addr.ID),
					zap.Error(err),
				)
				return nil
			}
			connected <- struct{}{}
			return nil
		})
	}
	eg.Wait()
	close(connected)
	need := min(cfg.MinPeers, len(cfg.Bootnodes))
	if need < 1 {
		need = 1
	}
	if len(connected) < need {
		return fmt.Errorf("connected to %d of %d bootnodes, need %d", len(connected), len(cfg.Bootnodes), need)
	}
	return nil
}
