// Package syncer brings a node that fell behind back to the network state.
// The joining side requests a chunked snapshot from a peer, reassembles and
// verifies it, installs it atomically and only then starts participating.
package syncer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/homestead-network/go-homestead/chain"
	"github.com/homestead-network/go-homestead/codec"
	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/config"
	"github.com/homestead-network/go-homestead/p2p"
	"github.com/homestead-network/go-homestead/p2p/server"
	"github.com/homestead-network/go-homestead/sql"
	sqlaccounts "github.com/homestead-network/go-homestead/sql/accounts"
	sqlblocks "github.com/homestead-network/go-homestead/sql/blocks"
	sqlclaims "github.com/homestead-network/go-homestead/sql/claims"
	sqltxs "github.com/homestead-network/go-homestead/sql/txs"
)

// Protocol is the stream protocol id of the sync server.
const Protocol = "/homestead/sync/1"

const maxAttempts = 3

// ErrNoPeers is returned when no peer is available to sync from.
var ErrNoPeers = errors.New("no peers to sync from")

// syncState is the participation gate.
type syncState uint32

const (
	stateSynced syncState = iota
	stateNotSynced
	stateSyncing
)

func (s syncState) String() string {
	switch s {
	case stateSynced:
		return "synced"
	case stateNotSynced:
		return "notSynced"
	case stateSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// requester issues stream requests to peers. *server.Server satisfies it.
type requester interface {
	StreamRequest(context.Context, p2p.Peer, []byte, server.StreamRequestCallback) error
}

// Opt modifies Syncer.
type Opt func(*Syncer)

// WithLogger sets the logger for Syncer.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(clock clockwork.Clock) Opt {
	return func(s *Syncer) {
		s.clock = clock
	}
}

// Syncer tracks whether the local chain is up to date with the network and
// runs sync sessions while it is not.
type Syncer struct {
	logger *zap.Logger
	clock  clockwork.Clock
	cfg    config.Sync
	db     *sql.Database
	chain  *chain.Chain
	client requester
	peers  func() []p2p.Peer

	state    atomic.Uint32
	targetAt atomic.Uint64
}

// New creates a Syncer. peers enumerates currently connected peers.
func New(cfg config.Sync, db *sql.Database, ch *chain.Chain, client requester, peers func() []p2p.Peer, opts ...Opt) *Syncer {
	s := &Syncer{
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		cfg:    cfg,
		db:     db,
		chain:  ch,
		client: client,
		peers:  peers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetClient wires the stream requester. The sync server needs the Syncer's
// handler before the client side can exist, so the client arrives late.
func (s *Syncer) SetClient(client requester) {
	s.client = client
}

// IsSynced reports whether the node may participate in gossip and mining.
func (s *Syncer) IsSynced() bool {
	return syncState(s.state.Load()) == stateSynced
}

// NotifyBehind records evidence that the network is at a higher height.
// The block handler calls it when an announcement arrives too far ahead.
func (s *Syncer) NotifyBehind(height types.Height) {
	for {
		current := s.targetAt.Load()
		if height.Uint64() <= current {
			return
		}
		if s.targetAt.CompareAndSwap(current, height.Uint64()) {
			s.state.CompareAndSwap(uint32(stateSynced), uint32(stateNotSynced))
			s.logger.Debug("behind the network", zap.Uint64("target", height.Uint64()))
			return
		}
	}
}

// Run drives sync sessions until the context is canceled.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if head, _ := s.chain.Head(); head.Uint64() >= s.targetAt.Load() {
				s.setState(stateSynced)
				continue
			}
			s.setState(stateSyncing)
			if err := s.synchronize(ctx); err != nil {
				s.logger.Warn("sync attempt failed", zap.Error(err))
				s.setState(stateNotSynced)
				continue
			}
			if head, _ := s.chain.Head(); head.Uint64() >= s.targetAt.Load() {
				s.setState(stateSynced)
			}
		}
	}
}

func (s *Syncer) setState(next syncState) {
	prev := syncState(s.state.Swap(uint32(next)))
	if prev != next {
		syncStateGauge.Set(float64(next))
		s.logger.Info("sync state changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", next),
		)
	}
}

// synchronize runs one sync session against one peer, retrying a bounded
// number of times on corrupt chunks or buffer overflows.
func (s *Syncer) synchronize(ctx context.Context) error {
	if s.client == nil {
		return ErrNoPeers
	}
	peers := s.peers()
	if len(peers) == 0 {
		return ErrNoPeers
	}
	peer := peers[0]
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		snapshot, err := s.fetch(ctx, peer)
		if err == nil {
			return s.install(ctx, snapshot)
		}
		lastErr = err
		s.logger.Warn("sync session failed, restarting",
			zap.Stringer("peer", peer),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

// fetch streams one full snapshot from the peer.
func (s *Syncer) fetch(ctx context.Context, peer p2p.Peer) (*types.StateSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	request := codec.MustEncode(&types.SyncRequest{From: 0})
	var snapshot *types.StateSnapshot
	err := s.client.StreamRequest(ctx, peer, request, func(ctx context.Context, stream io.ReadWriter) error {
		sess := newSession(s.cfg.MaxBufferedChunks)
		rd := bufio.NewReader(stream)
		for {
			var chunk types.StateChunk
			if _, err := codec.DecodeFrom(rd, &chunk); err != nil {
				return fmt.Errorf("read chunk: %w", err)
			}
			done, err := sess.add(&chunk)
			if err != nil {
				return err
			}
			chunksReceived.Inc()
			if done {
				break
			}
		}
		var err error
		snapshot, err = sess.snapshot()
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// install replaces local state with the snapshot in one transaction and
// reloads the chain head. Re-installing the same snapshot is a no-op in
// effect, so a session raced by gossip stays safe.
func (s *Syncer) install(ctx context.Context, snapshot *types.StateSnapshot) error {
	head, _ := s.chain.Head()
	if snapshot.Head <= head {
		s.logger.Debug("snapshot not ahead of local head",
			zap.Uint64("snapshot", snapshot.Head.Uint64()),
			zap.Uint64("head", head.Uint64()),
		)
		return nil
	}
	if err := s.db.WithTxImmediate(ctx, func(dbtx *sql.Tx) error {
		for _, table := range []string{"applied_txs", "blocks", "claims", "accounts"} {
			if _, err := dbtx.Exec("delete from "+table+";", nil, nil); err != nil {
				return fmt.Errorf("wipe %s: %w", table, err)
			}
		}
		for i := range snapshot.Accounts {
			if err := sqlaccounts.Update(dbtx, &snapshot.Accounts[i]); err != nil {
				return err
			}
		}
		for i := range snapshot.Claims {
			if err := sqlclaims.Add(dbtx, &snapshot.Claims[i]); err != nil {
				return err
			}
		}
		for _, block := range snapshot.Blocks {
			if err := sqlblocks.Add(dbtx, block); err != nil {
				return err
			}
			for _, tx := range block.Transactions {
				if err := sqltxs.AddApplied(dbtx, tx.ID(), block.Header.Height, block.ID()); err != nil {
					return err
				}
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	if err := s.chain.Reload(); err != nil {
		return err
	}
	s.logger.Info("installed state snapshot",
		zap.Uint64("head", snapshot.Head.Uint64()),
		zap.Int("accounts", len(snapshot.Accounts)),
		zap.Int("claims", len(snapshot.Claims)),
		zap.Int("blocks", len(snapshot.Blocks)),
	)
	return nil
}

// VerifyInstalled recomputes the local state hash and compares it to an
// expected value, auditing a finished sync.
func (s *Syncer) VerifyInstalled(expected types.Hash32) error {
	snapshot, err := BuildSnapshot(s.db, 0)
	if err != nil {
		return err
	}
	if snapshot.Hash() != expected {
		return ErrStateMismatch
	}
	return nil
}
