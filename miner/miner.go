// Package miner assembles, signs and publishes blocks when the local node
// holds the claim for the next height.
package miner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/homestead-network/go-homestead/chain"
	"github.com/homestead-network/go-homestead/claims"
	"github.com/homestead-network/go-homestead/codec"
	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/ledger"
	"github.com/homestead-network/go-homestead/p2p/pubsub"
	"github.com/homestead-network/go-homestead/signing"
	"github.com/homestead-network/go-homestead/sql"
	"github.com/homestead-network/go-homestead/txs"
)

// ErrStaleHead is returned when a competing block for the target height
// arrived while the local block was being assembled.
var ErrStaleHead = errors.New("head moved during assembly")

// Config for the miner.
type Config struct {
	// MaxBlockTxs bounds the number of transactions per block.
	MaxBlockTxs int `mapstructure:"max-block-txs"`
	// Interval between eligibility checks when mining continuously.
	Interval time.Duration `mapstructure:"mine-interval"`
}

// Opt modifies Miner.
type Opt func(*Miner)

// WithLogger sets the logger for Miner.
func WithLogger(logger *zap.Logger) Opt {
	return func(m *Miner) {
		m.logger = logger
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(clock clockwork.Clock) Opt {
	return func(m *Miner) {
		m.clock = clock
	}
}

// WithSyncedCheck makes Run skip attempts while the node is behind its
// peers. A stale head can only produce blocks the network rejects.
func WithSyncedCheck(synced func() bool) Opt {
	return func(m *Miner) {
		m.synced = synced
	}
}

// Miner drives the producer path. Assembly never consumes the claim until
// the block is signed and the head still matches: an aborted attempt leaves
// the claim available for a later try or for the block that beat it.
type Miner struct {
	logger    *zap.Logger
	clock     clockwork.Clock
	cfg       Config
	synced    func() bool
	db        *sql.Database
	signer    *signing.EdSigner
	chain     *chain.Chain
	registry  *claims.Registry
	pool      *txs.Mempool
	publisher pubsub.Publisher
}

// New creates a Miner.
func New(
	cfg Config,
	db *sql.Database,
	signer *signing.EdSigner,
	ch *chain.Chain,
	registry *claims.Registry,
	pool *txs.Mempool,
	publisher pubsub.Publisher,
	opts ...Opt,
) *Miner {
	m := &Miner{
		logger:    zap.NewNop(),
		clock:     clockwork.NewRealClock(),
		cfg:       cfg,
		synced:    func() bool { return true },
		db:        db,
		signer:    signer,
		chain:     ch,
		registry:  registry,
		pool:      pool,
		publisher: publisher,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MineOnce attempts to produce the block for the next height. It fails with
// claims.ErrClaimNotEligible when the node holds no available claim, and
// with ErrStaleHead when a competitor finalized the height first.
func (m *Miner) MineOnce(ctx context.Context) (*types.Block, error) {
	head, headID := m.chain.Head()
	target := head + 1
	claim, err := m.registry.Eligible(m.db, m.signer.Address(), target)
	if err != nil {
		return nil, err
	}

	parent, err := ledger.NewSnapshot(m.db)
	if err != nil {
		return nil, fmt.Errorf("snapshot parent state: %w", err)
	}
	selected := m.pool.Proposal(parent, m.cfg.MaxBlockTxs)
	block := &types.Block{
		Header: types.BlockHeader{
			Height:      target,
			PrevHash:    headID.Hash32(),
			Timestamp:   m.clock.Now().Unix(),
			Producer:    m.signer.Address(),
			ProducerKey: m.signer.NodeID(),
			ClaimID:     claim.ID,
			TxRoot:      types.CalcTxRoot(types.ToTransactionIDs(selected)),
		},
		Transactions: selected,
	}
	block.Signature = m.signer.Sign(signing.BLOCK, block.SignedBytes())

	// A competing block may have arrived during assembly. Abort before
	// consuming the claim so nothing is lost.
	if current, _ := m.chain.Head(); current != head {
		return nil, fmt.Errorf("%w: head %d, assembled on %d", ErrStaleHead, current.Uint64(), head.Uint64())
	}
	if err := m.registry.MarkClaimed(m.db, claim.ID); err != nil {
		return nil, err
	}
	if err := m.chain.Accept(ctx, block); err != nil {
		return nil, fmt.Errorf("accept own block: %w", err)
	}
	view, err := ledger.NewSnapshot(m.db)
	if err != nil {
		return nil, fmt.Errorf("snapshot after accept: %w", err)
	}
	m.pool.RemoveApplied(block.Transactions, view)

	if err := m.publisher.Publish(ctx, pubsub.TopicBlocks, codec.MustEncode(block)); err != nil {
		// The block is already durable locally, peers will fetch it via
		// sync if gossip failed.
		m.logger.Warn("failed to publish block", zap.Stringer("block_id", block.ID()), zap.Error(err))
	}
	blocksMined.Inc()
	m.logger.Info("mined block", zap.Object("block", block))
	return block, nil
}

// Run mines continuously, waking on the configured interval to check for an
// eligible claim. Attempts are skipped while the node is behind its peers.
// Misses are quiet, eligibility is the uncommon case.
func (m *Miner) Run(ctx context.Context) error {
	interval := m.clock.NewTicker(m.cfg.Interval)
	defer interval.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-interval.Chan():
			if !m.synced() {
				continue
			}
			_, err := m.MineOnce(ctx)
			switch {
			case err == nil:
			case errors.Is(err, claims.ErrClaimNotEligible):
			case errors.Is(err, claims.ErrClaimAlreadyUsed):
			case errors.Is(err, ErrStaleHead):
				m.logger.Debug("lost the race for the height", zap.Error(err))
			default:
				m.logger.Error("mining attempt failed", zap.Error(err))
			}
		}
	}
}
