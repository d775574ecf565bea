// Package chain applies accepted blocks to the ledger. It owns the single
// write path: every state transition caused by a block commits atomically
// in one database transaction, and the first valid block accepted at a
// height finalizes it.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/homestead-network/go-homestead/claims"
	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/config"
	"github.com/homestead-network/go-homestead/ledger"
	"github.com/homestead-network/go-homestead/rewards"
	"github.com/homestead-network/go-homestead/sql"
	sqlblocks "github.com/homestead-network/go-homestead/sql/blocks"
)

var (
	// ErrHeightFinalized is returned for a block at or below the head.
	// There is no reorganization: the first accepted block wins.
	ErrHeightFinalized = errors.New("height already finalized")
	// ErrHeightMismatch is returned for a block ahead of the next height.
	ErrHeightMismatch = errors.New("height does not extend the head")
	// ErrChainMismatch is returned when the previous hash does not match
	// the head block.
	ErrChainMismatch = errors.New("previous hash does not match head")
)

// Opt modifies Chain.
type Opt func(*Chain)

// WithLogger sets the logger for Chain.
func WithLogger(logger *zap.Logger) Opt {
	return func(c *Chain) {
		c.logger = logger
	}
}

// Chain is the block application engine.
type Chain struct {
	logger   *zap.Logger
	db       *sql.Database
	registry *claims.Registry
	schedule *rewards.Schedule

	mu     sync.Mutex
	head   types.Height
	headID types.BlockID
}

// New opens the chain on the database, bootstrapping genesis state when the
// database is empty.
func New(db *sql.Database, registry *claims.Registry, schedule *rewards.Schedule, genesis *config.GenesisConfig, opts ...Opt) (*Chain, error) {
	c := &Chain{
		logger:   zap.NewNop(),
		db:       db,
		registry: registry,
		schedule: schedule,
	}
	for _, opt := range opts {
		opt(c)
	}
	head, err := sqlblocks.Head(db)
	switch {
	case errors.Is(err, sql.ErrNotFound):
		if err := c.bootstrap(genesis); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("load head: %w", err)
	default:
		block, err := sqlblocks.Get(db, head)
		if err != nil {
			return nil, fmt.Errorf("load head block: %w", err)
		}
		c.head = head
		c.headID = block.ID()
	}
	c.logger.Info("chain open",
		zap.Uint64("head", c.head.Uint64()),
		zap.Stringer("head_id", c.headID),
	)
	return c, nil
}

// GenesisBlock builds the deterministic block at height zero.
func GenesisBlock(genesis *config.GenesisConfig) (*types.Block, error) {
	launch, err := time.Parse(time.RFC3339, genesis.Time)
	if err != nil {
		return nil, fmt.Errorf("parse genesis time: %w", err)
	}
	return &types.Block{
		Header: types.BlockHeader{
			Height:    0,
			PrevHash:  genesis.ID(),
			Timestamp: launch.Unix(),
		},
	}, nil
}

// bootstrap materializes the genesis state: initial balances, the genesis
// subsidy to the first configured account and the first claim allocations.
func (c *Chain) bootstrap(genesis *config.GenesisConfig) error {
	if err := genesis.Validate(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}
	initial, err := genesis.InitialAccounts()
	if err != nil {
		return err
	}
	block, err := GenesisBlock(genesis)
	if err != nil {
		return err
	}
	if err := c.db.WithTxImmediate(context.Background(), func(dbtx *sql.Tx) error {
		for _, account := range initial {
			if err := ledger.Credit(dbtx, account.Address, account.Balance); err != nil {
				return err
			}
		}
		if len(initial) > 0 {
			if err := ledger.ApplyReward(dbtx, initial[0].Address, c.schedule.GenesisReward(), 0); err != nil {
				return err
			}
		}
		if err := c.registry.OnBlockApplied(dbtx, 0, block.ID().Hash32()); err != nil {
			return err
		}
		return sqlblocks.Add(dbtx, block)
	}); err != nil {
		return fmt.Errorf("bootstrap genesis: %w", err)
	}
	c.head = 0
	c.headID = block.ID()
	c.logger.Info("bootstrapped genesis",
		zap.Stringer("genesis_id", block.ID()),
		zap.Int("accounts", len(initial)),
	)
	return nil
}

// Head returns the finalized tip.
func (c *Chain) Head() (types.Height, types.BlockID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, c.headID
}

// Accept applies the block. The linkage checks run again under the write
// lock, so of two competing blocks for the same height exactly one commits
// and the other fails with ErrHeightFinalized. On return the block and all
// its effects are durable.
func (c *Chain) Accept(ctx context.Context, block *types.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	height := block.Header.Height
	switch {
	case height <= c.head:
		return fmt.Errorf("%w: height %d, head %d", ErrHeightFinalized, height, c.head)
	case height != c.head+1:
		return fmt.Errorf("%w: height %d, head %d", ErrHeightMismatch, height, c.head)
	case block.Header.PrevHash != c.headID.Hash32():
		return fmt.Errorf("%w: block %s links %s, head is %s",
			ErrChainMismatch, block.ID().ShortString(), block.Header.PrevHash.ShortString(), c.headID.ShortString())
	}

	reward := c.schedule.Reward(height, block.Header.PrevHash)
	if err := c.db.WithTxImmediate(ctx, func(dbtx *sql.Tx) error {
		for _, tx := range block.Transactions {
			if err := ledger.ApplyTransaction(dbtx, tx, height, block.ID()); err != nil {
				return fmt.Errorf("apply %s: %w", tx.ID().ShortString(), err)
			}
		}
		if err := ledger.ApplyReward(dbtx, block.Header.Producer, reward, height); err != nil {
			return err
		}
		if err := c.registry.Consume(dbtx, block.Header.ClaimID); err != nil {
			return err
		}
		if err := c.registry.OnBlockApplied(dbtx, height, block.ID().Hash32()); err != nil {
			return err
		}
		return sqlblocks.Add(dbtx, block)
	}); err != nil {
		return fmt.Errorf("accept block %s: %w", block.ID().ShortString(), err)
	}

	c.head = height
	c.headID = block.ID()
	blocksAccepted.Inc()
	headHeight.Set(float64(height.Uint64()))
	c.logger.Info("accepted block",
		zap.Object("block", block),
		zap.Uint64("reward", reward),
	)
	return nil
}

// Reload re-reads the head from the database after the synchronizer
// installed a snapshot underneath.
func (c *Chain) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	head, err := sqlblocks.Head(c.db)
	if err != nil {
		return fmt.Errorf("load head: %w", err)
	}
	block, err := sqlblocks.Get(c.db, head)
	if err != nil {
		return fmt.Errorf("load head block: %w", err)
	}
	c.head = head
	c.headID = block.ID()
	headHeight.Set(float64(head.Uint64()))
	return nil
}

// Block returns the stored block at the height.
func (c *Chain) Block(height types.Height) (*types.Block, error) {
	return sqlblocks.Get(c.db, height)
}
