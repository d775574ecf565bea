// Package blocks validates incoming block announcements and hands them to
// the chain.
package blocks

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/homestead-network/go-homestead/chain"
	"github.com/homestead-network/go-homestead/claims"
	"github.com/homestead-network/go-homestead/codec"
	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/ledger"
	"github.com/homestead-network/go-homestead/p2p"
	"github.com/homestead-network/go-homestead/p2p/pubsub"
	"github.com/homestead-network/go-homestead/signing"
	"github.com/homestead-network/go-homestead/sql"
	"github.com/homestead-network/go-homestead/txs"
)

const seenCacheSize = 1 << 12

var (
	// ErrInvalidSignature is returned when the producer signature does not
	// verify or the producer address does not match the signing key.
	ErrInvalidSignature = errors.New("invalid block signature")
	// ErrTransactionInvalid is returned when an included transaction fails
	// validation against the parent state.
	ErrTransactionInvalid = errors.New("invalid transaction in block")
	// ErrWrongTxRoot is returned when the header commitment does not match
	// the included transactions.
	ErrWrongTxRoot = errors.New("transaction root mismatch")
)

// behindSignal notifies the synchronizer that the local chain fell behind.
type behindSignal interface {
	NotifyBehind(types.Height)
}

// Opt modifies Handler.
type Opt func(*Handler)

// WithLogger sets the logger for Handler.
func WithLogger(logger *zap.Logger) Opt {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithBehindSignal wires the synchronizer notification.
func WithBehindSignal(signal behindSignal) Opt {
	return func(h *Handler) {
		h.behind = signal
	}
}

// Handler processes block announcements, from gossip and from the local
// producer. Validation runs in a fixed order so all honest nodes reject a
// bad block for the same reason.
type Handler struct {
	logger    *zap.Logger
	db        *sql.Database
	chain     *chain.Chain
	registry  *claims.Registry
	validator *txs.Validator
	verifier  *signing.EdVerifier
	pool      *txs.Mempool
	behind    behindSignal
	seen      *lru.Cache[types.BlockID, struct{}]
}

// NewHandler creates a block Handler.
func NewHandler(
	db *sql.Database,
	ch *chain.Chain,
	registry *claims.Registry,
	validator *txs.Validator,
	verifier *signing.EdVerifier,
	pool *txs.Mempool,
	opts ...Opt,
) *Handler {
	seen, err := lru.New[types.BlockID, struct{}](seenCacheSize)
	if err != nil {
		panic("create seen cache: " + err.Error())
	}
	h := &Handler{
		logger:    zap.NewNop(),
		db:        db,
		chain:     ch,
		registry:  registry,
		validator: validator,
		verifier:  verifier,
		pool:      pool,
		seen:      seen,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleGossip is the gossip validator for the blocks topic.
func (h *Handler) HandleGossip(ctx context.Context, peer p2p.Peer, raw []byte) pubsub.ValidationResult {
	var block types.Block
	if err := codec.Decode(raw, &block); err != nil {
		blocksRejected.Inc()
		h.logger.Debug("malformed block", zap.Stringer("peer", peer), zap.Error(err))
		return pubsub.ValidationReject
	}
	if _, ok := h.seen.Get(block.ID()); ok {
		return pubsub.ValidationIgnore
	}
	h.seen.Add(block.ID(), struct{}{})

	err := h.Process(ctx, &block)
	switch {
	case err == nil:
		return pubsub.ValidationAccept
	case errors.Is(err, chain.ErrHeightFinalized):
		// A competitor lost the race, do not relay the loser.
		return pubsub.ValidationIgnore
	case errors.Is(err, chain.ErrHeightMismatch), errors.Is(err, chain.ErrChainMismatch):
		// The local chain may simply be behind, not the block's fault.
		return pubsub.ValidationIgnore
	default:
		blocksRejected.Inc()
		h.logger.Warn("rejecting block",
			zap.Stringer("block_id", block.ID()),
			zap.Stringer("peer", peer),
			zap.Error(err),
		)
		return pubsub.ValidationReject
	}
}

// Process validates the block against the current head and applies it.
// Checks run in order: linkage, claim eligibility, transactions, producer
// signature. On success the mempool is pruned of included transactions.
func (h *Handler) Process(ctx context.Context, block *types.Block) error {
	head, headID := h.chain.Head()
	height := block.Header.Height
	switch {
	case height <= head:
		return fmt.Errorf("%w: height %d, head %d", chain.ErrHeightFinalized, height, head)
	case height > head+1:
		if h.behind != nil {
			h.behind.NotifyBehind(height)
		}
		return fmt.Errorf("%w: height %d, head %d", chain.ErrHeightMismatch, height, head)
	case block.Header.PrevHash != headID.Hash32():
		return fmt.Errorf("%w: block links %s", chain.ErrChainMismatch, block.Header.PrevHash.ShortString())
	}

	if err := h.registry.Validate(h.db, block.Header.ClaimID, block.Header.Producer, height); err != nil {
		return err
	}
	if err := h.validateTxs(block); err != nil {
		return err
	}
	if err := h.validateSignature(block); err != nil {
		return err
	}

	if err := h.chain.Accept(ctx, block); err != nil {
		return err
	}
	view, err := ledger.NewSnapshot(h.db)
	if err != nil {
		return fmt.Errorf("snapshot after accept: %w", err)
	}
	h.pool.RemoveApplied(block.Transactions, view)
	return nil
}

// validateTxs re-runs transaction validation against the parent state, with
// in-block sequencing so one sender can carry consecutive nonces.
func (h *Handler) validateTxs(block *types.Block) error {
	if types.CalcTxRoot(types.ToTransactionIDs(block.Transactions)) != block.Header.TxRoot {
		return ErrWrongTxRoot
	}
	parent, err := ledger.NewSnapshot(h.db)
	if err != nil {
		return fmt.Errorf("snapshot parent state: %w", err)
	}
	working := newOverlay(parent)
	for _, tx := range block.Transactions {
		if err := h.validator.Validate(tx, working); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrTransactionInvalid, tx.ID().ShortString(), err)
		}
		working.apply(tx)
	}
	return nil
}

func (h *Handler) validateSignature(block *types.Block) error {
	if block.Header.ProducerKey.ToAddress() != block.Header.Producer {
		return fmt.Errorf("%w: producer does not match key", ErrInvalidSignature)
	}
	if !h.verifier.Verify(signing.BLOCK, block.Header.ProducerKey, block.SignedBytes(), block.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// overlay projects transaction effects over a snapshot while a block is
// validated.
type overlay struct {
	parent   *ledger.Snapshot
	accounts map[types.Address]types.Account
}

func newOverlay(parent *ledger.Snapshot) *overlay {
	return &overlay{parent: parent, accounts: make(map[types.Address]types.Account)}
}

func (o *overlay) Account(address types.Address) types.Account {
	if account, ok := o.accounts[address]; ok {
		return account
	}
	return o.parent.Account(address)
}

func (o *overlay) apply(tx *types.Transaction) {
	sender := o.Account(tx.Sender)
	sender.Nonce = tx.Nonce
	sender.Balance -= tx.Amount
	o.accounts[tx.Sender] = sender
	receiver := o.Account(tx.Receiver)
	receiver.Balance += tx.Amount
	o.accounts[tx.Receiver] = receiver
}
