package txs

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/homestead-network/go-homestead/codec"
	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/ledger"
	"github.com/homestead-network/go-homestead/p2p"
	"github.com/homestead-network/go-homestead/p2p/pubsub"
)

const seenCacheSize = 1 << 14

// snapshotter provides the committed state view transactions are admitted
// against.
type snapshotter interface {
	Snapshot() (*ledger.Snapshot, error)
}

// Handler validates gossiped transactions and feeds them into the mempool.
type Handler struct {
	logger    *zap.Logger
	validator *Validator
	state     snapshotter
	pool      *Mempool
	seen      *lru.Cache[types.TransactionID, struct{}]
}

// NewHandler creates a gossip Handler.
func NewHandler(logger *zap.Logger, validator *Validator, state snapshotter, pool *Mempool) *Handler {
	seen, err := lru.New[types.TransactionID, struct{}](seenCacheSize)
	if err != nil {
		panic("create seen cache: " + err.Error())
	}
	return &Handler{
		logger:    logger,
		validator: validator,
		state:     state,
		pool:      pool,
		seen:      seen,
	}
}

// HandleGossip is the gossip validator for the transactions topic. Malformed
// or missigned transactions are rejected, duplicates and currently
// inapplicable transactions are dropped without relaying.
func (h *Handler) HandleGossip(ctx context.Context, peer p2p.Peer, raw []byte) pubsub.ValidationResult {
	var tx types.Transaction
	if err := codec.Decode(raw, &tx); err != nil {
		rejectedGossip.Inc()
		h.logger.Debug("malformed transaction", zap.Stringer("peer", peer), zap.Error(err))
		return pubsub.ValidationReject
	}
	if _, ok := h.seen.Get(tx.ID()); ok {
		duplicateGossip.Inc()
		return pubsub.ValidationIgnore
	}
	if err := h.validator.ValidateStateless(&tx); err != nil {
		rejectedGossip.Inc()
		h.logger.Debug("rejecting transaction",
			zap.Stringer("tid", tx.ID()),
			zap.Stringer("peer", peer),
			zap.Error(err),
		)
		return pubsub.ValidationReject
	}
	h.seen.Add(tx.ID(), struct{}{})
	view, err := h.state.Snapshot()
	if err != nil {
		ignoredGossip.Inc()
		h.logger.Warn("failed to snapshot state", zap.Error(err))
		return pubsub.ValidationIgnore
	}
	if err := h.pool.Add(&tx, view); err != nil {
		if !errors.Is(err, ErrTxInPool) {
			ignoredGossip.Inc()
			h.logger.Debug("transaction not admitted",
				zap.Stringer("tid", tx.ID()),
				zap.Error(err),
			)
		}
		return pubsub.ValidationIgnore
	}
	acceptedGossip.Inc()
	return pubsub.ValidationAccept
}
