package txs

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/ledger"
)

var (
	// ErrTxInPool is returned on admitting a transaction already pending.
	ErrTxInPool = errors.New("transaction already in pool")
)

// poolTx is a pending transaction together with its admission sequence.
type poolTx struct {
	tx  *types.Transaction
	seq uint64
}

// projection tracks the would-be account state once all pending transactions
// from the account apply on top of committed state.
type projection struct {
	nextNonce uint64
	balance   uint64
}

// MempoolOpt modifies Mempool.
type MempoolOpt func(*Mempool)

// WithMempoolLogger sets the logger for Mempool.
func WithMempoolLogger(logger *zap.Logger) MempoolOpt {
	return func(m *Mempool) {
		m.logger = logger
	}
}

// Mempool holds validated transactions awaiting inclusion. Admission keeps a
// per-account projection so a sender can queue several consecutive nonces
// without waiting for blocks, but cannot overdraw or leave nonce gaps.
type Mempool struct {
	logger *zap.Logger

	mu     sync.Mutex
	txs    map[types.TransactionID]*poolTx
	byAcct map[types.Address]*projection
	seq    uint64
}

// NewMempool creates an empty Mempool.
func NewMempool(opts ...MempoolOpt) *Mempool {
	m := &Mempool{
		logger: zap.NewNop(),
		txs:    make(map[types.TransactionID]*poolTx),
		byAcct: make(map[types.Address]*projection),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add admits the transaction against the committed view extended with the
// sender's pending transactions. Stateless checks are the caller's job.
func (m *Mempool) Add(tx *types.Transaction, view stateView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[tx.ID()]; ok {
		return ErrTxInPool
	}
	proj := m.project(tx.Sender, view)
	if tx.Nonce != proj.nextNonce {
		return fmt.Errorf("%w: projected %d, transaction %d", ledger.ErrNonceMismatch, proj.nextNonce, tx.Nonce)
	}
	if proj.balance < tx.Amount {
		return fmt.Errorf("%w: projected %d, amount %d", ledger.ErrInsufficientBalance, proj.balance, tx.Amount)
	}
	m.seq++
	m.txs[tx.ID()] = &poolTx{tx: tx, seq: m.seq}
	m.byAcct[tx.Sender] = &projection{nextNonce: proj.nextNonce + 1, balance: proj.balance - tx.Amount}
	mempoolSize.Set(float64(len(m.txs)))
	m.logger.Debug("transaction admitted",
		zap.Stringer("tid", tx.ID()),
		zap.Stringer("sender", tx.Sender),
		zap.Uint64("nonce", tx.Nonce),
	)
	return nil
}

// Has reports whether the transaction is pending.
func (m *Mempool) Has(tid types.TransactionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.txs[tid]
	return ok
}

// Get returns the pending transaction, if any.
func (m *Mempool) Get(tid types.TransactionID) (*types.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ptx, ok := m.txs[tid]; ok {
		return ptx.tx, true
	}
	return nil, false
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txs)
}

// Proposal selects up to max transactions for a new block, re-validated
// against the parent view. Transactions are taken in admission order with
// ties broken by transaction id, and each sender's transactions apply
// sequentially so consecutive nonces can share a block.
func (m *Mempool) Proposal(view stateView, max int) []*types.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make([]*poolTx, 0, len(m.txs))
	for _, ptx := range m.txs {
		pending = append(pending, ptx)
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].seq != pending[j].seq {
			return pending[i].seq < pending[j].seq
		}
		a, b := pending[i].tx.ID(), pending[j].tx.ID()
		return bytes.Compare(a.Bytes(), b.Bytes()) < 0
	})

	working := make(map[types.Address]types.Account)
	account := func(address types.Address) types.Account {
		if acct, ok := working[address]; ok {
			return acct
		}
		return view.Account(address)
	}
	selected := make([]*types.Transaction, 0, max)
	for _, ptx := range pending {
		if len(selected) == max {
			break
		}
		tx := ptx.tx
		sender := account(tx.Sender)
		if tx.Nonce != sender.Nonce+1 || sender.Balance < tx.Amount {
			continue
		}
		sender.Nonce = tx.Nonce
		sender.Balance -= tx.Amount
		working[tx.Sender] = sender
		receiver := account(tx.Receiver)
		receiver.Balance += tx.Amount
		working[tx.Receiver] = receiver
		selected = append(selected, tx)
	}
	return selected
}

// NextNonce returns the nonce the account's next transaction must carry,
// counting pending transactions on top of the committed view.
func (m *Mempool) NextNonce(address types.Address, view stateView) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.project(address, view).nextNonce
}

// RemoveApplied drops transactions included in an applied block and rebases
// the remaining projections on the new committed view. Pending transactions
// invalidated by the block are evicted.
func (m *Mempool) RemoveApplied(applied []*types.Transaction, view stateView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range applied {
		delete(m.txs, tx.ID())
	}

	remaining := make([]*poolTx, 0, len(m.txs))
	for _, ptx := range m.txs {
		remaining = append(remaining, ptx)
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].seq < remaining[j].seq })

	m.byAcct = make(map[types.Address]*projection)
	for _, ptx := range remaining {
		tx := ptx.tx
		proj := m.project(tx.Sender, view)
		if tx.Nonce != proj.nextNonce || proj.balance < tx.Amount {
			delete(m.txs, tx.ID())
			m.logger.Debug("evicting stale transaction",
				zap.Stringer("tid", tx.ID()),
				zap.Uint64("nonce", tx.Nonce),
			)
			continue
		}
		m.byAcct[tx.Sender] = &projection{nextNonce: proj.nextNonce + 1, balance: proj.balance - tx.Amount}
	}
	mempoolSize.Set(float64(len(m.txs)))
}

// project returns the account projection, seeding it from the view when the
// account has no pending transactions.
func (m *Mempool) project(address types.Address, view stateView) projection {
	if proj, ok := m.byAcct[address]; ok {
		return *proj
	}
	account := view.Account(address)
	return projection{nextNonce: account.Nonce + 1, balance: account.Balance}
}
