// Package ledger implements the account state store. All balance and nonce
// mutations flow through this package, either when a block is applied or when
// state is installed wholesale by the synchronizer.
package ledger

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/sql"
	"github.com/homestead-network/go-homestead/sql/accounts"
	"github.com/homestead-network/go-homestead/sql/txs"
)

var (
	// ErrNonPositiveAmount is returned for a transfer of zero credits.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrNonceMismatch is returned when a transaction nonce is not exactly
	// one above the sender's last applied nonce.
	ErrNonceMismatch = errors.New("nonce mismatch")
	// ErrInsufficientBalance is returned when the sender cannot cover the
	// transferred amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Opt modifies Ledger.
type Opt func(*Ledger)

// WithLogger sets the logger for Ledger.
func WithLogger(logger *zap.Logger) Opt {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// Ledger provides read access to committed account state and applies
// transfers and rewards inside block transactions. Writes are serialized by
// the chain manager, which holds the single write lock while it passes its
// database transaction down here.
type Ledger struct {
	logger *zap.Logger
	db     sql.Executor
}

// New creates a Ledger reading from the given database.
func New(db sql.Executor, opts ...Opt) *Ledger {
	l := &Ledger{
		logger: zap.NewNop(),
		db:     db,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Account returns the committed state for the address. Addresses without
// history resolve to an empty account, not an error.
func (l *Ledger) Account(address types.Address) (types.Account, error) {
	account, err := accounts.Get(l.db, address)
	if err != nil {
		if errors.Is(err, sql.ErrNotFound) {
			return types.Account{Address: address}, nil
		}
		return types.Account{}, fmt.Errorf("get account %s: %w", address, err)
	}
	return account, nil
}

// Balance returns the committed balance for the address.
func (l *Ledger) Balance(address types.Address) (uint64, error) {
	account, err := l.Account(address)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// TotalSupply sums all account balances.
func (l *Ledger) TotalSupply() (uint64, error) {
	return accounts.Total(l.db)
}

// Snapshot loads a consistent copy of every account. The copy is detached
// from the database and safe for concurrent reads.
func (l *Ledger) Snapshot() (*Snapshot, error) {
	return NewSnapshot(l.db)
}

// ApplyTransaction transfers tx.Amount from sender to receiver within the
// given database transaction. The checks mirror validation so that a block
// carrying a transaction the validator would reject cannot corrupt state
// even if it reaches this point.
func ApplyTransaction(db sql.Executor, tx *types.Transaction, height types.Height, block types.BlockID) error {
	if tx.Amount == 0 {
		return ErrNonPositiveAmount
	}
	sender, err := getOrEmpty(db, tx.Sender)
	if err != nil {
		return err
	}
	if tx.Nonce != sender.Nonce+1 {
		return fmt.Errorf("%w: account %d, transaction %d", ErrNonceMismatch, sender.Nonce, tx.Nonce)
	}
	if sender.Balance < tx.Amount {
		return fmt.Errorf("%w: balance %d, amount %d", ErrInsufficientBalance, sender.Balance, tx.Amount)
	}
	receiver, err := getOrEmpty(db, tx.Receiver)
	if err != nil {
		return err
	}

	sender.Balance -= tx.Amount
	sender.Nonce = tx.Nonce
	sender.Height = height
	if err := accounts.Update(db, &sender); err != nil {
		return fmt.Errorf("update sender %s: %w", tx.Sender, err)
	}
	// Self transfers must not double apply.
	if tx.Receiver == tx.Sender {
		receiver = sender
	}
	receiver.Balance += tx.Amount
	receiver.Height = height
	if err := accounts.Update(db, &receiver); err != nil {
		return fmt.Errorf("update receiver %s: %w", tx.Receiver, err)
	}
	if err := txs.AddApplied(db, tx.ID(), height, block); err != nil {
		return fmt.Errorf("record applied %s: %w", tx.ID(), err)
	}
	return nil
}

// ApplyReward credits newly minted credits to the address. This is the only
// operation that increases total supply after genesis.
func ApplyReward(db sql.Executor, address types.Address, amount uint64, height types.Height) error {
	if amount == 0 {
		return nil
	}
	account, err := getOrEmpty(db, address)
	if err != nil {
		return err
	}
	account.Balance += amount
	account.Height = height
	if err := accounts.Update(db, &account); err != nil {
		return fmt.Errorf("apply reward to %s: %w", address, err)
	}
	return nil
}

// Credit sets up a genesis balance for the address. Used only while
// bootstrapping an empty database.
func Credit(db sql.Executor, address types.Address, amount uint64) error {
	account, err := getOrEmpty(db, address)
	if err != nil {
		return err
	}
	account.Balance += amount
	if err := accounts.Update(db, &account); err != nil {
		return fmt.Errorf("credit %s: %w", address, err)
	}
	return nil
}

func getOrEmpty(db sql.Executor, address types.Address) (types.Account, error) {
	account, err := accounts.Get(db, address)
	if err != nil {
		if errors.Is(err, sql.ErrNotFound) {
			return types.Account{Address: address}, nil
		}
		return types.Account{}, fmt.Errorf("get account %s: %w", address, err)
	}
	return account, nil
}
