package ledger

import (
	"fmt"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/sql"
	"github.com/homestead-network/go-homestead/sql/accounts"
)

// Snapshot is a detached, read-only copy of account state at a single point
// in the chain. Transaction validation runs against snapshots so the write
// path never blocks readers.
type Snapshot struct {
	accounts map[types.Address]types.Account
}

// NewSnapshot loads all accounts from the executor.
func NewSnapshot(db sql.Executor) (*Snapshot, error) {
	all, err := accounts.All(db)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	snap := &Snapshot{accounts: make(map[types.Address]types.Account, len(all))}
	for _, account := range all {
		snap.accounts[account.Address] = account
	}
	return snap, nil
}

// Account returns the account state in the snapshot. Unknown addresses
// resolve to an empty account.
func (s *Snapshot) Account(address types.Address) types.Account {
	if account, ok := s.accounts[address]; ok {
		return account
	}
	return types.Account{Address: address}
}

// Len returns the number of accounts with state.
func (s *Snapshot) Len() int {
	return len(s.accounts)
}
