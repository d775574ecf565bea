// Package accounts provides the durable account records.
package accounts

import (
	"fmt"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/sql"
)

// Has returns true if the account exists in the database.
func Has(db sql.Executor, address types.Address) (bool, error) {
	rows, err := db.Exec("select 1 from accounts where address = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, address.Bytes())
		}, nil,
	)
	if err != nil {
		return false, fmt.Errorf("has address %v: %w", address, err)
	}
	return rows > 0, nil
}

// Get returns the account record for an address. Returns sql.ErrNotFound
// for addresses that were never credited.
func Get(db sql.Executor, address types.Address) (types.Account, error) {
	account := types.Account{Address: address}
	rows, err := db.Exec(
		"select balance, nonce, height_updated from accounts where address = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, address.Bytes())
		},
		func(stmt *sql.Statement) bool {
			account.Balance = uint64(stmt.ColumnInt64(0))
			account.Nonce = uint64(stmt.ColumnInt64(1))
			account.Height = types.Height(stmt.ColumnInt64(2))
			return false
		},
	)
	if err != nil {
		return types.Account{}, fmt.Errorf("failed to load %v: %w", address, err)
	}
	if rows == 0 {
		return types.Account{}, fmt.Errorf("account %v: %w", address, sql.ErrNotFound)
	}
	return account, nil
}

// Update inserts or overwrites the account record.
func Update(db sql.Executor, account *types.Account) error {
	_, err := db.Exec(`insert into accounts (address, balance, nonce, height_updated)
		values (?1, ?2, ?3, ?4)
		on conflict(address) do update set
		balance = ?2, nonce = ?3, height_updated = ?4;`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, account.Address.Bytes())
			stmt.BindInt64(2, int64(account.Balance))
			stmt.BindInt64(3, int64(account.Nonce))
			stmt.BindInt64(4, int64(account.Height))
		}, nil,
	)
	if err != nil {
		return fmt.Errorf("update account %v: %w", account.Address, err)
	}
	return nil
}

// All returns every account, ordered by address bytes so state hashes are
// reproducible.
func All(db sql.Executor) ([]types.Account, error) {
	var rst []types.Account
	_, err := db.Exec(
		"select address, balance, nonce, height_updated from accounts order by address asc;",
		nil,
		func(stmt *sql.Statement) bool {
			var account types.Account
			stmt.ColumnBytes(0, account.Address[:])
			account.Balance = uint64(stmt.ColumnInt64(1))
			account.Nonce = uint64(stmt.ColumnInt64(2))
			account.Height = types.Height(stmt.ColumnInt64(3))
			rst = append(rst, account)
			return true
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load all accounts: %w", err)
	}
	return rst, nil
}

// Total returns the sum of all balances. Together with the credited
// rewards it must equal the genesis supply plus rewards (supply
// conservation).
func Total(db sql.Executor) (uint64, error) {
	var total uint64
	_, err := db.Exec("select coalesce(sum(balance), 0) from accounts;", nil,
		func(stmt *sql.Statement) bool {
			total = uint64(stmt.ColumnInt64(0))
			return false
		},
	)
	if err != nil {
		return 0, fmt.Errorf("total balance: %w", err)
	}
	return total, nil
}
