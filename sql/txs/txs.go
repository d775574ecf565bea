// Package txs indexes applied transactions by id.
package txs

import (
	"fmt"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/sql"
)

// AddApplied records that a transaction was applied by the block at the
// given height.
func AddApplied(db sql.Executor, id types.TransactionID, height types.Height, block types.BlockID) error {
	_, err := db.Exec("insert into applied_txs (id, height, block) values (?1, ?2, ?3);",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, id.Bytes())
			stmt.BindInt64(2, int64(height))
			stmt.BindBytes(3, block.Bytes())
		}, nil,
	)
	if err != nil {
		return fmt.Errorf("add applied tx %v: %w", id, err)
	}
	return nil
}

// HasApplied returns true if the transaction was already applied.
func HasApplied(db sql.Executor, id types.TransactionID) (bool, error) {
	rows, err := db.Exec("select 1 from applied_txs where id = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, id.Bytes())
		}, nil,
	)
	if err != nil {
		return false, fmt.Errorf("has applied tx %v: %w", id, err)
	}
	return rows > 0, nil
}

// GetAppliedHeight returns the height at which the transaction was applied.
// Returns sql.ErrNotFound for unapplied transactions.
func GetAppliedHeight(db sql.Executor, id types.TransactionID) (types.Height, error) {
	var (
		height types.Height
		found  bool
	)
	_, err := db.Exec("select height from applied_txs where id = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, id.Bytes())
		},
		func(stmt *sql.Statement) bool {
			height = types.Height(stmt.ColumnInt64(0))
			found = true
			return false
		},
	)
	if err != nil {
		return 0, fmt.Errorf("applied height of %v: %w", id, err)
	}
	if !found {
		return 0, fmt.Errorf("tx %v: %w", id, sql.ErrNotFound)
	}
	return height, nil
}
