// Package blocks provides the durable ordered log of accepted blocks.
package blocks

import (
	"fmt"

	"github.com/homestead-network/go-homestead/codec"
	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/sql"
)

// Add appends an accepted block to the log. The height primary key makes
// the insert fail with sql.ErrObjectExists if a block was already accepted
// at this height.
func Add(db sql.Executor, block *types.Block) error {
	encoded, err := codec.Encode(block)
	if err != nil {
		return fmt.Errorf("encode block %v: %w", block.ID(), err)
	}
	_, err = db.Exec("insert into blocks (height, id, block) values (?1, ?2, ?3);",
		func(stmt *sql.Statement) {
			stmt.BindInt64(1, int64(block.Header.Height))
			stmt.BindBytes(2, block.ID().Bytes())
			stmt.BindBytes(3, encoded)
		}, nil,
	)
	if err != nil {
		return fmt.Errorf("add block %v: %w", block.ID(), err)
	}
	return nil
}

// Has returns true if a block was accepted at the given height.
func Has(db sql.Executor, height types.Height) (bool, error) {
	rows, err := db.Exec("select 1 from blocks where height = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindInt64(1, int64(height))
		}, nil,
	)
	if err != nil {
		return false, fmt.Errorf("has block at %d: %w", height, err)
	}
	return rows > 0, nil
}

// Get returns the block accepted at the given height. Returns
// sql.ErrNotFound when the chain has not reached the height.
func Get(db sql.Executor, height types.Height) (*types.Block, error) {
	var (
		block   types.Block
		decoded bool
		derr    error
	)
	_, err := db.Exec("select block from blocks where height = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindInt64(1, int64(height))
		},
		func(stmt *sql.Statement) bool {
			buf := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, buf)
			derr = codec.Decode(buf, &block)
			decoded = derr == nil
			return false
		},
	)
	if err != nil {
		return nil, fmt.Errorf("get block at %d: %w", height, err)
	}
	if derr != nil {
		return nil, fmt.Errorf("decode block at %d: %w", height, derr)
	}
	if !decoded {
		return nil, fmt.Errorf("block at %d: %w", height, sql.ErrNotFound)
	}
	return &block, nil
}

// Head returns the height of the latest accepted block. Returns
// sql.ErrNotFound for an empty log.
func Head(db sql.Executor) (types.Height, error) {
	var (
		head  types.Height
		found bool
	)
	_, err := db.Exec("select max(height) from blocks;", nil,
		func(stmt *sql.Statement) bool {
			if sql.IsNull(stmt, 0) {
				return false
			}
			head = types.Height(stmt.ColumnInt64(0))
			found = true
			return false
		},
	)
	if err != nil {
		return 0, fmt.Errorf("head: %w", err)
	}
	if !found {
		return 0, fmt.Errorf("head: %w", sql.ErrNotFound)
	}
	return head, nil
}

// Since returns every accepted block with height >= from, in order.
func Since(db sql.Executor, from types.Height) ([]*types.Block, error) {
	var (
		rst  []*types.Block
		derr error
	)
	_, err := db.Exec("select block from blocks where height >= ?1 order by height asc;",
		func(stmt *sql.Statement) {
			stmt.BindInt64(1, int64(from))
		},
		func(stmt *sql.Statement) bool {
			buf := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, buf)
			var block types.Block
			if derr = codec.Decode(buf, &block); derr != nil {
				return false
			}
			rst = append(rst, &block)
			return true
		},
	)
	if err != nil {
		return nil, fmt.Errorf("blocks since %d: %w", from, err)
	}
	if derr != nil {
		return nil, fmt.Errorf("decode blocks since %d: %w", from, derr)
	}
	return rst, nil
}
