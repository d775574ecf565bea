// Package claims provides the durable claim records.
package claims

import (
	"fmt"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/sql"
)

// Add inserts a new claim. Returns sql.ErrObjectExists if a claim with the
// same id was already allocated.
func Add(db sql.Executor, claim *types.Claim) error {
	_, err := db.Exec(`insert into claims (id, owner, height, state, allocated_at, owner_claims)
		values (?1, ?2, ?3, ?4, ?5, ?6);`,
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, claim.ID.Bytes())
			stmt.BindBytes(2, claim.Owner.Bytes())
			stmt.BindInt64(3, int64(claim.Height))
			stmt.BindInt64(4, int64(claim.State))
			stmt.BindInt64(5, int64(claim.AllocatedAt))
			stmt.BindInt64(6, int64(claim.OwnerClaims))
		}, nil,
	)
	if err != nil {
		return fmt.Errorf("add claim %v: %w", claim.ID, err)
	}
	return nil
}

func decode(claim *types.Claim) sql.Decoder {
	return func(stmt *sql.Statement) bool {
		stmt.ColumnBytes(0, claim.ID[:])
		stmt.ColumnBytes(1, claim.Owner[:])
		claim.Height = types.Height(stmt.ColumnInt64(2))
		claim.State = types.ClaimState(stmt.ColumnInt64(3))
		claim.AllocatedAt = types.Height(stmt.ColumnInt64(4))
		claim.OwnerClaims = uint64(stmt.ColumnInt64(5))
		return true
	}
}

const columns = "id, owner, height, state, allocated_at, owner_claims"

// Get returns the claim with the given id. Returns sql.ErrNotFound for
// unknown ids.
func Get(db sql.Executor, id types.ClaimID) (types.Claim, error) {
	var claim types.Claim
	rows, err := db.Exec("select "+columns+" from claims where id = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, id.Bytes())
		},
		decode(&claim),
	)
	if err != nil {
		return types.Claim{}, fmt.Errorf("get claim %v: %w", id, err)
	}
	if rows == 0 {
		return types.Claim{}, fmt.Errorf("claim %v: %w", id, sql.ErrNotFound)
	}
	return claim, nil
}

// GetByOwner returns the claim held by an owner for a target height, if
// any. Returns sql.ErrNotFound otherwise.
func GetByOwner(db sql.Executor, owner types.Address, height types.Height) (types.Claim, error) {
	var claim types.Claim
	rows, err := db.Exec("select "+columns+" from claims where owner = ?1 and height = ?2;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, owner.Bytes())
			stmt.BindInt64(2, int64(height))
		},
		decode(&claim),
	)
	if err != nil {
		return types.Claim{}, fmt.Errorf("get claim for %v at %d: %w", owner, height, err)
	}
	if rows == 0 {
		return types.Claim{}, fmt.Errorf("claim for %v at %d: %w", owner, height, sql.ErrNotFound)
	}
	return claim, nil
}

// GetByHeight returns every claim targeting the given height.
func GetByHeight(db sql.Executor, height types.Height) ([]types.Claim, error) {
	var rst []types.Claim
	_, err := db.Exec("select "+columns+" from claims where height = ?1 order by id asc;",
		func(stmt *sql.Statement) {
			stmt.BindInt64(1, int64(height))
		},
		func(stmt *sql.Statement) bool {
			var claim types.Claim
			decode(&claim)(stmt)
			rst = append(rst, claim)
			return true
		},
	)
	if err != nil {
		return nil, fmt.Errorf("claims at %d: %w", height, err)
	}
	return rst, nil
}

// UpdateState transitions the claim from one state to another. The update
// is compare-and-swap: it reports the number of updated rows, which is 0
// when the claim was not in the expected state. The returning clause makes
// the executor step once per changed row, a bare update always steps zero
// times.
func UpdateState(db sql.Executor, id types.ClaimID, from, to types.ClaimState) (int, error) {
	rows, err := db.Exec("update claims set state = ?3 where id = ?1 and state = ?2 returning id;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, id.Bytes())
			stmt.BindInt64(2, int64(from))
			stmt.BindInt64(3, int64(to))
		}, nil,
	)
	if err != nil {
		return 0, fmt.Errorf("update claim %v %v->%v: %w", id, from, to, err)
	}
	return rows, nil
}

// Promote flips pending claims whose target height entered the visibility
// window into the available state. Returns the number of promoted claims.
func Promote(db sql.Executor, upto types.Height) (int, error) {
	rows, err := db.Exec("update claims set state = ?2 where height <= ?1 and state = ?3 returning id;",
		func(stmt *sql.Statement) {
			stmt.BindInt64(1, int64(upto))
			stmt.BindInt64(2, int64(types.ClaimAvailable))
			stmt.BindInt64(3, int64(types.ClaimPending))
		}, nil,
	)
	if err != nil {
		return 0, fmt.Errorf("promote claims upto %d: %w", upto, err)
	}
	return rows, nil
}

// ExpireBefore sweeps claims whose validity window passed into the expired
// state. Returns the number of expired claims.
func ExpireBefore(db sql.Executor, height types.Height) (int, error) {
	rows, err := db.Exec("update claims set state = ?2 where height < ?1 and state in (?3, ?4) returning id;",
		func(stmt *sql.Statement) {
			stmt.BindInt64(1, int64(height))
			stmt.BindInt64(2, int64(types.ClaimExpired))
			stmt.BindInt64(3, int64(types.ClaimPending))
			stmt.BindInt64(4, int64(types.ClaimAvailable))
		}, nil,
	)
	if err != nil {
		return 0, fmt.Errorf("expire claims before %d: %w", height, err)
	}
	return rows, nil
}

// CountByOwner returns the number of claims ever allocated to an owner.
// The allocator uses it to weight against concentration.
func CountByOwner(db sql.Executor, owner types.Address) (uint64, error) {
	var count uint64
	_, err := db.Exec("select count(*) from claims where owner = ?1;",
		func(stmt *sql.Statement) {
			stmt.BindBytes(1, owner.Bytes())
		},
		func(stmt *sql.Statement) bool {
			count = uint64(stmt.ColumnInt64(0))
			return false
		},
	)
	if err != nil {
		return 0, fmt.Errorf("count claims of %v: %w", owner, err)
	}
	return count, nil
}

// All returns every claim, ordered by id so state hashes are reproducible.
func All(db sql.Executor) ([]types.Claim, error) {
	var rst []types.Claim
	_, err := db.Exec("select "+columns+" from claims order by id asc;", nil,
		func(stmt *sql.Statement) bool {
			var claim types.Claim
			decode(&claim)(stmt)
			rst = append(rst, claim)
			return true
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load all claims: %w", err)
	}
	return rst, nil
}
