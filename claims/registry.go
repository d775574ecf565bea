package claims

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/sql"
	"github.com/homestead-network/go-homestead/sql/accounts"
	sqlclaims "github.com/homestead-network/go-homestead/sql/claims"
)

var (
	// ErrClaimNotFound is returned for claims the registry never allocated.
	ErrClaimNotFound = errors.New("claim not found")
	// ErrClaimAlreadyUsed is returned when a claim left the available state.
	ErrClaimAlreadyUsed = errors.New("claim already used")
	// ErrClaimNotEligible is returned when an address holds no available
	// claim for the requested height.
	ErrClaimNotEligible = errors.New("no eligible claim")
)

// Config for the registry.
type Config struct {
	// Window is how many heights ahead of the head a claim becomes
	// available to its owner.
	Window uint64 `mapstructure:"window"`
	// Lookahead is how many heights ahead allocations are maintained.
	Lookahead uint64 `mapstructure:"lookahead"`
	// PerHeight is the number of claims allocated per target height.
	// Backups keep the chain alive when a claim holder is offline.
	PerHeight int `mapstructure:"per-height"`
}

// DefaultConfig for the registry.
func DefaultConfig() Config {
	return Config{Window: 8, Lookahead: 4, PerHeight: 3}
}

// Opt modifies Registry.
type Opt func(*Registry)

// WithLogger sets the logger for Registry.
func WithLogger(logger *zap.Logger) Opt {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithAllocator overrides the allocation strategy.
func WithAllocator(allocator Allocator) Opt {
	return func(r *Registry) {
		r.allocator = allocator
	}
}

// Registry tracks claim lifecycle. All mutating methods take the executor
// of the block transaction they belong to, so claim transitions commit or
// roll back together with the block that caused them.
type Registry struct {
	logger    *zap.Logger
	cfg       Config
	allocator Allocator
}

// New creates a Registry.
func New(cfg Config, opts ...Opt) *Registry {
	r := &Registry{
		logger:    zap.NewNop(),
		cfg:       cfg,
		allocator: NewWeightedAllocator(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Eligible returns the available claim held by the owner for the height.
func (r *Registry) Eligible(db sql.Executor, owner types.Address, height types.Height) (types.Claim, error) {
	claim, err := sqlclaims.GetByOwner(db, owner, height)
	if err != nil {
		if errors.Is(err, sql.ErrNotFound) {
			return types.Claim{}, fmt.Errorf("%w: %s at %d", ErrClaimNotEligible, owner, height)
		}
		return types.Claim{}, fmt.Errorf("claim lookup: %w", err)
	}
	if claim.State != types.ClaimAvailable {
		return types.Claim{}, fmt.Errorf("%w: claim %s is %s", ErrClaimNotEligible, claim.ID.ShortString(), claim.State)
	}
	return claim, nil
}

// Validate checks that the referenced claim entitles the producer to the
// block at the given height.
func (r *Registry) Validate(db sql.Executor, id types.ClaimID, producer types.Address, height types.Height) error {
	claim, err := sqlclaims.Get(db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNotFound) {
			return fmt.Errorf("%w: unknown claim %s", ErrClaimNotEligible, id.ShortString())
		}
		return fmt.Errorf("claim lookup: %w", err)
	}
	switch {
	case claim.Owner != producer:
		return fmt.Errorf("%w: claim %s owned by %s, not %s",
			ErrClaimNotEligible, id.ShortString(), claim.Owner, producer)
	case claim.Height != height:
		return fmt.Errorf("%w: claim %s targets %d, not %d",
			ErrClaimNotEligible, id.ShortString(), claim.Height, height)
	case claim.State != types.ClaimAvailable:
		return fmt.Errorf("%w: claim %s is %s", ErrClaimNotEligible, id.ShortString(), claim.State)
	}
	return nil
}

// MarkClaimed consumes the claim. The transition is compare-and-swap so two
// racing producers cannot both spend it: the loser gets
// ErrClaimAlreadyUsed.
func (r *Registry) MarkClaimed(db sql.Executor, id types.ClaimID) error {
	rows, err := sqlclaims.UpdateState(db, id, types.ClaimAvailable, types.ClaimClaimed)
	if err != nil {
		return fmt.Errorf("mark claimed: %w", err)
	}
	if rows == 0 {
		if _, err := sqlclaims.Get(db, id); errors.Is(err, sql.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrClaimNotFound, id.ShortString())
		} else if err != nil {
			return fmt.Errorf("claim lookup: %w", err)
		}
		return fmt.Errorf("%w: %s", ErrClaimAlreadyUsed, id.ShortString())
	}
	return nil
}

// Consume spends the claim within a block transaction. Unlike MarkClaimed
// it tolerates a claim already claimed, which happens when the local
// producer marked it before handing the block to the chain.
func (r *Registry) Consume(db sql.Executor, id types.ClaimID) error {
	rows, err := sqlclaims.UpdateState(db, id, types.ClaimAvailable, types.ClaimClaimed)
	if err != nil {
		return fmt.Errorf("consume claim: %w", err)
	}
	if rows > 0 {
		return nil
	}
	claim, err := sqlclaims.Get(db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrClaimNotFound, id.ShortString())
		}
		return fmt.Errorf("claim lookup: %w", err)
	}
	if claim.State != types.ClaimClaimed {
		return fmt.Errorf("%w: %s is %s", ErrClaimAlreadyUsed, id.ShortString(), claim.State)
	}
	return nil
}

// OnBlockApplied advances the registry after the block at head was applied:
// unused claims at or below head expire, pending claims inside the window
// become available and missing allocations up to the lookahead horizon are
// filled. The seed is the hash of the applied block so the draw replays on
// every node.
func (r *Registry) OnBlockApplied(db sql.Executor, head types.Height, seed types.Hash32) error {
	expired, err := sqlclaims.ExpireBefore(db, head+1)
	if err != nil {
		return fmt.Errorf("expire claims: %w", err)
	}
	if expired > 0 {
		claimsExpired.Add(float64(expired))
		r.logger.Debug("expired unused claims", zap.Int("count", expired), zap.Uint64("head", head.Uint64()))
	}
	if _, err := sqlclaims.Promote(db, head.Add(r.cfg.Window)); err != nil {
		return fmt.Errorf("promote claims: %w", err)
	}
	for offset := uint64(1); offset <= r.cfg.Lookahead; offset++ {
		if err := r.allocate(db, head, head.Add(offset), seed); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) allocate(db sql.Executor, head, target types.Height, seed types.Hash32) error {
	existing, err := sqlclaims.GetByHeight(db, target)
	if err != nil {
		return fmt.Errorf("existing claims at %d: %w", target, err)
	}
	if len(existing) > 0 {
		return nil
	}
	candidates, err := r.candidates(db)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		r.logger.Warn("no candidates for claim allocation", zap.Uint64("height", target.Uint64()))
		return nil
	}
	state := types.ClaimPending
	if target <= head.Add(r.cfg.Window) {
		state = types.ClaimAvailable
	}
	winners := r.allocator.Pick(seed, target, candidates, r.cfg.PerHeight)
	for _, winner := range winners {
		owned, err := sqlclaims.CountByOwner(db, winner)
		if err != nil {
			return fmt.Errorf("count claims: %w", err)
		}
		claim := types.Claim{
			ID:          types.CalcClaimID(seed, target, winner),
			Owner:       winner,
			Height:      target,
			State:       state,
			AllocatedAt: head,
			OwnerClaims: owned,
		}
		if err := sqlclaims.Add(db, &claim); err != nil {
			return fmt.Errorf("allocate claim: %w", err)
		}
		claimsAllocated.Inc()
		r.logger.Debug("allocated claim", zap.Object("claim", &claim))
	}
	return nil
}

// candidates lists every address with on-chain history, in address order.
// Allocation weight decays with the number of claims ever held.
func (r *Registry) candidates(db sql.Executor) ([]Candidate, error) {
	all, err := accounts.All(db)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	candidates := make([]Candidate, 0, len(all))
	for _, account := range all {
		owned, err := sqlclaims.CountByOwner(db, account.Address)
		if err != nil {
			return nil, fmt.Errorf("count claims: %w", err)
		}
		candidates = append(candidates, Candidate{Address: account.Address, Claims: owned})
	}
	return candidates, nil
}
