package syncer

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/homestead-network/go-homestead/codec"
	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/sql"
	sqlaccounts "github.com/homestead-network/go-homestead/sql/accounts"
	sqlblocks "github.com/homestead-network/go-homestead/sql/blocks"
	sqlclaims "github.com/homestead-network/go-homestead/sql/claims"
)

// BuildSnapshot assembles the transferable node state: all accounts and
// claims in canonical order plus the block log starting at the requested
// height.
func BuildSnapshot(db sql.Executor, from types.Height) (*types.StateSnapshot, error) {
	head, err := sqlblocks.Head(db)
	if err != nil {
		return nil, fmt.Errorf("load head: %w", err)
	}
	accounts, err := sqlaccounts.All(db)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	claims, err := sqlclaims.All(db)
	if err != nil {
		return nil, fmt.Errorf("load claims: %w", err)
	}
	blocks, err := sqlblocks.Since(db, from)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	return &types.StateSnapshot{
		Head:     head,
		Accounts: accounts,
		Claims:   claims,
		Blocks:   blocks,
	}, nil
}

// HandleRequest serves one sync stream: it snapshots local state, slices it
// into verifiable chunks and writes them to the stream in order.
func (s *Syncer) HandleRequest(ctx context.Context, req []byte, stream io.ReadWriter) error {
	var request types.SyncRequest
	if err := codec.Decode(req, &request); err != nil {
		return fmt.Errorf("decode sync request: %w", err)
	}
	snapshot, err := BuildSnapshot(s.db, request.From)
	if err != nil {
		return err
	}
	payload := codec.MustEncode(snapshot)
	final := snapshot.Hash()

	size := s.cfg.ChunkSize
	if size <= 0 {
		size = len(payload)
	}
	total := uint32((len(payload) + size - 1) / size)
	if total == 0 {
		total = 1
	}
	wr := bufio.NewWriter(stream)
	for index := uint32(0); index < total; index++ {
		start := int(index) * size
		end := min(start+size, len(payload))
		chunk := types.StateChunk{
			Index:       index,
			Total:       total,
			Head:        snapshot.Head,
			PayloadHash: types.CalcHash32(payload[start:end]),
			FinalHash:   final,
			Payload:     payload[start:end],
		}
		if _, err := codec.EncodeTo(wr, &chunk); err != nil {
			return fmt.Errorf("write chunk %d: %w", index, err)
		}
		chunksServed.Inc()
	}
	if err := wr.Flush(); err != nil {
		return fmt.Errorf("flush sync stream: %w", err)
	}
	s.logger.Debug("served sync stream",
		zap.Uint64("from", request.From.Uint64()),
		zap.Uint64("head", snapshot.Head.Uint64()),
		zap.Uint32("chunks", total),
	)
	return nil
}
