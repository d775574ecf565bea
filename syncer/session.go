package syncer

import (
	"errors"
	"fmt"

	"github.com/homestead-network/go-homestead/codec"
	"github.com/homestead-network/go-homestead/common/types"
)

var (
	// ErrChunkCorrupt is returned when a chunk payload does not match its
	// declared hash.
	ErrChunkCorrupt = errors.New("chunk payload corrupt")
	// ErrChunkMismatch is returned when a chunk disagrees with the stream
	// header established by the first chunk.
	ErrChunkMismatch = errors.New("chunk does not belong to stream")
	// ErrBufferOverflow is returned when too many out-of-order chunks
	// accumulate. The session must restart.
	ErrBufferOverflow = errors.New("sync buffer overflow")
	// ErrStateMismatch is returned when the rebuilt state does not hash to
	// the declared final hash.
	ErrStateMismatch = errors.New("rebuilt state does not match declared hash")
)

// session reassembles one chunked state stream. Chunks may arrive in any
// order; a bounded buffer holds chunks ahead of the next expected index and
// duplicates of already consumed indices are dropped.
type session struct {
	maxBuffered int

	started   bool
	total     uint32
	head      types.Height
	finalHash types.Hash32

	next    uint32
	payload []byte
	buffer  map[uint32]*types.StateChunk
}

func newSession(maxBuffered int) *session {
	return &session{
		maxBuffered: maxBuffered,
		buffer:      make(map[uint32]*types.StateChunk),
	}
}

// add consumes one chunk and reports whether the stream is complete.
func (s *session) add(chunk *types.StateChunk) (bool, error) {
	if types.CalcHash32(chunk.Payload) != chunk.PayloadHash {
		return false, fmt.Errorf("%w: chunk %d", ErrChunkCorrupt, chunk.Index)
	}
	if !s.started {
		if chunk.Total == 0 {
			return false, fmt.Errorf("%w: zero chunk count", ErrChunkMismatch)
		}
		s.started = true
		s.total = chunk.Total
		s.head = chunk.Head
		s.finalHash = chunk.FinalHash
	} else if chunk.Total != s.total || chunk.FinalHash != s.finalHash {
		return false, fmt.Errorf("%w: chunk %d", ErrChunkMismatch, chunk.Index)
	}
	if chunk.Index >= s.total {
		return false, fmt.Errorf("%w: index %d of %d", ErrChunkMismatch, chunk.Index, s.total)
	}

	switch {
	case chunk.Index < s.next:
		// Duplicate of an already consumed chunk.
	case chunk.Index == s.next:
		s.payload = append(s.payload, chunk.Payload...)
		s.next++
		for {
			buffered, ok := s.buffer[s.next]
			if !ok {
				break
			}
			delete(s.buffer, s.next)
			s.payload = append(s.payload, buffered.Payload...)
			s.next++
		}
	default:
		if _, ok := s.buffer[chunk.Index]; !ok && len(s.buffer) >= s.maxBuffered {
			return false, fmt.Errorf("%w: %d chunks held", ErrBufferOverflow, len(s.buffer))
		}
		s.buffer[chunk.Index] = chunk
	}
	return s.next == s.total, nil
}

// snapshot decodes the reassembled payload and verifies it against the
// declared final state hash.
func (s *session) snapshot() (*types.StateSnapshot, error) {
	var snapshot types.StateSnapshot
	if err := codec.Decode(s.payload, &snapshot); err != nil {
		return nil, fmt.Errorf("decode state snapshot: %w", err)
	}
	if snapshot.Hash() != s.finalHash {
		return nil, ErrStateMismatch
	}
	if snapshot.Head != s.head {
		return nil, fmt.Errorf("%w: head %d, declared %d", ErrStateMismatch, snapshot.Head, s.head)
	}
	return &snapshot, nil
}
