package syncer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/homestead-network/go-homestead/chain"
	"github.com/homestead-network/go-homestead/claims"
	"github.com/homestead-network/go-homestead/codec"
	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/config"
	"github.com/homestead-network/go-homestead/ledger"
	"github.com/homestead-network/go-homestead/p2p"
	"github.com/homestead-network/go-homestead/rewards"
	"github.com/homestead-network/go-homestead/signing"
	"github.com/homestead-network/go-homestead/sql"
)

type node struct {
	db     *sql.Database
	chain  *chain.Chain
	signer *signing.EdSigner
}

func newNode(t *testing.T, signer *signing.EdSigner, genesis *config.GenesisConfig) *node {
	t.Helper()
	db := sql.InMemory(sql.WithSchema(sql.LedgerSchema))
	registry := claims.New(claims.Config{Window: 8, Lookahead: 4, PerHeight: 1})
	schedule := rewards.NewSchedule(rewards.Config{GenesisReward: 100, BlocksPerEpoch: 1000, FinalEpoch: 10})
	ch, err := chain.New(db, registry, schedule, genesis)
	require.NoError(t, err)
	return &node{db: db, chain: ch, signer: signer}
}

// mine extends the chain by one block signed with the node's claim.
func (n *node) mine(t *testing.T, registry *claims.Registry) *types.Block {
	t.Helper()
	head, headID := n.chain.Head()
	claim, err := registry.Eligible(n.db, n.signer.Address(), head+1)
	require.NoError(t, err)
	block := &types.Block{
		Header: types.BlockHeader{
			Height:      head + 1,
			PrevHash:    headID.Hash32(),
			Timestamp:   1700000000,
			Producer:    n.signer.Address(),
			ProducerKey: n.signer.NodeID(),
			ClaimID:     claim.ID,
			TxRoot:      types.CalcTxRoot(nil),
		},
	}
	block.Signature = n.signer.Sign(signing.BLOCK, block.SignedBytes())
	require.NoError(t, n.chain.Accept(context.Background(), block))
	return block
}

func syncConfig() config.Sync {
	return config.Sync{
		Interval:          10 * time.Millisecond,
		RequestTimeout:    5 * time.Second,
		ChunkSize:         512,
		MaxBufferedChunks: 8,
	}
}

func chunksOf(t *testing.T, source *Syncer) []*types.StateChunk {
	t.Helper()
	var buf bytes.Buffer
	req := codec.MustEncode(&types.SyncRequest{From: 0})
	require.NoError(t, source.HandleRequest(context.Background(), req, &buf))
	var chunks []*types.StateChunk
	for buf.Len() > 0 {
		var chunk types.StateChunk
		_, err := codec.DecodeFrom(&buf, &chunk)
		require.NoError(t, err)
		chunks = append(chunks, &chunk)
	}
	return chunks
}

func testSetup(t *testing.T) (*Syncer, *node) {
	t.Helper()
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	genesis := config.DefaultTestGenesisConfig()
	genesis.Accounts = map[string]uint64{signer.Address().String(): 1000}

	source := newNode(t, signer, &genesis)
	sourceRegistry := claims.New(claims.Config{Window: 8, Lookahead: 4, PerHeight: 1})
	for i := 0; i < 3; i++ {
		source.mine(t, sourceRegistry)
	}
	sourceSyncer := New(syncConfig(), source.db, source.chain, nil, nil)
	return sourceSyncer, source
}

func TestChunksRoundtrip(t *testing.T) {
	sourceSyncer, source := testSetup(t)
	chunks := chunksOf(t, sourceSyncer)
	require.NotEmpty(t, chunks)
	require.Greater(t, len(chunks), 1)

	sess := newSession(8)
	for i, chunk := range chunks {
		done, err := sess.add(chunk)
		require.NoError(t, err)
		require.Equal(t, i == len(chunks)-1, done)
	}
	snapshot, err := sess.snapshot()
	require.NoError(t, err)
	head, _ := source.chain.Head()
	require.Equal(t, head, snapshot.Head)
	require.Len(t, snapshot.Blocks, 4)
}

func TestChunksOutOfOrder(t *testing.T) {
	sourceSyncer, _ := testSetup(t)
	chunks := chunksOf(t, sourceSyncer)
	require.GreaterOrEqual(t, len(chunks), 3)

	// Deliver {2, 1, 3, ...}: buffered until 1 arrives, then drained in
	// index order.
	sess := newSession(8)
	done, err := sess.add(chunks[1])
	require.NoError(t, err)
	require.False(t, done)
	done, err = sess.add(chunks[0])
	require.NoError(t, err)
	require.Equal(t, len(chunks) == 2, done)
	for i := 2; i < len(chunks); i++ {
		done, err = sess.add(chunks[i])
		require.NoError(t, err)
	}
	require.True(t, done)
	snapshot, err := sess.snapshot()
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	// Duplicates of consumed chunks are no-ops.
	done, err = sess.add(chunks[0])
	require.NoError(t, err)
	require.True(t, done)
}

func TestChunkCorrupt(t *testing.T) {
	sourceSyncer, _ := testSetup(t)
	chunks := chunksOf(t, sourceSyncer)

	corrupt := *chunks[0]
	corrupt.Payload = append([]byte{}, corrupt.Payload...)
	corrupt.Payload[0]++
	sess := newSession(8)
	_, err := sess.add(&corrupt)
	require.ErrorIs(t, err, ErrChunkCorrupt)

	// The session survives and accepts the healthy chunk afterwards.
	_, err = sess.add(chunks[0])
	require.NoError(t, err)
}

func TestChunkBufferOverflow(t *testing.T) {
	sourceSyncer, _ := testSetup(t)
	chunks := chunksOf(t, sourceSyncer)
	require.GreaterOrEqual(t, len(chunks), 3)

	sess := newSession(1)
	_, err := sess.add(chunks[1])
	require.NoError(t, err)
	_, err = sess.add(chunks[2])
	require.ErrorIs(t, err, ErrBufferOverflow)
}

func TestFinalStateMismatch(t *testing.T) {
	sourceSyncer, _ := testSetup(t)
	chunks := chunksOf(t, sourceSyncer)

	// A stream that consistently declares a wrong final hash reassembles
	// but fails the final verification.
	sess := newSession(8)
	var done bool
	for _, chunk := range chunks {
		tampered := *chunk
		tampered.FinalHash = types.CalcHash32([]byte("lie"))
		var err error
		done, err = sess.add(&tampered)
		require.NoError(t, err)
	}
	require.True(t, done)
	_, err := sess.snapshot()
	require.ErrorIs(t, err, ErrStateMismatch)

	// A chunk disagreeing with the established stream header is refused.
	divergent := newSession(8)
	_, err = divergent.add(chunks[0])
	require.NoError(t, err)
	lying := *chunks[1]
	lying.FinalHash = types.CalcHash32([]byte("lie"))
	_, err = divergent.add(&lying)
	require.ErrorIs(t, err, ErrChunkMismatch)
}

func TestInstallSnapshot(t *testing.T) {
	sourceSyncer, source := testSetup(t)
	snapshot, err := BuildSnapshot(source.db, 0)
	require.NoError(t, err)

	// A fresh node with the same genesis, behind by three blocks.
	genesis := config.DefaultTestGenesisConfig()
	genesis.Accounts = map[string]uint64{source.signer.Address().String(): 1000}
	target := newNode(t, source.signer, &genesis)
	targetSyncer := New(syncConfig(), target.db, target.chain, nil, nil)

	require.NoError(t, targetSyncer.install(context.Background(), snapshot))
	head, headID := target.chain.Head()
	sourceHead, sourceID := source.chain.Head()
	require.Equal(t, sourceHead, head)
	require.Equal(t, sourceID, headID)
	require.NoError(t, targetSyncer.VerifyInstalled(snapshot.Hash()))

	// Balances transferred with the snapshot.
	sourceBalance, err := ledger.New(source.db).Balance(source.signer.Address())
	require.NoError(t, err)
	targetBalance, err := ledger.New(target.db).Balance(source.signer.Address())
	require.NoError(t, err)
	require.Equal(t, sourceBalance, targetBalance)

	// Installing the same snapshot again is a no-op.
	require.NoError(t, targetSyncer.install(context.Background(), snapshot))
	_ = sourceSyncer
}

func TestNotifyBehind(t *testing.T) {
	sourceSyncer, _ := testSetup(t)
	sourceSyncer.state.Store(uint32(stateSynced))
	require.True(t, sourceSyncer.IsSynced())
	sourceSyncer.NotifyBehind(10)
	require.False(t, sourceSyncer.IsSynced())
	// Lower heights do not regress the target.
	sourceSyncer.NotifyBehind(5)
	require.Equal(t, uint64(10), sourceSyncer.targetAt.Load())
}

func TestRunReachesSynced(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	genesis := config.DefaultTestGenesisConfig()
	genesis.Accounts = map[string]uint64{signer.Address().String(): 1000}
	n := newNode(t, signer, &genesis)

	clock := clockwork.NewFakeClock()
	s := New(syncConfig(), n.db, n.chain, nil, func() []p2p.Peer { return nil }, WithClock(clock))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	clock.BlockUntil(1)
	clock.Advance(syncConfig().Interval)
	require.Eventually(t, s.IsSynced, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
