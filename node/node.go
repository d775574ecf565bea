// Package node wires all components into a runnable peer and exposes the
// operator surface.
package node

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/homestead-network/go-homestead/blocks"
	"github.com/homestead-network/go-homestead/chain"
	"github.com/homestead-network/go-homestead/claims"
	"github.com/homestead-network/go-homestead/codec"
	"github.com/homestead-network/go-homestead/common/types"
	"github.com/homestead-network/go-homestead/config"
	"github.com/homestead-network/go-homestead/ledger"
	"github.com/homestead-network/go-homestead/log"
	"github.com/homestead-network/go-homestead/miner"
	"github.com/homestead-network/go-homestead/p2p"
	"github.com/homestead-network/go-homestead/p2p/pubsub"
	"github.com/homestead-network/go-homestead/p2p/server"
	"github.com/homestead-network/go-homestead/rewards"
	"github.com/homestead-network/go-homestead/signing"
	"github.com/homestead-network/go-homestead/sql"
	"github.com/homestead-network/go-homestead/syncer"
	"github.com/homestead-network/go-homestead/txs"
)

const (
	dbFileName    = "ledger.sql"
	mineInterval  = time.Second
	dbConnections = 16
)

// Node is a fully wired peer.
type Node struct {
	logger   *zap.Logger
	cfg      config.Config
	signer   *signing.EdSigner
	verifier *signing.EdVerifier

	db        *sql.Database
	ledger    *ledger.Ledger
	registry  *claims.Registry
	schedule  *rewards.Schedule
	chain     *chain.Chain
	pool      *txs.Mempool
	validator *txs.Validator
	txHandler *txs.Handler
	handler   *blocks.Handler
	miner     *miner.Miner
	syncer    *syncer.Syncer

	host     host.Host
	ps       *pubsub.PubSub
	syncSrv  *server.Server
}

// New builds a Node from the config. The identity key is loaded from the
// data directory, or created on first start.
func New(cfg config.Config) (*Node, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Logging.Level, err)
	}
	logger := log.NewWithLevel("node", level)
	types.SetNetworkHRP(cfg.NetworkHRP)
	if err := cfg.Genesis.Validate(); err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	prefix := cfg.Genesis.ID().Bytes()
	identityFile := filepath.Join(dataDir, cfg.IdentityFile)
	signer, err := signing.NewEdSigner(
		signing.WithPrefix(prefix),
		signing.FromFile(identityFile),
	)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no identity file, creating one", zap.String("path", identityFile))
		signer, err = signing.NewEdSigner(
			signing.WithPrefix(prefix),
			signing.ToFile(identityFile),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	verifier, err := signing.NewEdVerifier(signing.WithVerifierPrefix(prefix))
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("file:"+filepath.Join(dataDir, dbFileName),
		sql.WithLogger(logger.Named("sql")),
		sql.WithSchema(sql.LedgerSchema),
		sql.WithConnections(dbConnections),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	registry := claims.New(
		claims.Config{
			Window:    cfg.Consensus.ClaimWindow,
			Lookahead: cfg.Consensus.ClaimLookahead,
			PerHeight: claims.DefaultConfig().PerHeight,
		},
		claims.WithLogger(logger.Named("claims")),
	)
	schedule := rewards.NewSchedule(rewards.Config{
		GenesisReward:  cfg.Rewards.GenesisReward,
		BlocksPerEpoch: cfg.Rewards.BlocksPerEpoch,
		FinalEpoch:     cfg.Rewards.FinalEpoch,
	})
	ch, err := chain.New(db, registry, schedule, &cfg.Genesis,
		chain.WithLogger(logger.Named("chain")),
	)
	if err != nil {
		return nil, err
	}

	lgr := ledger.New(db, ledger.WithLogger(logger.Named("ledger")))
	pool := txs.NewMempool(txs.WithMempoolLogger(logger.Named("pool")))
	validator := txs.NewValidator(verifier)

	n := &Node{
		logger:    logger,
		cfg:       cfg,
		signer:    signer,
		verifier:  verifier,
		db:        db,
		ledger:    lgr,
		registry:  registry,
		schedule:  schedule,
		chain:     ch,
		pool:      pool,
		validator: validator,
	}
	n.txHandler = txs.NewHandler(logger.Named("txs"), validator, lgr, pool)
	n.logger.Info("node initialized",
		zap.Stringer("address", signer.Address()),
		zap.Stringer("genesis", cfg.Genesis.ID()),
	)
	return n, nil
}

// Run starts networking and all background loops, blocking until the
// context is canceled.
func (n *Node) Run(ctx context.Context) error {
	key, err := crypto.UnmarshalEd25519PrivateKey(n.signer.PrivateKey())
	if err != nil {
		return fmt.Errorf("convert identity key: %w", err)
	}
	n.host, err = p2p.New(p2p.Config{
		Listen:    n.cfg.P2P.Listen,
		Bootnodes: n.cfg.P2P.Bootnodes,
		MinPeers:  n.cfg.P2P.MinPeers,
	}, key)
	if err != nil {
		return err
	}
	defer n.host.Close()
	n.ps, err = pubsub.New(ctx, n.logger.Named("pubsub"), n.host)
	if err != nil {
		return err
	}

	n.syncer = syncer.New(n.cfg.Sync, n.db, n.chain, nil, n.peers,
		syncer.WithLogger(n.logger.Named("syncer")),
	)
	n.syncSrv = server.New(n.host, syncer.Protocol, n.syncer.HandleRequest,
		server.WithLogger(n.logger.Named("sync-srv")),
		server.WithRequestSizeLimit(1<<10),
	)
	n.syncer.SetClient(n.syncSrv)

	n.handler = blocks.NewHandler(n.db, n.chain, n.registry, n.validator, n.verifier, n.pool,
		blocks.WithLogger(n.logger.Named("blocks")),
		blocks.WithBehindSignal(n.syncer),
	)
	n.miner = miner.New(
		miner.Config{MaxBlockTxs: n.cfg.Consensus.MaxBlockTxs, Interval: mineInterval},
		n.db, n.signer, n.chain, n.registry, n.pool, n.ps,
		miner.WithLogger(n.logger.Named("miner")),
		miner.WithSyncedCheck(n.syncer.IsSynced),
	)

	if err := n.ps.Register(pubsub.TopicTransactions, n.gated(n.txHandler.HandleGossip)); err != nil {
		return err
	}
	if err := n.ps.Register(pubsub.TopicBlocks, n.gated(n.handler.HandleGossip)); err != nil {
		return err
	}
	if err := p2p.Bootstrap(ctx, n.logger.Named("p2p"), n.host, p2p.Config(n.cfg.P2P)); err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return n.syncSrv.Run(ctx) })
	eg.Go(func() error { return n.syncer.Run(ctx) })
	eg.Go(func() error { return n.miner.Run(ctx) })
	if n.cfg.CollectMetrics {
		eg.Go(func() error { return n.serveMetrics(ctx) })
	}
	n.logger.Info("node started",
		zap.Stringer("peer_id", n.host.ID()),
		zap.String("listen", n.cfg.P2P.Listen),
	)
	err = eg.Wait()
	if closeErr := n.db.Close(); closeErr != nil {
		n.logger.Warn("failed to close database", zap.Error(closeErr))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// gated wraps a gossip handler so it ignores traffic until the node is
// synced. Ignored messages are not relayed but do not penalize the peer.
func (n *Node) gated(handler pubsub.GossipHandler) pubsub.GossipHandler {
	return func(ctx context.Context, peer p2p.Peer, msg []byte) pubsub.ValidationResult {
		if !n.syncer.IsSynced() {
			return pubsub.ValidationIgnore
		}
		return handler(ctx, peer, msg)
	}
}

func (n *Node) peers() []p2p.Peer {
	return n.host.Network().Peers()
}

func (n *Node) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", n.cfg.MetricsPort),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Address returns the node's ledger address.
func (n *Node) Address() types.Address {
	return n.signer.Address()
}

// Head returns the finalized tip.
func (n *Node) Head() (types.Height, types.BlockID) {
	return n.chain.Head()
}

// Balance returns the committed balance of an address.
func (n *Node) Balance(address types.Address) (uint64, error) {
	return n.ledger.Balance(address)
}

// Synced reports whether the node participates in consensus.
func (n *Node) Synced() bool {
	return n.syncer.IsSynced()
}

// Mine attempts to produce the next block immediately. It fails with
// claims.ErrClaimNotEligible when the node holds no claim for the next
// height.
func (n *Node) Mine(ctx context.Context) (*types.Block, error) {
	return n.miner.MineOnce(ctx)
}

// Send signs a transfer from the node's account, admits it to the local
// pool and gossips it.
func (n *Node) Send(ctx context.Context, to types.Address, amount uint64) (*types.Transaction, error) {
	view, err := n.ledger.Snapshot()
	if err != nil {
		return nil, err
	}
	tx := &types.Transaction{
		TxBody: types.TxBody{
			Sender:    n.signer.Address(),
			SenderKey: n.signer.NodeID(),
			Receiver:  to,
			Amount:    amount,
			Nonce:     n.pool.NextNonce(n.signer.Address(), view),
		},
	}
	tx.Signature = n.signer.Sign(signing.TRANSACTION, tx.SignedBytes())
	if err := n.pool.Add(tx, view); err != nil {
		return nil, err
	}
	if err := n.ps.Publish(ctx, pubsub.TopicTransactions, codec.MustEncode(tx)); err != nil {
		n.logger.Warn("failed to gossip transaction", zap.Stringer("tid", tx.ID()), zap.Error(err))
	}
	return tx, nil
}
