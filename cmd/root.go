package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/homestead-network/go-homestead/cmd/flags"
	cfg "github.com/homestead-network/go-homestead/config"
)

var config = cfg.DefaultConfig()

// AddCommands adds cobra commands to the app.
func AddCommands(cmd *cobra.Command) {
	/** ======================== BaseConfig Flags ========================== **/
	cmd.PersistentFlags().StringVarP(&config.BaseConfig.ConfigFile,
		"config", "c", config.BaseConfig.ConfigFile, "Load configuration from file")
	cmd.PersistentFlags().StringVarP(&config.BaseConfig.DataDirParent, "data-folder", "d",
		config.BaseConfig.DataDirParent, "Specify data directory for homestead")
	cmd.PersistentFlags().StringVar(&config.BaseConfig.IdentityFile, "identity-file",
		config.BaseConfig.IdentityFile, "Name of the identity key file inside the data directory")
	cmd.PersistentFlags().StringVar(&config.BaseConfig.NetworkHRP, "network-hrp",
		config.BaseConfig.NetworkHRP, "Bech32 prefix for addresses")
	cmd.PersistentFlags().StringVar(&config.Logging.Level, "log-level",
		config.Logging.Level, "Minimal log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&config.CollectMetrics, "metrics",
		config.CollectMetrics, "collect node metrics")
	cmd.PersistentFlags().IntVar(&config.MetricsPort, "metrics-port",
		config.MetricsPort, "metric server port")

	/** ======================== Genesis Flags ========================== **/
	cmd.PersistentFlags().StringVar(&config.Genesis.Time, "genesis-time",
		config.Genesis.Time, "Time of the genesis block in 2019-02-13T17:02:00+00:00 format")
	cmd.PersistentFlags().StringVar(&config.Genesis.ExtraData, "genesis-extra-data",
		config.Genesis.ExtraData, "Arbitrary data to distinguish networks launched at the same time")
	cmd.PersistentFlags().VarP(flags.NewStringToUint64Value(config.Genesis.Accounts), "accounts", "a",
		"List of prefunded accounts")

	/** ======================== Consensus Flags ========================== **/
	cmd.PersistentFlags().Uint64Var(&config.Consensus.ClaimWindow, "claim-window",
		config.Consensus.ClaimWindow, "number of heights ahead of the head at which claims become available")
	cmd.PersistentFlags().Uint64Var(&config.Consensus.ClaimLookahead, "claim-lookahead",
		config.Consensus.ClaimLookahead, "number of future heights that carry allocated claims")
	cmd.PersistentFlags().IntVar(&config.Consensus.MaxBlockTxs, "max-block-txs",
		config.Consensus.MaxBlockTxs, "max number of transactions to pack into one block")

	/** ======================== Rewards Flags ========================== **/
	cmd.PersistentFlags().Uint64Var(&config.Rewards.GenesisReward, "genesis-reward",
		config.Rewards.GenesisReward, "amount minted to the first genesis account")
	cmd.PersistentFlags().Uint64Var(&config.Rewards.BlocksPerEpoch, "blocks-per-epoch",
		config.Rewards.BlocksPerEpoch, "length of a reward epoch in blocks")
	cmd.PersistentFlags().Uint64Var(&config.Rewards.FinalEpoch, "final-epoch",
		config.Rewards.FinalEpoch, "epoch at which decaying reward categories reach zero")

	/** ======================== P2P Flags ========================== **/
	cmd.PersistentFlags().StringVar(&config.P2P.Listen, "listen",
		config.P2P.Listen, "address for listening")
	cmd.PersistentFlags().StringSliceVar(&config.P2P.Bootnodes, "bootnodes",
		config.P2P.Bootnodes, "entrypoints into the network")
	cmd.PersistentFlags().IntVar(&config.P2P.MinPeers, "min-peers",
		config.P2P.MinPeers, "minimum number of reachable bootnodes required at startup")

	/** ======================== Sync Flags ========================== **/
	cmd.PersistentFlags().DurationVar(&config.Sync.Interval, "sync-interval",
		config.Sync.Interval, "interval between sync attempts while out of sync")
	cmd.PersistentFlags().DurationVar(&config.Sync.RequestTimeout, "sync-request-timeout",
		config.Sync.RequestTimeout, "timeout for a whole sync session")
	cmd.PersistentFlags().IntVar(&config.Sync.ChunkSize, "sync-chunk-size",
		config.Sync.ChunkSize, "payload size the responder slices state into")
	cmd.PersistentFlags().IntVar(&config.Sync.MaxBufferedChunks, "sync-max-buffered-chunks",
		config.Sync.MaxBufferedChunks, "max out-of-order chunks held before a session restarts")

	// Bind Flags to config
	err := viper.BindPFlags(cmd.PersistentFlags())
	if err != nil {
		fmt.Println("an error has occurred while binding flags:", err)
	}
}
