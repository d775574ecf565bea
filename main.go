// go-homestead is a golang implementation of a homestead ledger node.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/homestead-network/go-homestead/cmd"
	"github.com/homestead-network/go-homestead/config"
	"github.com/homestead-network/go-homestead/node"
)

var (
	version string
	commit  string
	branch  string
)

func main() {
	cmd.Version = version
	cmd.Commit = commit
	cmd.Branch = branch
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "go-homestead",
		Short:   "start a homestead node",
		Version: fmt.Sprintf("%s+%s+%s", version, commit, branch),
		RunE: func(c *cobra.Command, args []string) error {
			conf, err := loadConfig(c)
			if err != nil {
				return fmt.Errorf("initialize config: %w", err)
			}
			app, err := node.New(*conf)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx)
		},
	}
	cmd.AddCommands(c)
	return c
}

// loadConfig reads the config file if one was passed and reapplies flags
// the user set on top of it.
func loadConfig(c *cobra.Command) (*config.Config, error) {
	conf := config.DefaultConfig()
	if path := viper.GetString("config"); path != "" {
		if err := config.LoadConfig(path, viper.GetViper(), &conf); err != nil {
			return nil, err
		}
	}
	if err := cmd.EnsureCLIFlags(c, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}
