package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/node"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "meshd",
	Short: "Genesis Mesh node daemon",
	Long: `meshd runs one mesh participant: it loads or joins a trust chain
identity, dials its configured bootstrap anchors, and then keeps the
distance-vector routing table, CRL gossip, and certificate renewal
loops running until told to stop.`,
	RunE: runDaemon,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(node.ExitFatal)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().StringVar(&configPath, "config", "meshd.yaml", "path to the node's YAML configuration file")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := node.LoadConfig(configPath)
	if err != nil {
		os.Exit(node.ExitCode(err))
	}

	n, err := node.New(cfg)
	if err != nil {
		os.Exit(node.ExitCode(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := n.Bootstrap(ctx); err != nil {
		logger.ErrorMsg("bootstrap failed", logger.Error(err))
		os.Exit(node.ExitCode(err))
	}

	logger.Info("meshd starting", logger.String("listen_address", cfg.ListenAddress))
	if err := n.Run(ctx); err != nil {
		logger.ErrorMsg("node run failed", logger.Error(err))
		os.Exit(node.ExitCode(err))
	}
	return nil
}
