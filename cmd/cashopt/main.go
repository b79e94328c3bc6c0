package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"inventory-intel/config"
	"inventory-intel/internal/app"
	"inventory-intel/internal/util"

	"github.com/spf13/cobra"
)

var application *app.App

var rootCmd = &cobra.Command{
	Use:   "cashopt",
	Short: "Inventory cash-optimization engines",
	Long: `Run the inventory intelligence engines against the catalog database.

Each command takes the same lock as the HTTP API and the command worker, so a
scheduled run is skipped while another invocation of the same engine is active.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := util.InitLogger(cfg.Server.Env); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		var err error
		application, err = app.New(cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			application.Close()
		}
		util.SyncLogger()
	},
}

// commandContext is cancelled on SIGINT or SIGTERM
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
