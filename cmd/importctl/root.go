package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mohammadpnp/school-import/internal/bootstrap"
	"github.com/mohammadpnp/school-import/internal/config"
	"github.com/mohammadpnp/school-import/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "importctl",
		Short:         "Import school spreadsheets in resumable batches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// openApp loads configuration and connects to the record store. The caller
// owns the returned App and must Close it.
func openApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	logger.SetOutput(os.Stderr)

	return bootstrap.New(ctx, cfg, logger)
}
