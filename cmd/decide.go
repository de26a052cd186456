package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/app"
	"github.com/kilianp07/smartcharge/infra/logger"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Run one decision cycle and print the snapshot",
	RunE:  decideOnce,
}

func init() {
	rootCmd.AddCommand(decideCmd)
}

func decideOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("decide-command").Errorf("service close: %v", err)
		}
	}()

	if err := svc.RunOnce(ctx); err != nil {
		return err
	}
	snap, err := svc.Snapshot(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
