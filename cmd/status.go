package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statusDays int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the QA queue, pipeline counts and recent batch yield",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Monitor.Collect(ctx, statusDays)
		if err != nil {
			return err
		}
		if len(snap.StuckBatches) > 0 {
			zap.L().Warn("batches still running", zap.Strings("batch_ids", snap.StuckBatches))
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusDays, "days", 7, "batch lookback window in days (0 for all)")
	rootCmd.AddCommand(statusCmd)
}
