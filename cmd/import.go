package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/ingest"
)

var (
	importCSVPath string
	importBatchID string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from a CSV file as one batch",
	Long:  "Reads leads from a CSV whose header row uses the payload field names (company_name, cipc_reg, ...) and ingests them under --batch.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close() //nolint:errcheck

		leads, err := ingest.ReadCSV(f)
		if err != nil {
			return eris.Wrap(err, "import csv")
		}

		env, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Gateway.Ingest(ctx, &ingest.Payload{BatchID: importBatchID, Leads: leads})
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("csv", importCSVPath),
			zap.String("batch_id", summary.BatchID),
			zap.Int("rows", len(leads)),
			zap.Int("accepted", summary.Accepted),
		)
		return printJSON(cmd.OutOrStdout(), summary)
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	importCmd.Flags().StringVar(&importBatchID, "batch", "", "batch id, BATCH-<YYYY-MM-DD>-<suffix> (required)")
	_ = importCmd.MarkFlagRequired("csv")
	_ = importCmd.MarkFlagRequired("batch")
	rootCmd.AddCommand(importCmd)
}
