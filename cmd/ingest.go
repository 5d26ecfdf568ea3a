package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/ingest"
)

var ingestFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a batch payload from a JSON file or stdin",
	Long:  "Processes a batch payload exactly as POST /webhook/batch does and prints the batch summary. Use --file - to read stdin.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var r io.Reader = cmd.InOrStdin()
		if ingestFile != "-" {
			f, err := os.Open(ingestFile)
			if err != nil {
				return eris.Wrap(err, "open payload")
			}
			defer f.Close() //nolint:errcheck
			r = f
		}

		p, err := ingest.DecodePayload(r)
		if err != nil {
			return err
		}

		env, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Gateway.Ingest(ctx, p)
		if err != nil {
			return err
		}
		zap.L().Info("ingest complete",
			zap.String("batch_id", summary.BatchID),
			zap.String("status", string(summary.Status)),
			zap.Int("accepted", summary.Accepted),
			zap.Int("rejected", summary.Rejected),
		)
		return printJSON(cmd.OutOrStdout(), summary)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "-", "payload JSON file, - for stdin")
	rootCmd.AddCommand(ingestCmd)
}
