package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/schema"
)

var schemaFormat string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the versioned entity schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := schema.Current().Marshal(schemaFormat)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	schemaCmd.Flags().StringVar(&schemaFormat, "format", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(schemaCmd)
}
