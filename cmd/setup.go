package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/schema"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/pkg/notion"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the Sources, Batches and Leads databases in Notion",
	Long:  "Creates the three workspace databases under notion.parent_page_id, seeds the default sources and writes the database ids to notion.config_file.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("setup"); err != nil {
			return err
		}

		client := initNotion()
		dbs, err := notion.Setup(ctx, client, cfg.Notion.ParentPageID, schema.Current())
		if err != nil {
			return err
		}
		if err := notion.WriteConfig(cfg.Notion.ConfigFile, dbs); err != nil {
			return err
		}

		retry := resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)
		st, err := store.NewNotion(client, dbs.IDs(), store.WithNotionRetry(retry))
		if err != nil {
			return err
		}
		created, err := store.NewRepository(st).SeedSources(ctx, model.DefaultSources())
		if err != nil {
			return eris.Wrap(err, "seed sources")
		}

		zap.L().Info("notion workspace ready",
			zap.String("config_file", cfg.Notion.ConfigFile),
			zap.Int("sources_seeded", created),
		)
		return printJSON(cmd.OutOrStdout(), dbs)
	},
}

var seedSourcesCmd = &cobra.Command{
	Use:   "seed-sources",
	Short: "Add the default lead sources to the configured store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		created, err := env.Repo.SeedSources(ctx, model.DefaultSources())
		if err != nil {
			return err
		}
		zap.L().Info("sources seeded", zap.Int("created", created))

		sources, err := env.Repo.ListSources(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sources)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd, seedSourcesCmd)
}
