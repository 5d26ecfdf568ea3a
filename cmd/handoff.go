package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/handoff"
	"github.com/sells-group/leadgen-cli/internal/lifecycle"
)

var (
	handoffActor  string
	handoffOut    string
	feedbackSheet string
)

var handoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Export QA Approved leads to a call sheet and mark them sent",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		actor := handoffActor
		if actor == "" {
			actor = cfg.Handoff.Actor
		}
		out := handoffOut
		if out == "" {
			out = defaultCallSheetPath(cfg.Handoff.OutputDir, time.Now())
		}

		env, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Handoff.Export(ctx, out, lifecycle.Actor{Role: lifecycle.RoleQA, ID: actor})
		if err != nil {
			return err
		}
		zap.L().Info("handoff complete",
			zap.String("path", res.Path),
			zap.Int("exported", res.Exported),
			zap.Int("moved", len(res.Moved)),
			zap.Int("failed", len(res.Failed)),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var handoffFeedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Apply call-centre outcomes from an XLSX sheet",
	Long:  "Reads a sheet with Lead ID, Outcome, Agent and optional Notes columns and moves each lead to its outcome status as the named agent.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		rows, err := handoff.ReadFeedback(feedbackSheet)
		if err != nil {
			return err
		}

		env, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.Handoff.ApplyFeedback(ctx, rows)
		zap.L().Info("feedback applied",
			zap.String("file", feedbackSheet),
			zap.Int("moved", len(res.Moved)),
			zap.Int("failed", len(res.Failed)),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func defaultCallSheetPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("call-sheet-%s.xlsx", now.Format("2006-01-02-150405")))
}

func init() {
	handoffCmd.Flags().StringVar(&handoffActor, "actor", "", "QA reviewer handing the leads off (default from config)")
	handoffCmd.Flags().StringVar(&handoffOut, "out", "", "output XLSX path (default handoff.output_dir/call-sheet-<time>.xlsx)")

	handoffFeedbackCmd.Flags().StringVar(&feedbackSheet, "file", "", "outcome XLSX (required)")
	_ = handoffFeedbackCmd.MarkFlagRequired("file")

	handoffCmd.AddCommand(handoffFeedbackCmd)
	rootCmd.AddCommand(handoffCmd)
}
