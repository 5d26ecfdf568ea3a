package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scoring"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Inspect and move individual leads",
}

var (
	transitionFlags transitionRequest
	rescoreFlags    rescoreRequest
	listStatus      string
)

var leadShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Print a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		l, err := env.Repo.GetLead(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), l)
	},
}

var leadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, optionally by status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		filter := store.Filter{}
		if listStatus != "" {
			status, err := model.ParseLeadStatus(listStatus)
			if err != nil {
				return err
			}
			filter[model.FieldStatus] = string(status)
		}

		env, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		leads, err := env.Repo.ListLeads(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), leads)
	},
}

var leadTransitionCmd = &cobra.Command{
	Use:   "transition <lead-id>",
	Short: "Move a lead to a new status",
	Long:  "Applies one workflow transition, e.g. --to \"QA Rejected\" --role qa --actor thandi --reason \"Too small\".",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := transitionFlags.toRequest()
		if err != nil {
			return err
		}

		env, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		l, err := env.Lifecycle.Transition(ctx, args[0], req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), l)
	},
}

var leadRescoreCmd = &cobra.Command{
	Use:   "rescore <lead-id>",
	Short: "Replace a lead's scoring inputs and recompute its score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		l, err := env.Lifecycle.Rescore(ctx, args[0], scoring.Input{
			FleetLikelihood: rescoreFlags.FleetLikelihood,
			TrackingNeed:    rescoreFlags.TrackingNeed,
			FleetSize:       model.FleetSize(rescoreFlags.FleetSize),
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), l)
	},
}

func init() {
	leadListCmd.Flags().StringVar(&listStatus, "status", "", "only leads with this status")

	f := leadTransitionCmd.Flags()
	f.StringVar(&transitionFlags.To, "to", "", "target status (required)")
	f.StringVar(&transitionFlags.Role, "role", "qa", "acting role: ingestion, qa, call_centre")
	f.StringVar(&transitionFlags.Actor, "actor", "", "acting user (required)")
	f.StringVar(&transitionFlags.RejectionReason, "reason", "", "rejection reason, required for QA Rejected")
	f.StringVar(&transitionFlags.Notes, "notes", "", "QA notes or call-centre feedback")
	_ = leadTransitionCmd.MarkFlagRequired("to")
	_ = leadTransitionCmd.MarkFlagRequired("actor")

	f = leadRescoreCmd.Flags()
	f.IntVar(&rescoreFlags.FleetLikelihood, "likelihood", 0, "fleet likelihood 0-10")
	f.IntVar(&rescoreFlags.TrackingNeed, "need", 0, "tracking need 0-10")
	f.StringVar(&rescoreFlags.FleetSize, "size", string(model.FleetSizeUnknown), "fleet size bucket")
	_ = leadRescoreCmd.MarkFlagRequired("likelihood")
	_ = leadRescoreCmd.MarkFlagRequired("need")

	leadCmd.AddCommand(leadShowCmd, leadListCmd, leadTransitionCmd, leadRescoreCmd)
	rootCmd.AddCommand(leadCmd)
}
