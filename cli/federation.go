package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/autonomiq/kaizen/pkg/sdk"
)

var (
	defOffset uint64 = 0
	defLimit  uint64 = 10

	updateCohort  string
	updateRound   uint64
	updateDelta   []float64
	updateWeight  int64
	updateEpsilon float64
)

var ksdk sdk.SDK

func SetEngineSDK(s sdk.SDK) {
	ksdk = s
}

func NewFederationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "federation [submit|close|status]",
		Short: "Federation manager",
		Long:  `Submit model updates, close rounds and inspect round status.`,
	}

	submitCmd := &cobra.Command{
		Use:   "submit <participant_id>",
		Short: "Submit model update",
		Long: `Submit a participant model update to the open round.

Examples:
  kaizen-cli federation submit edge-7 --cohort eu-west --round 3 --delta 0.1,-0.2 --weight 120 --epsilon 0.5`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			err := ksdk.SubmitUpdate(sdk.ModelUpdate{
				ParticipantID: args[0],
				Cohort:        updateCohort,
				Round:         updateRound,
				Delta:         updateDelta,
				Weight:        updateWeight,
				Epsilon:       updateEpsilon,
			})
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Successfully submitted update")
		},
	}

	submitCmd.Flags().StringVar(&updateCohort, "cohort", "", "Cohort the participant belongs to")
	submitCmd.Flags().Uint64Var(&updateRound, "round", 0, "Round the update targets")
	submitCmd.Flags().Float64SliceVar(&updateDelta, "delta", []float64{}, "Parameter delta vector (comma-separated)")
	submitCmd.Flags().Int64Var(&updateWeight, "weight", 1, "Sample count backing the update")
	submitCmd.Flags().Float64Var(&updateEpsilon, "epsilon", 0, "Privacy cost of the update")

	closeCmd := &cobra.Command{
		Use:   "close",
		Short: "Close round",
		Long:  `Close the open round and publish the aggregated model.`,
		Run: func(cmd *cobra.Command, args []string) {
			m, err := ksdk.CloseRound()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Round status",
		Long:  `View the open round status.`,
		Run: func(cmd *cobra.Command, args []string) {
			s, err := ksdk.RoundStatus()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, s)
		},
	}

	cmd.AddCommand(submitCmd)
	cmd.AddCommand(closeCmd)
	cmd.AddCommand(statusCmd)

	return cmd
}

func NewModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models [view|list]",
		Short: "Models manager",
		Long:  `View and list published global models.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view <version>",
		Short: "View model",
		Long:  `View a published model by version.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			v, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			m, err := ksdk.GetModel(v)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List models",
		Long:  `List published models.`,
		Run: func(cmd *cobra.Command, args []string) {
			p, err := ksdk.ListModels(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	cmd.AddCommand(viewCmd)
	cmd.AddCommand(listCmd)

	return cmd
}

func NewBudgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets [view|list]",
		Short: "Budgets manager",
		Long:  `View and list cohort privacy budgets.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view <cohort>",
		Short: "View budget",
		Long:  `View the privacy budget of a cohort.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			b, err := ksdk.GetBudget(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, b)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List budgets",
		Long:  `List cohort privacy budgets.`,
		Run: func(cmd *cobra.Command, args []string) {
			p, err := ksdk.ListBudgets(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	cmd.AddCommand(viewCmd)
	cmd.AddCommand(listCmd)

	return cmd
}
