package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func NewActionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions [view|list|cancel]",
		Short: "Actions manager",
		Long:  `View, list and cancel remediation actions.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View action",
		Long:  `View a remediation action.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			a, err := ksdk.GetAction(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, a)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List actions",
		Long:  `List remediation actions.`,
		Run: func(cmd *cobra.Command, args []string) {
			p, err := ksdk.ListActions(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel action",
		Long:  `Cancel a pending remediation action.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := ksdk.CancelAction(args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Successfully canceled action")
		},
	}

	cmd.AddCommand(viewCmd)
	cmd.AddCommand(listCmd)
	cmd.AddCommand(cancelCmd)

	return cmd
}

func NewRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules [list|enable|disable]",
		Short: "Rules manager",
		Long:  `List, enable and disable optimization rules.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		Long:  `List loaded optimization rules.`,
		Run: func(cmd *cobra.Command, args []string) {
			res, err := ksdk.ListRules()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}

	enableCmd := &cobra.Command{
		Use:   "enable <id>",
		Short: "Enable rule",
		Long:  `Re-enable a rule.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := ksdk.EnableRule(args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Successfully enabled rule")
		},
	}

	disableCmd := &cobra.Command{
		Use:   "disable <id>",
		Short: "Disable rule",
		Long:  `Disable a rule.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := ksdk.DisableRule(args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Successfully disabled rule")
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(enableCmd)
	cmd.AddCommand(disableCmd)

	return cmd
}

func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy [reload]",
		Short: "Policy manager",
		Long:  `Upload and apply policy documents.`,
	}

	reloadCmd := &cobra.Command{
		Use:   "reload <file>",
		Short: "Reload policy",
		Long: `Upload a YAML policy document and apply it.

Examples:
  kaizen-cli policy reload ./policy.yaml`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if err := ksdk.ReloadPolicy(data); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Successfully reloaded policy")
		},
	}

	cmd.AddCommand(reloadCmd)

	return cmd
}
