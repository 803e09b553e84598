package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/autonomiq/kaizen/pkg/sdk"
)

var sampleSegment string

func NewTelemetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telemetry [send]",
		Short: "Telemetry manager",
		Long:  `Send telemetry samples for evaluation.`,
	}

	sendCmd := &cobra.Command{
		Use:   "send <metric> <value>",
		Short: "Send sample",
		Long: `Send a telemetry sample.

Examples:
  kaizen-cli telemetry send latency_p99 412.5 --segment eu-west`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			v, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if err := ksdk.SendSample(sdk.Sample{
				Metric:  args[0],
				Segment: sampleSegment,
				Value:   v,
			}); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Successfully sent sample")
		},
	}

	sendCmd.Flags().StringVar(&sampleSegment, "segment", "", "Segment the sample belongs to")

	cmd.AddCommand(sendCmd)

	return cmd
}

func NewAnomaliesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anomalies [view|list]",
		Short: "Anomalies manager",
		Long:  `View and list anomaly records.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View anomaly",
		Long:  `View an anomaly record.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			a, err := ksdk.GetAnomaly(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, a)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List anomalies",
		Long:  `List anomaly records.`,
		Run: func(cmd *cobra.Command, args []string) {
			p, err := ksdk.ListAnomalies(defOffset, defLimit)
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
