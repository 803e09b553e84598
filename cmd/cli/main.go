package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/autonomiq/kaizen/cli"
	"github.com/autonomiq/kaizen/pkg/sdk"
)

const (
	defEngineURL       = "http://localhost:7080"
	defTLSVerification = false
)

func main() {
	var engineURL string

	rootCmd := &cobra.Command{
		Use:   "kaizen-cli",
		Short: "Kaizen CLI",
		Long:  `Kaizen CLI is a command line interface for interacting with the continuous improvement engine.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				EngineURL:       engineURL,
				TLSVerification: defTLSVerification,
			}
			s := sdk.NewSDK(sdkConf)
			cli.SetEngineSDK(s)
		},
	}

	rootCmd.PersistentFlags().StringVarP(
		&engineURL,
		"engine-url",
		"e",
		defEngineURL,
		"Engine HTTP API URL",
	)

	rootCmd.AddCommand(cli.NewFederationCmd())
	rootCmd.AddCommand(cli.NewModelsCmd())
	rootCmd.AddCommand(cli.NewBudgetsCmd())
	rootCmd.AddCommand(cli.NewTelemetryCmd())
	rootCmd.AddCommand(cli.NewAnomaliesCmd())
	rootCmd.AddCommand(cli.NewActionsCmd())
	rootCmd.AddCommand(cli.NewRulesCmd())
	rootCmd.AddCommand(cli.NewPolicyCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
