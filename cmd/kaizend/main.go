package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/autonomiq/kaizen/kaizend"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kaizend",
		Short: "Kaizen Daemon",
		Long:  `Kaizen Daemon manages the lifecycle of the continuous improvement engine.`,
	}

	rootCmd.AddCommand(kaizend.NewEngineCmd())
	rootCmd.AddCommand(kaizend.NewInitCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
