package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "market-trust-core",
	Short: "Trust graph, token ledger and exchange workflows for the marketplace",
	Long: `market-trust-core serves the marketplace's trust levels, token ledger,
order and barter workflows over HTTP. Configuration is read from the
environment and an optional .env file.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
