package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "predictarb",
	Short: "Cross-venue arbitrage execution engine",
	Long: `Execution engine for cross-venue arbitrage on binary prediction
markets: it rests a limit order on the predict venue, tracks fills through
REST polling and on-chain events, and incrementally hedges every fill on a
Polymarket-style CLOB while a cost guard re-validates the edge on each
book update.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
