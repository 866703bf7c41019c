package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polymarket-bot",
	Short: "Automated Polymarket trading bot",
	Long: `Automated trading bot for Polymarket prediction markets.

It runs three strategies side by side:
  - one-of-many arbitrage: buy every outcome of a categorical market
    when the best asks sum below 1
  - yes/no arbitrage: the binary variant of the same trade
  - late-market directional: follow the spot move on short-horizon
    crypto up/down markets in the final minutes before close

A risk guard caps position sizes and total exposure and halts trading
after consecutive failures or a daily loss limit.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
