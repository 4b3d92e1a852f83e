package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var configPath string

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "funding-arb",
	Short: "Funding-rate arbitrage executor",
	Long: `Funding-rate arbitrage executor over Binance USDT-M futures and
ByBit linear contracts.

The bot screens market-wide funding rates on both venues, pairs tickers
whose net funding differential clears the threshold, opens a hedged
long/short position across the two venues, collects one funding payment
and closes at the first favorable recombination of the books.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "main_config.json", "Path to the main configuration file")
}
