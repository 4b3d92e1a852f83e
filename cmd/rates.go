package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fundrate/funding-arb/internal/app"
)

//nolint:gochecknoglobals // Cobra boilerplate
var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Print scored funding differentials and exit",
	Long: `Fetches market-wide funding rates on every configured venue,
scores all venue pairs and prints the selected opportunities with their
long/short routing. No streams are opened and no orders are placed.`,
	RunE: dumpRates,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(ratesCmd)
}

func dumpRates(cmd *cobra.Command, args []string) error {
	application, err := app.New(cmd.Context(), configPath)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	return application.Rates(cmd.Context())
}
