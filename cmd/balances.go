package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fundrate/funding-arb/internal/app"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Print wallet balances on every configured venue",
	RunE:  dumpBalances,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balancesCmd)
}

func dumpBalances(cmd *cobra.Command, args []string) error {
	application, err := app.New(cmd.Context(), configPath)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	return application.Balances(cmd.Context())
}
