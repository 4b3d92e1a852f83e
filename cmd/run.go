package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fundrate/funding-arb/internal/app"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full arbitrage cycle",
	Long: `Runs the full pipeline once:
1. Fetch market-wide funding rates on every configured venue
2. Select venue-exclusive opportunities above the net threshold
3. Warm the order books, size and margin-configure each opportunity
4. Open, hold through funding, close favorably and journal each trade

The process exits 0 once every trade coordinator has finished, and
nonzero if screening fails before any coordinator starts.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, configPath)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run(ctx)
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
