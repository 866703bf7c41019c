package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfold/polymarket-bot/internal/app"
	"github.com/quantfold/polymarket-bot/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trading bot",
	Long: `Starts the trading bot, which will:
1. Scan Polymarket for liquid markets and maintain a late-market watch-list
2. Run the arbitrage and late-market detectors over live orderbooks
3. Validate every signal against the risk limits
4. Execute trades (synthetic fills in dry-run mode, real orders otherwise)
5. Settle positions and track daily P&L once markets resolve

All configuration is environment-driven; see .env.example.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	// Load config
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create logger
	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
