package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/futuresim/logger"
)

var rootCmd = &cobra.Command{
	Use:   "futuresim",
	Short: "A day-by-day futures portfolio backtester",
	Long: `Futuresim replays daily futures data through a simulated broker and
account ledger.

It provides tools for:
  - Continuous series from vendor feeds or stitched delivery contracts
  - Fixed-risk, volatility-targeted and correlation-weighted sizing
  - Daily mark-to-market, margin, FX translation and interest
  - SQLite and CSV journals of every run

Complete documentation is available at https://github.com/rustyeddy/futuresim`,
	SilenceUsage: true,
}

var (
	logLevel  string
	logPretty bool
	envFile   string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error); overrides the config")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", false, "human readable console logs")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with FUTURESIM_* overrides")
}

func newLogger(level string, pretty bool) zerolog.Logger {
	if logLevel != "" {
		level = logLevel
	}
	return logger.New(logger.Config{Level: level, Pretty: pretty || logPretty})
}
