package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/futuresim/backtest"
	"github.com/rustyeddy/futuresim/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest from a config file",
	Long: `Run a futures backtest using settings from a configuration file.

The config file names the markets and their data files, the strategy, the
sizing method and the broker terms. FUTURESIM_LOG_LEVEL, FUTURESIM_DB_PATH
and FUTURESIM_DATA_DIR from the environment or the --env file override it.

Example:
  futuresim run -f backtest.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "file", "f", "", "path to config file (YAML or JSON) (required)")
	_ = runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.LoadEnv(envFile); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := newLogger(cfg.Log.Level, cfg.Log.Pretty)

	in, err := backtest.Load(cfg)
	if err != nil {
		log.Error().Err(err).Msg("load data")
		return err
	}

	j, err := backtest.OpenJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	sim, err := backtest.New(cfg, in, j, log)
	if err != nil {
		log.Error().Err(err).Msg("configure simulation")
		return err
	}
	report, err := sim.Run()
	if err != nil {
		log.Error().Err(err).Msg("simulation failed")
		return err
	}

	r := report.Run
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRun %s (%s, %s)\n", r.RunID, r.Strategy, r.Markets)
	fmt.Fprintf(out, "  Period:       %s to %s\n", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	fmt.Fprintf(out, "  Start equity: %.2f %s\n", r.StartEquity, r.BaseCurrency)
	fmt.Fprintf(out, "  End equity:   %.2f %s\n", r.EndEquity, r.BaseCurrency)
	fmt.Fprintf(out, "  Net P/L:      %.2f (%.2f%%)\n", r.NetPL, r.ReturnPct)
	fmt.Fprintf(out, "  Max drawdown: %.2f%%\n", r.MaxDDPct)
	fmt.Fprintf(out, "  Trades:       %d (%d wins, %d losses)\n", r.Trades, r.Wins, r.Losses)
	switch cfg.Journal.Type {
	case "sqlite":
		fmt.Fprintf(out, "\nResults saved to: %s\n", cfg.Journal.DBPath)
	case "csv":
		fmt.Fprintf(out, "\nResults saved to: %s/%s\n", cfg.Journal.Dir, r.RunID)
	}
	return nil
}
