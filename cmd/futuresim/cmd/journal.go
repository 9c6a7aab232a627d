package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/futuresim/journal"
	"github.com/rustyeddy/futuresim/pricing"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query backtest journal data",
	Long: `Query and display backtest runs from a SQLite journal.

Subcommands:
  runs    - List every run
  show    - Print a run with its positions as Org-mode
  equity  - Print the daily equity of a run
  ledger  - Print the transactions of a run

Examples:
  futuresim journal runs
  futuresim journal show <run-id>
  futuresim journal equity <run-id> --from 2021-01-01 --to 2022-01-01`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List every run",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run with its positions as Org-mode",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity <run-id>",
	Short: "Print the daily equity of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEquity,
}

var journalLedgerCmd = &cobra.Command{
	Use:   "ledger <run-id>",
	Short: "Print the transactions of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalLedger,
}

var (
	journalDBPath string
	equityFrom    string
	equityTo      string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalEquityCmd)
	journalCmd.AddCommand(journalLedgerCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./futuresim.db", "path to SQLite journal DB")
	journalEquityCmd.Flags().StringVar(&equityFrom, "from", "1900-01-01", "first date (YYYY-MM-DD)")
	journalEquityCmd.Flags().StringVar(&equityTo, "to", "2999-12-31", "end date, exclusive (YYYY-MM-DD)")
}

func openJournal() (*journal.SQLite, error) {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns()
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %-12s %-20s %s..%s  pl=%.2f  trades=%d\n",
			r.RunID, r.Strategy, r.Markets, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"), r.NetPL, r.Trades)
	}
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	run, err := j.GetRun(args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	positions, err := j.ListPositions(run.RunID)
	if err != nil {
		return fmt.Errorf("query positions: %w", err)
	}
	s, err := journal.FormatRunOrg(run, positions)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), s)
	return nil
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	start, end, err := dateRange(equityFrom, equityTo)
	if err != nil {
		return err
	}
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListEquityBetween(args[0], start, end)
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, e := range recs {
		fmt.Fprintf(out, "%s  equity=%.2f  available=%.2f  margin=%.2f\n",
			e.Date.Format("2006-01-02"), e.Equity, e.AvailableFunds, e.MarginLoans)
	}
	return nil
}

func runJournalLedger(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	txs, err := j.ListTransactions(args[0])
	if err != nil {
		return fmt.Errorf("query transactions: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, t := range txs {
		fmt.Fprintf(out, "%s  %-24s %-6s %14.2f %s  %s\n",
			t.Date.Format("2006-01-02"), t.Type, t.Side, t.Amount, t.Currency, t.Reference)
	}
	return nil
}

func dateRange(from, to string) (time.Time, time.Time, error) {
	start, err := pricing.ParseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
	}
	end, err := pricing.ParseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
	}
	return start, end, nil
}
