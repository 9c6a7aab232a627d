package backtest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/futuresim/account"
	"github.com/rustyeddy/futuresim/config"
	"github.com/rustyeddy/futuresim/indicators"
	"github.com/rustyeddy/futuresim/journal"
	"github.com/rustyeddy/futuresim/market"
	"github.com/rustyeddy/futuresim/portfolio"
	"github.com/rustyeddy/futuresim/pricing"
	"github.com/rustyeddy/futuresim/strategies"
	"github.com/rustyeddy/futuresim/timer"
)

var week = []time.Time{
	pricing.Date(2024, time.March, 4),
	pricing.Date(2024, time.March, 5),
	pricing.Date(2024, time.March, 6),
	pricing.Date(2024, time.March, 7),
	pricing.Date(2024, time.March, 8),
}

// script replays fixed signals keyed by date.
type script map[int64][]portfolio.Signal

func (s script) Name() string { return "script" }

func (s script) Signals(date time.Time, _ []*portfolio.Position) ([]portfolio.Signal, error) {
	return s[pricing.DayKey(date)], nil
}

type failing struct{}

func (failing) Name() string { return "failing" }

func (failing) Signals(time.Time, []*portfolio.Position) ([]portfolio.Signal, error) {
	return nil, errors.New("model blew up")
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Simulation.Start = "2024-03-04"
	cfg.Simulation.End = "2024-03-08"
	cfg.Rates.VolWindow = 2
	cfg.Journal.Type = "none"
	return cfg
}

func testInputs(t *testing.T, model strategies.TradingModel) Inputs {
	t.Helper()

	inst := market.Instrument{Code: "ES", Currency: "USD", PointValue: 50, TickSize: 0.25}
	feed := []pricing.Bar{
		{Date: week[0], Contract: "2024M", Open: 99, High: 102, Low: 98, Settle: 100, Volume: 1000},
		{Date: week[1], Contract: "2024M", Open: 100, High: 103, Low: 99, Settle: 101, Volume: 1000},
		{Date: week[2], Contract: "2024M", Open: 101, High: 104, Low: 100, Settle: 103, Volume: 1000},
		{Date: week[3], Contract: "2024M", Open: 103, High: 105, Low: 101, Settle: 102, Volume: 1000},
		{Date: week[4], Contract: "2024M", Open: 102, High: 104, Low: 100, Settle: 103, Volume: 1000},
	}
	s, err := market.NewVendorSeries(inst, feed, nil, []indicators.Spec{{Name: "atr", Kind: indicators.KindATR, Window: 1}})
	require.NoError(t, err)
	return Inputs{Series: map[string]market.Series{"ES": s}, Model: model}
}

func enterThenExit() script {
	return script{
		pricing.DayKey(week[0]): {{Type: portfolio.Enter, Market: "ES", Date: week[0], Forecast: 10}},
		pricing.DayKey(week[2]): {{Type: portfolio.Exit, Market: "ES", Date: week[2]}},
	}
}

func TestSimulationRoundTrip(t *testing.T) {
	t.Parallel()

	sim, err := New(testConfig(), testInputs(t, enterThenExit()), nil, zerolog.Nop())
	require.NoError(t, err)

	report, err := sim.Run()
	require.NoError(t, err)

	fills := sim.Fills()
	require.Len(t, fills, 2)
	assert.Equal(t, portfolio.BuyToOpen, fills[0].Order.Type)
	assert.Equal(t, week[1], fills[0].Date)
	assert.Equal(t, portfolio.SellToClose, fills[1].Order.Type)
	assert.Equal(t, week[3], fills[1].Date)
	for _, f := range fills {
		assert.Equal(t, portfolio.Filled, f.Status)
		assert.Equal(t, 10, f.Quantity)
	}

	assert.Empty(t, sim.Portfolio().OpenPositions())
	require.Len(t, sim.Portfolio().ClosedPositions(), 1)

	run := report.Run
	assert.Equal(t, sim.RunID(), run.RunID)
	assert.Equal(t, "script", run.Strategy)
	assert.Equal(t, 1, run.Trades)
	assert.InDelta(t, run.EndEquity-run.StartEquity, run.NetPL, 1e-9)
	assert.Len(t, report.Equity, len(week))
	assert.Len(t, report.Fills, 2)
	require.Len(t, report.Positions, 1)
	assert.InDelta(t, run.NetPL, report.Positions[0].RealizedPL, 1e-6)
	assert.NotEmpty(t, report.Studies)

	// Equity is the initial balance plus every booked non-loan amount.
	total := run.StartEquity
	for _, tx := range sim.Account().AllTransactions() {
		if tx.Type() != account.MarginLoan {
			total += tx.Signed()
		}
	}
	assert.InDelta(t, run.EndEquity, total, 1e-6)

	// The position's margin is released by the close.
	last := report.Equity[len(report.Equity)-1]
	assert.InDelta(t, 0.0, last.MarginLoans, 1e-9)
	assert.InDelta(t, last.Equity, last.AvailableFunds, 1e-9)

	v, ok := sim.vols.Volatility("ES", week[4])
	require.True(t, ok)
	assert.Greater(t, v, 0.0)
}

func TestSimulationNoopKeepsBalance(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	in := testInputs(t, nil)
	cfg.Strategy.Name = "noop"

	sim, err := New(cfg, in, nil, zerolog.Nop())
	require.NoError(t, err)
	report, err := sim.Run()
	require.NoError(t, err)

	assert.Equal(t, "noop", report.Run.Strategy)
	assert.InDelta(t, cfg.Account.Balance, report.Run.EndEquity, 1e-9)
	assert.Zero(t, report.Run.Trades)
	assert.Empty(t, report.Transactions)
	assert.Zero(t, report.Run.MaxDDPct)
}

func TestSimulationStopsOnListenerError(t *testing.T) {
	t.Parallel()

	sim, err := New(testConfig(), testInputs(t, failing{}), nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = sim.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EOD_DATA 2024-03-04")
	assert.Contains(t, err.Error(), "model blew up")
}

func TestSimulationWithoutBusinessDays(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Simulation.Start = "2024-03-09"
	cfg.Simulation.End = "2024-03-10"

	sim, err := New(cfg, testInputs(t, enterThenExit()), nil, zerolog.Nop())
	require.NoError(t, err)
	_, err = sim.Run()
	assert.ErrorIs(t, err, timer.ErrNoBusinessDays)
}

func TestSimulationWritesJournals(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig()
	cfg.Journal.OrgPath = filepath.Join(dir, "run.org")

	db, err := journal.NewSQLite(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sim, err := New(cfg, testInputs(t, enterThenExit()), db, zerolog.Nop())
	require.NoError(t, err)
	report, err := sim.Run()
	require.NoError(t, err)

	run, err := db.GetRun(sim.RunID())
	require.NoError(t, err)
	assert.InDelta(t, report.Run.EndEquity, run.EndEquity, 1e-9)

	txs, err := db.ListTransactions(sim.RunID())
	require.NoError(t, err)
	assert.Len(t, txs, len(report.Transactions))

	org, err := os.ReadFile(cfg.Journal.OrgPath)
	require.NoError(t, err)
	assert.Contains(t, string(org), "* BACKTEST: script ES")
}

func TestLoadFromConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("ES.csv", "date,contract,open,high,low,settle,volume\n"+
		"2024-03-04,2024M,99,102,98,100,1000\n"+
		"2024-03-05,2024M,100,103,99,101,1000\n")
	write("CL.csv", "date,contract,open,high,low,settle,volume\n"+
		"2024-03-04,2024J,78,79,77,78.5,500\n"+
		"2024-03-04,2024K,77,78,76,77.5,300\n")
	write("fx.csv", "date,pair,rate\n2024-03-01,EURUSD,1.08\n")
	write("vol.csv", "date,market,return,deviation,movement_vol,deviation_vol\n2024-03-04,ES,0.01,0,0.012,0.003\n")

	cfg := testConfig()
	cfg.Simulation.DataDir = dir
	cfg.Rates.FX = []string{"fx.csv"}
	cfg.Rates.Volatility = "vol.csv"
	cl := cfg.Markets[0]
	cl.Instrument.Code = "CL"
	cl.Instrument.PointValue = 1000
	cl.Instrument.TickSize = 0.01
	cl.Source = config.SourceContracts
	cl.Bars = "CL.csv"
	cfg.Markets = append(cfg.Markets, cl)
	require.NoError(t, cfg.Validate())

	in, err := Load(cfg)
	require.NoError(t, err)
	require.Len(t, in.Series, 2)
	assert.IsType(t, &market.VendorSeries{}, in.Series["ES"])
	assert.IsType(t, &market.ContractSeries{}, in.Series["CL"])

	r, ok := in.FX.Rate("EUR", "USD", week[0])
	require.True(t, ok)
	assert.InDelta(t, 1.08, r, 1e-12)

	v, ok := in.Vols.Volatility("ES", week[1])
	require.True(t, ok)
	assert.InDelta(t, 0.012, v, 1e-12)

	cfg.Markets[0].Bars = "missing.csv"
	_, err = Load(cfg)
	assert.Error(t, err)
}
