// Package backtest wires the timer, account, broker, portfolio and trading
// model into one simulation and reports its outcome.
package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/futuresim/account"
	"github.com/rustyeddy/futuresim/broker"
	"github.com/rustyeddy/futuresim/config"
	"github.com/rustyeddy/futuresim/internal/id"
	"github.com/rustyeddy/futuresim/journal"
	"github.com/rustyeddy/futuresim/logger"
	"github.com/rustyeddy/futuresim/market"
	"github.com/rustyeddy/futuresim/portfolio"
	"github.com/rustyeddy/futuresim/pricing"
	"github.com/rustyeddy/futuresim/rates"
	"github.com/rustyeddy/futuresim/risk"
	"github.com/rustyeddy/futuresim/strategies"
	"github.com/rustyeddy/futuresim/timer"
)

// DefaultVolWindow is the return window of a volatility table built during
// the run.
const DefaultVolWindow = 25

// Inputs are the market data a simulation runs over. FX, Interest and Vols
// are optional; without Vols a table is built from the settled series as the
// run advances. Model overrides the configured strategy.
type Inputs struct {
	Series   map[string]market.Series
	FX       *rates.FX
	Interest *rates.Interest
	Vols     *market.VolatilityTable
	Model    strategies.TradingModel
}

// Simulation owns every component of one run.
type Simulation struct {
	cfg   *config.Config
	log   zerolog.Logger
	runID string

	start, end time.Time
	markets    []string
	series     map[string]market.Series

	timer     *timer.Timer
	acct      *account.Account
	broker    *broker.Broker
	portfolio *portfolio.Portfolio
	model     strategies.TradingModel
	journal   journal.Journal

	vols      *market.VolatilityTable
	buildVols bool
	volWindow int

	fills  []portfolio.OrderResult
	equity []journal.EquityRecord
	report *journal.Report
}

// New builds a simulation. j may be nil when nothing is persisted.
func New(cfg *config.Config, in Inputs, j journal.Journal, log zerolog.Logger) (*Simulation, error) {
	if len(in.Series) == 0 {
		return nil, fmt.Errorf("backtest: no market series")
	}
	start, end, err := cfg.Dates()
	if err != nil {
		return nil, err
	}

	fx := in.FX
	if fx == nil {
		fx = rates.NewFX()
	}

	s := &Simulation{
		cfg:       cfg,
		log:       logger.Component(log, "backtest"),
		runID:     id.New(),
		start:     start,
		end:       end,
		series:    in.Series,
		journal:   j,
		vols:      in.Vols,
		volWindow: cfg.Rates.VolWindow,
	}
	for m := range in.Series {
		s.markets = append(s.markets, m)
	}
	sort.Strings(s.markets)

	if s.vols == nil {
		s.vols = market.NewVolatilityTable()
		s.buildVols = true
	}
	if s.volWindow <= 0 {
		s.volWindow = DefaultVolWindow
	}

	sizer, err := risk.New(cfg.Risk, s.vols)
	if err != nil {
		return nil, err
	}

	s.acct = account.New(cfg.Account.Currency, cfg.Account.Balance, start, fx)
	s.broker = broker.New(cfg.Broker, s.acct, in.Series, in.Interest, logger.Component(log, "broker"))
	s.portfolio = portfolio.New(cfg.Portfolio, in.Series, s.acct, sizer, s.vols, logger.Component(log, "portfolio"))

	s.model = in.Model
	if s.model == nil {
		if s.model, err = strategies.New(cfg.Strategy, in.Series); err != nil {
			return nil, err
		}
	}

	s.timer = timer.New(log)
	s.timer.On(timer.MarketOpen, s.onOpen)
	s.timer.On(timer.MarketClose, s.onClose)
	s.timer.On(timer.EODData, s.onEOD)
	s.timer.On(timer.Complete, s.onComplete)
	return s, nil
}

func (s *Simulation) RunID() string                   { return s.runID }
func (s *Simulation) Account() *account.Account       { return s.acct }
func (s *Simulation) Portfolio() *portfolio.Portfolio { return s.portfolio }
func (s *Simulation) Fills() []portfolio.OrderResult  { return append([]portfolio.OrderResult(nil), s.fills...) }

// Run drives the timer over the configured dates and returns the report
// built at completion.
func (s *Simulation) Run() (journal.Report, error) {
	s.log.Info().Str("run", s.runID).Str("strategy", s.model.Name()).
		Time("start", s.start).Time("end", s.end).Strs("markets", s.markets).Msg("simulation start")

	if err := s.timer.Start(s.start, s.end); err != nil {
		return journal.Report{}, err
	}
	return *s.report, nil
}

// onOpen executes the orders generated from yesterday's signals.
func (s *Simulation) onOpen(date, _ time.Time) error {
	orders, err := s.portfolio.Orders(date)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if !s.portfolio.Admit(o) {
			continue
		}
		res, err := s.broker.Transfer(o, s.portfolio.OpenPositions())
		if err != nil {
			return err
		}
		s.portfolio.OnFill(res)
		s.fills = append(s.fills, res)
	}
	s.portfolio.Sweep(date)
	return nil
}

// onClose settles the day and records the equity curve.
func (s *Simulation) onClose(date, prev time.Time) error {
	if err := s.broker.UpdateAccount(date, prev, s.portfolio.OpenPositions()); err != nil {
		return err
	}
	snap, err := s.acct.Snapshot(date)
	if err != nil {
		return err
	}
	loans := 0.0
	for cur, v := range snap.MarginLoans {
		loans += s.acct.BaseValue(v, cur, date)
	}
	s.equity = append(s.equity, journal.EquityRecord{
		Date:           date,
		Equity:         snap.Equity,
		AvailableFunds: snap.Equity - loans,
		MarginLoans:    loans,
	})
	return nil
}

// onEOD commits the day's data and studies, then asks the model for the
// signals of the next open.
func (s *Simulation) onEOD(date, _ time.Time) error {
	for _, m := range s.markets {
		ser := s.series[m]
		if _, err := ser.UpdateData(date); err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
		ser.UpdateStudies(date)
	}
	if s.buildVols {
		s.updateVolatility(date)
	}

	sigs, err := s.model.Signals(date, s.portfolio.OpenPositions())
	if err != nil {
		return fmt.Errorf("strategy %s: %w", s.model.Name(), err)
	}
	if len(sigs) > 0 {
		s.log.Debug().Time("date", date).Int("signals", len(sigs)).Msg("signals queued")
	}
	s.portfolio.AddSignals(sigs...)
	return nil
}

// updateVolatility adds the records for date computed over the trailing
// window of each settled series.
func (s *Simulation) updateVolatility(date time.Time) {
	tail := make(map[string][]pricing.Bar, len(s.markets))
	for _, m := range s.markets {
		bars := s.series[m].Bars()
		if n := s.volWindow + 1; len(bars) > n {
			bars = bars[len(bars)-n:]
		}
		tail[m] = bars
	}
	vt := market.BuildVolatilityTable(tail, s.volWindow)
	for _, m := range s.markets {
		if rec, ok := vt.Record(m, date); ok && rec.Date.Equal(date) {
			s.vols.Add(rec)
		}
	}
}

func (s *Simulation) onComplete(date, _ time.Time) error {
	r := s.buildReport(date)
	s.report = &r

	s.log.Info().Str("run", s.runID).Float64("equity", r.Run.EndEquity).Float64("net_pl", r.Run.NetPL).
		Int("trades", r.Run.Trades).Msg("simulation complete")

	if s.journal != nil {
		if err := s.journal.Write(r); err != nil {
			return err
		}
	}
	if path := s.cfg.Journal.OrgPath; path != "" {
		if err := journal.WriteRunOrg(path, r.Run, r.Positions); err != nil {
			return fmt.Errorf("org export: %w", err)
		}
	}
	return nil
}
