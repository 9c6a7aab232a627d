package backtest

import (
	"fmt"

	"github.com/rustyeddy/futuresim/config"
	"github.com/rustyeddy/futuresim/data"
	"github.com/rustyeddy/futuresim/journal"
	"github.com/rustyeddy/futuresim/market"
)

// Load reads every data file cfg names and builds the market series.
func Load(cfg *config.Config) (Inputs, error) {
	in := Inputs{Series: make(map[string]market.Series, len(cfg.Markets))}

	for _, m := range cfg.Markets {
		code := m.Instrument.Code
		bars, err := data.LoadBars(cfg.Path(m.Bars))
		if err != nil {
			return Inputs{}, fmt.Errorf("market %s: %w", code, err)
		}

		var s market.Series
		switch m.Source {
		case config.SourceContracts:
			strategy, err := m.Roll.Strategy()
			if err != nil {
				return Inputs{}, fmt.Errorf("market %s: %w", code, err)
			}
			s, err = market.NewContractSeries(m.Instrument, bars, strategy, m.Studies)
			if err != nil {
				return Inputs{}, err
			}
		default:
			var rolls []market.Roll
			if m.Rolls != "" {
				if rolls, err = data.LoadRolls(cfg.Path(m.Rolls)); err != nil {
					return Inputs{}, fmt.Errorf("market %s: %w", code, err)
				}
			}
			s, err = market.NewVendorSeries(m.Instrument, bars, rolls, m.Studies)
			if err != nil {
				return Inputs{}, err
			}
		}
		in.Series[code] = s
	}

	var err error
	if in.FX, err = data.LoadFX(paths(cfg, cfg.Rates.FX)...); err != nil {
		return Inputs{}, err
	}
	if in.Interest, err = data.LoadInterest(paths(cfg, cfg.Rates.Interest)...); err != nil {
		return Inputs{}, err
	}
	if cfg.Rates.Volatility != "" {
		in.Vols, err = data.LoadVolatility(cfg.Path(cfg.Rates.Volatility), cfg.Path(cfg.Rates.Correlation))
		if err != nil {
			return Inputs{}, err
		}
	}
	return in, nil
}

func paths(cfg *config.Config, ps []string) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = cfg.Path(p)
	}
	return out
}

// OpenJournal opens the journal cfg selects, or nil for "none".
func OpenJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	case "csv":
		return journal.NewCSV(cfg.Journal.Dir)
	}
	return nil, nil
}
