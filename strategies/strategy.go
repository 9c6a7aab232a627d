// Package strategies holds the trading models that turn settled market data
// into signals for the next market open.
package strategies

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/futuresim/market"
	"github.com/rustyeddy/futuresim/portfolio"
)

// TradingModel produces the signals for the next market open from the data
// settled on date.
type TradingModel interface {
	Name() string
	Signals(date time.Time, open []*portfolio.Position) ([]portfolio.Signal, error)
}

// DefaultForecast is the forecast strength an average signal carries.
const DefaultForecast = 10.0

// Config selects and parameterizes a trading model.
type Config struct {
	Name    string   `json:"name" yaml:"name"`
	Markets []string `json:"markets,omitempty" yaml:"markets,omitempty"`

	// FastStudy and SlowStudy name the EMA studies ema-cross compares.
	FastStudy string `json:"fast_study,omitempty" yaml:"fast_study,omitempty"`
	SlowStudy string `json:"slow_study,omitempty" yaml:"slow_study,omitempty"`
	// ChannelStudy names the HHLL study breakout trades.
	ChannelStudy string `json:"channel_study,omitempty" yaml:"channel_study,omitempty"`

	Forecast float64 `json:"forecast,omitempty" yaml:"forecast,omitempty"`
	// RebalanceDays asks for a rebalance of held positions every n days.
	RebalanceDays int `json:"rebalance_days,omitempty" yaml:"rebalance_days,omitempty"`
}

func (c Config) forecast() float64 {
	if c.Forecast > 0 {
		return c.Forecast
	}
	return DefaultForecast
}

// markets returns the configured markets, or every series when none are set.
func (c Config) markets(series map[string]market.Series) ([]string, error) {
	if len(c.Markets) == 0 {
		out := make([]string, 0, len(series))
		for m := range series {
			out = append(out, m)
		}
		sortStrings(out)
		return out, nil
	}
	for _, m := range c.Markets {
		if _, ok := series[m]; !ok {
			return nil, fmt.Errorf("strategy %s: unknown market %q", c.Name, m)
		}
	}
	return c.Markets, nil
}

// New builds the model cfg names over series.
func New(cfg Config, series map[string]market.Series) (TradingModel, error) {
	markets, err := cfg.markets(series)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "noop", "none", "":
		return Noop{}, nil
	case "ema-cross", "emacross":
		return NewEMACross(cfg, series, markets)
	case "breakout":
		return NewBreakout(cfg, series, markets)
	}
	return nil, fmt.Errorf("unknown strategy %q (supported: noop, ema-cross, breakout)", cfg.Name)
}

func requireStudy(s market.Series, market, name string) error {
	if name == "" {
		return fmt.Errorf("%s: study name is required", market)
	}
	if !s.HasStudy(name) {
		return fmt.Errorf("%s: study %q is not configured", market, name)
	}
	return nil
}

// rollSignals asks to roll every open position whose contract is no longer
// the one the series holds.
func rollSignals(series map[string]market.Series, date time.Time, open []*portfolio.Position) []portfolio.Signal {
	var out []portfolio.Signal
	for _, pos := range open {
		s, ok := series[pos.Market]
		if !ok {
			continue
		}
		c, ok := s.Contract(date)
		if !ok || c == pos.Contract {
			continue
		}
		out = append(out, portfolio.Signal{Type: portfolio.Roll, Market: pos.Market, Contract: c, Date: date})
	}
	return out
}

// rebalanceSignals re-sizes every open position on every nth day counted
// from the first call.
type rebalancer struct {
	every int
	days  int
}

func (r *rebalancer) due() bool {
	if r.every <= 0 {
		return false
	}
	r.days++
	return r.days%r.every == 0
}

func heldMap(open []*portfolio.Position) map[string]*portfolio.Position {
	out := make(map[string]*portfolio.Position, len(open))
	for _, p := range open {
		out[p.Market] = p
	}
	return out
}
