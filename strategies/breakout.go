package strategies

import (
	"fmt"
	"time"

	"github.com/rustyeddy/futuresim/market"
	"github.com/rustyeddy/futuresim/portfolio"
)

// Breakout goes long when the settle closes above the previous day's highest
// high and short below the previous lowest low, exiting on the opposite break.
type Breakout struct {
	cfg     Config
	series  map[string]market.Series
	markets []string
	reb     rebalancer
}

func NewBreakout(cfg Config, series map[string]market.Series, markets []string) (*Breakout, error) {
	for _, m := range markets {
		if err := requireStudy(series[m], m, cfg.ChannelStudy); err != nil {
			return nil, fmt.Errorf("breakout: %w", err)
		}
	}
	return &Breakout{cfg: cfg, series: series, markets: markets, reb: rebalancer{every: cfg.RebalanceDays}}, nil
}

func (b *Breakout) Name() string { return "breakout" }

func (b *Breakout) Signals(date time.Time, open []*portfolio.Position) ([]portfolio.Signal, error) {
	held := heldMap(open)
	out := rollSignals(b.series, date, open)
	rebalance := b.reb.due()

	for _, m := range b.markets {
		ser := b.series[m]
		bar, ok := ser.Data(date)
		if !ok {
			continue
		}
		prev, ok := ser.Before(date)
		if !ok {
			continue
		}
		// The channel as of yesterday, so today's bar is not part of it.
		ch, ok := ser.Study(b.cfg.ChannelStudy, prev.Date)
		if !ok {
			continue
		}

		dir := 0
		switch {
		case bar.Settle > ch.Value:
			dir = 1
		case bar.Settle < ch.Value2:
			dir = -1
		}

		pos, isHeld := held[m]
		switch {
		case dir == 0 || (isHeld && int(pos.Direction) == dir):
			if rebalance && isHeld {
				out = append(out, portfolio.Signal{Type: portfolio.Rebalance, Market: m, Date: date,
					Forecast: pos.Forecast, Price: bar.Settle})
			}
		case isHeld:
			out = append(out,
				portfolio.Signal{Type: portfolio.Exit, Market: m, Date: date, Price: bar.Settle},
				portfolio.Signal{Type: portfolio.Enter, Market: m, Date: date,
					Forecast: float64(dir) * b.cfg.forecast(), Price: bar.Settle})
		default:
			out = append(out, portfolio.Signal{Type: portfolio.Enter, Market: m, Date: date,
				Forecast: float64(dir) * b.cfg.forecast(), Price: bar.Settle})
		}
	}
	return out, nil
}
