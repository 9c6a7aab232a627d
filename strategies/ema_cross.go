package strategies

import (
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/futuresim/market"
	"github.com/rustyeddy/futuresim/portfolio"
)

// EMACross trades fast/slow EMA crossovers:
//   - enters only on a cross
//   - reverses on the opposite cross (exit then enter)
//   - rolls held positions when the series moves to a new contract
type EMACross struct {
	cfg     Config
	series  map[string]market.Series
	markets []string

	lastDiff map[string]float64
	reb      rebalancer
}

func NewEMACross(cfg Config, series map[string]market.Series, markets []string) (*EMACross, error) {
	for _, m := range markets {
		if err := requireStudy(series[m], m, cfg.FastStudy); err != nil {
			return nil, fmt.Errorf("ema-cross: %w", err)
		}
		if err := requireStudy(series[m], m, cfg.SlowStudy); err != nil {
			return nil, fmt.Errorf("ema-cross: %w", err)
		}
	}
	return &EMACross{
		cfg:      cfg,
		series:   series,
		markets:  markets,
		lastDiff: make(map[string]float64),
		reb:      rebalancer{every: cfg.RebalanceDays},
	}, nil
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) Signals(date time.Time, open []*portfolio.Position) ([]portfolio.Signal, error) {
	held := heldMap(open)
	out := rollSignals(s.series, date, open)
	rebalance := s.reb.due()

	for _, m := range s.markets {
		ser := s.series[m]
		// Wait until every study is warmed up.
		if !ser.HasStudyData() {
			continue
		}
		bar, ok := ser.Data(date)
		if !ok {
			continue
		}
		fast, ok1 := ser.Study(s.cfg.FastStudy, date)
		slow, ok2 := ser.Study(s.cfg.SlowStudy, date)
		if !ok1 || !ok2 {
			continue
		}

		diff := fast.Value - slow.Value
		last, seen := s.lastDiff[m]
		s.lastDiff[m] = diff
		if !seen {
			continue
		}

		dir := 0
		switch {
		case diff > 0 && last <= 0:
			dir = 1
		case diff < 0 && last >= 0:
			dir = -1
		}

		pos, isHeld := held[m]
		if dir == 0 {
			if rebalance && isHeld {
				out = append(out, portfolio.Signal{Type: portfolio.Rebalance, Market: m, Date: date,
					Forecast: pos.Forecast, Price: bar.Settle})
			}
			continue
		}
		if isHeld && int(pos.Direction) == dir {
			continue
		}
		if isHeld {
			out = append(out, portfolio.Signal{Type: portfolio.Exit, Market: m, Date: date, Price: bar.Settle})
		}
		out = append(out, portfolio.Signal{Type: portfolio.Enter, Market: m, Date: date,
			Forecast: float64(dir) * s.cfg.forecast(), Price: bar.Settle})
	}
	return out, nil
}

func sortStrings(s []string) { sort.Strings(s) }
