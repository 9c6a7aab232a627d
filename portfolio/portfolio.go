package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/futuresim/internal/id"
	"github.com/rustyeddy/futuresim/market"
	"github.com/rustyeddy/futuresim/risk"
)

// DefaultRebalanceThreshold is the relative size change that triggers a
// rebalance order.
const DefaultRebalanceThreshold = 0.1

// DefaultATRStudy is the study fixed-risk sizing reads when none is named.
const DefaultATRStudy = "atr"

// Ledger is the part of the account the portfolio reads.
type Ledger interface {
	Equity(date time.Time) (float64, error)
	BaseValue(amount float64, currency string, date time.Time) float64
}

// Volatilities supplies daily volatility and correlations per market.
// *market.VolatilityTable satisfies it.
type Volatilities interface {
	risk.Correlator
	Volatility(market string, date time.Time) (float64, bool)
}

type Config struct {
	// ATRStudy names the study fixed-risk sizing reads.
	ATRStudy           string  `json:"atr_study" yaml:"atr_study"`
	RebalanceThreshold float64 `json:"rebalance_threshold" yaml:"rebalance_threshold"`
}

// Portfolio owns the open and closed positions. Positions change only in
// OnFill and Sweep.
type Portfolio struct {
	cfg    Config
	log    zerolog.Logger
	series map[string]market.Series
	ledger Ledger
	sizer  risk.Sizer
	vols   Volatilities

	pending  []Signal
	open     map[string]*Position
	openSeq  []string
	closed   []*Position
	rejected []OrderResult
}

// New builds a portfolio over series. vols may be nil when the sizer does
// not need volatilities.
func New(cfg Config, series map[string]market.Series, ledger Ledger, sizer risk.Sizer, vols Volatilities, log zerolog.Logger) *Portfolio {
	if cfg.ATRStudy == "" {
		cfg.ATRStudy = DefaultATRStudy
	}
	if cfg.RebalanceThreshold <= 0 {
		cfg.RebalanceThreshold = DefaultRebalanceThreshold
	}
	return &Portfolio{
		cfg:    cfg,
		log:    log.With().Str("component", "portfolio").Logger(),
		series: series,
		ledger: ledger,
		sizer:  sizer,
		vols:   vols,
		open:   make(map[string]*Position),
	}
}

// AddSignals queues signals for the next market open.
func (p *Portfolio) AddSignals(sigs ...Signal) {
	p.pending = append(p.pending, sigs...)
}

// Pending returns the queued signals.
func (p *Portfolio) Pending() []Signal { return append([]Signal(nil), p.pending...) }

// OpenPositions returns the open positions in the order they were opened.
func (p *Portfolio) OpenPositions() []*Position {
	out := make([]*Position, 0, len(p.openSeq))
	for _, m := range p.openSeq {
		out = append(out, p.open[m])
	}
	return out
}

func (p *Portfolio) ClosedPositions() []*Position {
	return append([]*Position(nil), p.closed...)
}

// Position returns the open position in market.
func (p *Portfolio) Position(market string) (*Position, bool) {
	pos, ok := p.open[market]
	return pos, ok
}

// Rejected returns results of entries that never produced a position.
func (p *Portfolio) Rejected() []OrderResult { return append([]OrderResult(nil), p.rejected...) }

var signalPriority = map[SignalType]int{Exit: 0, Roll: 1, Rebalance: 2, Enter: 3}

// Orders converts the queued signals into orders for date and clears the
// queue. Exits and rolls come first so their margin is released before new
// exposure is funded.
func (p *Portfolio) Orders(date time.Time) ([]Order, error) {
	sigs := p.pending
	p.pending = nil
	sort.SliceStable(sigs, func(i, j int) bool {
		return signalPriority[sigs[i].Type] < signalPriority[sigs[j].Type]
	})
	sigs = dedupe(sigs)

	// A market exiting in this batch may be re-entered in the same batch.
	exiting := make(map[string]bool)
	for _, s := range sigs {
		if s.Type == Exit {
			exiting[s.Market] = true
		}
	}
	heldFor := func(s Signal) (*Position, bool) {
		pos, ok := p.open[s.Market]
		if s.Type == Enter && exiting[s.Market] {
			return nil, false
		}
		return pos, ok
	}

	var toSize []Signal
	for _, s := range sigs {
		if _, ok := p.series[s.Market]; !ok {
			return nil, fmt.Errorf("signal %s: unknown market", s)
		}
		_, held := heldFor(s)
		if (s.Type == Enter && !held) || (s.Type == Rebalance && held) {
			toSize = append(toSize, s)
		}
	}
	sizes, err := p.size(date, toSize)
	if err != nil {
		return nil, err
	}

	var orders []Order
	for _, s := range sigs {
		pos, held := heldFor(s)
		switch s.Type {
		case Enter:
			if held {
				p.log.Debug().Str("market", s.Market).Msg("enter ignored, position already open")
				continue
			}
			n := sizes[s.Market]
			if n == 0 {
				p.log.Info().Str("market", s.Market).Time("date", date).Msg("entry sized to zero")
				continue
			}
			orders = append(orders, p.order(s, date, OpenType(DirectionOf(float64(n))), p.contract(s, date), abs(n), ""))

		case Exit:
			if !held {
				continue
			}
			orders = append(orders, p.order(s, date, CloseType(pos.Direction), pos.Contract, pos.Quantity, pos.ID))

		case Roll:
			if !held {
				continue
			}
			next, ok := p.series[s.Market].Contract(date)
			if !ok || next == pos.Contract {
				continue
			}
			orders = append(orders,
				p.order(s, date, CloseType(pos.Direction), pos.Contract, pos.Quantity, pos.ID),
				p.order(s, date, OpenType(pos.Direction), next, pos.Quantity, pos.ID))

		case Rebalance:
			if !held {
				continue
			}
			if o, ok := p.rebalance(s, date, pos, sizes[s.Market]); ok {
				orders = append(orders, o)
			}

		default:
			return nil, fmt.Errorf("signal %s: unknown type", s)
		}
	}
	return orders, nil
}

// dedupe keeps one signal per market and type. The latest entry wins since
// it carries the newest forecast; for the other types the first is kept.
func dedupe(sigs []Signal) []Signal {
	type key struct {
		market string
		typ    SignalType
	}
	at := make(map[key]int)
	out := make([]Signal, 0, len(sigs))
	for _, s := range sigs {
		k := key{s.Market, s.Type}
		if i, ok := at[k]; ok {
			if s.Type == Enter {
				out[i] = s
			}
			continue
		}
		at[k] = len(out)
		out = append(out, s)
	}
	return out
}

func (p *Portfolio) rebalance(s Signal, date time.Time, pos *Position, target int) (Order, bool) {
	current := pos.Signed()
	if current == 0 {
		return Order{}, false
	}
	diff := target - current
	if math.Abs(float64(diff))/math.Abs(float64(current)) <= p.cfg.RebalanceThreshold {
		return Order{}, false
	}
	if target == 0 || DirectionOf(float64(target)) != pos.Direction {
		return p.order(s, date, CloseType(pos.Direction), pos.Contract, pos.Quantity, pos.ID), true
	}
	if abs(target) > abs(current) {
		return p.order(s, date, OpenType(pos.Direction), pos.Contract, abs(diff), pos.ID), true
	}
	return p.order(s, date, CloseType(pos.Direction), pos.Contract, abs(diff), pos.ID), true
}

func (p *Portfolio) order(s Signal, date time.Time, typ OrderType, contract string, qty int, posID string) Order {
	price := s.Price
	if price == 0 {
		if b, ok := p.series[s.Market].Before(date); ok {
			price = b.Settle
		}
	}
	return Order{
		ID:         id.At(date),
		Signal:     s.Type,
		Type:       typ,
		Market:     s.Market,
		Contract:   contract,
		Date:       date,
		Price:      price,
		Quantity:   qty,
		Forecast:   s.Forecast,
		PositionID: posID,
	}
}

func (p *Portfolio) contract(s Signal, date time.Time) string {
	if s.Contract != "" {
		return s.Contract
	}
	if c, ok := p.series[s.Market].Contract(date); ok {
		return c
	}
	b, _ := p.series[s.Market].Before(date)
	return b.Contract
}

// size runs the sizer over the signaled markets plus every other open
// position, so equal shares are split across all markets with exposure.
func (p *Portfolio) size(date time.Time, sigs []Signal) (map[string]int, error) {
	if len(sigs) == 0 || p.sizer == nil {
		return map[string]int{}, nil
	}
	capital, err := p.ledger.Equity(date)
	if err != nil {
		return nil, fmt.Errorf("sizing on %s: %w", date.Format("2006-01-02"), err)
	}

	seen := make(map[string]bool)
	var cands []risk.Candidate
	for _, s := range sigs {
		seen[s.Market] = true
		cands = append(cands, p.candidate(s.Market, s.Forecast, date))
	}
	for _, m := range p.openSeq {
		if !seen[m] {
			cands = append(cands, p.candidate(m, p.open[m].Forecast, date))
		}
	}

	res := p.sizer.Size(risk.Inputs{Date: date, Capital: capital, Candidates: cands})
	if len(res.Dropped) > 0 {
		p.log.Debug().Strs("dropped", res.Dropped).Float64("dm", res.DM).Msg("sizing dropped markets")
	}
	return res.Sizes, nil
}

func (p *Portfolio) candidate(m string, forecast float64, date time.Time) risk.Candidate {
	s := p.series[m]
	inst := s.Instrument()
	c := risk.Candidate{
		Market:     m,
		PointValue: p.ledger.BaseValue(inst.PointValue, inst.Currency, date),
		Forecast:   forecast,
	}
	if b, ok := s.Before(date); ok {
		c.Price = b.Settle
		c.Volume = b.Volume
	}
	if pt, ok := s.Study(p.cfg.ATRStudy, date); ok {
		c.ATR = pt.Value
	}
	if p.vols != nil {
		c.Volatility, _ = p.vols.Volatility(m, date)
	}
	return c
}

// Admit reports whether o may still be sent to the broker. An entry that
// reverses a position is held back while the exit before it left contracts
// open; its signal is queued again for the next open.
func (p *Portfolio) Admit(o Order) bool {
	if o.Signal != Enter || !o.Type.Opening() {
		return true
	}
	pos, held := p.open[o.Market]
	if !held || pos.Quantity <= 0 {
		return true
	}
	p.log.Info().Str("market", o.Market).Int("remaining", pos.Quantity).Msg("entry deferred until exit completes")
	p.pending = append(p.pending, Signal{Type: Enter, Market: o.Market, Date: o.Date, Forecast: o.Forecast})
	return false
}

// OnFill applies an order result to the position it belongs to.
func (p *Portfolio) OnFill(res OrderResult) {
	o := res.Order
	pos, held := p.open[o.Market]
	l := p.log.With().Str("market", o.Market).Str("order", string(o.Type)).Logger()

	if !res.Executed() {
		l.Warn().Str("status", string(res.Status)).Int("requested", o.Quantity).Msg("order not executed")
		if held {
			pos.results = append(pos.results, res)
			p.retryExit(res)
		} else {
			p.rejected = append(p.rejected, res)
		}
		return
	}

	if o.Type.Opening() {
		if held && pos.Quantity == 0 && o.Signal != Roll {
			// re-entry after a same-day exit starts a new position
			p.closePosition(o.Market, res.Date)
			held = false
		}
		if !held {
			pos = &Position{
				ID:         id.At(res.Date),
				Market:     o.Market,
				Contract:   o.Contract,
				Currency:   p.series[o.Market].Instrument().Currency,
				Direction:  o.Direction(),
				Forecast:   o.Forecast,
				EntryDate:  res.Date,
				EntryPrice: res.Price,
			}
			p.open[o.Market] = pos
			p.openSeq = append(p.openSeq, o.Market)
		}
		pos.Quantity += res.Quantity
		pos.Contract = o.Contract
		pos.RecordMargin(res.Date, pos.Margin()+res.Margin)
		pos.results = append(pos.results, res)
		l.Info().Int("qty", res.Quantity).Float64("price", res.Price).Msg("opened")
		return
	}

	if !held {
		l.Warn().Msg("close fill without an open position")
		p.rejected = append(p.rejected, res)
		return
	}
	pos.Quantity -= res.Quantity
	pos.RecordMargin(res.Date, math.Max(0, pos.Margin()-res.Margin))
	pos.results = append(pos.results, res)
	l.Info().Int("qty", res.Quantity).Float64("price", res.Price).Int("remaining", pos.Quantity).Msg("closed")
	p.retryExit(res)
}

// retryExit queues the exit again while the position still holds contracts.
func (p *Portfolio) retryExit(res OrderResult) {
	o := res.Order
	if o.Signal != Exit || o.Type.Opening() {
		return
	}
	if pos, ok := p.open[o.Market]; !ok || pos.Quantity <= 0 {
		return
	}
	p.pending = append(p.pending, Signal{Type: Exit, Market: o.Market, Date: res.Date})
}

// Sweep moves positions without contracts to the closed set.
func (p *Portfolio) Sweep(date time.Time) {
	for _, m := range append([]string(nil), p.openSeq...) {
		if p.open[m].Quantity <= 0 {
			p.closePosition(m, date)
		}
	}
}

func (p *Portfolio) closePosition(m string, date time.Time) {
	pos, ok := p.open[m]
	if !ok {
		return
	}
	pos.Quantity = 0
	pos.ClosedDate = date
	p.closed = append(p.closed, pos)
	delete(p.open, m)
	for i, s := range p.openSeq {
		if s == m {
			p.openSeq = append(p.openSeq[:i], p.openSeq[i+1:]...)
			break
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
