// Package broker executes orders against the daily bars and runs the
// end-of-day settlement of the account.
package broker

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/futuresim/account"
	"github.com/rustyeddy/futuresim/market"
	"github.com/rustyeddy/futuresim/portfolio"
	"github.com/rustyeddy/futuresim/pricing"
	"github.com/rustyeddy/futuresim/rates"
)

type Config struct {
	// CommissionRate is charged per contract in CommissionCurrency, or in the
	// instrument currency when that is empty.
	CommissionRate     float64 `json:"commission_rate" yaml:"commission_rate"`
	CommissionCurrency string  `json:"commission_currency" yaml:"commission_currency"`

	// InterestMinimums are per-currency balances below which no interest
	// accrues. A missing currency has a zero minimum.
	InterestMinimums map[string]float64 `json:"interest_minimums,omitempty" yaml:"interest_minimums,omitempty"`
	// MarginSpread is added to the benchmark for borrowing, BalanceSpread
	// subtracted from it for deposits. Both are percentage points.
	MarginSpread  float64     `json:"margin_spread" yaml:"margin_spread"`
	BalanceSpread float64     `json:"balance_spread" yaml:"balance_spread"`
	Tenor         rates.Tenor `json:"tenor" yaml:"tenor"`

	Slippage SlippageTable `json:"slippage" yaml:"slippage"`
}

func (c Config) minimum(currency string) float64 { return c.InterestMinimums[currency] }

// Broker books every transaction the account receives.
type Broker struct {
	cfg      Config
	log      zerolog.Logger
	acct     *account.Account
	series   map[string]market.Series
	interest *rates.Interest
}

func New(cfg Config, acct *account.Account, series map[string]market.Series, interest *rates.Interest, log zerolog.Logger) *Broker {
	if cfg.Tenor == "" {
		cfg.Tenor = rates.Immediate
	}
	if cfg.Slippage == nil {
		cfg.Slippage = DefaultSlippage()
	}
	return &Broker{
		cfg:      cfg,
		log:      log.With().Str("component", "broker").Logger(),
		acct:     acct,
		series:   series,
		interest: interest,
	}
}

// FillQuantity applies the liquidity rule: requests within the day's volume
// fill in full, larger ones are cut to a third of the volume but never to
// zero while the market traded.
func FillQuantity(requested int, volume float64) (int, portfolio.Status) {
	if requested <= 0 || volume <= 0 {
		return 0, portfolio.Rejected
	}
	if float64(requested) <= volume {
		return requested, portfolio.Filled
	}
	q := int(math.Max(1, math.Floor(volume/3)))
	return q, portfolio.PartiallyFilled
}

// Transfer executes o on its date against the market's bar and books the
// resulting transactions. open must hold the position a closing order reduces.
func (b *Broker) Transfer(o portfolio.Order, open []*portfolio.Position) (portfolio.OrderResult, error) {
	s, ok := b.series[o.Market]
	if !ok {
		return portfolio.OrderResult{}, fmt.Errorf("order %s: unknown market %q", o.ID, o.Market)
	}
	date := pricing.Day(o.Date)
	res := portfolio.OrderResult{Order: o, Date: date, Status: portfolio.Rejected}
	l := b.log.With().Str("market", o.Market).Str("order", string(o.Type)).Time("date", date).Logger()

	bar, ok := s.Data(date)
	if !ok {
		l.Warn().Msg("no bar, order rejected")
		return res, nil
	}

	var pos *portfolio.Position
	if !o.Type.Opening() {
		pos = findPosition(open, o)
		if pos == nil || pos.Quantity <= 0 {
			l.Warn().Msg("nothing to close, order rejected")
			return res, nil
		}
	}

	qty, status := FillQuantity(o.Quantity, bar.Volume)
	if pos != nil && qty > pos.Quantity {
		qty = pos.Quantity
	}
	if qty == 0 {
		l.Info().Int("requested", o.Quantity).Float64("volume", bar.Volume).Msg("no liquidity")
		return res, nil
	}

	inst := s.Instrument()
	prev, hasPrev := s.Before(date)
	ref := o.Price
	if ref == 0 {
		ref = bar.Open
	}
	tr := bar.TrueRange(prev.Settle, hasPrev)
	price := b.cfg.Slippage.Apply(ref, o.Type.Buy(), qty, bar.Volume, tr, inst.TickSize, bar.Low, bar.High)

	commCcy := b.cfg.CommissionCurrency
	if commCcy == "" {
		commCcy = inst.Currency
	}
	res.Status = status
	res.Price = price
	res.Quantity = qty
	res.Commission = b.cfg.CommissionRate * float64(qty)
	res.CommissionCurrency = commCcy

	if o.Type.Opening() {
		return b.open(res, s, l)
	}
	return b.close(res, s, pos, prev.Settle, hasPrev)
}

func (b *Broker) open(res portfolio.OrderResult, s market.Series, l zerolog.Logger) (portfolio.OrderResult, error) {
	inst := s.Instrument()
	date := res.Date
	margin := s.Margin(date, inst.PointValue) * float64(res.Quantity)
	res.Margin = margin

	funds, err := b.acct.AvailableFunds(date)
	if err != nil {
		return res, err
	}
	need := b.acct.BaseValue(margin, inst.Currency, date) + b.acct.BaseValue(res.Commission, res.CommissionCurrency, date)
	if funds <= need {
		l.Warn().Float64("funds", funds).Float64("need", need).Msg("insufficient funds")
		res.Status = portfolio.RejectedFunds
		return res, nil
	}

	txs := []account.Transaction{account.NewTransaction(account.MarginLoan, date, margin, inst.Currency, res.Order)}
	if res.Commission != 0 {
		txs = append(txs, account.NewTransaction(account.Commission, date, -res.Commission, res.CommissionCurrency, res.Order))
	}
	return res, b.acct.AddTransactions(txs...)
}

func (b *Broker) close(res portfolio.OrderResult, s market.Series, pos *portfolio.Position, prevSettle float64, hasPrev bool) (portfolio.OrderResult, error) {
	inst := s.Instrument()
	date := res.Date

	typ := account.MTMPosition
	mark := prevSettle
	if pos.QuantityAtOpen(date) == 0 || !hasPrev {
		typ = account.MTMTransaction
		mark = entryMark(pos, date)
	}
	pnl := (res.Price - mark) * float64(res.Quantity) * float64(pos.Direction) * inst.PointValue
	released := pos.Margin() * float64(res.Quantity) / float64(pos.Quantity)
	res.Margin = released

	var txs []account.Transaction
	if pnl != 0 {
		txs = append(txs, account.NewTransaction(typ, date, pnl, inst.Currency, res.Order))
	}
	if res.Commission != 0 {
		txs = append(txs, account.NewTransaction(account.Commission, date, -res.Commission, res.CommissionCurrency, res.Order))
	}
	txs = append(txs, account.NewTransaction(account.MarginLoan, date, -released, inst.Currency, res.Order))
	return res, b.acct.AddTransactions(txs...)
}

// entryMark is the average price of the fills that opened pos on date, or
// its entry price.
func entryMark(pos *portfolio.Position, date time.Time) float64 {
	fills := pos.OpenedOn(date)
	q, v := 0, 0.0
	for _, r := range fills {
		q += r.Quantity
		v += r.Price * float64(r.Quantity)
	}
	if q == 0 {
		return pos.EntryPrice
	}
	return v / float64(q)
}

func findPosition(open []*portfolio.Position, o portfolio.Order) *portfolio.Position {
	for _, p := range open {
		if o.PositionID != "" && p.ID == o.PositionID {
			return p
		}
	}
	for _, p := range open {
		if p.Market == o.Market {
			return p
		}
	}
	return nil
}

// UpdateAccount runs the end-of-day settlement for date: mark to market, FX
// translation, margin and balance interest, margin re-mark and, with no open
// positions, the sweep of foreign balances into the base currency.
func (b *Broker) UpdateAccount(date, prev time.Time, open []*portfolio.Position) error {
	date = pricing.Day(date)
	steps := []struct {
		name string
		fn   func() error
	}{
		{"mark to market", func() error { return b.markToMarket(date, open) }},
		{"fx translation", func() error { return b.translate(date, prev) }},
		{"margin interest", func() error { return b.chargeInterest(date) }},
		{"balance interest", func() error { return b.payInterest(date) }},
		{"margin re-mark", func() error { return b.remarkMargin(date, open) }},
		{"sweep", func() error {
			if len(open) > 0 {
				return nil
			}
			return b.sweep(date)
		}},
	}
	for _, st := range steps {
		if err := st.fn(); err != nil {
			return fmt.Errorf("settle %s: %s: %w", date.Format(pricing.DateLayout), st.name, err)
		}
	}
	return nil
}

func (b *Broker) markToMarket(date time.Time, open []*portfolio.Position) error {
	for _, pos := range open {
		s, ok := b.series[pos.Market]
		if !ok {
			return fmt.Errorf("position %s: unknown market %q", pos.ID, pos.Market)
		}
		bar, ok := s.Data(date)
		if !ok {
			continue
		}
		inst := s.Instrument()
		dir := float64(pos.Direction)

		carried := pos.QuantityAtOpen(date) - pos.ClosedOn(date)
		if prev, ok := s.Before(date); ok && carried > 0 {
			amt := (bar.Settle - prev.Settle) * float64(carried) * dir * inst.PointValue
			if amt != 0 {
				if err := b.acct.AddTransaction(account.NewTransaction(account.MTMPosition, date, amt, inst.Currency, pos.ID)); err != nil {
					return err
				}
			}
		}
		for _, r := range pos.OpenedOn(date) {
			amt := (bar.Settle - r.Price) * float64(r.Quantity) * dir * inst.PointValue
			if amt == 0 {
				continue
			}
			if err := b.acct.AddTransaction(account.NewTransaction(account.MTMTransaction, date, amt, inst.Currency, r.Order)); err != nil {
				return err
			}
		}
	}
	return nil
}

// foreign lists the account currencies other than the base, sorted.
func (b *Broker) foreign() []string {
	var out []string
	for _, c := range b.acct.Currencies() {
		if c != b.acct.BaseCurrency() {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func (b *Broker) translate(date, prev time.Time) error {
	if prev.IsZero() {
		return nil
	}
	base := b.acct.BaseCurrency()
	for _, c := range b.foreign() {
		bal, err := b.acct.FXBalance(c, prev)
		if err != nil || bal == 0 {
			continue
		}
		delta := b.acct.BaseValue(bal, c, date) - b.acct.BaseValue(bal, c, prev)
		if delta == 0 {
			continue
		}
		if err := b.acct.AddTransaction(account.NewTransaction(account.FXBalanceTranslation, date, delta, base, c)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) chargeInterest(date time.Time) error {
	for _, c := range b.foreign() {
		rate := b.interest.Benchmark(c, b.cfg.Tenor, date) + b.cfg.MarginSpread
		if rate <= 0 {
			continue
		}
		floor := b.cfg.minimum(c)

		if loan, err := b.acct.MarginLoanBalance(c, date); err == nil && loan > floor {
			if err := b.acct.AddTransaction(account.NewTransaction(account.MarginInterest, date, -rates.DailyAmount(loan, floor, rate), c, "margin loan")); err != nil {
				return err
			}
		}
		if bal, err := b.acct.FXBalance(c, date); err == nil && -bal > floor {
			if err := b.acct.AddTransaction(account.NewTransaction(account.MarginInterest, date, -rates.DailyAmount(-bal, floor, rate), c, "negative balance")); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Broker) payInterest(date time.Time) error {
	currencies := append([]string{b.acct.BaseCurrency()}, b.foreign()...)
	for _, c := range currencies {
		rate := b.interest.Benchmark(c, b.cfg.Tenor, date) - b.cfg.BalanceSpread
		if rate <= 0 {
			continue
		}
		floor := b.cfg.minimum(c)
		bal, err := b.acct.FXBalance(c, date)
		if err != nil || bal <= floor {
			continue
		}
		if err := b.acct.AddTransaction(account.NewTransaction(account.BalanceInterest, date, rates.DailyAmount(bal, floor, rate), c, "balance")); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) remarkMargin(date time.Time, open []*portfolio.Position) error {
	net := map[string]float64{}
	for _, pos := range open {
		if !pos.EntryDate.Before(date) {
			continue
		}
		s, ok := b.series[pos.Market]
		if !ok {
			continue
		}
		inst := s.Instrument()
		m := s.Margin(date, inst.PointValue) * float64(pos.Quantity)
		net[inst.Currency] += m - pos.Margin()
		pos.RecordMargin(date, m)
	}

	currencies := make([]string, 0, len(net))
	for c := range net {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		if net[c] == 0 {
			continue
		}
		if err := b.acct.AddTransaction(account.NewTransaction(account.MarginLoan, date, net[c], c, "margin re-mark")); err != nil {
			return err
		}
	}
	return nil
}

// sweep converts every foreign balance back to the base currency. The
// foreign leg is booked first: a positive balance is debited then the base
// credited, a negative one credited then the base debited. The foreign
// balance moves straight to zero and never changes sign.
func (b *Broker) sweep(date time.Time) error {
	base := b.acct.BaseCurrency()
	for _, c := range b.foreign() {
		bal, err := b.acct.FXBalance(c, date)
		if err != nil || bal == 0 {
			continue
		}
		baseAmt := b.acct.BaseValue(bal, c, date)
		txs := []account.Transaction{
			account.NewTransaction(account.InternalFundTransfer, date, -bal, c, base),
			account.NewTransaction(account.InternalFundTransfer, date, baseAmt, base, c),
		}
		if err := b.acct.AddTransactions(txs...); err != nil {
			return err
		}
	}
	return nil
}
