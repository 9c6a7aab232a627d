package broker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/futuresim/account"
	"github.com/rustyeddy/futuresim/market"
	"github.com/rustyeddy/futuresim/portfolio"
	"github.com/rustyeddy/futuresim/pricing"
	"github.com/rustyeddy/futuresim/rates"
)

var (
	day0 = pricing.Date(2024, time.January, 5)
	day1 = pricing.Date(2024, time.January, 8)
	day2 = pricing.Date(2024, time.January, 9)
	day3 = pricing.Date(2024, time.January, 10)
)

func esBar(d time.Time, o, h, l, s, v float64) pricing.Bar {
	return pricing.Bar{Date: d, Contract: "2024H", Open: o, High: h, Low: l, Settle: s, Volume: v}
}

// fixture commits day0 and previews day1..day3.
type fixture struct {
	series *market.VendorSeries
	acct   *account.Account
	broker *Broker
	port   *portfolio.Portfolio
}

func newFixture(t *testing.T, initial float64, day1Volume float64) *fixture {
	t.Helper()

	inst := market.Instrument{Code: "ES", Currency: "USD", PointValue: 50, TickSize: 0.25}
	feed := []pricing.Bar{
		esBar(day0, 99, 101, 98, 100, 1000),
		esBar(day1, 100, 104, 96, 102, day1Volume),
		esBar(day2, 102, 106, 100, 105, 1000),
		esBar(day3, 104, 105, 101, 103, 1000),
	}
	s, err := market.NewVendorSeries(inst, feed, nil, nil)
	require.NoError(t, err)
	_, err = s.UpdateData(day0)
	require.NoError(t, err)

	series := map[string]market.Series{"ES": s}
	acct := account.New("USD", initial, day0, rates.NewFX())
	b := New(Config{CommissionRate: 2.5}, acct, series, rates.NewInterest(), zerolog.Nop())
	p := portfolio.New(portfolio.Config{}, series, acct, nil, nil, zerolog.Nop())
	return &fixture{series: s, acct: acct, broker: b, port: p}
}

func order(typ portfolio.OrderType, d time.Time, price float64, qty int) portfolio.Order {
	return portfolio.Order{ID: "o-" + string(typ), Type: typ, Market: "ES", Contract: "2024H", Date: d, Price: price, Quantity: qty}
}

func TestFillQuantity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		requested int
		volume    float64
		want      int
		status    portfolio.Status
	}{
		{"within volume", 300, 300, 300, portfolio.Filled},
		{"degrades to a third", 500, 300, 100, portfolio.PartiallyFilled},
		{"thin market still fills one", 5, 2, 1, portfolio.PartiallyFilled},
		{"no volume", 5, 0, 0, portfolio.Rejected},
		{"nothing requested", 0, 100, 0, portfolio.Rejected},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q, st := FillQuantity(tt.requested, tt.volume)
			assert.Equal(t, tt.want, q)
			assert.Equal(t, tt.status, st)
		})
	}
}

func TestSlippage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, bucket(0.5))
	assert.Equal(t, 1, bucket(1))
	assert.Equal(t, 2, bucket(3.9))
	assert.Equal(t, 32, bucket(40))

	tbl := DefaultSlippage()
	assert.Equal(t, 0.05, tbl.Multiple(2, 1000))
	assert.Equal(t, 0.15, tbl.Multiple(30, 1000))
	assert.Equal(t, 1.0, tbl.Multiple(900, 1000))

	// 8 * 0.05 = 0.4, rounded up to two ticks of 0.25.
	assert.InDelta(t, 0.5, tbl.Slippage(2, 1000, 8, 0.25), 1e-12)
	assert.InDelta(t, 100.5, tbl.Apply(100, true, 2, 1000, 8, 0.25, 96, 104), 1e-12)
	assert.InDelta(t, 99.5, tbl.Apply(100, false, 2, 1000, 8, 0.25, 96, 104), 1e-12)
	assert.InDelta(t, 104, tbl.Apply(103.9, true, 2, 1000, 8, 0.25, 96, 104), 1e-12, "clamped to the high")
}

func TestTransferPartialFill(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100000, 300)
	res, err := f.broker.Transfer(order(portfolio.BuyToOpen, day1, 100, 500), nil)
	require.NoError(t, err)

	assert.Equal(t, portfolio.PartiallyFilled, res.Status)
	assert.LessOrEqual(t, res.Quantity, 100)
	assert.Equal(t, 100, res.Quantity)
	assert.InDelta(t, 250.0, res.Commission, 1e-9)

	txs := f.acct.AllTransactions()
	require.Len(t, txs, 2)
	assert.Equal(t, account.MarginLoan, txs[0].Type())
	assert.Equal(t, account.Credit, txs[0].Side())
	assert.Equal(t, account.Commission, txs[1].Type())
	assert.Equal(t, account.Debit, txs[1].Side())
}

func TestTransferRejectsWithoutVolume(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100000, 0)
	res, err := f.broker.Transfer(order(portfolio.BuyToOpen, day1, 100, 5), nil)
	require.NoError(t, err)
	assert.Equal(t, portfolio.Rejected, res.Status)
	assert.Zero(t, res.Margin)
	assert.Zero(t, res.Commission)
	assert.Empty(t, f.acct.AllTransactions())
}

func TestTransferRejectsForFunds(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1000, 1000)
	res, err := f.broker.Transfer(order(portfolio.BuyToOpen, day1, 100, 2), nil)
	require.NoError(t, err)
	assert.Equal(t, portfolio.RejectedFunds, res.Status)
	assert.False(t, res.Executed())
	assert.Empty(t, f.acct.AllTransactions())
}

func TestTradeLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100000, 1000)

	// Day 1: open 2 at 100 + 0.5 slippage, margin 10% of 102 * 50 each.
	res, err := f.broker.Transfer(order(portfolio.BuyToOpen, day1, 100, 2), nil)
	require.NoError(t, err)
	require.Equal(t, portfolio.Filled, res.Status)
	assert.InDelta(t, 100.5, res.Price, 1e-9)
	assert.InDelta(t, 1020.0, res.Margin, 1e-9)
	f.port.OnFill(res)

	require.NoError(t, f.broker.UpdateAccount(day1, day0, f.port.OpenPositions()))
	mtm := account.Aggregate(f.acct.Transactions(day1, day1), account.MTMTransaction)
	assert.InDelta(t, 150.0, mtm["USD"], 1e-9, "(102 - 100.5) * 2 * 50")
	eq, err := f.acct.Equity(day1)
	require.NoError(t, err)
	assert.InDelta(t, 100145.0, eq, 1e-9)
	funds, err := f.acct.AvailableFunds(day1)
	require.NoError(t, err)
	assert.InDelta(t, 99125.0, funds, 1e-9)
	_, err = f.series.UpdateData(day1)
	require.NoError(t, err)

	// Day 2: held overnight, margin re-marked to the new settle.
	require.NoError(t, f.broker.UpdateAccount(day2, day1, f.port.OpenPositions()))
	day2Txs := f.acct.Transactions(day2, day2)
	assert.InDelta(t, 300.0, account.Aggregate(day2Txs, account.MTMPosition)["USD"], 1e-9)
	assert.InDelta(t, 30.0, account.Aggregate(day2Txs, account.MarginLoan)["USD"], 1e-9)
	loan, err := f.acct.MarginLoanBalance("USD", day2)
	require.NoError(t, err)
	assert.InDelta(t, 1050.0, loan, 1e-9)
	pos, ok := f.port.Position("ES")
	require.True(t, ok)
	assert.InDelta(t, 1050.0, pos.Margin(), 1e-9)
	_, err = f.series.UpdateData(day2)
	require.NoError(t, err)

	// Day 3: close at 105 - 0.25 slippage against the 105 mark.
	res, err = f.broker.Transfer(order(portfolio.SellToClose, day3, 105, 2), f.port.OpenPositions())
	require.NoError(t, err)
	require.Equal(t, portfolio.Filled, res.Status)
	assert.InDelta(t, 104.75, res.Price, 1e-9)
	assert.InDelta(t, 1050.0, res.Margin, 1e-9)
	f.port.OnFill(res)
	f.port.Sweep(day3)
	assert.Empty(t, f.port.OpenPositions())
	require.Len(t, f.port.ClosedPositions(), 1)

	require.NoError(t, f.broker.UpdateAccount(day3, day2, f.port.OpenPositions()))
	eq, err = f.acct.Equity(day3)
	require.NoError(t, err)
	assert.InDelta(t, 100415.0, eq, 1e-9)
	loan, err = f.acct.MarginLoanBalance("USD", day3)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, loan, 1e-9)

	// Replaying every non-loan transaction reproduces equity.
	replay := f.acct.InitialBalance()
	for _, tx := range f.acct.AllTransactions() {
		if tx.Type() != account.MarginLoan {
			replay += tx.Signed()
		}
	}
	assert.InDelta(t, eq, replay, 1e-9)
}

func TestTransferCloseWithoutPosition(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100000, 1000)
	res, err := f.broker.Transfer(order(portfolio.SellToClose, day1, 100, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, portfolio.Rejected, res.Status)

	_, err = f.broker.Transfer(portfolio.Order{Market: "ZZ", Date: day1, Quantity: 1, Type: portfolio.BuyToOpen}, nil)
	assert.Error(t, err)
}

func TestSettlementTranslatesInterestAndSweeps(t *testing.T) {
	t.Parallel()

	fx := rates.NewFX()
	fx.Add("EURUSD", day0, 1.25)
	fx.Add("EURUSD", day2, 1.20)
	interest := rates.NewInterest()
	interest.Add("USD", rates.Immediate, day0, 5)

	acct := account.New("EUR", 1000000, day0, fx)
	require.NoError(t, acct.AddTransaction(account.NewTransaction(account.Commission, day1, -100, "USD", nil)))

	b := New(Config{MarginSpread: 1}, acct, nil, interest, zerolog.Nop())
	require.NoError(t, b.UpdateAccount(day2, day1, nil))

	txs := acct.Transactions(day2, day2)
	translated := account.Aggregate(txs, account.FXBalanceTranslation)
	assert.InDelta(t, -100/1.20+100/1.25, translated["EUR"], 1e-9)

	charged := account.Aggregate(txs, account.MarginInterest)
	assert.InDelta(t, -100*6.0/100/365, charged["USD"], 1e-12)
	assert.Empty(t, account.Aggregate(txs, account.BalanceInterest))

	transfers := 0
	for _, tx := range txs {
		if tx.Type() == account.InternalFundTransfer {
			transfers++
		}
	}
	assert.Equal(t, 2, transfers)

	usd, err := acct.FXBalance("USD", day2)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, usd, 1e-9)

	eur, err := acct.FXBalance("EUR", day2)
	require.NoError(t, err)
	eq, err := acct.Equity(day2)
	require.NoError(t, err)
	assert.InDelta(t, eur, eq, 1e-6, "with everything swept, equity is the base balance")
}

func TestBalanceInterestAboveMinimum(t *testing.T) {
	t.Parallel()

	interest := rates.NewInterest()
	interest.Add("USD", rates.Immediate, day0, 4)
	acct := account.New("USD", 100000, day0, nil)

	b := New(Config{BalanceSpread: 0.5, InterestMinimums: map[string]float64{"USD": 10000}}, acct, nil, interest, zerolog.Nop())
	require.NoError(t, b.UpdateAccount(day1, day0, nil))

	paid := account.Aggregate(acct.Transactions(day1, day1), account.BalanceInterest)
	assert.InDelta(t, 90000*3.5/100/365, paid["USD"], 1e-9)
}

func TestSweepBooksForeignLegFirst(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		amount  float64
		foreign account.Side
		base    account.Side
	}{
		{"positive balance", 100, account.Debit, account.Credit},
		{"negative balance", -100, account.Credit, account.Debit},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fx := rates.NewFX()
			fx.Add("EURUSD", day0, 1.25)
			acct := account.New("EUR", 1000000, day0, fx)
			require.NoError(t, acct.AddTransaction(account.NewTransaction(account.MTMTransaction, day0, tt.amount, "USD", nil)))

			b := New(Config{}, acct, nil, rates.NewInterest(), zerolog.Nop())
			require.NoError(t, b.UpdateAccount(day1, day0, nil))

			var transfers []account.Transaction
			for _, tx := range acct.Transactions(day1, day1) {
				if tx.Type() == account.InternalFundTransfer {
					transfers = append(transfers, tx)
				}
			}
			require.Len(t, transfers, 2)
			assert.Equal(t, "USD", transfers[0].Currency())
			assert.Equal(t, tt.foreign, transfers[0].Side())
			assert.Equal(t, "EUR", transfers[1].Currency())
			assert.Equal(t, tt.base, transfers[1].Side())
			assert.InDelta(t, 100/1.25, transfers[1].Amount(), 1e-9)

			usd, err := acct.FXBalance("USD", day1)
			require.NoError(t, err)
			assert.InDelta(t, 0.0, usd, 1e-12)
		})
	}
}
