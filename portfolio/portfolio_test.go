package portfolio

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/futuresim/indicators"
	"github.com/rustyeddy/futuresim/market"
	"github.com/rustyeddy/futuresim/pricing"
	"github.com/rustyeddy/futuresim/risk"
)

var (
	day0 = pricing.Date(2024, time.March, 1)
	day1 = pricing.Date(2024, time.March, 4)
	day2 = pricing.Date(2024, time.March, 5)
)

type flatLedger struct{ equity float64 }

func (l flatLedger) Equity(time.Time) (float64, error) { return l.equity, nil }

func (l flatLedger) BaseValue(amount float64, _ string, _ time.Time) float64 { return amount }

type stubSizer map[string]int

func (s stubSizer) Size(risk.Inputs) risk.Result { return risk.Result{Sizes: s} }

func newPortfolio(t *testing.T, sizer risk.Sizer) *Portfolio {
	t.Helper()

	inst := market.Instrument{Code: "ES", Currency: "USD", PointValue: 50, TickSize: 0.25}
	feed := []pricing.Bar{
		{Date: day0, Contract: "2024H", Open: 99, High: 102, Low: 98, Settle: 100, Volume: 1000},
		{Date: day1, Contract: "2024M", Open: 100, High: 103, Low: 99, Settle: 101, Volume: 1000},
		{Date: day2, Contract: "2024M", Open: 101, High: 104, Low: 100, Settle: 102, Volume: 1000},
	}
	s, err := market.NewVendorSeries(inst, feed, nil, []indicators.Spec{{Name: "atr", Kind: indicators.KindATR, Window: 1}})
	require.NoError(t, err)
	_, err = s.UpdateData(day0)
	require.NoError(t, err)
	s.UpdateStudies(day0)

	return New(Config{}, map[string]market.Series{"ES": s}, flatLedger{equity: 100000}, sizer, nil, zerolog.Nop())
}

func fill(o Order, date time.Time, price float64, qty int, margin float64) OrderResult {
	return OrderResult{Order: o, Status: Filled, Date: date, Price: price, Quantity: qty, Margin: margin}
}

func TestEnterAndExit(t *testing.T) {
	t.Parallel()

	sizer, err := risk.New(risk.Params{Method: risk.MethodFixedRisk, RiskFactor: 0.01}, nil)
	require.NoError(t, err)
	p := newPortfolio(t, sizer)

	p.AddSignals(Signal{Type: Enter, Market: "ES", Date: day0, Forecast: -1, Price: 100})
	orders, err := p.Orders(day1)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Empty(t, p.Pending())

	o := orders[0]
	// 1% of 100000 over an ATR of 4 points at 50 a point.
	assert.Equal(t, SellToOpen, o.Type)
	assert.Equal(t, 5, o.Quantity)
	assert.Equal(t, "2024M", o.Contract)
	assert.InDelta(t, 100.0, o.Price, 1e-12)

	p.OnFill(fill(o, day1, 99.5, 5, 2500))
	pos, ok := p.Position("ES")
	require.True(t, ok)
	assert.Equal(t, Short, pos.Direction)
	assert.Equal(t, -5, pos.Signed())
	assert.Equal(t, day1, pos.EntryDate)
	assert.InDelta(t, 2500.0, pos.Margin(), 1e-12)
	assert.Equal(t, 0, pos.QuantityAtOpen(day1))

	// A second entry while the position is open is ignored.
	p.AddSignals(Signal{Type: Enter, Market: "ES", Date: day1, Forecast: -1})
	orders, err = p.Orders(day2)
	require.NoError(t, err)
	assert.Empty(t, orders)

	p.AddSignals(Signal{Type: Exit, Market: "ES", Date: day1})
	orders, err = p.Orders(day2)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	exit := orders[0]
	assert.Equal(t, BuyToClose, exit.Type)
	assert.Equal(t, 5, exit.Quantity)
	assert.Equal(t, pos.ID, exit.PositionID)

	p.OnFill(OrderResult{Order: exit, Status: PartiallyFilled, Date: day2, Price: 101, Quantity: 3, Margin: 1500})
	p.Sweep(day2)
	assert.Equal(t, 2, pos.Quantity)
	assert.InDelta(t, 1000.0, pos.Margin(), 1e-12)
	assert.InDelta(t, 2500.0, pos.MarginAt(day1), 1e-12)
	assert.Len(t, p.OpenPositions(), 1)
	require.Len(t, p.Pending(), 1, "a partial exit is retried")
	assert.Equal(t, Exit, p.Pending()[0].Type)

	p.OnFill(fill(exit, day2, 101, 2, 1000))
	p.Sweep(day2)
	assert.Empty(t, p.OpenPositions())
	closed := p.ClosedPositions()
	require.Len(t, closed, 1)
	assert.Equal(t, day2, closed[0].ClosedDate)
	assert.False(t, closed[0].Open())
	assert.Len(t, closed[0].Results(), 3)
	assert.Equal(t, 5, closed[0].ClosedOn(day2))
}

func TestRollClosesAndReopens(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, stubSizer{"ES": 10})
	p.AddSignals(Signal{Type: Enter, Market: "ES", Contract: "2024H", Date: day0, Forecast: 5})
	orders, err := p.Orders(day0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "2024H", orders[0].Contract)
	p.OnFill(fill(orders[0], day0, 100, 10, 5000))

	p.AddSignals(Signal{Type: Roll, Market: "ES", Date: day0})
	orders, err = p.Orders(day1)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, SellToClose, orders[0].Type)
	assert.Equal(t, "2024H", orders[0].Contract)
	assert.Equal(t, BuyToOpen, orders[1].Type)
	assert.Equal(t, "2024M", orders[1].Contract)
	assert.Equal(t, 10, orders[1].Quantity)

	p.OnFill(fill(orders[0], day1, 100.5, 10, 5000))
	p.OnFill(fill(orders[1], day1, 100.75, 10, 5100))
	p.Sweep(day1)

	pos, ok := p.Position("ES")
	require.True(t, ok, "a roll keeps the position open")
	assert.Equal(t, "2024M", pos.Contract)
	assert.Equal(t, 10, pos.Quantity)
	assert.Equal(t, 10, pos.QuantityAtOpen(day1))
	assert.Equal(t, 10, pos.ClosedOn(day1))
	assert.InDelta(t, 5100.0, pos.Margin(), 1e-12)
	assert.Empty(t, p.ClosedPositions())

	// Same contract: nothing to roll.
	p.AddSignals(Signal{Type: Roll, Market: "ES", Date: day1})
	orders, err = p.Orders(day2)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRebalance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target int
		typ    OrderType
		qty    int
	}{
		{"within threshold", 11, "", 0},
		{"increase", 15, BuyToOpen, 5},
		{"decrease", 4, SellToClose, 6},
		{"flip closes", -3, SellToClose, 10},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sizer := stubSizer{"ES": 10}
			p := newPortfolio(t, sizer)
			p.AddSignals(Signal{Type: Enter, Market: "ES", Date: day0, Forecast: 10})
			orders, err := p.Orders(day0)
			require.NoError(t, err)
			p.OnFill(fill(orders[0], day0, 100, 10, 5000))

			sizer["ES"] = tt.target
			p.AddSignals(Signal{Type: Rebalance, Market: "ES", Date: day0, Forecast: 10})
			orders, err = p.Orders(day1)
			require.NoError(t, err)
			if tt.qty == 0 {
				assert.Empty(t, orders)
				return
			}
			require.Len(t, orders, 1)
			assert.Equal(t, tt.typ, orders[0].Type)
			assert.Equal(t, tt.qty, orders[0].Quantity)
		})
	}
}

func TestRejectedFillsAreKept(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, stubSizer{"ES": 3})
	p.AddSignals(Signal{Type: Enter, Market: "ES", Date: day0, Forecast: 10})
	orders, err := p.Orders(day1)
	require.NoError(t, err)

	p.OnFill(OrderResult{Order: orders[0], Status: RejectedFunds, Date: day1})
	p.Sweep(day1)
	assert.Empty(t, p.OpenPositions())
	require.Len(t, p.Rejected(), 1)
	assert.Equal(t, RejectedFunds, p.Rejected()[0].Status)
}

func TestOrdersUnknownMarket(t *testing.T) {
	t.Parallel()

	p := newPortfolio(t, stubSizer{})
	p.AddSignals(Signal{Type: Enter, Market: "CL", Date: day0})
	_, err := p.Orders(day1)
	assert.Error(t, err)
}

func TestOrderTypes(t *testing.T) {
	t.Parallel()

	assert.True(t, BuyToOpen.Opening())
	assert.True(t, SellToOpen.Opening())
	assert.False(t, BuyToClose.Opening())
	assert.True(t, BuyToClose.Buy())
	assert.False(t, SellToClose.Buy())
	assert.Equal(t, SellToClose, CloseType(Long))
	assert.Equal(t, BuyToClose, CloseType(Short))
	assert.Equal(t, Short, Order{Type: SellToOpen}.Direction())
	assert.Equal(t, Long, Order{Type: SellToClose}.Direction())
}

func TestReverseInOneBatch(t *testing.T) {
	t.Parallel()

	sizer := stubSizer{"ES": 4}
	p := newPortfolio(t, sizer)
	p.AddSignals(Signal{Type: Enter, Market: "ES", Date: day0, Forecast: 10})
	orders, err := p.Orders(day0)
	require.NoError(t, err)
	p.OnFill(fill(orders[0], day0, 100, 4, 2000))
	first, _ := p.Position("ES")

	sizer["ES"] = -6
	p.AddSignals(Signal{Type: Enter, Market: "ES", Date: day0, Forecast: -10},
		Signal{Type: Exit, Market: "ES", Date: day0})
	orders, err = p.Orders(day1)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, SellToClose, orders[0].Type)
	assert.Equal(t, SellToOpen, orders[1].Type)
	assert.Equal(t, 6, orders[1].Quantity)

	p.OnFill(fill(orders[0], day1, 101, 4, 2000))
	p.OnFill(fill(orders[1], day1, 101, 6, 3000))
	p.Sweep(day1)

	pos, ok := p.Position("ES")
	require.True(t, ok)
	assert.NotEqual(t, first.ID, pos.ID)
	assert.Equal(t, Short, pos.Direction)
	assert.Equal(t, 6, pos.Quantity)
	require.Len(t, p.ClosedPositions(), 1)
	assert.Equal(t, first.ID, p.ClosedPositions()[0].ID)
}

func TestReversalWaitsForPartialExit(t *testing.T) {
	t.Parallel()

	sizer := stubSizer{"ES": 10}
	p := newPortfolio(t, sizer)
	p.AddSignals(Signal{Type: Enter, Market: "ES", Date: day0, Forecast: 10})
	orders, err := p.Orders(day0)
	require.NoError(t, err)
	p.OnFill(fill(orders[0], day0, 100, 10, 5000))
	first, _ := p.Position("ES")

	sizer["ES"] = -5
	p.AddSignals(Signal{Type: Exit, Market: "ES", Date: day0},
		Signal{Type: Enter, Market: "ES", Date: day0, Forecast: -10})
	orders, err = p.Orders(day1)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, SellToClose, orders[0].Type)
	assert.Equal(t, 10, orders[0].Quantity)
	assert.Equal(t, SellToOpen, orders[1].Type)
	assert.Equal(t, 5, orders[1].Quantity)

	require.True(t, p.Admit(orders[0]))
	p.OnFill(OrderResult{Order: orders[0], Status: PartiallyFilled, Date: day1, Price: 101, Quantity: 3, Margin: 1500})
	assert.False(t, p.Admit(orders[1]), "reversal must wait for the exit")
	p.Sweep(day1)

	pos, ok := p.Position("ES")
	require.True(t, ok)
	assert.Equal(t, first.ID, pos.ID)
	assert.Equal(t, Long, pos.Direction)
	assert.Equal(t, 7, pos.Quantity)
	assert.Len(t, p.OpenPositions(), 1)

	pending := p.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, Exit, pending[0].Type)
	assert.Equal(t, Enter, pending[1].Type)

	orders, err = p.Orders(day2)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, SellToClose, orders[0].Type)
	assert.Equal(t, 7, orders[0].Quantity)
	assert.Equal(t, SellToOpen, orders[1].Type)
	assert.Equal(t, 5, orders[1].Quantity)

	for _, o := range orders {
		require.True(t, p.Admit(o))
		p.OnFill(fill(o, day2, 102, o.Quantity, 500*float64(o.Quantity)))
	}
	p.Sweep(day2)

	pos, ok = p.Position("ES")
	require.True(t, ok)
	assert.NotEqual(t, first.ID, pos.ID)
	assert.Equal(t, Short, pos.Direction)
	assert.Equal(t, -5, pos.Signed())
	require.Len(t, p.ClosedPositions(), 1)
	assert.Equal(t, first.ID, p.ClosedPositions()[0].ID)
	assert.Empty(t, p.Pending())
}

func TestOrdersDedupeSignals(t *testing.T) {
	t.Parallel()

	sizer := stubSizer{"ES": 4}
	p := newPortfolio(t, sizer)
	p.AddSignals(Signal{Type: Enter, Market: "ES", Date: day0, Forecast: 10})
	orders, err := p.Orders(day0)
	require.NoError(t, err)
	p.OnFill(fill(orders[0], day0, 100, 4, 2000))

	sizer["ES"] = -2
	p.AddSignals(
		Signal{Type: Exit, Market: "ES", Date: day0},
		Signal{Type: Enter, Market: "ES", Date: day0, Forecast: 5},
		Signal{Type: Exit, Market: "ES", Date: day0},
		Signal{Type: Enter, Market: "ES", Date: day0, Forecast: -5},
	)
	orders, err = p.Orders(day1)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, SellToClose, orders[0].Type)
	assert.Equal(t, 4, orders[0].Quantity)
	assert.Equal(t, SellToOpen, orders[1].Type)
	assert.InDelta(t, -5.0, orders[1].Forecast, 1e-12)
}
