// Package portfolio turns strategy signals into sized orders and keeps the
// open and closed positions up to date as fills arrive.
package portfolio

import (
	"fmt"
	"time"
)

// SignalType is what a strategy asks the portfolio to do in a market.
type SignalType string

const (
	Enter     SignalType = "ENTER"
	Exit      SignalType = "EXIT"
	Roll      SignalType = "ROLL"
	Rebalance SignalType = "REBALANCE"
)

// Signal is emitted by a trading model after the day's data is settled and
// acted on at the next market open.
type Signal struct {
	Type     SignalType `json:"type"`
	Market   string     `json:"market"`
	Contract string     `json:"contract,omitempty"`
	Date     time.Time  `json:"date"`
	// Forecast is the signed conviction; its sign is the direction.
	Forecast float64 `json:"forecast"`
	// Price is the reference price the signal was generated at.
	Price float64 `json:"price"`
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %s %s forecast=%.2f", s.Date.Format("2006-01-02"), s.Type, s.Market, s.Forecast)
}

// OrderType is the direction and intent of an order.
type OrderType string

const (
	BuyToOpen   OrderType = "BTO"
	SellToOpen  OrderType = "STO"
	BuyToClose  OrderType = "BTC"
	SellToClose OrderType = "STC"
)

// Opening reports whether the order adds exposure.
func (t OrderType) Opening() bool { return t == BuyToOpen || t == SellToOpen }

// Buy reports whether the order buys contracts.
func (t OrderType) Buy() bool { return t == BuyToOpen || t == BuyToClose }

// OpenType returns the opening order for a direction.
func OpenType(d Direction) OrderType {
	if d == Short {
		return SellToOpen
	}
	return BuyToOpen
}

// CloseType returns the order that reduces a position of direction d.
func CloseType(d Direction) OrderType {
	if d == Short {
		return BuyToClose
	}
	return SellToClose
}

// Order is a request for the broker to trade on Date.
type Order struct {
	ID         string     `json:"id"`
	Signal     SignalType `json:"signal"`
	Type       OrderType  `json:"type"`
	Market     string     `json:"market"`
	Contract   string     `json:"contract"`
	Date       time.Time  `json:"date"`
	Price      float64    `json:"price"`
	Quantity   int        `json:"quantity"`
	Forecast   float64    `json:"forecast"`
	PositionID string     `json:"position_id,omitempty"`
}

// Direction of the exposure the order leaves behind when it opens.
func (o Order) Direction() Direction {
	if o.Type == BuyToOpen || o.Type == SellToClose {
		return Long
	}
	return Short
}

// Status classifies an order outcome.
type Status string

const (
	Filled          Status = "FILLED"
	PartiallyFilled Status = "PARTIALLY_FILLED"
	Rejected        Status = "REJECTED"
	// RejectedFunds means liquidity allowed a fill but available funds did
	// not cover margin and commission. No transactions are booked.
	RejectedFunds Status = "REJECTED_FUNDS"
)

// OrderResult is the immutable outcome of an order.
type OrderResult struct {
	Order    Order     `json:"order"`
	Status   Status    `json:"status"`
	Date     time.Time `json:"date"`
	Price    float64   `json:"price"`
	Quantity int       `json:"quantity"`
	// Margin is posted for opening orders and released for closing ones,
	// in the instrument currency.
	Margin             float64 `json:"margin"`
	Commission         float64 `json:"commission"`
	CommissionCurrency string  `json:"commission_currency"`
}

// Executed reports whether the result changed the position.
func (r OrderResult) Executed() bool {
	return r.Status == Filled || r.Status == PartiallyFilled
}
