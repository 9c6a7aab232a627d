// Package journal persists the outcome of a simulation run: the ledger, the
// positions with their fills and margin history, daily equity and the study
// series. A run is written once, when the simulation completes.
package journal

import "time"

// Run summarizes one simulation.
type Run struct {
	RunID        string    `csv:"run_id"`
	Created      time.Time `csv:"created"`
	Strategy     string    `csv:"strategy"`
	Markets      string    `csv:"markets"`
	BaseCurrency string    `csv:"base_currency"`
	Start        time.Time `csv:"start"`
	End          time.Time `csv:"end"`

	StartEquity float64 `csv:"start_equity"`
	EndEquity   float64 `csv:"end_equity"`
	NetPL       float64 `csv:"net_pl"`
	ReturnPct   float64 `csv:"return_pct"`
	MaxDDPct    float64 `csv:"max_dd_pct"`

	Trades  int     `csv:"trades"`
	Wins    int     `csv:"wins"`
	Losses  int     `csv:"losses"`
	WinRate float64 `csv:"win_rate"`

	Config string `csv:"config"`
}

type TransactionRecord struct {
	RunID     string    `csv:"run_id"`
	ID        string    `csv:"id"`
	Type      string    `csv:"type"`
	Date      time.Time `csv:"date"`
	Side      string    `csv:"side"`
	Amount    float64   `csv:"amount"`
	Currency  string    `csv:"currency"`
	Reference string    `csv:"reference"`
}

type PositionRecord struct {
	RunID      string    `csv:"run_id"`
	ID         string    `csv:"id"`
	Market     string    `csv:"market"`
	Contract   string    `csv:"contract"`
	Currency   string    `csv:"currency"`
	Direction  string    `csv:"direction"`
	Quantity   int       `csv:"quantity"`
	Forecast   float64   `csv:"forecast"`
	EntryDate  time.Time `csv:"entry_date"`
	EntryPrice float64   `csv:"entry_price"`
	// ClosedDate is zero while the position is open.
	ClosedDate time.Time `csv:"closed_date"`
	RealizedPL float64   `csv:"realized_pl"`
}

type FillRecord struct {
	RunID      string    `csv:"run_id"`
	OrderID    string    `csv:"order_id"`
	PositionID string    `csv:"position_id"`
	Market     string    `csv:"market"`
	Contract   string    `csv:"contract"`
	Signal     string    `csv:"signal"`
	Type       string    `csv:"type"`
	Status     string    `csv:"status"`
	Date       time.Time `csv:"date"`
	Price      float64   `csv:"price"`
	Quantity   int       `csv:"quantity"`
	Margin     float64   `csv:"margin"`
	Commission float64   `csv:"commission"`
}

type MarginRecord struct {
	RunID      string    `csv:"run_id"`
	PositionID string    `csv:"position_id"`
	Date       time.Time `csv:"date"`
	Margin     float64   `csv:"margin"`
}

type EquityRecord struct {
	RunID          string    `csv:"run_id"`
	Date           time.Time `csv:"date"`
	Equity         float64   `csv:"equity"`
	AvailableFunds float64   `csv:"available_funds"`
	MarginLoans    float64   `csv:"margin_loans"`
}

type StudyRecord struct {
	RunID  string    `csv:"run_id"`
	Market string    `csv:"market"`
	Study  string    `csv:"study"`
	Date   time.Time `csv:"date"`
	Value  float64   `csv:"value"`
	Value2 float64   `csv:"value2"`
}

// Report is everything a run leaves behind. Every record carries Run.RunID.
type Report struct {
	Run          Run
	Transactions []TransactionRecord
	Positions    []PositionRecord
	Fills        []FillRecord
	Margins      []MarginRecord
	Equity       []EquityRecord
	Studies      []StudyRecord
}

// Stamp copies the run id onto every record.
func (r *Report) Stamp() {
	id := r.Run.RunID
	for i := range r.Transactions {
		r.Transactions[i].RunID = id
	}
	for i := range r.Positions {
		r.Positions[i].RunID = id
	}
	for i := range r.Fills {
		r.Fills[i].RunID = id
	}
	for i := range r.Margins {
		r.Margins[i].RunID = id
	}
	for i := range r.Equity {
		r.Equity[i].RunID = id
	}
	for i := range r.Studies {
		r.Studies[i].RunID = id
	}
}

type Journal interface {
	Write(Report) error
	Close() error
}
