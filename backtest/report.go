package backtest

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/futuresim/account"
	"github.com/rustyeddy/futuresim/journal"
	"github.com/rustyeddy/futuresim/portfolio"
)

// reference names what a transaction was booked for.
func reference(ctx any) string {
	switch v := ctx.(type) {
	case nil:
		return ""
	case portfolio.Order:
		return v.ID
	case string:
		return v
	}
	return fmt.Sprint(ctx)
}

func (s *Simulation) buildReport(end time.Time) journal.Report {
	txs := s.acct.AllTransactions()
	positions := append(s.portfolio.ClosedPositions(), s.portfolio.OpenPositions()...)

	// Realized P/L per position is its marks and commissions, found through
	// the position id and the ids of its orders.
	owner := make(map[string]string)
	for _, pos := range positions {
		owner[pos.ID] = pos.ID
		for _, r := range pos.Results() {
			owner[r.Order.ID] = pos.ID
		}
	}
	pnl := make(map[string]float64)

	r := journal.Report{}
	for _, tx := range txs {
		ref := reference(tx.Context())
		r.Transactions = append(r.Transactions, journal.TransactionRecord{
			ID:        tx.ID(),
			Type:      string(tx.Type()),
			Date:      tx.Date(),
			Side:      tx.Side().String(),
			Amount:    tx.Amount(),
			Currency:  tx.Currency(),
			Reference: ref,
		})
		switch tx.Type() {
		case account.MTMPosition, account.MTMTransaction, account.Commission:
			if p, ok := owner[ref]; ok {
				pnl[p] += s.acct.BaseValue(tx.Signed(), tx.Currency(), tx.Date())
			}
		}
	}

	run := journal.Run{
		Created:      time.Now().UTC(),
		Strategy:     s.model.Name(),
		Markets:      strings.Join(s.markets, ","),
		BaseCurrency: s.acct.BaseCurrency(),
		Start:        s.start,
		End:          end,
		StartEquity:  s.acct.InitialBalance(),
	}
	if cfg, err := json.Marshal(s.cfg); err == nil {
		run.Config = string(cfg)
	}

	for _, pos := range positions {
		rec := journal.PositionRecord{
			ID:         pos.ID,
			Market:     pos.Market,
			Contract:   pos.Contract,
			Currency:   pos.Currency,
			Direction:  pos.Direction.String(),
			Quantity:   pos.Quantity,
			Forecast:   pos.Forecast,
			EntryDate:  pos.EntryDate,
			EntryPrice: pos.EntryPrice,
			ClosedDate: pos.ClosedDate,
			RealizedPL: pnl[pos.ID],
		}
		r.Positions = append(r.Positions, rec)
		for _, m := range pos.Margins() {
			r.Margins = append(r.Margins, journal.MarginRecord{PositionID: pos.ID, Date: m.Date, Margin: m.Margin})
		}
		if pos.Open() {
			continue
		}
		run.Trades++
		switch {
		case rec.RealizedPL > 0:
			run.Wins++
		case rec.RealizedPL < 0:
			run.Losses++
		}
	}
	if run.Trades > 0 {
		run.WinRate = float64(run.Wins) / float64(run.Trades)
	}

	for _, f := range s.fills {
		posID := f.Order.PositionID
		if p, ok := owner[f.Order.ID]; ok {
			posID = p
		}
		r.Fills = append(r.Fills, journal.FillRecord{
			OrderID:    f.Order.ID,
			PositionID: posID,
			Market:     f.Order.Market,
			Contract:   f.Order.Contract,
			Signal:     string(f.Order.Signal),
			Type:       string(f.Order.Type),
			Status:     string(f.Status),
			Date:       f.Date,
			Price:      f.Price,
			Quantity:   f.Quantity,
			Margin:     f.Margin,
			Commission: f.Commission,
		})
	}

	r.Equity = append(r.Equity, s.equity...)
	if eq, err := s.acct.Equity(end); err == nil {
		run.EndEquity = eq
	}
	run.NetPL = run.EndEquity - run.StartEquity
	if run.StartEquity != 0 {
		run.ReturnPct = run.NetPL / run.StartEquity * 100
	}
	run.MaxDDPct = maxDrawdownPct(run.StartEquity, s.equity)

	for _, m := range s.markets {
		ser := s.series[m]
		for _, name := range ser.StudyNames() {
			for _, p := range ser.StudySeries(name) {
				r.Studies = append(r.Studies, journal.StudyRecord{
					Market: m, Study: name, Date: p.Date, Value: p.Value, Value2: p.Value2,
				})
			}
		}
	}

	run.RunID = s.runID
	r.Run = run
	r.Stamp()
	return r
}

// maxDrawdownPct is the largest peak-to-trough fall of the equity curve in
// percent of the peak.
func maxDrawdownPct(start float64, curve []journal.EquityRecord) float64 {
	peak, dd := start, 0.0
	for _, e := range curve {
		peak = math.Max(peak, e.Equity)
		if peak > 0 {
			dd = math.Max(dd, (peak-e.Equity)/peak*100)
		}
	}
	return dd
}
