package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = `run_id, created, strategy, markets, base_currency, start_date, end_date,
	start_equity, end_equity, net_pl, return_pct, max_dd_pct, trades, wins, losses, win_rate, config`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	err := s.Scan(&r.RunID, &r.Created, &r.Strategy, &r.Markets, &r.BaseCurrency, &r.Start, &r.End,
		&r.StartEquity, &r.EndEquity, &r.NetPL, &r.ReturnPct, &r.MaxDDPct,
		&r.Trades, &r.Wins, &r.Losses, &r.WinRate, &r.Config)
	return r, err
}

// GetRun returns a single run by id.
func (j *SQLite) GetRun(runID string) (Run, error) {
	row := j.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q not found", runID)
		}
		return Run{}, err
	}
	return r, nil
}

// ListRuns returns every run, newest first.
func (j *SQLite) ListRuns() ([]Run, error) {
	rows, err := j.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created DESC, run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListTransactions returns the ledger of a run in booking order.
func (j *SQLite) ListTransactions(runID string) ([]TransactionRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, id, type, date, side, amount, currency, reference
		FROM transactions
		WHERE run_id = ?
		ORDER BY date ASC, id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransactionRecord
	for rows.Next() {
		var t TransactionRecord
		if err := rows.Scan(&t.RunID, &t.ID, &t.Type, &t.Date, &t.Side, &t.Amount, &t.Currency, &t.Reference); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListPositions returns the positions of a run by entry date.
func (j *SQLite) ListPositions(runID string) ([]PositionRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, id, market, contract, currency, direction, quantity, forecast,
		       entry_date, entry_price, closed_date, realized_pl
		FROM positions
		WHERE run_id = ?
		ORDER BY entry_date ASC, id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionRecord
	for rows.Next() {
		var p PositionRecord
		var closed sql.NullTime
		if err := rows.Scan(&p.RunID, &p.ID, &p.Market, &p.Contract, &p.Currency, &p.Direction, &p.Quantity,
			&p.Forecast, &p.EntryDate, &p.EntryPrice, &closed, &p.RealizedPL); err != nil {
			return nil, err
		}
		if closed.Valid {
			p.ClosedDate = closed.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListEquityBetween returns equity records with date in [start, end).
func (j *SQLite) ListEquityBetween(runID string, start, end time.Time) ([]EquityRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, date, equity, available_funds, margin_loans
		FROM equity
		WHERE run_id = ? AND date >= ? AND date < ?
		ORDER BY date ASC`, runID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRecord
	for rows.Next() {
		var e EquityRecord
		if err := rows.Scan(&e.RunID, &e.Date, &e.Equity, &e.AvailableFunds, &e.MarginLoans); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListStudy returns one study series of one market.
func (j *SQLite) ListStudy(runID, market, study string) ([]StudyRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, market, study, date, value, value2
		FROM studies
		WHERE run_id = ? AND market = ? AND study = ?
		ORDER BY date ASC`, runID, market, study)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StudyRecord
	for rows.Next() {
		var s StudyRecord
		if err := rows.Scan(&s.RunID, &s.Market, &s.Study, &s.Date, &s.Value, &s.Value2); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
