package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Write stores the report in a single database transaction. Writing the same
// run id twice fails.
func (j *SQLite) Write(r Report) error {
	r.Stamp()
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	if err := writeReport(tx, r); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("journal run %s: %w", r.Run.RunID, err)
	}
	return tx.Commit()
}

func writeReport(tx *sql.Tx, r Report) error {
	run := r.Run
	if _, err := tx.Exec(`
		INSERT INTO runs
		(run_id, created, strategy, markets, base_currency, start_date, end_date,
		 start_equity, end_equity, net_pl, return_pct, max_dd_pct, trades, wins, losses, win_rate, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Created, run.Strategy, run.Markets, run.BaseCurrency, run.Start, run.End,
		run.StartEquity, run.EndEquity, run.NetPL, run.ReturnPct, run.MaxDDPct,
		run.Trades, run.Wins, run.Losses, run.WinRate, run.Config,
	); err != nil {
		return err
	}

	err := insertAll(tx, `
		INSERT INTO transactions (run_id, id, type, date, side, amount, currency, reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, len(r.Transactions), func(i int) []any {
		t := r.Transactions[i]
		return []any{t.RunID, t.ID, t.Type, t.Date, t.Side, t.Amount, t.Currency, t.Reference}
	})
	if err != nil {
		return err
	}

	err = insertAll(tx, `
		INSERT INTO positions
		(run_id, id, market, contract, currency, direction, quantity, forecast, entry_date, entry_price, closed_date, realized_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, len(r.Positions), func(i int) []any {
		p := r.Positions[i]
		return []any{p.RunID, p.ID, p.Market, p.Contract, p.Currency, p.Direction, p.Quantity, p.Forecast,
			p.EntryDate, p.EntryPrice, nullTime(p.ClosedDate), p.RealizedPL}
	})
	if err != nil {
		return err
	}

	err = insertAll(tx, `
		INSERT INTO fills
		(run_id, order_id, position_id, market, contract, signal, type, status, date, price, quantity, margin, commission)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, len(r.Fills), func(i int) []any {
		f := r.Fills[i]
		return []any{f.RunID, f.OrderID, f.PositionID, f.Market, f.Contract, f.Signal, f.Type, f.Status,
			f.Date, f.Price, f.Quantity, f.Margin, f.Commission}
	})
	if err != nil {
		return err
	}

	err = insertAll(tx, `
		INSERT INTO margins (run_id, position_id, date, margin) VALUES (?, ?, ?, ?)`,
		len(r.Margins), func(i int) []any {
			m := r.Margins[i]
			return []any{m.RunID, m.PositionID, m.Date, m.Margin}
		})
	if err != nil {
		return err
	}

	err = insertAll(tx, `
		INSERT INTO equity (run_id, date, equity, available_funds, margin_loans) VALUES (?, ?, ?, ?, ?)`,
		len(r.Equity), func(i int) []any {
			e := r.Equity[i]
			return []any{e.RunID, e.Date, e.Equity, e.AvailableFunds, e.MarginLoans}
		})
	if err != nil {
		return err
	}

	return insertAll(tx, `
		INSERT INTO studies (run_id, market, study, date, value, value2) VALUES (?, ?, ?, ?, ?, ?)`,
		len(r.Studies), func(i int) []any {
			s := r.Studies[i]
			return []any{s.RunID, s.Market, s.Study, s.Date, s.Value, s.Value2}
		})
}

func insertAll(tx *sql.Tx, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.Exec(args(i)...); err != nil {
			return err
		}
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
