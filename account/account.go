// Package account is the multi-currency ledger: currency balances, margin-loan
// balances, an append-only transaction log and a snapshot per booking date.
package account

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/futuresim/pricing"
)

var (
	ErrNoSnapshot = errors.New("no account snapshot at or before date")
	ErrOutOfOrder = errors.New("transaction dated before the last booking")
)

// Converter converts an amount between currencies at a date. *rates.FX
// satisfies it.
type Converter interface {
	Convert(amount float64, from, to string, date time.Time) float64
}

// Snapshot is the account state after the last transaction batch of a date.
type Snapshot struct {
	Date        time.Time
	Equity      float64
	FXBalances  map[string]float64
	MarginLoans map[string]float64
}

func (s Snapshot) clone() Snapshot {
	s.FXBalances = cloneMap(s.FXBalances)
	s.MarginLoans = cloneMap(s.MarginLoans)
	return s
}

// Account owns every balance and the transaction log. It is only mutated
// through AddTransaction.
type Account struct {
	base string
	fx   Converter

	initial     decimal.Decimal
	equity      decimal.Decimal
	fxBalances  map[string]decimal.Decimal
	marginLoans map[string]decimal.Decimal

	txs       []Transaction
	snapshots pricing.Timeline[Snapshot]
}

// New opens an account in base currency with an initial balance on start.
// The initial balance is recorded as the first snapshot, not as a transaction.
func New(base string, initial float64, start time.Time, fx Converter) *Account {
	base = strings.ToUpper(base)
	bal := decimal.NewFromFloat(initial)
	a := &Account{
		base:        base,
		fx:          fx,
		initial:     bal,
		equity:      bal,
		fxBalances:  map[string]decimal.Decimal{base: bal},
		marginLoans: make(map[string]decimal.Decimal),
	}
	a.snapshot(pricing.Day(start))
	return a
}

func (a *Account) BaseCurrency() string { return a.base }

// InitialBalance is the base-currency balance the account was opened with.
func (a *Account) InitialBalance() float64 { return a.initial.InexactFloat64() }

// AddTransaction books tx, updates the balance it belongs to and records a
// snapshot for its date.
func (a *Account) AddTransaction(tx Transaction) error {
	if last, _, ok := a.snapshots.Last(); ok && tx.date.Before(last) {
		return fmt.Errorf("%w: %s %s before %s", ErrOutOfOrder, tx.typ,
			tx.date.Format(pricing.DateLayout), last.Format(pricing.DateLayout))
	}

	signed := tx.SignedDecimal()
	switch tx.typ {
	case MarginLoan:
		a.marginLoans[tx.currency] = a.marginLoans[tx.currency].Add(signed)
	case FXBalanceTranslation:
		// valuation only; no currency changes hands
		a.equity = a.equity.Add(a.baseDecimal(signed, tx.currency, tx.date))
	default:
		a.fxBalances[tx.currency] = a.fxBalances[tx.currency].Add(signed)
		a.equity = a.equity.Add(a.baseDecimal(signed, tx.currency, tx.date))
	}

	a.txs = append(a.txs, tx)
	a.snapshot(tx.date)
	return nil
}

// AddTransactions books txs in order and stops at the first error.
func (a *Account) AddTransactions(txs ...Transaction) error {
	for _, tx := range txs {
		if err := a.AddTransaction(tx); err != nil {
			return err
		}
	}
	return nil
}

func (a *Account) snapshot(date time.Time) {
	s := Snapshot{
		Date:        date,
		Equity:      a.equity.InexactFloat64(),
		FXBalances:  make(map[string]float64, len(a.fxBalances)),
		MarginLoans: make(map[string]float64, len(a.marginLoans)),
	}
	for cur, v := range a.fxBalances {
		s.FXBalances[cur] = v.InexactFloat64()
	}
	for cur, v := range a.marginLoans {
		s.MarginLoans[cur] = v.InexactFloat64()
	}
	a.snapshots.Set(date, s)
}

// Snapshot returns the state recorded at or before date.
func (a *Account) Snapshot(date time.Time) (Snapshot, error) {
	s, ok := a.snapshots.At(date)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNoSnapshot, pricing.Day(date).Format(pricing.DateLayout))
	}
	return s.clone(), nil
}

// Snapshots returns every recorded snapshot in date order.
func (a *Account) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, a.snapshots.Len())
	a.snapshots.Each(func(_ time.Time, s Snapshot) {
		out = append(out, s.clone())
	})
	return out
}

// Equity is the base-currency value of the account at date.
func (a *Account) Equity(date time.Time) (float64, error) {
	s, ok := a.snapshots.At(date)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoSnapshot, pricing.Day(date).Format(pricing.DateLayout))
	}
	return s.Equity, nil
}

// AvailableFunds is equity less the base value of every margin loan.
func (a *Account) AvailableFunds(date time.Time) (float64, error) {
	s, ok := a.snapshots.At(date)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoSnapshot, pricing.Day(date).Format(pricing.DateLayout))
	}
	funds := s.Equity
	for cur, loan := range s.MarginLoans {
		funds -= a.BaseValue(loan, cur, date)
	}
	return funds, nil
}

// FXBalance is the balance held in currency at date.
func (a *Account) FXBalance(currency string, date time.Time) (float64, error) {
	s, ok := a.snapshots.At(date)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoSnapshot, pricing.Day(date).Format(pricing.DateLayout))
	}
	return s.FXBalances[strings.ToUpper(currency)], nil
}

// MarginLoanBalance is the margin loan outstanding in currency at date.
func (a *Account) MarginLoanBalance(currency string, date time.Time) (float64, error) {
	s, ok := a.snapshots.At(date)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoSnapshot, pricing.Day(date).Format(pricing.DateLayout))
	}
	return s.MarginLoans[strings.ToUpper(currency)], nil
}

// BaseValue converts amount in currency to the base currency at date.
func (a *Account) BaseValue(amount float64, currency string, date time.Time) float64 {
	if strings.EqualFold(currency, a.base) || a.fx == nil {
		return amount
	}
	return a.fx.Convert(amount, currency, a.base, date)
}

func (a *Account) baseDecimal(amount decimal.Decimal, currency string, date time.Time) decimal.Decimal {
	if strings.EqualFold(currency, a.base) {
		return amount
	}
	return decimal.NewFromFloat(a.BaseValue(amount.InexactFloat64(), currency, date))
}

// Transactions returns the transactions booked between start and end
// inclusive, in booking order.
func (a *Account) Transactions(start, end time.Time) []Transaction {
	start, end = pricing.Day(start), pricing.Day(end)
	lo := sort.Search(len(a.txs), func(i int) bool { return !a.txs[i].date.Before(start) })
	hi := sort.Search(len(a.txs), func(i int) bool { return a.txs[i].date.After(end) })
	if lo >= hi {
		return nil
	}
	out := make([]Transaction, hi-lo)
	copy(out, a.txs[lo:hi])
	return out
}

// AllTransactions returns a copy of the whole log.
func (a *Account) AllTransactions() []Transaction {
	out := make([]Transaction, len(a.txs))
	copy(out, a.txs)
	return out
}

// Currencies lists every currency with a balance or loan, sorted.
func (a *Account) Currencies() []string {
	seen := make(map[string]bool)
	for cur := range a.fxBalances {
		seen[cur] = true
	}
	for cur := range a.marginLoans {
		seen[cur] = true
	}
	out := make([]string, 0, len(seen))
	for cur := range seen {
		out = append(out, cur)
	}
	sort.Strings(out)
	return out
}

func cloneMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
