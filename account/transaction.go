package account

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/futuresim/internal/id"
	"github.com/rustyeddy/futuresim/pricing"
)

// Type classifies a ledger entry.
type Type string

const (
	MTMPosition          Type = "MTM_POSITION"
	MTMTransaction       Type = "MTM_TRANSACTION"
	Commission           Type = "COMMISSION"
	MarginLoan           Type = "MARGIN_LOAN"
	FXBalanceTranslation Type = "FX_BALANCE_TRANSLATION"
	MarginInterest       Type = "MARGIN_INTEREST"
	BalanceInterest      Type = "BALANCE_INTEREST"
	InternalFundTransfer Type = "INTERNAL_FUND_TRANSFER"
)

// Types lists every transaction type in reporting order.
var Types = []Type{
	MTMPosition,
	MTMTransaction,
	Commission,
	MarginLoan,
	FXBalanceTranslation,
	MarginInterest,
	BalanceInterest,
	InternalFundTransfer,
}

// Side is the credit/debit flag of a transaction.
type Side int8

const (
	Credit Side = 1
	Debit  Side = -1
)

func (s Side) String() string {
	if s == Debit {
		return "DEBIT"
	}
	return "CREDIT"
}

// Transaction is an immutable ledger entry. The amount is stored unsigned;
// the sign given at construction becomes the credit/debit flag.
type Transaction struct {
	id       string
	typ      Type
	date     time.Time
	side     Side
	amount   decimal.Decimal
	currency string
	context  any
}

// NewTransaction builds a transaction from a signed amount. Negative amounts
// are debits. Context is an opaque payload kept for reporting.
func NewTransaction(typ Type, date time.Time, amount float64, currency string, context any) Transaction {
	return NewTransactionDecimal(typ, date, decimal.NewFromFloat(amount), currency, context)
}

// NewTransactionDecimal is NewTransaction for an exact amount.
func NewTransactionDecimal(typ Type, date time.Time, amount decimal.Decimal, currency string, context any) Transaction {
	date = pricing.Day(date)
	side := Credit
	if amount.IsNegative() {
		side = Debit
	}
	return Transaction{
		id:       id.At(date),
		typ:      typ,
		date:     date,
		side:     side,
		amount:   amount.Abs(),
		currency: strings.ToUpper(currency),
		context:  context,
	}
}

func (t Transaction) ID() string { return t.id }
func (t Transaction) Type() Type { return t.typ }
func (t Transaction) Date() time.Time { return t.date }
func (t Transaction) Side() Side { return t.side }
func (t Transaction) Currency() string { return t.currency }
func (t Transaction) Context() any { return t.context }
func (t Transaction) Decimal() decimal.Decimal { return t.amount }

// Amount is the absolute amount, always >= 0.
func (t Transaction) Amount() float64 { return t.amount.InexactFloat64() }

// SignedDecimal is the amount with the credit/debit sign applied.
func (t Transaction) SignedDecimal() decimal.Decimal {
	if t.side == Debit {
		return t.amount.Neg()
	}
	return t.amount
}

// Signed is the amount with the credit/debit sign applied.
func (t Transaction) Signed() float64 { return t.SignedDecimal().InexactFloat64() }

// Aggregate sums the signed amounts of txs per currency, keeping only the
// given types. No types means every type.
func Aggregate(txs []Transaction, types ...Type) map[string]float64 {
	keep := make(map[Type]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}

	sums := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if len(keep) > 0 && !keep[tx.typ] {
			continue
		}
		sums[tx.currency] = sums[tx.currency].Add(tx.SignedDecimal())
	}

	out := make(map[string]float64, len(sums))
	for cur, v := range sums {
		out[cur] = v.InexactFloat64()
	}
	return out
}
