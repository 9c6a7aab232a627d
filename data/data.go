// Package data loads the CSV inputs of a simulation: daily bars, vendor roll
// reports, FX rates, interest rates and volatility/correlation records.
// Every file has a header row; columns are matched by name.
package data

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/rustyeddy/futuresim/market"
	"github.com/rustyeddy/futuresim/pricing"
	"github.com/rustyeddy/futuresim/rates"
)

// Date is a YYYY-MM-DD CSV column.
type Date struct{ time.Time }

func (d *Date) UnmarshalCSV(s string) error {
	t, err := pricing.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalCSV() (string, error) {
	return d.Format(pricing.DateLayout), nil
}

type barRow struct {
	Date     Date    `csv:"date"`
	Contract string  `csv:"contract"`
	Open     float64 `csv:"open"`
	High     float64 `csv:"high"`
	Low      float64 `csv:"low"`
	Settle   float64 `csv:"settle"`
	Volume   float64 `csv:"volume"`
}

type rollRow struct {
	Date Date    `csv:"date"`
	Gap  float64 `csv:"gap"`
	Out  string  `csv:"out"`
	In   string  `csv:"in"`
}

type fxRow struct {
	Date Date    `csv:"date"`
	Pair string  `csv:"pair"`
	Rate float64 `csv:"rate"`
}

type interestRow struct {
	Date     Date    `csv:"date"`
	Currency string  `csv:"currency"`
	Tenor    string  `csv:"tenor"`
	Rate     float64 `csv:"rate"`
}

type volatilityRow struct {
	Date         Date    `csv:"date"`
	Market       string  `csv:"market"`
	Return       float64 `csv:"return"`
	Deviation    float64 `csv:"deviation"`
	MovementVol  float64 `csv:"movement_vol"`
	DeviationVol float64 `csv:"deviation_vol"`
}

type correlationRow struct {
	Date        Date    `csv:"date"`
	Market      string  `csv:"market"`
	Other       string  `csv:"other"`
	Correlation float64 `csv:"correlation"`
}

// ReadBars parses a bar file. Rows are returned in file order.
func ReadBars(r io.Reader) ([]pricing.Bar, error) {
	var rows []*barRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("bars: %w", err)
	}
	out := make([]pricing.Bar, 0, len(rows))
	for _, row := range rows {
		out = append(out, pricing.Bar{
			Date:     row.Date.Time,
			Contract: strings.TrimSpace(row.Contract),
			Open:     row.Open,
			High:     row.High,
			Low:      row.Low,
			Settle:   row.Settle,
			Volume:   row.Volume,
		})
	}
	return out, nil
}

// ReadRolls parses a vendor roll report.
func ReadRolls(r io.Reader) ([]market.Roll, error) {
	var rows []*rollRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("rolls: %w", err)
	}
	out := make([]market.Roll, 0, len(rows))
	for _, row := range rows {
		out = append(out, market.Roll{Date: row.Date.Time, Gap: row.Gap, Out: row.Out, In: row.In})
	}
	return out, nil
}

// ReadFX adds every rate in r to fx.
func ReadFX(r io.Reader, fx *rates.FX) error {
	var rows []*fxRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return fmt.Errorf("fx: %w", err)
	}
	for i, row := range rows {
		if len(row.Pair) != 6 {
			return fmt.Errorf("fx row %d: pair %q is not six letters", i+1, row.Pair)
		}
		fx.Add(row.Pair, row.Date.Time, row.Rate)
	}
	return nil
}

// ReadInterest adds every benchmark rate in r to in. A blank tenor means
// three month.
func ReadInterest(r io.Reader, in *rates.Interest) error {
	var rows []*interestRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return fmt.Errorf("interest: %w", err)
	}
	for i, row := range rows {
		tenor := rates.Tenor(strings.ToLower(strings.TrimSpace(row.Tenor)))
		switch tenor {
		case "":
			tenor = rates.ThreeMonth
		case rates.Immediate, rates.ThreeMonth:
		default:
			return fmt.Errorf("interest row %d: unknown tenor %q", i+1, row.Tenor)
		}
		in.Add(row.Currency, tenor, row.Date.Time, row.Rate)
	}
	return nil
}

// ReadVolatility builds a volatility table from a volatility file and an
// optional correlation file. A correlation without a volatility record for the
// same market and date gets a record of its own with zero volatilities.
func ReadVolatility(vols, corrs io.Reader) (*market.VolatilityTable, error) {
	var vrows []*volatilityRow
	if err := gocsv.Unmarshal(vols, &vrows); err != nil {
		return nil, fmt.Errorf("volatility: %w", err)
	}

	type key struct {
		market string
		day    int64
	}
	recs := make(map[key]*market.VolatilityRecord, len(vrows))
	var order []key
	for _, row := range vrows {
		k := key{row.Market, pricing.DayKey(row.Date.Time)}
		if _, ok := recs[k]; !ok {
			order = append(order, k)
		}
		recs[k] = &market.VolatilityRecord{
			Date:         row.Date.Time,
			Market:       row.Market,
			Return:       row.Return,
			Deviation:    row.Deviation,
			MovementVol:  row.MovementVol,
			DeviationVol: row.DeviationVol,
		}
	}

	if corrs != nil {
		var crows []*correlationRow
		if err := gocsv.Unmarshal(corrs, &crows); err != nil {
			return nil, fmt.Errorf("correlation: %w", err)
		}
		for _, row := range crows {
			k := key{row.Market, pricing.DayKey(row.Date.Time)}
			rec, ok := recs[k]
			if !ok {
				rec = &market.VolatilityRecord{Date: row.Date.Time, Market: row.Market}
				recs[k] = rec
				order = append(order, k)
			}
			if rec.Correlations == nil {
				rec.Correlations = make(map[string]float64)
			}
			rec.Correlations[row.Other] = row.Correlation
		}
	}

	vt := market.NewVolatilityTable()
	for _, k := range order {
		vt.Add(*recs[k])
	}
	return vt, nil
}

// File opens path for one of the readers. The caller closes it.
func File(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// LoadBars reads a bar file from disk.
func LoadBars(path string) ([]pricing.Bar, error) {
	f, err := File(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := ReadBars(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// LoadRolls reads a vendor roll report from disk.
func LoadRolls(path string) ([]market.Roll, error) {
	f, err := File(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rolls, err := ReadRolls(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rolls, nil
}

// LoadFX reads every FX file in paths into one table.
func LoadFX(paths ...string) (*rates.FX, error) {
	fx := rates.NewFX()
	for _, p := range paths {
		f, err := File(p)
		if err != nil {
			return nil, err
		}
		err = ReadFX(f, fx)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return fx, nil
}

// LoadInterest reads every interest-rate file in paths into one table.
func LoadInterest(paths ...string) (*rates.Interest, error) {
	in := rates.NewInterest()
	for _, p := range paths {
		f, err := File(p)
		if err != nil {
			return nil, err
		}
		err = ReadInterest(f, in)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return in, nil
}

// LoadVolatility reads a volatility file and, when corrPath is not empty, its
// correlation file.
func LoadVolatility(volPath, corrPath string) (*market.VolatilityTable, error) {
	vf, err := File(volPath)
	if err != nil {
		return nil, err
	}
	defer vf.Close()

	var corrs io.Reader
	if corrPath != "" {
		cf, err := File(corrPath)
		if err != nil {
			return nil, err
		}
		defer cf.Close()
		corrs = cf
	}
	return ReadVolatility(vf, corrs)
}
