// Package market builds continuous futures series from vendor-adjusted feeds
// or from individual delivery contracts, and computes the daily studies,
// margins and volatility/correlation lookups the rest of the engine uses.
package market

import (
	"fmt"
	"strings"
)

// DefaultMarginRatio is the share of contract value charged as margin before
// the margin study has warmed up.
const DefaultMarginRatio = 0.1

// Instrument describes one futures market.
type Instrument struct {
	Code     string `json:"code" yaml:"code"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Currency string `json:"currency" yaml:"currency"`

	// PointValue is the currency value of a one point move for one contract.
	PointValue float64 `json:"point_value" yaml:"point_value"`
	TickSize   float64 `json:"tick_size" yaml:"tick_size"`

	// Margin per contract is MarginMultiple times the MarginStudy value
	// (an ATR) times PointValue.
	MarginMultiple float64 `json:"margin_multiple" yaml:"margin_multiple"`
	MarginStudy    string  `json:"margin_study,omitempty" yaml:"margin_study,omitempty"`
}

// Validate checks the fields every component relies on.
func (i Instrument) Validate() error {
	if strings.TrimSpace(i.Code) == "" {
		return fmt.Errorf("instrument code is required")
	}
	if i.Currency == "" {
		return fmt.Errorf("instrument %s: currency is required", i.Code)
	}
	if i.PointValue <= 0 {
		return fmt.Errorf("instrument %s: point_value must be positive", i.Code)
	}
	if i.TickSize < 0 {
		return fmt.Errorf("instrument %s: tick_size must not be negative", i.Code)
	}
	if i.MarginMultiple < 0 {
		return fmt.Errorf("instrument %s: margin_multiple must not be negative", i.Code)
	}
	return nil
}
