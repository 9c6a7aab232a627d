// Package indicators provides the incremental technical studies computed on a
// continuous futures series. Every study consumes one bar per day in O(1)
// (HHLL scans its own window only) and has a batch counterpart in batch.go.
package indicators

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rustyeddy/futuresim/pricing"
)

var ErrUnknownStudy = errors.New("unknown study")

// Indicator computes a streaming value from daily bars.
type Indicator interface {
	// Name returns the configured study name, e.g. "atr_long".
	Name() string

	// Warmup returns how many bars are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next settled bar.
	Update(b pricing.Bar)

	// Ready reports whether Value() is meaningful. Callers must check it.
	Ready() bool

	// Value returns the current value. The second value is only used by
	// two-sided studies (HHLL: highest high, lowest low) and is 0 otherwise.
	Value() (float64, float64)
}

// Kind selects the study algorithm.
type Kind string

const (
	KindSMA  Kind = "sma"
	KindEMA  Kind = "ema"
	KindATR  Kind = "atr"
	KindHHLL Kind = "hhll"
)

// Spec describes one configured study.
type Spec struct {
	Name   string         `json:"name" yaml:"name"`
	Kind   Kind           `json:"kind" yaml:"kind"`
	Column pricing.Column `json:"column,omitempty" yaml:"column,omitempty"`
	Window int            `json:"window" yaml:"window"`
}

// New builds the indicator described by s.
func New(s Spec) (Indicator, error) {
	if s.Window <= 0 {
		return nil, fmt.Errorf("study %q: window must be positive, got %d", s.Name, s.Window)
	}
	if _, ok := (pricing.Bar{}).Field(s.Column); !ok {
		return nil, fmt.Errorf("study %q: unknown column %q", s.Name, s.Column)
	}

	name := s.Name
	if name == "" {
		name = fmt.Sprintf("%s(%s,%d)", strings.ToUpper(string(s.Kind)), s.Column, s.Window)
	}

	switch Kind(strings.ToLower(string(s.Kind))) {
	case KindSMA:
		return NewSMA(name, s.Column, s.Window), nil
	case KindEMA:
		return NewEMA(name, s.Column, s.Window), nil
	case KindATR:
		return NewATR(name, s.Window), nil
	case KindHHLL:
		return NewHHLL(name, s.Column, s.Window), nil
	}
	return nil, fmt.Errorf("%w: %q (kind %q)", ErrUnknownStudy, s.Name, s.Kind)
}
