package strategies

import (
	"time"

	"github.com/rustyeddy/futuresim/portfolio"
)

// Noop never trades.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Signals(time.Time, []*portfolio.Position) ([]portfolio.Signal, error) {
	return nil, nil
}
