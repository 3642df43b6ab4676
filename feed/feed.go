// Package feed delivers price bars to the engine.
package feed

import (
	"context"

	"github.com/rustyeddy/reversion/market"
)

// Source streams bars into out until it is exhausted, fails, or ctx is
// done. It never closes out. Bars of one instrument are sent in time order.
type Source interface {
	Stream(ctx context.Context, out chan<- market.Bar) error
}

func send(ctx context.Context, out chan<- market.Bar, b market.Bar) error {
	select {
	case out <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
