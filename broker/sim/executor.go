// Package sim is the dry-run executor: intents fill locally at the quoted
// price, moved against the trader by a fixed slippage.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/reversion/broker"
)

type Executor struct {
	slippageBps float64
	now         func() time.Time

	mu    sync.Mutex
	fills map[string]broker.Fill
	order []string
}

type Option func(*Executor)

// WithClock makes fills carry now() instead of the intent's creation time.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func NewExecutor(slippageBps float64, opts ...Option) *Executor {
	e := &Executor{
		slippageBps: slippageBps,
		fills:       make(map[string]broker.Fill),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Submit fills in. Resubmitting an intent ID returns the original fill.
func (e *Executor) Submit(ctx context.Context, in broker.Intent) (broker.Fill, error) {
	if err := ctx.Err(); err != nil {
		return broker.Fill{}, err
	}
	if in.Instrument == "" {
		return broker.Fill{}, fmt.Errorf("sim: %w: empty instrument", broker.ErrInvalidInstrument)
	}
	if in.Quote <= 0 || in.Notional <= 0 {
		return broker.Fill{}, fmt.Errorf("sim: %w: quote %v notional %v", broker.ErrRejected, in.Quote, in.Notional)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if f, ok := e.fills[in.ID]; ok {
		return f, nil
	}

	price := e.fillPrice(in.Side, in.Quote)
	at := in.CreatedAt
	if e.now != nil {
		at = e.now()
	}
	f := broker.Fill{
		IntentID: in.ID,
		TxID:     "sim-" + uuid.NewString(),
		Price:    price,
		Units:    decimal.NewFromFloat(in.Notional).DivRound(decimal.NewFromFloat(price), 12).InexactFloat64(),
		Time:     at,
	}
	e.fills[in.ID] = f
	e.order = append(e.order, in.ID)
	return f, nil
}

func (e *Executor) fillPrice(side broker.Side, quote float64) float64 {
	q := decimal.NewFromFloat(quote)
	adj := decimal.NewFromFloat(e.slippageBps).Div(decimal.NewFromInt(10000))
	if side == broker.Sell {
		return q.Mul(decimal.NewFromInt(1).Sub(adj)).InexactFloat64()
	}
	return q.Mul(decimal.NewFromInt(1).Add(adj)).InexactFloat64()
}

// Fills returns every fill in submission order.
func (e *Executor) Fills() []broker.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]broker.Fill, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.fills[id])
	}
	return out
}

var _ broker.Executor = (*Executor)(nil)
