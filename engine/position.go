package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/reversion/broker"
	"github.com/rustyeddy/reversion/journal"
	"github.com/rustyeddy/reversion/market"
	"github.com/rustyeddy/reversion/strategies"
)

type Status string

const (
	Pending Status = "PENDING" // entry intent submitted, awaiting fill
	Open    Status = "OPEN"
	Closing Status = "CLOSING" // exit intent submitted, awaiting fill
	Closed  Status = "CLOSED"
)

// Active reports whether the status holds the pair's slot.
func (s Status) Active() bool {
	return s == Pending || s == Open || s == Closing
}

// Position is owned by the engine for its whole life. Everything outside
// the engine only ever sees copies.
type Position struct {
	ID         string            `json:"id"`
	Instrument string            `json:"instrument"`
	Strategy   string            `json:"strategy"`
	Notional   float64           `json:"notional"`
	Status     Status            `json:"status"`
	Quote      float64           `json:"quote"` // price when the entry was decided
	CreatedAt  time.Time         `json:"created_at"`
	EntryPrice float64           `json:"entry_price,omitempty"`
	EntryTime  time.Time         `json:"entry_time,omitempty"`
	EntryTx    string            `json:"entry_tx,omitempty"`
	ExitPrice  float64           `json:"exit_price,omitempty"`
	ExitTime   time.Time         `json:"exit_time,omitempty"`
	ExitTx     string            `json:"exit_tx,omitempty"`
	ExitReason strategies.Reason `json:"exit_reason,omitempty"`

	RealizedPnL decimal.Decimal `json:"realized_pnl"`

	// Stuck is set when an exit exhausted its retries. The position stays
	// CLOSING, keeps its slot, and waits for RetryExit.
	Stuck     bool   `json:"stuck,omitempty"`
	LastError string `json:"last_error,omitempty"`

	intent broker.Intent // the one outstanding intent, if any
}

func (p *Position) Pair() market.Pair {
	return market.Pair{Instrument: p.Instrument, Strategy: p.Strategy}
}

// IntentID is the id of the outstanding intent, empty when none is.
func (p *Position) IntentID() string {
	return p.intent.ID
}

func (p *Position) holding() *strategies.Holding {
	return &strategies.Holding{EntryPrice: p.EntryPrice, EntryTime: p.EntryTime}
}

func (p *Position) snapshot(event string, at time.Time) journal.Snapshot {
	return journal.Snapshot{
		PositionID:  p.ID,
		Instrument:  p.Instrument,
		Strategy:    p.Strategy,
		Status:      string(p.Status),
		Event:       event,
		Notional:    p.Notional,
		EntryPrice:  p.EntryPrice,
		EntryTime:   p.EntryTime,
		ExitPrice:   p.ExitPrice,
		ExitTime:    p.ExitTime,
		ExitReason:  string(p.ExitReason),
		RealizedPnL: p.RealizedPnL,
		IntentID:    p.intent.ID,
		TxID:        lastTx(p),
		Stuck:       p.Stuck,
		RecordedAt:  at,
	}
}

func lastTx(p *Position) string {
	if p.ExitTx != "" {
		return p.ExitTx
	}
	return p.EntryTx
}

// Trade returns p as a completed round trip. Positions that are still
// active or never filled on entry report false.
func (p Position) Trade() (journal.TradeRecord, bool) {
	s := p.snapshot(journal.EventClosed, p.ExitTime)
	if !s.Completed() {
		return journal.TradeRecord{}, false
	}
	return s.Trade(), true
}
