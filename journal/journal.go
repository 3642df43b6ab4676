// Package journal durably records position history. Writes are append-only;
// the engine never reads them back at runtime.
package journal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle events carried by a Snapshot.
const (
	EventEntrySubmitted = "entry_submitted"
	EventOpened         = "opened"
	EventEntryFailed    = "entry_failed"
	EventExitSubmitted  = "exit_submitted"
	EventClosed         = "closed"
	EventExitStuck      = "exit_stuck"
)

const StatusClosed = "CLOSED"

// Snapshot is a copy of a position at one point of its lifecycle.
type Snapshot struct {
	PositionID  string
	Instrument  string
	Strategy    string
	Status      string
	Event       string
	Notional    float64
	EntryPrice  float64
	EntryTime   time.Time
	ExitPrice   float64
	ExitTime    time.Time
	ExitReason  string
	RealizedPnL decimal.Decimal
	IntentID    string
	TxID        string
	Stuck       bool
	RecordedAt  time.Time
}

// Completed reports whether s is a finished round trip: closed after an
// actual entry fill.
func (s Snapshot) Completed() bool {
	return s.Status == StatusClosed && !s.EntryTime.IsZero() && s.ExitReason != "EntryFailed"
}

// Trade converts a completed snapshot into its trade record.
func (s Snapshot) Trade() TradeRecord {
	return TradeRecord{
		PositionID:  s.PositionID,
		Instrument:  s.Instrument,
		Strategy:    s.Strategy,
		Notional:    s.Notional,
		EntryPrice:  s.EntryPrice,
		ExitPrice:   s.ExitPrice,
		OpenTime:    s.EntryTime,
		CloseTime:   s.ExitTime,
		RealizedPnL: s.RealizedPnL,
		Reason:      s.ExitReason,
	}
}

// TradeRecord is one completed round trip.
type TradeRecord struct {
	PositionID  string
	Instrument  string
	Strategy    string
	Notional    float64
	EntryPrice  float64
	ExitPrice   float64
	OpenTime    time.Time
	CloseTime   time.Time
	RealizedPnL decimal.Decimal
	Reason      string
}

type Recorder interface {
	Record(ctx context.Context, s Snapshot) error
	Close() error
}

// Discard drops every snapshot.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(context.Context, Snapshot) error { return nil }
func (discard) Close() error                           { return nil }
