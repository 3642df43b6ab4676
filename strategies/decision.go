package strategies

import (
	"time"

	"github.com/shopspring/decimal"
)

type Action int

const (
	NoAction Action = iota
	Enter
	Exit
)

func (a Action) String() string {
	switch a {
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	default:
		return "none"
	}
}

// Reason is why a position closed.
type Reason string

const (
	StopLoss       Reason = "StopLoss"
	ForcedTime     Reason = "ForcedTime"
	OscillatorExit Reason = "OscillatorExit"
	TakeProfit     Reason = "TakeProfit"
	// EntryFailed is set by the engine, never by a policy.
	EntryFailed Reason = "EntryFailed"
)

// Decision is the outcome of one policy evaluation. Reason is only set
// when Action is Exit.
type Decision struct {
	Action Action
	Reason Reason
}

func (d Decision) String() string {
	if d.Action == Exit {
		return "exit:" + string(d.Reason)
	}
	return d.Action.String()
}

func exit(r Reason) Decision { return Decision{Action: Exit, Reason: r} }

// Holding is what a policy needs to know about an open position.
type Holding struct {
	EntryPrice float64
	EntryTime  time.Time
}

// ReturnPct is the percent return from entry to price, computed exactly.
func ReturnPct(entry, price float64) decimal.Decimal {
	e := decimal.NewFromFloat(entry)
	if e.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(price).Sub(e).Mul(decimal.NewFromInt(100)).Div(e)
}

// returnAtMost reports whether the return from entry to price is <= pct
// percent. It compares (price-entry)*100 against pct*entry so that a
// threshold landing exactly on a price is never lost to rounding.
func returnAtMost(entry, price, pct float64) bool {
	e := decimal.NewFromFloat(entry)
	lhs := decimal.NewFromFloat(price).Sub(e).Mul(decimal.NewFromInt(100))
	return lhs.LessThanOrEqual(decimal.NewFromFloat(pct).Mul(e))
}

func returnAtLeast(entry, price, pct float64) bool {
	e := decimal.NewFromFloat(entry)
	lhs := decimal.NewFromFloat(price).Sub(e).Mul(decimal.NewFromInt(100))
	return lhs.GreaterThanOrEqual(decimal.NewFromFloat(pct).Mul(e))
}
