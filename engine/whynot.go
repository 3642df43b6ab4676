package engine

import (
	"sort"
	"time"

	"github.com/rustyeddy/reversion/market"
)

// Why-not reasons: the last reason a pair did not trade on a bar.
const (
	WhyInsufficientHistory = "insufficient_history"
	WhyStaleBar            = "stale_bar"
	WhyInvalidPrice        = "invalid_price"
	WhyOutOfBounds         = "price_out_of_bounds"
	WhyOscillatorAbove     = "oscillator_above_threshold"
	WhyCooldown            = "cooldown"
	WhyRiskDenied          = "risk_denied"
	WhyEntriesPaused       = "entries_paused"
	WhyEmergencyStop       = "emergency_stop"
	WhyAwaitingEntry       = "awaiting_entry_fill"
	WhyAwaitingExit        = "awaiting_exit_fill"
	WhyExitStuck           = "exit_stuck"
	WhyHolding             = "holding"
	WhyEntrySubmitted      = "entry_submitted"
	WhyExitSubmitted       = "exit_submitted"
)

type WhyNot struct {
	Pair   market.Pair `json:"pair"`
	Reason string      `json:"reason"`
	Detail string      `json:"detail,omitempty"`
	At     time.Time   `json:"at"`
}

// caller holds e.mu
func (e *Engine) why(pair market.Pair, reason, detail string, at time.Time) {
	e.whyNot[pair] = WhyNot{Pair: pair, Reason: reason, Detail: detail, At: at}
}

func (e *Engine) whyNotList() []WhyNot {
	out := make([]WhyNot, 0, len(e.whyNot))
	for _, w := range e.whyNot {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair.String() < out[j].Pair.String() })
	return out
}
