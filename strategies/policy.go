package strategies

import (
	"time"

	"github.com/rustyeddy/reversion/regime"
)

// Decide evaluates p against the regime. With no holding it only answers
// Enter or NoAction; with a holding it only answers Exit or NoAction.
//
// Exit conditions are checked in strict priority order and the first match
// wins, so a bar that breaches the stop and the take-profit target at once
// always records StopLoss.
func Decide(p Params, r regime.State, h *Holding, now time.Time) Decision {
	if h == nil {
		if r.Ready && r.Oscillator <= p.EntryThreshold {
			return Decision{Action: Enter}
		}
		return Decision{Action: NoAction}
	}

	switch p.Kind {
	case TwoPhase:
		return exitTwoPhase(p, r, h, now)
	default:
		return exitSinglePhase(p, r, h, now)
	}
}

func exitSinglePhase(p Params, r regime.State, h *Holding, now time.Time) Decision {
	elapsed := now.Sub(h.EntryTime)

	switch {
	case returnAtMost(h.EntryPrice, r.Price, -p.StopLossPct):
		return exit(StopLoss)
	case elapsed >= p.ForcedExit:
		return exit(ForcedTime)
	case r.Oscillator >= p.OscillatorExit:
		return exit(OscillatorExit)
	case returnAtLeast(h.EntryPrice, r.Price, p.TakeProfitPct):
		return exit(TakeProfit)
	}
	return Decision{Action: NoAction}
}

func exitTwoPhase(p Params, r regime.State, h *Holding, now time.Time) Decision {
	elapsed := now.Sub(h.EntryTime)

	switch {
	case returnAtMost(h.EntryPrice, r.Price, -p.StopLossPct):
		return exit(StopLoss)
	case elapsed >= p.ForcedExit:
		return exit(ForcedTime)
	case r.Oscillator >= p.OscillatorExit:
		return exit(OscillatorExit)
	case elapsed < p.PhaseOne && returnAtLeast(h.EntryPrice, r.Price, p.TakeProfitPct):
		return exit(TakeProfit)
	}
	// phase two: no target, ride until one of the above fires
	return Decision{Action: NoAction}
}

// Phase reports which phase a holding is in: 1 or 2 for TwoPhase, always 1
// for SinglePhase.
func Phase(p Params, h Holding, now time.Time) int {
	if p.Kind == TwoPhase && now.Sub(h.EntryTime) >= p.PhaseOne {
		return 2
	}
	return 1
}
