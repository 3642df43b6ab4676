package engine

import (
	"github.com/rustyeddy/reversion/alert"
	"github.com/rustyeddy/reversion/regime"
	"github.com/rustyeddy/reversion/risk"
)

// Report is a point-in-time copy of the engine for operators.
type Report struct {
	State             State           `json:"state"`
	Active            int             `json:"active"`
	ConsecutiveErrors int             `json:"consecutive_errors"`
	Positions         []Position      `json:"positions"`
	Regimes           []regime.State  `json:"regimes"`
	Cooldowns         []risk.Cooldown `json:"cooldowns"`
	WhyNot            []WhyNot        `json:"why_not"`
	Alerts            []alert.Alert   `json:"alerts"`
}

// Status returns a Report. Positions are listed in creation order.
func (e *Engine) Status() Report {
	e.mu.Lock()
	r := Report{
		State:             e.state,
		Active:            len(e.active),
		ConsecutiveErrors: e.consecErrors,
		Positions:         e.positionsLocked(false),
		WhyNot:            e.whyNotList(),
		Alerts:            append([]alert.Alert(nil), e.alerts...),
	}
	e.mu.Unlock()

	r.Regimes = e.tracker.Snapshot()
	r.Cooldowns = e.risk.Cooldowns()
	return r
}

// Position returns a copy of the position with the given id.
func (e *Engine) Position(id string) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.positions[id]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of every position, or only the active ones.
func (e *Engine) Positions(activeOnly bool) []Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionsLocked(activeOnly)
}

func (e *Engine) positionsLocked(activeOnly bool) []Position {
	out := make([]Position, 0, len(e.order))
	for _, id := range e.order {
		pos := e.positions[id]
		if activeOnly && !pos.Status.Active() {
			continue
		}
		out = append(out, *pos)
	}
	return out
}

// ActiveCount counts PENDING, OPEN and CLOSING positions.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
