package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/reversion/journal"
	"github.com/rustyeddy/reversion/metrics"
)

// State gates new entries. Open positions are managed to exit in every
// state.
type State string

const (
	Running          State = "running"
	Paused           State = "paused"
	PausedExecErrors State = "paused_exec_errors"
	PausedPriceFeed  State = "paused_price_feed"
	EmergencyStopped State = "emergency_stop"
)

func (s State) gauge() float64 {
	switch s {
	case Paused:
		return 1
	case PausedExecErrors:
		return 2
	case EmergencyStopped:
		return 3
	case PausedPriceFeed:
		return 4
	}
	return 0
}

var zeroPnL = decimal.Zero

// caller holds e.mu
func (e *Engine) setState(s State) {
	if e.state == s {
		return
	}
	e.log.Info("engine state", zap.String("from", string(e.state)), zap.String("to", string(s)))
	e.state = s
	metrics.EngineState.Set(s.gauge())
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Pause blocks new entries until Resume. It has no effect after an
// emergency stop.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EmergencyStopped {
		return
	}
	e.setState(Paused)
}

// Resume re-enables entries after Pause or an automatic pause and resets
// the consecutive error and bad bar counts.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EmergencyStopped {
		return ErrEmergencyStopped
	}
	e.consecErrors = 0
	clear(e.badBars)
	e.setState(Running)
	return nil
}

// EmergencyStop permanently blocks new entries for the life of the engine.
// In-flight intents are left to complete and open positions keep exiting.
func (e *Engine) EmergencyStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setState(EmergencyStopped)
}

// RetryExit resubmits the exit of a stuck position with its original intent
// id, so an executor that already filled it answers with the same fill.
func (e *Engine) RetryExit(ctx context.Context, positionID string) error {
	e.mu.Lock()
	pos, ok := e.positions[positionID]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownPosition
	}
	if pos.Status != Closing || !pos.Stuck {
		e.mu.Unlock()
		return ErrNotStuck
	}
	pos.Stuck = false
	pos.LastError = ""
	in := pos.intent
	e.enqueue(pos.snapshot(journal.EventExitSubmitted, time.Now().UTC()))
	e.why(pos.Pair(), WhyExitSubmitted, "operator retry", time.Now().UTC())
	e.mu.Unlock()

	e.log.Info("exit retry requested", zap.String("position_id", positionID), zap.String("intent_id", in.ID))
	e.dispatch(ctx, in)
	return nil
}
