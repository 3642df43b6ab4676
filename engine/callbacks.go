package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/reversion/alert"
	"github.com/rustyeddy/reversion/broker"
	"github.com/rustyeddy/reversion/journal"
	"github.com/rustyeddy/reversion/metrics"
	"github.com/rustyeddy/reversion/risk"
	"github.com/rustyeddy/reversion/strategies"
)

// dispatch hands in to the executor on its own goroutine, or inline with
// SyncDispatch. Submissions are detached from ctx cancellation: once an
// intent leaves the engine its outcome must come back, and an exit must
// never be abandoned on shutdown.
func (e *Engine) dispatch(ctx context.Context, in broker.Intent) {
	ctx = context.WithoutCancel(ctx)
	metrics.IntentsSubmitted.WithLabelValues(string(in.Side)).Inc()
	e.log.Info("intent submitted",
		zap.String("intent_id", in.ID),
		zap.String("position_id", in.PositionID),
		zap.String("side", string(in.Side)),
		zap.String("instrument", in.Instrument),
		zap.String("strategy", in.Strategy))

	if e.opts.SyncDispatch {
		e.resolve(ctx, in)
		return
	}
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		e.resolve(ctx, in)
	}()
}

// resolve submits in through the retrier and applies the outcome.
func (e *Engine) resolve(ctx context.Context, in broker.Intent) {
	fill, attempts, err := e.retrier(in).Submit(ctx, e.exec, in)
	if err != nil {
		e.log.Warn("intent failed",
			zap.String("intent_id", in.ID),
			zap.Int("attempts", attempts),
			zap.Error(err))
	}
	switch in.Side {
	case broker.Buy:
		e.onEntryResult(ctx, in, fill, err)
	default:
		e.onExitResult(ctx, in, fill, err)
	}
}

func (e *Engine) retrier(in broker.Intent) broker.Retrier {
	r := broker.Retrier{
		Attempts: e.opts.EntryRetries + 1,
		Backoff:  e.opts.RetryBackoff,
		Timeout:  e.opts.SubmitTimeout,
		OnFailure: func(attempt int, err error) {
			e.noteExecError(in, err)
		},
		OnRetry: func(attempt int, err error, wait time.Duration) {
			metrics.IntentRetries.WithLabelValues(string(in.Side)).Inc()
			e.log.Warn("intent retry",
				zap.String("intent_id", in.ID),
				zap.String("side", string(in.Side)),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(err))
		},
	}
	if in.Side == broker.Sell {
		r.Attempts = e.opts.ExitRetries + 1
		r.RetryPermanent = true
	}
	return r
}

// noteExecError counts one failed submission attempt and pauses entries
// once MaxConsecutiveErrors is reached.
func (e *Engine) noteExecError(in broker.Intent, err error) {
	e.mu.Lock()
	e.consecErrors++
	n := e.consecErrors
	paused := false
	if limit := e.opts.MaxConsecutiveErrors; limit > 0 && n >= limit && e.state == Running {
		e.setState(PausedExecErrors)
		paused = true
	}
	e.mu.Unlock()

	if paused {
		e.raise(context.Background(), alert.Alert{
			Severity:   alert.Warning,
			Title:      "entries paused",
			Message:    fmt.Sprintf("%d consecutive execution errors, last: %v", n, err),
			PositionID: in.PositionID,
			Instrument: in.Instrument,
			Strategy:   in.Strategy,
			Time:       in.CreatedAt,
		})
	}
}

// onEntryResult resolves a PENDING position. Results for a position that is
// no longer waiting on this intent are dropped.
func (e *Engine) onEntryResult(ctx context.Context, in broker.Intent, fill broker.Fill, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[in.PositionID]
	if !ok || pos.Status != Pending || pos.intent.ID != in.ID {
		e.log.Warn("ignoring entry result", zap.String("intent_id", in.ID), zap.String("position_id", in.PositionID))
		return
	}

	if err != nil {
		pos.Status = Closed
		pos.ExitReason = strategies.EntryFailed
		pos.ExitTime = in.CreatedAt
		pos.LastError = err.Error()
		delete(e.active, pos.Pair())
		e.enqueue(pos.snapshot(journal.EventEntryFailed, in.CreatedAt))
		pos.intent = broker.Intent{}

		metrics.PositionsClosed.WithLabelValues(pos.Strategy, string(strategies.EntryFailed)).Inc()
		metrics.ActivePositions.Set(float64(len(e.active)))
		e.log.Warn("entry failed",
			zap.String("position_id", pos.ID),
			zap.Stringer("pair", pos.Pair()),
			zap.Bool("permanent", broker.IsPermanent(err)),
			zap.Error(err))
		return
	}

	pos.Status = Open
	pos.EntryPrice = fill.Price
	pos.EntryTime = fillTime(fill, in)
	pos.EntryTx = fill.TxID
	e.consecErrors = 0
	e.enqueue(pos.snapshot(journal.EventOpened, pos.EntryTime))
	pos.intent = broker.Intent{}

	metrics.Fills.WithLabelValues(string(broker.Buy)).Inc()
	e.log.Info("position opened",
		zap.String("position_id", pos.ID),
		zap.Stringer("pair", pos.Pair()),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("quote", pos.Quote),
		zap.String("tx", pos.EntryTx))
}

// onExitResult resolves a CLOSING position. A failure here means every retry
// was spent: the position is flagged stuck and keeps its slot until an
// operator retries the exit.
func (e *Engine) onExitResult(ctx context.Context, in broker.Intent, fill broker.Fill, err error) {
	e.mu.Lock()

	pos, ok := e.positions[in.PositionID]
	if !ok || pos.Status != Closing || pos.intent.ID != in.ID {
		e.mu.Unlock()
		e.log.Warn("ignoring exit result", zap.String("intent_id", in.ID), zap.String("position_id", in.PositionID))
		return
	}

	if err != nil {
		pos.Stuck = true
		pos.LastError = err.Error()
		e.enqueue(pos.snapshot(journal.EventExitStuck, in.CreatedAt))
		a := alert.Alert{
			Severity:   alert.Fatal,
			Title:      "exit stuck",
			Message:    fmt.Sprintf("exit %s (%s) exhausted retries: %v", in.ID, pos.ExitReason, err),
			PositionID: pos.ID,
			Instrument: pos.Instrument,
			Strategy:   pos.Strategy,
			Time:       in.CreatedAt,
		}
		e.mu.Unlock()
		e.raise(ctx, a)
		return
	}

	pos.Status = Closed
	pos.ExitPrice = fill.Price
	pos.ExitTime = fillTime(fill, in)
	pos.ExitTx = fill.TxID
	pos.RealizedPnL = risk.RealizedPnL(pos.Notional, pos.EntryPrice, pos.ExitPrice)
	pos.Stuck = false
	pos.LastError = ""
	delete(e.active, pos.Pair())
	until := e.risk.OnClose(pos.Pair(), pos.ExitTime)
	e.enqueue(pos.snapshot(journal.EventClosed, pos.ExitTime))
	pos.intent = broker.Intent{}
	e.consecErrors = 0

	metrics.Fills.WithLabelValues(string(broker.Sell)).Inc()
	metrics.PositionsClosed.WithLabelValues(pos.Strategy, string(pos.ExitReason)).Inc()
	metrics.ActivePositions.Set(float64(len(e.active)))
	pnl, _ := pos.RealizedPnL.Float64()
	if pnl >= 0 {
		metrics.RealizedPnL.WithLabelValues(pos.Strategy, "profit").Add(pnl)
	} else {
		metrics.RealizedPnL.WithLabelValues(pos.Strategy, "loss").Add(-pnl)
	}

	e.log.Info("position closed",
		zap.String("position_id", pos.ID),
		zap.Stringer("pair", pos.Pair()),
		zap.String("reason", string(pos.ExitReason)),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("exit_price", pos.ExitPrice),
		zap.String("pnl", pos.RealizedPnL.StringFixed(6)),
		zap.Time("cooldown_until", until))
	e.mu.Unlock()
}

func fillTime(f broker.Fill, in broker.Intent) time.Time {
	if f.Time.IsZero() {
		return in.CreatedAt
	}
	return f.Time
}

// raise records, counts and delivers an alert. Caller must not hold e.mu.
func (e *Engine) raise(ctx context.Context, a alert.Alert) {
	e.mu.Lock()
	e.alerts = append(e.alerts, a)
	e.mu.Unlock()

	if a.Severity == alert.Fatal {
		metrics.FatalAlerts.Inc()
		e.log.Error("fatal alert", zap.String("title", a.Title), zap.String("position_id", a.PositionID), zap.String("detail", a.Message))
	}
	if err := e.notifier.Notify(ctx, a); err != nil {
		e.log.Error("alert delivery failed", zap.String("title", a.Title), zap.Error(err))
	}
}
