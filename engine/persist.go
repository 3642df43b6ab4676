package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/reversion/alert"
	"github.com/rustyeddy/reversion/journal"
)

// enqueue queues s for the journal. Snapshots are written one at a time in
// the order their transitions were applied, off the engine lock.
// Caller holds e.mu.
func (e *Engine) enqueue(s journal.Snapshot) {
	e.inflight.Add(1)
	e.pending = append(e.pending, s)
	if !e.draining {
		e.draining = true
		go e.drain()
	}
}

func (e *Engine) drain() {
	for {
		e.mu.Lock()
		if len(e.pending) == 0 {
			e.draining = false
			e.mu.Unlock()
			return
		}
		s := e.pending[0]
		e.pending[0] = journal.Snapshot{}
		e.pending = e.pending[1:]
		e.mu.Unlock()

		e.persist(s)
		e.inflight.Done()
	}
}

// persist writes one snapshot. Closed trades are retried like exits and
// raise a fatal alert when every attempt fails; other events are logged.
func (e *Engine) persist(s journal.Snapshot) {
	attempts := 1
	if s.Event == journal.EventClosed {
		attempts += e.opts.JournalRetries
	}
	wait := e.opts.RetryBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.JournalTimeout)
		err = e.rec.Record(ctx, s)
		cancel()
		if err == nil {
			return
		}
		if attempt < attempts {
			e.log.Warn("journal retry",
				zap.String("position_id", s.PositionID),
				zap.String("event", s.Event),
				zap.Int("attempt", attempt),
				zap.Error(err))
			time.Sleep(wait)
			wait *= 2
		}
	}

	if s.Event != journal.EventClosed {
		e.log.Error("journal write failed",
			zap.String("position_id", s.PositionID),
			zap.String("event", s.Event),
			zap.Error(err))
		return
	}
	e.raise(context.Background(), alert.Alert{
		Severity:   alert.Fatal,
		Title:      "closed trade not persisted",
		Message:    fmt.Sprintf("%s %s pnl %s: %v", s.ExitReason, s.TxID, s.RealizedPnL.StringFixed(6), err),
		PositionID: s.PositionID,
		Instrument: s.Instrument,
		Strategy:   s.Strategy,
		Time:       s.RecordedAt,
	})
}
