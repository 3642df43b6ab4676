package journal

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
)

var (
	eventHeader = []string{"position_id", "instrument", "strategy", "status", "event", "notional",
		"entry_price", "entry_time", "exit_price", "exit_time", "exit_reason", "realized_pnl",
		"intent_id", "tx_id", "stuck", "recorded_at"}
	tradeHeader = []string{"position_id", "instrument", "strategy", "notional", "entry_price",
		"exit_price", "open_time", "close_time", "realized_pnl", "reason"}
)

type CSV struct {
	mu     sync.Mutex
	events *csv.Writer
	trades *csv.Writer
	ef, tf *os.File
	seen   map[string]bool
}

// NewCSV creates (truncating) the events and trades files and writes their
// headers.
func NewCSV(eventsPath, tradesPath string) (*CSV, error) {
	ef, err := os.Create(eventsPath)
	if err != nil {
		return nil, err
	}
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, multierr.Append(err, ef.Close())
	}

	j := &CSV{
		events: csv.NewWriter(ef),
		trades: csv.NewWriter(tf),
		ef:     ef,
		tf:     tf,
		seen:   make(map[string]bool),
	}
	if err := j.write(j.events, eventHeader); err != nil {
		return nil, multierr.Append(err, j.Close())
	}
	if err := j.write(j.trades, tradeHeader); err != nil {
		return nil, multierr.Append(err, j.Close())
	}
	return j, nil
}

func (j *CSV) write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSV) Record(ctx context.Context, s Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.write(j.events, []string{
		s.PositionID,
		s.Instrument,
		s.Strategy,
		s.Status,
		s.Event,
		f(s.Notional),
		f(s.EntryPrice),
		ts(s.EntryTime),
		f(s.ExitPrice),
		ts(s.ExitTime),
		s.ExitReason,
		s.RealizedPnL.String(),
		s.IntentID,
		s.TxID,
		strconv.FormatBool(s.Stuck),
		ts(s.RecordedAt),
	})
	if err != nil {
		return err
	}

	if !s.Completed() || j.seen[s.PositionID] {
		return nil
	}
	t := s.Trade()
	err = j.write(j.trades, []string{
		t.PositionID,
		t.Instrument,
		t.Strategy,
		f(t.Notional),
		f(t.EntryPrice),
		f(t.ExitPrice),
		ts(t.OpenTime),
		ts(t.CloseTime),
		t.RealizedPnL.String(),
		t.Reason,
	})
	if err != nil {
		return err
	}
	j.seen[s.PositionID] = true
	return nil
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.events.Flush()
	j.trades.Flush()
	return multierr.Combine(
		j.events.Error(),
		j.trades.Error(),
		j.ef.Close(),
		j.tf.Close(),
	)
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

var _ Recorder = (*CSV)(nil)
