package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	opened = time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	closed = time.Date(2024, 4, 10, 9, 7, 30, 0, time.UTC)
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

// lifecycle returns the snapshots of a position that entered at entry and
// closed at exit.
func lifecycle(id string, entry, exit float64, reason string) []Snapshot {
	base := Snapshot{PositionID: id, Instrument: "SOL/USDC", Strategy: "mean-reversion", Notional: 10}

	pending := base
	pending.Status, pending.Event, pending.IntentID, pending.RecordedAt = "PENDING", EventEntrySubmitted, id+"-in", opened

	open := base
	open.Status, open.Event, open.EntryPrice, open.EntryTime, open.RecordedAt = "OPEN", EventOpened, entry, opened, opened

	closing := open
	closing.Status, closing.Event, closing.ExitReason, closing.IntentID, closing.RecordedAt = "CLOSING", EventExitSubmitted, reason, id+"-out", closed

	done := closing
	done.Status, done.Event, done.ExitPrice, done.ExitTime, done.TxID = StatusClosed, EventClosed, exit, closed, "tx-"+id
	done.RealizedPnL = decimal.NewFromFloat(10).Mul(decimal.NewFromFloat(exit).Sub(decimal.NewFromFloat(entry))).Div(decimal.NewFromFloat(entry))

	return []Snapshot{pending, open, closing, done}
}

type recorderFunc func(Snapshot) error

func (f recorderFunc) Record(_ context.Context, s Snapshot) error { return f(s) }
func (f recorderFunc) Close() error                                { return nil }
