package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// single writer; intents complete on their own goroutines
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Record appends the snapshot to position_events and, when it completes a
// round trip, inserts the trade. A trade already present is left as is, so
// a repeated close can never produce a second record.
func (j *SQLite) Record(ctx context.Context, s Snapshot) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO position_events
		(position_id, instrument, strategy, status, event, notional, entry_price, entry_time,
		 exit_price, exit_time, exit_reason, realized_pnl, intent_id, tx_id, stuck, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.PositionID, s.Instrument, s.Strategy, s.Status, s.Event, s.Notional,
		s.EntryPrice, s.EntryTime.UTC(), s.ExitPrice, s.ExitTime.UTC(), s.ExitReason,
		s.RealizedPnL.String(), s.IntentID, s.TxID, s.Stuck, s.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record event %s %s: %w", s.PositionID, s.Event, err)
	}

	if s.Completed() {
		t := s.Trade()
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO trades
			(position_id, instrument, strategy, notional, entry_price, exit_price, open_time, close_time, realized_pnl, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.PositionID, t.Instrument, t.Strategy, t.Notional, t.EntryPrice, t.ExitPrice,
			t.OpenTime.UTC(), t.CloseTime.UTC(), t.RealizedPnL.String(), t.Reason,
		)
		if err != nil {
			return fmt.Errorf("record trade %s: %w", s.PositionID, err)
		}
	}

	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

var _ Recorder = (*SQLite)(nil)
