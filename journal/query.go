package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

const tradeColumns = `position_id, instrument, strategy, notional, entry_price, exit_price, open_time, close_time, realized_pnl, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.PositionID,
		&rec.Instrument,
		&rec.Strategy,
		&rec.Notional,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.RealizedPnL,
		&rec.Reason,
	)
	return rec, err
}

// GetTrade returns a single trade record by position id.
func (j *SQLite) GetTrade(ctx context.Context, positionID string) (TradeRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE position_id = ?`, positionID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q %w", positionID, ErrNotFound)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(ctx context.Context, start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const eventColumns = `position_id, instrument, strategy, status, event, notional, entry_price, entry_time,
	exit_price, exit_time, exit_reason, realized_pnl, intent_id, tx_id, stuck, recorded_at`

func scanEvent(s scanner) (Snapshot, error) {
	var snap Snapshot
	err := s.Scan(
		&snap.PositionID,
		&snap.Instrument,
		&snap.Strategy,
		&snap.Status,
		&snap.Event,
		&snap.Notional,
		&snap.EntryPrice,
		&snap.EntryTime,
		&snap.ExitPrice,
		&snap.ExitTime,
		&snap.ExitReason,
		&snap.RealizedPnL,
		&snap.IntentID,
		&snap.TxID,
		&snap.Stuck,
		&snap.RecordedAt,
	)
	return snap, err
}

func (j *SQLite) querySnapshots(ctx context.Context, q string, args ...any) ([]Snapshot, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListEvents returns the lifecycle of one position, oldest first.
func (j *SQLite) ListEvents(ctx context.Context, positionID string) ([]Snapshot, error) {
	return j.querySnapshots(ctx, `
		SELECT `+eventColumns+`
		FROM position_events
		WHERE position_id = ?
		ORDER BY seq ASC`, positionID)
}

// ListOpen returns the latest snapshot of every position that never
// reached CLOSED, e.g. one left CLOSING by a crash or exhausted exit retries.
func (j *SQLite) ListOpen(ctx context.Context) ([]Snapshot, error) {
	return j.querySnapshots(ctx, `
		SELECT `+eventColumns+`
		FROM position_events e
		JOIN (SELECT MAX(seq) AS seq FROM position_events GROUP BY position_id) last ON e.seq = last.seq
		WHERE e.status != ?
		ORDER BY e.seq ASC`, StatusClosed)
}
