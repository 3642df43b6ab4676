package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTradeNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	_, err := j.GetTrade(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "not found")
}

func TestListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j, _ := newTestSQLite(t)

	day := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"A", "B", "C"} {
		done := lifecycle(id, 100, 100.5, "TakeProfit")[3]
		done.ExitTime = day.Add(time.Duration(i*12) * time.Hour) // 00:00, 12:00, next day 00:00
		require.NoError(t, j.Record(ctx, done))
	}

	got, err := j.ListTradesClosedBetween(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2, "end is exclusive")
	assert.Equal(t, "A", got[0].PositionID)
	assert.Equal(t, "B", got[1].PositionID)

	none, err := j.ListTradesClosedBetween(ctx, day.Add(-48*time.Hour), day.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}
