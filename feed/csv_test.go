package feed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/reversion/market"
)

const sample = `time,instrument,price
2024-05-01T14:00:00Z,SOL/USDC,142.10
# comment
2024-05-01T14:01:00Z, SOL/USDC ,142.05

1714572120,JUP/USDC,1.1
`

func TestReadCSV(t *testing.T) {
	t.Parallel()

	bars, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, market.Bar{Instrument: "SOL/USDC", Price: 142.10, Time: time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)}, bars[0])
	assert.Equal(t, "SOL/USDC", bars[1].Instrument)
	assert.Equal(t, "JUP/USDC", bars[2].Instrument)
	assert.Equal(t, time.Date(2024, 5, 1, 14, 2, 0, 0, time.UTC), bars[2].Time)
}

func TestReadCSVErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"short row":     "2024-05-01T14:00:00Z,SOL/USDC\n",
		"bad time":      "yesterday,SOL/USDC,1\n",
		"bad price":     "2024-05-01T14:00:00Z,SOL/USDC,abc\n",
		"zero price":    "2024-05-01T14:00:00Z,SOL/USDC,0\n",
		"no instrument": "2024-05-01T14:00:00Z,,1\n",
	}
	for name, in := range tests {
		_, err := ReadCSV(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestCSVStreamWindow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	src := CSV{
		Path: path,
		From: time.Date(2024, 5, 1, 14, 1, 0, 0, time.UTC),
		To:   time.Date(2024, 5, 1, 14, 2, 0, 0, time.UTC),
	}
	out := make(chan market.Bar, 10)
	require.NoError(t, src.Stream(context.Background(), out))
	close(out)

	var got []market.Bar
	for b := range out {
		got = append(got, b)
	}
	require.Len(t, got, 1)
	assert.Equal(t, 142.05, got[0].Price)
}

func TestCSVStreamCancel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := CSV{Path: path}.Stream(ctx, make(chan market.Bar))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCSVStreamMissingFile(t *testing.T) {
	t.Parallel()

	err := CSV{Path: filepath.Join(t.TempDir(), "nope.csv")}.Stream(context.Background(), make(chan market.Bar, 1))
	assert.Error(t, err)
}
