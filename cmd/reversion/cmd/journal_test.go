package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBounds(t *testing.T) {
	t.Parallel()

	start, end, err := dayBounds(time.UTC, "2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), end)

	_, _, err = dayBounds(time.UTC, "06/03/2024")
	assert.Error(t, err)
}
