package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/reversion/market"
)

// CSV replays bars from a file with columns:
//
//	time,instrument,price
//
// A header row is allowed. time is RFC3339 or unix seconds. Rows outside
// [From, To) are skipped when the bounds are set.
type CSV struct {
	Path string
	From time.Time
	To   time.Time

	// Pace sleeps between bars; zero replays as fast as the engine reads.
	Pace time.Duration
}

func (c CSV) Stream(ctx context.Context, out chan<- market.Bar) error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := NewCSVReader(f)
	for {
		b, ok, err := r.Next()
		if err != nil {
			return fmt.Errorf("%s: %w", c.Path, err)
		}
		if !ok {
			return nil
		}
		if !c.From.IsZero() && b.Time.Before(c.From) {
			continue
		}
		if !c.To.IsZero() && !b.Time.Before(c.To) {
			continue
		}
		if err := send(ctx, out, b); err != nil {
			return err
		}
		if c.Pace > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Pace):
			}
		}
	}
}

type CSVReader struct {
	r        *csv.Reader
	line     int
	sawFirst bool
}

func NewCSVReader(r io.Reader) *CSVReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	return &CSVReader{r: cr}
}

// Next returns the next bar; ok is false at end of input.
func (c *CSVReader) Next() (market.Bar, bool, error) {
	for {
		row, err := c.r.Read()
		if err == io.EOF {
			return market.Bar{}, false, nil
		}
		if err != nil {
			return market.Bar{}, false, err
		}
		c.line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if !c.sawFirst {
			c.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		b, err := parseRow(row)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("line %d: %w", c.line, err)
		}
		return b, true, nil
	}
}

// ReadCSV loads every bar from r.
func ReadCSV(r io.Reader) ([]market.Bar, error) {
	cr := NewCSVReader(r)
	var out []market.Bar
	for {
		b, ok, err := cr.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, b)
	}
}

func parseRow(row []string) (market.Bar, error) {
	if len(row) < 3 {
		return market.Bar{}, fmt.Errorf("want time,instrument,price got %d columns", len(row))
	}
	ts, err := parseTime(strings.TrimSpace(row[0]))
	if err != nil {
		return market.Bar{}, err
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("price %q: %w", row[2], err)
	}
	b := market.Bar{Instrument: strings.TrimSpace(row[1]), Price: price, Time: ts}
	return b, b.Validate()
}

func parseTime(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: %w", s, err)
	}
	return t.UTC(), nil
}
