// Package market holds the price primitives shared by the feed, the regime
// tracker and the lifecycle engine.
package market

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var ErrInvalidBar = errors.New("invalid bar")

// Bar is one price observation for an instrument. Feeds deliver bars with
// strictly increasing timestamps per instrument.
type Bar struct {
	Instrument string    `json:"instrument"`
	Price      float64   `json:"price"`
	Time       time.Time `json:"time"`
}

func (b Bar) Validate() error {
	if strings.TrimSpace(b.Instrument) == "" {
		return fmt.Errorf("%w: missing instrument", ErrInvalidBar)
	}
	if math.IsNaN(b.Price) || math.IsInf(b.Price, 0) || b.Price <= 0 {
		return fmt.Errorf("%w: %s price %v", ErrInvalidBar, b.Instrument, b.Price)
	}
	if b.Time.IsZero() {
		return fmt.Errorf("%w: %s missing time", ErrInvalidBar, b.Instrument)
	}
	return nil
}

func (b Bar) String() string {
	return fmt.Sprintf("%s %.6f @ %s", b.Instrument, b.Price, b.Time.UTC().Format(time.RFC3339))
}
