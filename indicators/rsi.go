package indicators

import (
	"errors"
	"fmt"
)

var ErrShortSeries = errors.New("series needs at least two prices")

// Oscillator returns the relative strength index of prices using the
// average-gain / average-loss ratio over every change in the series.
// Averages are simple means over len(prices)-1 changes, so a full window is
// the Wilder seed value without smoothing carried across windows.
//
// A window with no losses reads 100, except a flat window, which reads 50
// rather than 100. The regime tracker passes the last lookback prices, so the
// value spans lookback-1 changes, not lookback.
func Oscillator(prices []float64) (float64, error) {
	if len(prices) < 2 {
		return 0, ErrShortSeries
	}

	var gain, loss float64
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	n := float64(len(prices) - 1)
	avgGain := gain / n
	avgLoss := loss / n

	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50, nil
	case avgLoss == 0:
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// RSI is a streaming oscillator over a bounded FIFO window of prices.
// The window holds at most period samples; the oldest is evicted on insert.
type RSI struct {
	period int
	prices []float64
}

// NewRSI returns an RSI over a window of period prices. period must be >= 2.
func NewRSI(period int) *RSI {
	if period < 2 {
		period = 2
	}
	return &RSI{
		period: period,
		prices: make([]float64, 0, period),
	}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI(%d)", r.period)
}

func (r *RSI) Warmup() int {
	return r.period
}

func (r *RSI) Reset() {
	r.prices = r.prices[:0]
}

func (r *RSI) Update(price float64) {
	if len(r.prices) == r.period {
		copy(r.prices, r.prices[1:])
		r.prices = r.prices[:r.period-1]
	}
	r.prices = append(r.prices, price)
}

func (r *RSI) Ready() bool {
	return len(r.prices) >= r.period
}

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	v, _ := Oscillator(r.prices)
	return v
}

// Len reports how many samples the window currently holds.
func (r *RSI) Len() int {
	return len(r.prices)
}

// Window returns a copy of the samples, oldest first.
func (r *RSI) Window() []float64 {
	out := make([]float64, len(r.prices))
	copy(out, r.prices)
	return out
}

var _ Indicator = (*RSI)(nil)
