// Package regime tracks the rolling oscillator of every instrument from its
// incoming price bars.
package regime

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/reversion/indicators"
)

var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrStaleBar            = errors.New("stale or duplicate bar")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrOutOfBounds         = errors.New("price out of bounds")
)

const DefaultLookback = 14

// State is a read-only snapshot of one instrument's regime.
type State struct {
	Instrument string    `json:"instrument"`
	Price      float64   `json:"price"`
	Oscillator float64   `json:"oscillator"`
	UpdatedAt  time.Time `json:"updated_at"`
	Window     []float64 `json:"window"`
	Ready      bool      `json:"ready"`
}

// Bounds is an inclusive sanity range for one instrument's price. Bars
// outside it are treated as bad data, not as market moves.
type Bounds struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (b Bounds) Contains(price float64) bool {
	return price >= b.Min && price <= b.Max
}

// DefaultBounds are wide ranges that only catch garbage quotes.
func DefaultBounds() map[string]Bounds {
	return map[string]Bounds{
		"SOL/USDC":    {Min: 1, Max: 10000},
		"JUP/USDC":    {Min: 0.001, Max: 1000},
		"BONK/USDC":   {Min: 0.0000001, Max: 0.01},
		"WIF/USDC":    {Min: 0.001, Max: 1000},
		"TRUMP/USDC":  {Min: 0.01, Max: 10000},
		"POPCAT/USDC": {Min: 0.001, Max: 1000},
		"MEW/USDC":    {Min: 0.0001, Max: 100},
	}
}

type series struct {
	rsi   *indicators.RSI
	price float64
	at    time.Time
}

func (s *series) state(instrument string) State {
	return State{
		Instrument: instrument,
		Price:      s.price,
		Oscillator: s.rsi.Value(),
		UpdatedAt:  s.at,
		Window:     s.rsi.Window(),
		Ready:      s.rsi.Ready(),
	}
}

// Tracker holds one bounded price window per instrument. It is safe for
// concurrent use; updates to different instruments never wait on I/O.
type Tracker struct {
	lookback int

	mu     sync.RWMutex
	series map[string]*series
	bounds map[string]Bounds
}

func NewTracker(lookback int) *Tracker {
	if lookback < 2 {
		lookback = DefaultLookback
	}
	return &Tracker{
		lookback: lookback,
		series:   make(map[string]*series),
		bounds:   make(map[string]Bounds),
	}
}

// SetBounds makes Update reject prices of instrument outside b.
func (t *Tracker) SetBounds(instrument string, b Bounds) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bounds[instrument] = b
}

func (t *Tracker) Lookback() int { return t.lookback }

// Update appends price to the instrument's window and recomputes its
// oscillator.
//
// Invalid prices, prices outside the instrument's bounds, and bars whose
// timestamp is not after the previous bar are rejected without touching
// state. While the window holds fewer than
// lookback samples the sample is kept and ErrInsufficientHistory is returned
// together with the partial state.
func (t *Tracker) Update(instrument string, price float64, ts time.Time) (State, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return State{}, fmt.Errorf("%w: %s %v", ErrInvalidPrice, instrument, price)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.bounds[instrument]; ok && !b.Contains(price) {
		return State{}, fmt.Errorf("%w: %s %v outside [%v, %v]", ErrOutOfBounds, instrument, price, b.Min, b.Max)
	}

	s, ok := t.series[instrument]
	if !ok {
		s = &series{rsi: indicators.NewRSI(t.lookback)}
		t.series[instrument] = s
	}
	if !s.at.IsZero() && !ts.After(s.at) {
		return s.state(instrument), fmt.Errorf("%w: %s %s <= %s",
			ErrStaleBar, instrument, ts.UTC().Format(time.RFC3339Nano), s.at.UTC().Format(time.RFC3339Nano))
	}

	s.rsi.Update(price)
	s.price = price
	s.at = ts

	st := s.state(instrument)
	if !st.Ready {
		return st, fmt.Errorf("%w: %s has %d of %d samples",
			ErrInsufficientHistory, instrument, s.rsi.Len(), t.lookback)
	}
	return st, nil
}

// Get returns the latest state of instrument.
func (t *Tracker) Get(instrument string) (State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.series[instrument]
	if !ok {
		return State{}, false
	}
	return s.state(instrument), true
}

// Snapshot returns the state of every tracked instrument, sorted by name.
func (t *Tracker) Snapshot() []State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]State, 0, len(t.series))
	for name, s := range t.series {
		out = append(out, s.state(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}
