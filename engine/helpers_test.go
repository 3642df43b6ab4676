package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustyeddy/reversion/alert"
	"github.com/rustyeddy/reversion/broker"
	"github.com/rustyeddy/reversion/broker/sim"
	"github.com/rustyeddy/reversion/journal"
	"github.com/rustyeddy/reversion/market"
	"github.com/rustyeddy/reversion/regime"
	"github.com/rustyeddy/reversion/risk"
	"github.com/rustyeddy/reversion/strategies"
)

const sol = "SOL/USDC"

var t0 = time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)

func minute(n float64) time.Time {
	return t0.Add(time.Duration(n * float64(time.Minute)))
}

// memRecorder keeps every snapshot in memory.
type memRecorder struct {
	mu    sync.Mutex
	snaps []journal.Snapshot
	fail  func(journal.Snapshot) error
}

func (r *memRecorder) Record(_ context.Context, s journal.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		if err := r.fail(s); err != nil {
			return err
		}
	}
	r.snaps = append(r.snaps, s)
	return nil
}

func (r *memRecorder) Close() error { return nil }

func (r *memRecorder) events(positionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.snaps {
		if s.PositionID == positionID {
			out = append(out, s.Event)
		}
	}
	return out
}

func (r *memRecorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.snaps {
		if s.Event == event {
			n++
		}
	}
	return n
}

type harness struct {
	*Engine
	sim    *sim.Executor
	rec    *memRecorder
	alerts *alertSink
}

type alertSink struct {
	mu  sync.Mutex
	got []alert.Alert
}

func (s *alertSink) Notify(_ context.Context, a alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, a)
	return nil
}

func (s *alertSink) list() []alert.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alert.Alert(nil), s.got...)
}

// newHarness builds an engine over a three-sample oscillator window, the
// single-phase strategy and a zero-slippage sim executor. tweak may replace
// any option before the engine is built.
func newHarness(t *testing.T, tweak func(*Options)) *harness {
	t.Helper()

	h := &harness{
		sim:    sim.NewExecutor(0),
		rec:    &memRecorder{},
		alerts: &alertSink{},
	}

	rm, err := risk.NewManager(risk.Policy{
		MaxOpenPositions: 2,
		Notional:         10,
		MaxNotional:      100,
		Cooldowns: map[string]time.Duration{
			"mean-reversion": 5 * time.Minute,
			"rsi-bands":      5 * time.Minute,
		},
	})
	require.NoError(t, err)

	opts := Options{
		Strategies:     []strategies.Params{strategies.MeanReversion()},
		Tracker:        regime.NewTracker(3),
		Risk:           rm,
		Executor:       h.sim,
		Recorder:       h.rec,
		Notifier:       h.alerts,
		Logger:         zap.NewNop(),
		SubmitTimeout:  time.Second,
		RetryBackoff:   time.Millisecond,
		JournalTimeout: time.Second,
		Strict:         true,
	}
	if tweak != nil {
		tweak(&opts)
	}

	e, err := New(opts)
	require.NoError(t, err)
	h.Engine = e
	t.Cleanup(e.Wait)
	return h
}

// feed delivers price bars for instrument at the given minutes and waits
// for every resulting intent to resolve.
func (h *harness) feed(t *testing.T, instrument string, points ...[2]float64) {
	t.Helper()
	for _, p := range points {
		_ = h.OnBar(context.Background(), market.Bar{Instrument: instrument, Price: p[1], Time: minute(p[0])})
		h.Wait()
	}
}

// enter drives instrument 100 -> 99 -> 98 at minutes 0..2, which leaves the
// oscillator at 0 and opens a position at 98.
func (h *harness) enter(t *testing.T, instrument string) Position {
	t.Helper()
	h.feed(t, instrument, pt(0, 100), pt(1, 99), pt(2, 98))
	ps := h.Positions(true)
	for _, p := range ps {
		if p.Instrument == instrument {
			return p
		}
	}
	t.Fatalf("no active position for %s", instrument)
	return Position{}
}

func pt(m, price float64) [2]float64 { return [2]float64{m, price} }

// countingExecutor wraps fn and records every intent it sees.
type countingExecutor struct {
	mu   sync.Mutex
	seen []broker.Intent
	fn   func(n int, in broker.Intent) (broker.Fill, error)
}

func (c *countingExecutor) Submit(ctx context.Context, in broker.Intent) (broker.Fill, error) {
	c.mu.Lock()
	c.seen = append(c.seen, in)
	n := len(c.seen)
	fn := c.fn
	c.mu.Unlock()
	return fn(n, in)
}

func (c *countingExecutor) intents() []broker.Intent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]broker.Intent(nil), c.seen...)
}

func fillAtQuote(in broker.Intent) broker.Fill {
	return broker.Fill{IntentID: in.ID, TxID: "tx-" + in.ID, Price: in.Quote, Units: in.Notional / in.Quote, Time: in.CreatedAt}
}
