package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/reversion/broker"
	"github.com/rustyeddy/reversion/journal"
	"github.com/rustyeddy/reversion/market"
	"github.com/rustyeddy/reversion/pkg/id"
	"github.com/rustyeddy/reversion/regime"
	"github.com/rustyeddy/reversion/risk"
	"github.com/rustyeddy/reversion/strategies"
)

func whyFor(r Report, instrument, strategy string) WhyNot {
	for _, w := range r.WhyNot {
		if w.Pair.Instrument == instrument && w.Pair.Strategy == strategy {
			return w
		}
	}
	return WhyNot{}
}

func TestNewValidatesOptions(t *testing.T) {
	t.Parallel()

	rm, err := risk.NewManager(risk.Policy{MaxOpenPositions: 1, Notional: 10})
	require.NoError(t, err)
	ex := broker.ExecutorFunc(func(context.Context, broker.Intent) (broker.Fill, error) { return broker.Fill{}, nil })
	mr := strategies.MeanReversion()

	_, err = New(Options{Risk: rm, Executor: ex})
	assert.ErrorIs(t, err, ErrNoStrategies)

	_, err = New(Options{Strategies: []strategies.Params{mr}, Risk: rm})
	assert.ErrorIs(t, err, ErrNoExecutor)

	_, err = New(Options{Strategies: []strategies.Params{mr}, Executor: ex})
	assert.ErrorIs(t, err, ErrNoRisk)

	_, err = New(Options{Strategies: []strategies.Params{mr, mr}, Risk: rm, Executor: ex})
	assert.ErrorContains(t, err, "duplicate")

	bad := mr
	bad.StopLossPct = 0
	_, err = New(Options{Strategies: []strategies.Params{bad}, Risk: rm, Executor: ex})
	assert.ErrorIs(t, err, strategies.ErrInvalidParams)

	e, err := New(Options{Strategies: []strategies.Params{mr}, Risk: rm, Executor: ex})
	require.NoError(t, err)
	assert.Equal(t, Running, e.State())
}

func TestRoundTripTakeProfit(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	pos := h.enter(t, sol)
	assert.Equal(t, Open, pos.Status)
	assert.Equal(t, 98.0, pos.EntryPrice)
	assert.Equal(t, minute(2), pos.EntryTime)
	assert.NotEmpty(t, pos.EntryTx)

	ts, err := id.Time(pos.ID)
	require.NoError(t, err)
	assert.Equal(t, minute(2), ts, "position ids carry the bar time")

	// window 99, 98, 98.45 puts the oscillator near 31, well below the
	// recovery exit, while the return clears 0.45%.
	h.feed(t, sol, pt(3, 98.45))

	got, ok := h.Position(pos.ID)
	require.True(t, ok)
	assert.Equal(t, Closed, got.Status)
	assert.Equal(t, strategies.TakeProfit, got.ExitReason)
	assert.Equal(t, 98.45, got.ExitPrice)
	assert.Equal(t, minute(3), got.ExitTime)
	assert.True(t, risk.RealizedPnL(10, 98, 98.45).Equal(got.RealizedPnL), got.RealizedPnL.String())
	assert.Equal(t, 0, h.ActiveCount())

	until, ok := h.risk.CooldownUntil(pos.Pair())
	require.True(t, ok)
	assert.Equal(t, minute(8), until)

	assert.Equal(t, []string{
		journal.EventEntrySubmitted, journal.EventOpened, journal.EventExitSubmitted, journal.EventClosed,
	}, h.rec.events(pos.ID))
	assert.Equal(t, 1, h.rec.count(journal.EventClosed))
}

func TestStopLossThenCooldown(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	pos := h.enter(t, sol)
	h.feed(t, sol, pt(3, 97.4))

	got, _ := h.Position(pos.ID)
	assert.Equal(t, Closed, got.Status)
	assert.Equal(t, strategies.StopLoss, got.ExitReason)
	assert.True(t, got.RealizedPnL.IsNegative())

	// Oscillator stays at 0 but the pair is cooling down until minute 8.
	h.feed(t, sol, pt(4, 97), pt(5, 96))
	assert.Len(t, h.Positions(false), 1)
	w := whyFor(h.Status(), sol, "mean-reversion")
	assert.Equal(t, WhyCooldown, w.Reason)

	h.feed(t, sol, pt(8, 95))
	all := h.Positions(false)
	require.Len(t, all, 2)
	assert.Equal(t, Open, all[1].Status)
	assert.Equal(t, minute(8), all[1].EntryTime)
}

func TestForcedTimeExit(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	pos := h.enter(t, sol)
	h.feed(t, sol, pt(20, 98.1))
	got, _ := h.Position(pos.ID)
	assert.Equal(t, Open, got.Status)
	assert.Equal(t, WhyHolding, whyFor(h.Status(), sol, "mean-reversion").Reason)

	h.feed(t, sol, pt(27, 98.05))
	got, _ = h.Position(pos.ID)
	assert.Equal(t, Closed, got.Status)
	assert.Equal(t, strategies.ForcedTime, got.ExitReason)
}

func TestTwoPhaseTakeProfitOnlyInPhaseOne(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(o *Options) {
		o.Strategies = []strategies.Params{strategies.RSIBands()}
	})

	early := h.enter(t, sol)
	h.feed(t, sol, pt(4, 98.35))
	got, _ := h.Position(early.ID)
	assert.Equal(t, Closed, got.Status)
	assert.Equal(t, strategies.TakeProfit, got.ExitReason)

	late := h.enter(t, "ETH/USDC")
	h.feed(t, "ETH/USDC", pt(9, 98.35))
	got, _ = h.Position(late.ID)
	assert.Equal(t, Open, got.Status, "phase two has no profit target")
}

func TestStrategiesHoldIndependentSlots(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(o *Options) {
		o.Strategies = []strategies.Params{strategies.MeanReversion(), strategies.RSIBands()}
	})

	h.feed(t, sol, pt(0, 100), pt(1, 99), pt(2, 98))
	active := h.Positions(true)
	require.Len(t, active, 2)
	assert.Equal(t, "mean-reversion", active[0].Strategy)
	assert.Equal(t, "rsi-bands", active[1].Strategy)
	assert.Equal(t, sol, active[0].Instrument)
	assert.Equal(t, sol, active[1].Instrument)
}

func TestMaxOpenPositions(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.enter(t, "AAA/USDC")
	h.enter(t, "BBB/USDC")
	h.feed(t, "CCC/USDC", pt(0, 100), pt(1, 99), pt(2, 98))

	assert.Len(t, h.Positions(false), 2)
	w := whyFor(h.Status(), "CCC/USDC", "mean-reversion")
	assert.Equal(t, WhyRiskDenied, w.Reason)
	assert.Contains(t, w.Detail, risk.CodeMaxOpenPositions)
}

func TestPendingBlocksSecondIntent(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ex := &countingExecutor{fn: func(_ int, in broker.Intent) (broker.Fill, error) {
		<-release
		return fillAtQuote(in), nil
	}}
	h := newHarness(t, func(o *Options) { o.Executor = ex })

	ctx := context.Background()
	for i, p := range []float64{100, 99, 98, 97} {
		_ = h.OnBar(ctx, market.Bar{Instrument: sol, Price: p, Time: minute(float64(i))})
	}

	all := h.Positions(false)
	require.Len(t, all, 1)
	assert.Equal(t, Pending, all[0].Status)
	assert.NotEmpty(t, all[0].IntentID())
	assert.Equal(t, WhyAwaitingEntry, whyFor(h.Status(), sol, "mean-reversion").Reason)

	close(release)
	h.Wait()

	got, _ := h.Position(all[0].ID)
	assert.Equal(t, Open, got.Status)
	assert.Equal(t, 98.0, got.EntryPrice)
	assert.Empty(t, got.IntentID())
	assert.Len(t, ex.intents(), 1)
}

func TestEntryPermanentFailure(t *testing.T) {
	t.Parallel()

	ex := &countingExecutor{fn: func(int, broker.Intent) (broker.Fill, error) {
		return broker.Fill{}, broker.ErrInsufficientFunds
	}}
	h := newHarness(t, func(o *Options) {
		o.Executor = ex
		o.EntryRetries = 3
	})

	h.feed(t, sol, pt(0, 100), pt(1, 99), pt(2, 98))
	all := h.Positions(false)
	require.Len(t, all, 1)
	assert.Equal(t, Closed, all[0].Status)
	assert.Equal(t, strategies.EntryFailed, all[0].ExitReason)
	assert.Contains(t, all[0].LastError, "insufficient funds")
	assert.Len(t, ex.intents(), 1, "permanent failures are not retried")
	assert.Equal(t, 0, h.ActiveCount())

	_, armed := h.risk.CooldownUntil(all[0].Pair())
	assert.False(t, armed, "a failed entry never arms the cooldown")
	assert.Equal(t, []string{journal.EventEntrySubmitted, journal.EventEntryFailed}, h.rec.events(all[0].ID))

	h.feed(t, sol, pt(3, 97))
	assert.Len(t, h.Positions(false), 2)
	seen := ex.intents()
	require.Len(t, seen, 2)
	assert.NotEqual(t, seen[0].ID, seen[1].ID)
}

func TestEntryTransientFailureRetried(t *testing.T) {
	t.Parallel()

	ex := &countingExecutor{fn: func(n int, in broker.Intent) (broker.Fill, error) {
		if n == 1 {
			return broker.Fill{}, errors.New("router timeout")
		}
		return fillAtQuote(in), nil
	}}
	h := newHarness(t, func(o *Options) {
		o.Executor = ex
		o.EntryRetries = 2
	})

	pos := h.enter(t, sol)
	assert.Equal(t, Open, pos.Status)

	seen := ex.intents()
	require.Len(t, seen, 2)
	assert.Equal(t, seen[0].ID, seen[1].ID, "retries reuse the intent id")
	assert.Equal(t, 0, h.Status().ConsecutiveErrors, "a fill resets the error count")
}

func TestExitStuckAndOperatorRetry(t *testing.T) {
	t.Parallel()

	failSell := make(chan bool, 1)
	failSell <- true
	ex := &countingExecutor{fn: func(_ int, in broker.Intent) (broker.Fill, error) {
		if in.Side == broker.Sell {
			fail := <-failSell
			failSell <- fail
			if fail {
				return broker.Fill{}, broker.ErrRejected
			}
		}
		return fillAtQuote(in), nil
	}}
	h := newHarness(t, func(o *Options) {
		o.Executor = ex
		o.ExitRetries = 2
	})

	pos := h.enter(t, sol)
	h.feed(t, sol, pt(3, 98.45))

	got, _ := h.Position(pos.ID)
	assert.Equal(t, Closing, got.Status)
	assert.True(t, got.Stuck)
	assert.Equal(t, strategies.TakeProfit, got.ExitReason)
	assert.Equal(t, 1, h.ActiveCount(), "a stuck exit keeps its slot")
	assert.Len(t, ex.intents(), 4, "one entry, three exit attempts")

	alerts := h.alerts.list()
	require.Len(t, alerts, 1)
	assert.Equal(t, "exit stuck", alerts[0].Title)
	assert.Equal(t, pos.ID, alerts[0].PositionID)
	assert.Len(t, h.Status().Alerts, 1)
	assert.Equal(t, 1, h.rec.count(journal.EventExitStuck))

	h.feed(t, sol, pt(4, 97))
	assert.Equal(t, WhyExitStuck, whyFor(h.Status(), sol, "mean-reversion").Reason)
	assert.Len(t, h.Positions(false), 1)

	<-failSell
	failSell <- false
	require.NoError(t, h.RetryExit(context.Background(), pos.ID))
	h.Wait()

	got, _ = h.Position(pos.ID)
	assert.Equal(t, Closed, got.Status)
	assert.False(t, got.Stuck)
	assert.Equal(t, 98.45, got.ExitPrice)
	assert.Equal(t, 1, h.rec.count(journal.EventClosed))

	seen := ex.intents()
	exitID := seen[1].ID
	for _, in := range seen[1:] {
		assert.Equal(t, exitID, in.ID)
	}

	// A late duplicate of the same result is dropped.
	h.onExitResult(context.Background(), seen[1], fillAtQuote(seen[1]), nil)
	h.Wait()
	assert.Equal(t, 1, h.rec.count(journal.EventClosed))

	assert.ErrorIs(t, h.RetryExit(context.Background(), pos.ID), ErrNotStuck)
	assert.ErrorIs(t, h.RetryExit(context.Background(), "nope"), ErrUnknownPosition)
}

func TestExitSurvivesCancelledContext(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	pos := h.enter(t, sol)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.OnBar(ctx, market.Bar{Instrument: sol, Price: 98.45, Time: minute(3)}))
	h.Wait()

	got, _ := h.Position(pos.ID)
	assert.Equal(t, Closed, got.Status)
}

func TestPauseStillManagesExits(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	pos := h.enter(t, sol)
	h.Pause()
	assert.Equal(t, Paused, h.State())

	h.feed(t, sol, pt(3, 98.45))
	got, _ := h.Position(pos.ID)
	assert.Equal(t, Closed, got.Status)

	h.feed(t, "ETH/USDC", pt(0, 100), pt(1, 99), pt(2, 98))
	assert.Len(t, h.Positions(false), 1)
	assert.Equal(t, WhyEntriesPaused, whyFor(h.Status(), "ETH/USDC", "mean-reversion").Reason)

	require.NoError(t, h.Resume())
	h.feed(t, "ETH/USDC", pt(3, 97))
	assert.Len(t, h.Positions(true), 1)
}

func TestEmergencyStopIsLatched(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	pos := h.enter(t, sol)
	h.EmergencyStop()
	h.Pause()
	assert.Equal(t, EmergencyStopped, h.State())
	assert.ErrorIs(t, h.Resume(), ErrEmergencyStopped)

	h.feed(t, sol, pt(3, 97.4))
	got, _ := h.Position(pos.ID)
	assert.Equal(t, Closed, got.Status, "exits continue after an emergency stop")

	h.feed(t, "ETH/USDC", pt(0, 100), pt(1, 99), pt(2, 98))
	assert.Equal(t, WhyEmergencyStop, whyFor(h.Status(), "ETH/USDC", "mean-reversion").Reason)
	assert.Len(t, h.Positions(false), 1)
}

func TestConsecutiveErrorsPauseEntries(t *testing.T) {
	t.Parallel()

	ex := &countingExecutor{fn: func(int, broker.Intent) (broker.Fill, error) {
		return broker.Fill{}, errors.New("connection reset")
	}}
	h := newHarness(t, func(o *Options) {
		o.Executor = ex
		o.EntryRetries = 1
		o.MaxConsecutiveErrors = 2
	})

	h.feed(t, sol, pt(0, 100), pt(1, 99), pt(2, 98))
	assert.Equal(t, PausedExecErrors, h.State())
	assert.Equal(t, 2, h.Status().ConsecutiveErrors)

	alerts := h.alerts.list()
	require.Len(t, alerts, 1)
	assert.Equal(t, "entries paused", alerts[0].Title)

	h.feed(t, sol, pt(3, 97))
	assert.Len(t, ex.intents(), 2)
	assert.Equal(t, WhyEntriesPaused, whyFor(h.Status(), sol, "mean-reversion").Reason)

	require.NoError(t, h.Resume())
	assert.Equal(t, Running, h.State())
	assert.Equal(t, 0, h.Status().ConsecutiveErrors)
}

func TestDataErrorsSkipBar(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(o *Options) { o.Instruments = []string{sol} })
	ctx := context.Background()

	err := h.OnBar(ctx, market.Bar{Instrument: sol, Price: 100, Time: minute(0)})
	assert.ErrorIs(t, err, regime.ErrInsufficientHistory)
	assert.Equal(t, WhyInsufficientHistory, whyFor(h.Status(), sol, "mean-reversion").Reason)

	err = h.OnBar(ctx, market.Bar{Instrument: sol, Price: 101, Time: minute(0)})
	assert.ErrorIs(t, err, regime.ErrStaleBar)
	assert.Equal(t, WhyStaleBar, whyFor(h.Status(), sol, "mean-reversion").Reason)

	err = h.OnBar(ctx, market.Bar{Instrument: sol, Price: 0, Time: minute(1)})
	assert.ErrorIs(t, err, market.ErrInvalidBar)
	assert.Equal(t, WhyInvalidPrice, whyFor(h.Status(), sol, "mean-reversion").Reason)

	st, ok := h.tracker.Get(sol)
	require.True(t, ok)
	assert.Equal(t, []float64{100}, st.Window)

	require.NoError(t, h.OnBar(ctx, market.Bar{Instrument: "ETH/USDC", Price: 1, Time: minute(0)}))
	_, ok = h.tracker.Get("ETH/USDC")
	assert.False(t, ok, "instruments outside the list are ignored")
}

func TestClosedTradeJournalFailureAlerts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(o *Options) { o.JournalRetries = 1 })
	h.rec.fail = func(s journal.Snapshot) error {
		if s.Event == journal.EventClosed {
			return errors.New("disk full")
		}
		return nil
	}

	pos := h.enter(t, sol)
	h.feed(t, sol, pt(3, 98.45))

	got, _ := h.Position(pos.ID)
	assert.Equal(t, Closed, got.Status)

	alerts := h.alerts.list()
	require.Len(t, alerts, 1)
	assert.Equal(t, "closed trade not persisted", alerts[0].Title)
	assert.Contains(t, alerts[0].Message, "disk full")
}

func TestStrictModePanicsOnBrokenIndex(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	pair := market.Pair{Instrument: sol, Strategy: "mean-reversion"}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active[pair] = "ghost"
	assert.Panics(t, h.checkInvariants)

	h.opts.Strict = false
	assert.NotPanics(t, h.checkInvariants)
	delete(h.active, pair)
}

func TestRunFansOutByInstrument(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	bars := make(chan market.Bar)
	go func() {
		defer close(bars)
		for i, p := range []float64{100, 99, 98} {
			bars <- market.Bar{Instrument: sol, Price: p, Time: minute(float64(i))}
			bars <- market.Bar{Instrument: "ETH/USDC", Price: p * 30, Time: minute(float64(i))}
		}
	}()

	require.NoError(t, h.Run(context.Background(), bars))
	h.Wait()
	assert.Len(t, h.Positions(true), 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := h.Run(ctx, make(chan market.Bar))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunSyncDispatchAppliesFillsBeforeNextBar(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(o *Options) { o.SyncDispatch = true })

	bars := make(chan market.Bar, 4)
	for i, p := range []float64{100, 99, 98, 98.45} {
		bars <- market.Bar{Instrument: sol, Price: p, Time: minute(float64(i))}
	}
	close(bars)
	require.NoError(t, h.Run(context.Background(), bars))
	h.Wait()

	ps := h.Positions(false)
	require.Len(t, ps, 1)
	p := ps[0]
	assert.Equal(t, Closed, p.Status)
	assert.Equal(t, strategies.TakeProfit, p.ExitReason)
	assert.Equal(t, 98.0, p.EntryPrice)
	assert.Equal(t, 98.45, p.ExitPrice)
	assert.Equal(t, minute(3), p.ExitTime)
}

type roundTrip struct {
	Status     Status
	Reason     strategies.Reason
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
}

func roundTrips(ps []Position) []roundTrip {
	out := make([]roundTrip, 0, len(ps))
	for _, p := range ps {
		out = append(out, roundTrip{p.Status, p.ExitReason, p.EntryPrice, p.ExitPrice, p.EntryTime, p.ExitTime})
	}
	return out
}

// A replay through Run must trade exactly like feeding one bar at a time
// and waiting for every fill.
func TestRunSyncDispatchMatchesStepwiseFeed(t *testing.T) {
	t.Parallel()

	series := make([][2]float64, 400)
	for i := range series {
		series[i] = pt(float64(i), 100+3*math.Sin(float64(i)/5))
	}

	step := newHarness(t, nil)
	step.feed(t, sol, series...)
	want := roundTrips(step.Positions(false))
	require.Greater(t, len(want), 5)

	for run := 0; run < 3; run++ {
		h := newHarness(t, func(o *Options) { o.SyncDispatch = true })
		bars := make(chan market.Bar)
		go func() {
			defer close(bars)
			for _, p := range series {
				bars <- market.Bar{Instrument: sol, Price: p[1], Time: minute(p[0])}
			}
		}()
		require.NoError(t, h.Run(context.Background(), bars))
		h.Wait()
		assert.Equal(t, want, roundTrips(h.Positions(false)), "run %d", run)
	}
}

func TestRunDropsQueuedBarsAfterCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	bars := make(chan market.Bar, 3)
	for i, p := range []float64{100, 99, 98} {
		bars <- market.Bar{Instrument: sol, Price: p, Time: minute(float64(i))}
	}
	close(bars)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = h.Run(ctx, bars)
	h.Wait()

	assert.Empty(t, h.Positions(false))
}

func TestBadBarsPauseEntries(t *testing.T) {
	t.Parallel()
	tr := regime.NewTracker(3)
	tr.SetBounds(sol, regime.Bounds{Min: 1, Max: 1000})
	h := newHarness(t, func(o *Options) {
		o.Tracker = tr
		o.MaxBadBars = 2
	})

	pos := h.enter(t, sol)
	h.feed(t, sol, pt(3, 5000))
	assert.Equal(t, Running, h.State())
	assert.Equal(t, WhyOutOfBounds, whyFor(h.Status(), sol, "mean-reversion").Reason)

	h.feed(t, sol, pt(4, 5000))
	assert.Equal(t, PausedPriceFeed, h.State())
	alerts := h.alerts.list()
	require.Len(t, alerts, 1)
	assert.Equal(t, "entries paused", alerts[0].Title)

	// exits are still managed
	h.feed(t, sol, pt(5, 98.45))
	got, _ := h.Position(pos.ID)
	assert.Equal(t, Closed, got.Status)
	assert.Equal(t, strategies.TakeProfit, got.ExitReason)

	h.feed(t, sol, pt(20, 97))
	assert.Equal(t, WhyEntriesPaused, whyFor(h.Status(), sol, "mean-reversion").Reason)
	assert.Empty(t, h.Positions(true))

	require.NoError(t, h.Resume())
	assert.Equal(t, Running, h.State())
	h.feed(t, sol, pt(21, 96))
	assert.Len(t, h.Positions(true), 1)
}

func TestStatusReport(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	pos := h.enter(t, sol)
	h.feed(t, sol, pt(3, 98.45))

	r := h.Status()
	assert.Equal(t, Running, r.State)
	assert.Equal(t, 0, r.Active)
	require.Len(t, r.Positions, 1)
	assert.Equal(t, pos.ID, r.Positions[0].ID)
	require.Len(t, r.Regimes, 1)
	assert.Equal(t, 98.45, r.Regimes[0].Price)
	require.Len(t, r.Cooldowns, 1)
	assert.Equal(t, minute(8), r.Cooldowns[0].Until)
}

func TestPositionTrade(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	pos := h.enter(t, sol)
	_, ok := pos.Trade()
	assert.False(t, ok, "open positions are not trades")

	h.feed(t, sol, pt(3, 98.45))
	got, _ := h.Position(pos.ID)
	tr, ok := got.Trade()
	require.True(t, ok)
	assert.Equal(t, pos.ID, tr.PositionID)
	assert.Equal(t, "TakeProfit", tr.Reason)
	assert.Equal(t, minute(2), tr.OpenTime)
	assert.Equal(t, minute(3), tr.CloseTime)
	assert.True(t, got.RealizedPnL.Equal(tr.RealizedPnL))
}
