// Package engine is the position lifecycle engine. It turns price bars into
// entry and exit decisions, gates every entry through the risk manager and
// drives each position PENDING -> OPEN -> CLOSING -> CLOSED from executor
// outcomes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rustyeddy/reversion/alert"
	"github.com/rustyeddy/reversion/broker"
	"github.com/rustyeddy/reversion/journal"
	"github.com/rustyeddy/reversion/market"
	"github.com/rustyeddy/reversion/metrics"
	"github.com/rustyeddy/reversion/pkg/id"
	"github.com/rustyeddy/reversion/regime"
	"github.com/rustyeddy/reversion/risk"
	"github.com/rustyeddy/reversion/strategies"
)

type Options struct {
	Strategies  []strategies.Params
	Instruments []string // inclusion list; empty accepts every instrument

	Tracker  *regime.Tracker
	Risk     *risk.Manager
	Executor broker.Executor
	Recorder journal.Recorder
	Notifier alert.Notifier
	Logger   *zap.Logger

	SubmitTimeout  time.Duration // per attempt
	EntryRetries   int           // retries after the first attempt, transient failures only
	ExitRetries    int           // retries after the first attempt, any failure
	RetryBackoff   time.Duration
	JournalTimeout time.Duration
	JournalRetries int

	// MaxConsecutiveErrors pauses entries after that many failed submission
	// attempts in a row. Zero disables the auto-pause.
	MaxConsecutiveErrors int

	// MaxBadBars pauses entries after that many invalid or out-of-bounds
	// bars in a row for one instrument. Zero disables the auto-pause.
	MaxBadBars int

	// SyncDispatch resolves every intent before OnBar returns, so the next
	// bar sees its outcome. Replays and dry runs over recorded bars use it;
	// live feeds leave it off.
	SyncDispatch bool

	// Strict panics on invariant violations instead of logging them.
	Strict bool
}

func (o *Options) defaults() {
	if o.Tracker == nil {
		o.Tracker = regime.NewTracker(regime.DefaultLookback)
	}
	if o.Recorder == nil {
		o.Recorder = journal.Discard
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Notifier == nil {
		o.Notifier = alert.Log{Logger: o.Logger.Named("alert")}
	}
	if o.SubmitTimeout == 0 {
		o.SubmitTimeout = 30 * time.Second
	}
	if o.RetryBackoff == 0 {
		o.RetryBackoff = time.Second
	}
	if o.JournalTimeout == 0 {
		o.JournalTimeout = 5 * time.Second
	}
}

var (
	ErrNoStrategies     = errors.New("engine: no strategies configured")
	ErrNoExecutor       = errors.New("engine: no executor")
	ErrNoRisk           = errors.New("engine: no risk manager")
	ErrEmergencyStopped = errors.New("engine: emergency stop is latched")
	ErrUnknownPosition  = errors.New("engine: unknown position")
	ErrNotStuck         = errors.New("engine: position is not a stuck exit")
)

type Engine struct {
	opts     Options
	log      *zap.Logger
	tracker  *regime.Tracker
	risk     *risk.Manager
	exec     broker.Executor
	rec      journal.Recorder
	notifier alert.Notifier
	include  map[string]bool

	mu           sync.Mutex
	state        State
	active       map[market.Pair]string // pair -> id of its PENDING/OPEN/CLOSING position
	positions    map[string]*Position
	order        []string
	whyNot       map[market.Pair]WhyNot
	alerts       []alert.Alert
	consecErrors int
	badBars      map[string]int

	// snapshots waiting for the journal, in transition order
	pending  []journal.Snapshot
	draining bool

	inflight sync.WaitGroup
}

func New(opts Options) (*Engine, error) {
	if len(opts.Strategies) == 0 {
		return nil, ErrNoStrategies
	}
	if opts.Executor == nil {
		return nil, ErrNoExecutor
	}
	if opts.Risk == nil {
		return nil, ErrNoRisk
	}
	seen := map[string]bool{}
	for _, p := range opts.Strategies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("engine: duplicate strategy id %q", p.ID)
		}
		seen[p.ID] = true
	}
	opts.defaults()

	e := &Engine{
		opts:      opts,
		log:       opts.Logger.Named("engine"),
		tracker:   opts.Tracker,
		risk:      opts.Risk,
		exec:      opts.Executor,
		rec:       opts.Recorder,
		notifier:  opts.Notifier,
		state:     Running,
		active:    make(map[market.Pair]string),
		positions: make(map[string]*Position),
		whyNot:    make(map[market.Pair]WhyNot),
		badBars:   make(map[string]int),
	}
	if len(opts.Instruments) > 0 {
		e.include = make(map[string]bool, len(opts.Instruments))
		for _, in := range opts.Instruments {
			e.include[in] = true
		}
	}
	metrics.EngineState.Set(e.state.gauge())
	return e, nil
}

// OnBar processes one price bar. Data errors (invalid, stale or duplicate
// bars, insufficient history) skip the bar for every pair and are returned
// so the caller can count them; nothing else is mutated.
//
// Every transition the bar causes is applied under the engine lock before
// any intent is dispatched; intents then run on their own goroutines and
// resolve through the result callbacks. With SyncDispatch they resolve
// before OnBar returns.
func (e *Engine) OnBar(ctx context.Context, b market.Bar) error {
	if e.include != nil && !e.include[b.Instrument] {
		return nil
	}

	if err := b.Validate(); err != nil {
		e.skipBar(b, err)
		return err
	}

	st, err := e.tracker.Update(b.Instrument, b.Price, b.Time)
	metrics.BarsProcessed.WithLabelValues(b.Instrument).Inc()
	if err != nil {
		e.skipBar(b, err)
		return err
	}
	metrics.Oscillator.WithLabelValues(b.Instrument).Set(st.Oscillator)

	now := b.Time
	var intents []broker.Intent

	e.mu.Lock()
	delete(e.badBars, b.Instrument)
	for _, p := range e.opts.Strategies {
		if in, ok := e.evaluate(p, st, now); ok {
			intents = append(intents, in)
		}
	}
	e.checkInvariants()
	metrics.ActivePositions.Set(float64(len(e.active)))
	e.mu.Unlock()

	for _, in := range intents {
		e.dispatch(ctx, in)
	}
	return nil
}

func (e *Engine) skipBar(b market.Bar, err error) {
	reason := WhyInvalidPrice
	switch {
	case errors.Is(err, regime.ErrInsufficientHistory):
		reason = WhyInsufficientHistory
	case errors.Is(err, regime.ErrStaleBar):
		reason = WhyStaleBar
	case errors.Is(err, regime.ErrOutOfBounds):
		reason = WhyOutOfBounds
	}
	metrics.BarsSkipped.WithLabelValues(reason).Inc()
	e.log.Debug("bar skipped", zap.String("instrument", b.Instrument), zap.String("reason", reason), zap.Error(err))

	e.mu.Lock()
	for _, p := range e.opts.Strategies {
		e.why(market.Pair{Instrument: b.Instrument, Strategy: p.ID}, reason, err.Error(), b.Time)
	}
	n, paused := 0, false
	switch reason {
	case WhyInvalidPrice, WhyOutOfBounds:
		e.badBars[b.Instrument]++
		n = e.badBars[b.Instrument]
		if limit := e.opts.MaxBadBars; limit > 0 && n >= limit && e.state == Running {
			e.setState(PausedPriceFeed)
			paused = true
		}
	case WhyInsufficientHistory:
		delete(e.badBars, b.Instrument)
	}
	e.mu.Unlock()

	if paused {
		e.raise(context.Background(), alert.Alert{
			Severity:   alert.Warning,
			Title:      "entries paused",
			Message:    fmt.Sprintf("%d bad price bars in a row, last: %v", n, err),
			Instrument: b.Instrument,
			Time:       b.Time,
		})
	}
}

// evaluate runs one strategy for one bar. Caller holds e.mu.
func (e *Engine) evaluate(p strategies.Params, st regime.State, now time.Time) (broker.Intent, bool) {
	pair := market.Pair{Instrument: st.Instrument, Strategy: p.ID}

	if posID, ok := e.active[pair]; ok {
		pos := e.positions[posID]
		switch pos.Status {
		case Open:
			d := strategies.Decide(p, st, pos.holding(), now)
			if d.Action != strategies.Exit {
				e.why(pair, WhyHolding, "", now)
				return broker.Intent{}, false
			}
			return e.beginExit(pos, d.Reason, st.Price, now), true
		case Pending:
			e.why(pair, WhyAwaitingEntry, pos.intent.ID, now)
		case Closing:
			if pos.Stuck {
				e.why(pair, WhyExitStuck, pos.LastError, now)
			} else {
				e.why(pair, WhyAwaitingExit, pos.intent.ID, now)
			}
		default:
			e.violation("closed position %s still holds pair %s", pos.ID, pair)
		}
		return broker.Intent{}, false
	}

	switch e.state {
	case EmergencyStopped:
		e.why(pair, WhyEmergencyStop, "", now)
		return broker.Intent{}, false
	case Paused, PausedExecErrors, PausedPriceFeed:
		e.why(pair, WhyEntriesPaused, string(e.state), now)
		return broker.Intent{}, false
	}

	if until, ok := e.risk.CooldownUntil(pair); ok && now.Before(until) {
		e.why(pair, WhyCooldown, until.UTC().Format(time.RFC3339), now)
		return broker.Intent{}, false
	}

	if d := strategies.Decide(p, st, nil, now); d.Action != strategies.Enter {
		e.why(pair, WhyOscillatorAbove, fmt.Sprintf("%.2f > %.2f", st.Oscillator, p.EntryThreshold), now)
		return broker.Intent{}, false
	}

	v := e.risk.AuthorizeEntry(lockedBook{e}, pair, now)
	if !v.Allowed {
		for _, x := range v.Violations {
			metrics.EntriesDenied.WithLabelValues(x.Code).Inc()
		}
		e.log.Info("entry denied",
			zap.Stringer("pair", pair),
			zap.String("codes", v.Reason()),
			zap.Float64("oscillator", st.Oscillator))
		e.why(pair, WhyRiskDenied, v.Reason(), now)
		return broker.Intent{}, false
	}

	return e.beginEntry(pair, v.Notional, st.Price, now), true
}

// caller holds e.mu
func (e *Engine) beginEntry(pair market.Pair, notional, quote float64, now time.Time) broker.Intent {
	if _, ok := e.active[pair]; ok {
		e.violation("second entry for %s while a position is active", pair)
	}

	pos := &Position{
		ID:          id.NewAt(now),
		Instrument:  pair.Instrument,
		Strategy:    pair.Strategy,
		Notional:    notional,
		Status:      Pending,
		Quote:       quote,
		CreatedAt:   now,
		RealizedPnL: zeroPnL,
	}
	pos.intent = broker.Intent{
		ID:         uuid.NewString(),
		PositionID: pos.ID,
		Instrument: pos.Instrument,
		Strategy:   pos.Strategy,
		Side:       broker.Buy,
		Notional:   notional,
		Quote:      quote,
		CreatedAt:  now,
	}

	e.positions[pos.ID] = pos
	e.order = append(e.order, pos.ID)
	e.active[pair] = pos.ID
	e.why(pair, WhyEntrySubmitted, pos.ID, now)

	e.log.Info("entry decided",
		zap.String("position_id", pos.ID),
		zap.Stringer("pair", pair),
		zap.Float64("quote", quote),
		zap.Float64("notional", notional))

	e.enqueue(pos.snapshot(journal.EventEntrySubmitted, now))
	return pos.intent
}

// caller holds e.mu
func (e *Engine) beginExit(pos *Position, reason strategies.Reason, quote float64, now time.Time) broker.Intent {
	pos.Status = Closing
	pos.ExitReason = reason
	pos.intent = broker.Intent{
		ID:         uuid.NewString(),
		PositionID: pos.ID,
		Instrument: pos.Instrument,
		Strategy:   pos.Strategy,
		Side:       broker.Sell,
		Notional:   pos.Notional,
		Quote:      quote,
		Reason:     string(reason),
		CreatedAt:  now,
	}
	e.why(pos.Pair(), WhyExitSubmitted, string(reason), now)

	e.log.Info("exit decided",
		zap.String("position_id", pos.ID),
		zap.Stringer("pair", pos.Pair()),
		zap.String("reason", string(reason)),
		zap.Float64("entry", pos.EntryPrice),
		zap.Float64("quote", quote),
		zap.Duration("held", now.Sub(pos.EntryTime)))

	e.enqueue(pos.snapshot(journal.EventExitSubmitted, now))
	return pos.intent
}

// Run feeds bars to OnBar until bars is closed or ctx is done. Bars of one
// instrument are processed in order on a dedicated goroutine; different
// instruments proceed concurrently. Run does not wait for in-flight intents;
// call Wait for that.
func (e *Engine) Run(ctx context.Context, bars <-chan market.Bar) error {
	var wg sync.WaitGroup
	lanes := map[string]chan market.Bar{}
	defer func() {
		for _, ch := range lanes {
			close(ch)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-bars:
			if !ok {
				return nil
			}
			ch, ok := lanes[b.Instrument]
			if !ok {
				ch = make(chan market.Bar, 64)
				lanes[b.Instrument] = ch
				wg.Add(1)
				go func(ch <-chan market.Bar) {
					defer wg.Done()
					for b := range ch {
						// Bars still queued at shutdown must not open positions.
						if ctx.Err() != nil {
							continue
						}
						_ = e.OnBar(ctx, b)
					}
				}(ch)
			}
			select {
			case ch <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Wait blocks until every in-flight intent, with its retries and journal
// writes, has completed.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// lockedBook is the risk manager's view of the book while e.mu is held.
type lockedBook struct{ e *Engine }

func (b lockedBook) Active(p market.Pair) bool {
	_, ok := b.e.active[p]
	return ok
}

func (b lockedBook) ActiveCount() int {
	return len(b.e.active)
}

// caller holds e.mu
func (e *Engine) checkInvariants() {
	for pair, posID := range e.active {
		pos, ok := e.positions[posID]
		if !ok {
			e.violation("pair %s points at unknown position %s", pair, posID)
			continue
		}
		if !pos.Status.Active() {
			e.violation("pair %s holds %s position %s", pair, pos.Status, posID)
		}
		if pos.Pair() != pair {
			e.violation("pair %s holds position %s of %s", pair, posID, pos.Pair())
		}
	}
	if n := e.activeByScan(); n != len(e.active) {
		e.violation("active index has %d entries but %d positions are active", len(e.active), n)
	}
}

func (e *Engine) activeByScan() int {
	n := 0
	for _, pos := range e.positions {
		if pos.Status.Active() {
			n++
		}
	}
	return n
}

func (e *Engine) violation(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if e.opts.Strict {
		panic("engine invariant: " + msg)
	}
	e.log.Error("invariant violation", zap.String("detail", msg))
}
