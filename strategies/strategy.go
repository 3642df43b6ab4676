// Package strategies holds the mean-reversion policies. A policy is a pure
// function of its parameters, the instrument's regime and the current
// holding; it never sees the book, the risk manager or the clock.
package strategies

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Kind selects the exit policy of a strategy.
type Kind string

const (
	// SinglePhase exits on stop-loss, forced time, oscillator recovery or a
	// fixed take-profit, in that order.
	SinglePhase Kind = "single-phase"

	// TwoPhase only takes profit inside its first phase; afterwards the
	// position rides until stop-loss, oscillator recovery or forced time.
	TwoPhase Kind = "two-phase"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case SinglePhase, "single", "a":
		return SinglePhase, nil
	case TwoPhase, "two", "b":
		return TwoPhase, nil
	}
	return "", fmt.Errorf("unknown strategy kind %q (supported: %s, %s)", s, SinglePhase, TwoPhase)
}

// Params are the immutable parameters of one strategy instance. Percentages
// are in percent units: 0.60 means 0.60%.
type Params struct {
	ID   string
	Kind Kind

	EntryThreshold float64 // enter when oscillator <= this
	StopLossPct    float64 // exit when return <= -StopLossPct
	TakeProfitPct  float64 // exit when return >= TakeProfitPct (phase one only for TwoPhase)
	OscillatorExit float64 // exit when oscillator >= this
	ForcedExit     time.Duration
	PhaseOne       time.Duration // TwoPhase only
	Cooldown       time.Duration
}

var ErrInvalidParams = errors.New("invalid strategy params")

func (p Params) Validate() error {
	var problems []string
	if strings.TrimSpace(p.ID) == "" {
		problems = append(problems, "missing id")
	}
	if p.Kind != SinglePhase && p.Kind != TwoPhase {
		problems = append(problems, fmt.Sprintf("unknown kind %q", p.Kind))
	}
	if p.EntryThreshold <= 0 || p.EntryThreshold >= 100 {
		problems = append(problems, "entry threshold must be in (0,100)")
	}
	if p.OscillatorExit <= p.EntryThreshold || p.OscillatorExit > 100 {
		problems = append(problems, "oscillator exit must be above entry threshold and <= 100")
	}
	if p.StopLossPct <= 0 {
		problems = append(problems, "stop loss must be > 0")
	}
	if p.TakeProfitPct <= 0 {
		problems = append(problems, "take profit must be > 0")
	}
	if p.ForcedExit <= 0 {
		problems = append(problems, "forced exit must be > 0")
	}
	if p.Kind == TwoPhase && (p.PhaseOne <= 0 || p.PhaseOne >= p.ForcedExit) {
		problems = append(problems, "phase one must be > 0 and shorter than forced exit")
	}
	if p.Cooldown < 0 {
		problems = append(problems, "cooldown must be >= 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrInvalidParams, p.ID, strings.Join(problems, "; "))
	}
	return nil
}

// MeanReversion returns the single-phase defaults.
func MeanReversion() Params {
	return Params{
		ID:             "mean-reversion",
		Kind:           SinglePhase,
		EntryThreshold: 31,
		StopLossPct:    0.60,
		TakeProfitPct:  0.45,
		OscillatorExit: 48,
		ForcedExit:     25 * time.Minute,
		Cooldown:       5 * time.Minute,
	}
}

// RSIBands returns the two-phase defaults.
func RSIBands() Params {
	return Params{
		ID:             "rsi-bands",
		Kind:           TwoPhase,
		EntryThreshold: 31,
		StopLossPct:    0.85,
		TakeProfitPct:  0.35,
		OscillatorExit: 52,
		ForcedExit:     15 * time.Minute,
		PhaseOne:       5 * time.Minute,
		Cooldown:       5 * time.Minute,
	}
}

var (
	mu       sync.RWMutex
	registry = map[string]Params{}
)

func init() {
	Register(MeanReversion())
	Register(RSIBands())
}

// Register makes a parameter set available by id.
func Register(p Params) {
	mu.Lock()
	defer mu.Unlock()
	registry[p.ID] = p
}

// Lookup returns the registered parameters for id.
func Lookup(id string) (Params, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[id]
	return p, ok
}

// Names lists the registered ids, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
