package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/reversion/market"
)

const (
	CodePairActive       = "PAIR_ACTIVE"
	CodeCooldown         = "COOLDOWN"
	CodeMaxOpenPositions = "MAX_OPEN_POSITIONS"
	CodeNotionalTooLarge = "NOTIONAL_TOO_LARGE"
)

type Violation struct {
	Code string
	Msg  string
}

// Verdict is the answer to one entry request. A denied verdict carries
// every violation found, not just the first.
type Verdict struct {
	Allowed    bool
	Violations []Violation

	Notional float64
}

func (v *Verdict) add(code, msg string) {
	v.Violations = append(v.Violations, Violation{Code: code, Msg: msg})
	v.Allowed = false
}

// Reason joins the violation codes, e.g. "COOLDOWN,MAX_OPEN_POSITIONS".
func (v Verdict) Reason() string {
	codes := make([]string, 0, len(v.Violations))
	for _, x := range v.Violations {
		codes = append(codes, x.Code)
	}
	return strings.Join(codes, ",")
}

func (v Verdict) Has(code string) bool {
	for _, x := range v.Violations {
		if x.Code == code {
			return true
		}
	}
	return false
}

// Book is the read-only view of the engine's positions the manager needs.
type Book interface {
	// Active reports whether pair holds a PENDING, OPEN or CLOSING position.
	Active(pair market.Pair) bool
	// ActiveCount counts PENDING, OPEN and CLOSING positions across all pairs.
	ActiveCount() int
}

// AuthorizeEntry is the single gate every Enter decision passes before an
// intent is emitted. It never emits intents or mutates the book.
func (m *Manager) AuthorizeEntry(book Book, pair market.Pair, now time.Time) Verdict {
	v := Verdict{Allowed: true, Notional: m.policy.Notional}

	if book.Active(pair) {
		v.add(CodePairActive, fmt.Sprintf("%s already holds a position", pair))
	}

	if until, ok := m.CooldownUntil(pair); ok && now.Before(until) {
		v.add(CodeCooldown, fmt.Sprintf("%s cooling down until %s (%s left)",
			pair, until.UTC().Format(time.RFC3339), until.Sub(now).Round(time.Second)))
	}

	if n := book.ActiveCount(); n >= m.policy.MaxOpenPositions {
		v.add(CodeMaxOpenPositions,
			fmt.Sprintf("open positions %d >= max %d", n, m.policy.MaxOpenPositions))
	}

	if m.policy.MaxNotional > 0 && v.Notional > m.policy.MaxNotional {
		v.add(CodeNotionalTooLarge,
			fmt.Sprintf("notional %.2f exceeds cap %.2f", v.Notional, m.policy.MaxNotional))
	}

	return v
}
