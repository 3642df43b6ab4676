package risk

import (
	"fmt"
	"time"
)

// Policy bounds entries. Every trade commits the same fixed Notional; there
// is no dynamic sizing.
type Policy struct {
	MaxOpenPositions int     // 2
	Notional         float64 // per trade, quote currency (e.g. 10 USDC)
	MaxNotional      float64 // hard cap per trade

	// Cooldown per strategy id, armed when a position for the pair closes.
	Cooldowns map[string]time.Duration
}

func (p Policy) Validate() error {
	if p.MaxOpenPositions <= 0 {
		return fmt.Errorf("max open positions must be > 0, got %d", p.MaxOpenPositions)
	}
	if p.Notional <= 0 {
		return fmt.Errorf("notional must be > 0, got %v", p.Notional)
	}
	if p.MaxNotional < 0 {
		return fmt.Errorf("max notional must be >= 0, got %v", p.MaxNotional)
	}
	for id, d := range p.Cooldowns {
		if d < 0 {
			return fmt.Errorf("cooldown for %s must be >= 0, got %s", id, d)
		}
	}
	return nil
}

func (p Policy) cooldown(strategy string) time.Duration {
	return p.Cooldowns[strategy]
}
