package risk

import (
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/reversion/market"
)

// Manager enforces sizing, concurrency limits and cooldown windows. It holds
// the cooldown windows; positions stay with the engine.
type Manager struct {
	policy Policy

	mu        sync.RWMutex
	cooldowns map[market.Pair]time.Time
}

func NewManager(p Policy) (*Manager, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		policy:    p,
		cooldowns: make(map[market.Pair]time.Time),
	}, nil
}

func (m *Manager) Policy() Policy { return m.policy }

// OnClose arms the pair's cooldown to closedAt plus the strategy's cooldown
// and returns the resulting expiry. Re-arming with the same or an earlier
// timestamp never shortens an existing window.
func (m *Manager) OnClose(pair market.Pair, closedAt time.Time) time.Time {
	until := closedAt.Add(m.policy.cooldown(pair.Strategy))

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.cooldowns[pair]; ok && !until.After(cur) {
		return cur
	}
	m.cooldowns[pair] = until
	return until
}

// CooldownUntil returns the expiry of pair's window, if one was ever armed.
func (m *Manager) CooldownUntil(pair market.Pair) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.cooldowns[pair]
	return t, ok
}

func (m *Manager) InCooldown(pair market.Pair, now time.Time) bool {
	until, ok := m.CooldownUntil(pair)
	return ok && now.Before(until)
}

// Cooldown is one armed window.
type Cooldown struct {
	Pair  market.Pair `json:"pair"`
	Until time.Time   `json:"until"`
}

// Cooldowns lists every armed window, sorted by pair.
func (m *Manager) Cooldowns() []Cooldown {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Cooldown, 0, len(m.cooldowns))
	for p, t := range m.cooldowns {
		out = append(out, Cooldown{Pair: p, Until: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair.String() < out[j].Pair.String() })
	return out
}
