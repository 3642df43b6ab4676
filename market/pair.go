package market

// Pair keys everything that is tracked per (instrument, strategy): position
// slots, cooldown windows and skip reasons. Two strategies on the same
// instrument are two independent pairs.
type Pair struct {
	Instrument string `json:"instrument"`
	Strategy   string `json:"strategy"`
}

func (p Pair) String() string {
	return p.Instrument + "/" + p.Strategy
}
