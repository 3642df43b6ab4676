// Package config loads the engine configuration from YAML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/reversion/logging"
	"github.com/rustyeddy/reversion/regime"
	"github.com/rustyeddy/reversion/risk"
	"github.com/rustyeddy/reversion/strategies"
)

// Config is the complete engine configuration.
type Config struct {
	Instruments          []string `yaml:"instruments" validate:"dive,required"`
	Lookback             int      `yaml:"lookback" validate:"gte=2"`
	MaxOpenPositions     int      `yaml:"max_open_positions" validate:"gte=1"`
	Notional             float64  `yaml:"notional" validate:"gt=0"`
	MaxNotional          float64  `yaml:"max_notional" validate:"gte=0"`
	DryRun               bool     `yaml:"dry_run"`
	Strict               bool     `yaml:"strict"`
	MaxConsecutiveErrors int      `yaml:"max_consecutive_errors" validate:"gte=0"`
	MaxBadBars           int      `yaml:"max_bad_bars" validate:"gte=0"`

	// PriceBounds rejects bars outside a sanity range per instrument.
	PriceBounds map[string]regime.Bounds `yaml:"price_bounds,omitempty"`

	Strategies []StrategyConfig `yaml:"strategies" validate:"required,min=1,dive"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Journal    JournalConfig    `yaml:"journal"`
	Logging    logging.Config   `yaml:"logging"`
	Control    ControlConfig    `yaml:"control"`
	Feed       FeedConfig       `yaml:"feed"`
	Alerts     AlertsConfig     `yaml:"alerts"`
}

// StrategyConfig is one strategy instance. Kind picks the exit policy;
// unset numbers fall back to the registered defaults for ID. A nil Cooldown
// keeps the default; zero disables it.
type StrategyConfig struct {
	ID             string         `yaml:"id" validate:"required"`
	Kind           string         `yaml:"kind"`
	EntryThreshold float64        `yaml:"entry_threshold" validate:"gte=0,lt=100"`
	StopLossPct    float64        `yaml:"stop_loss_pct" validate:"gte=0"`
	TakeProfitPct  float64        `yaml:"take_profit_pct" validate:"gte=0"`
	OscillatorExit float64        `yaml:"oscillator_exit" validate:"gte=0,lte=100"`
	ForcedExit     time.Duration  `yaml:"forced_exit"`
	PhaseOne       time.Duration  `yaml:"phase_one,omitempty"`
	Cooldown       *time.Duration `yaml:"cooldown,omitempty"`
}

type ExecutionConfig struct {
	RouterURL     string        `yaml:"router_url" validate:"omitempty,url"`
	Token         string        `yaml:"token,omitempty"`
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
	EntryRetries  int           `yaml:"entry_retries" validate:"gte=0"`
	ExitRetries   int           `yaml:"exit_retries" validate:"gte=0"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	SlippageBps   float64       `yaml:"slippage_bps" validate:"gte=0"`
}

type JournalConfig struct {
	Type       string        `yaml:"type" validate:"oneof=sqlite csv both none"`
	DBPath     string        `yaml:"db_path,omitempty"`
	TradesFile string        `yaml:"trades_file,omitempty"`
	EventsFile string        `yaml:"events_file,omitempty"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries" validate:"gte=0"`
}

type ControlConfig struct {
	Listen string `yaml:"listen"` // empty disables the HTTP surface
}

type FeedConfig struct {
	Type string `yaml:"type" validate:"oneof=csv websocket"`
	Path string `yaml:"path,omitempty"`
	URL  string `yaml:"url,omitempty"`
}

type AlertsConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty" validate:"omitempty,url"`
}

// Params resolves the strategy parameters: the registered defaults for ID
// (or for Kind) overlaid with every field set in s.
func (s StrategyConfig) Params() (strategies.Params, error) {
	p, ok := strategies.Lookup(s.ID)
	if !ok {
		p = strategies.MeanReversion()
	}
	if s.Kind != "" {
		k, err := strategies.ParseKind(s.Kind)
		if err != nil {
			return strategies.Params{}, err
		}
		if !ok && k == strategies.TwoPhase {
			p = strategies.RSIBands()
		}
		p.Kind = k
	}
	p.ID = s.ID

	if s.EntryThreshold > 0 {
		p.EntryThreshold = s.EntryThreshold
	}
	if s.StopLossPct > 0 {
		p.StopLossPct = s.StopLossPct
	}
	if s.TakeProfitPct > 0 {
		p.TakeProfitPct = s.TakeProfitPct
	}
	if s.OscillatorExit > 0 {
		p.OscillatorExit = s.OscillatorExit
	}
	if s.ForcedExit > 0 {
		p.ForcedExit = s.ForcedExit
	}
	if s.PhaseOne > 0 {
		p.PhaseOne = s.PhaseOne
	}
	if s.Cooldown != nil {
		p.Cooldown = *s.Cooldown
	}
	return p, p.Validate()
}

// Params resolves every configured strategy, in order.
func (c *Config) Params() ([]strategies.Params, error) {
	out := make([]strategies.Params, 0, len(c.Strategies))
	var errs error
	for _, s := range c.Strategies {
		p, err := s.Params()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errs
}

// RiskPolicy derives the risk manager's policy, with each strategy's
// cooldown keyed by its id.
func (c *Config) RiskPolicy() (risk.Policy, error) {
	ps, err := c.Params()
	if err != nil {
		return risk.Policy{}, err
	}
	p := risk.Policy{
		MaxOpenPositions: c.MaxOpenPositions,
		Notional:         c.Notional,
		MaxNotional:      c.MaxNotional,
		Cooldowns:        make(map[string]time.Duration, len(ps)),
	}
	for _, s := range ps {
		p.Cooldowns[s.ID] = s.Cooldown
	}
	return p, nil
}

// Load reads path, applies .env and environment overrides, and validates
// the result. An empty path starts from Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file over Default. JSON is
// accepted as well since it is valid YAML.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Environment overrides.
const (
	EnvDryRun    = "REVERSION_DRY_RUN"
	EnvNotional  = "REVERSION_NOTIONAL"
	EnvMaxOpen   = "REVERSION_MAX_OPEN"
	EnvRouterURL = "REVERSION_ROUTER_URL"
	EnvLogLevel  = "REVERSION_LOG_LEVEL"
	EnvPairs     = "REVERSION_PAIRS"
	EnvToken     = "REVERSION_ROUTER_TOKEN"
)

// ApplyEnv overlays environment values found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs error

	if v, ok := lookup(EnvDryRun); ok {
		b, err := cast.ToBoolE(v)
		errs = multierr.Append(errs, envErr(EnvDryRun, err))
		if err == nil {
			c.DryRun = b
		}
	}
	if v, ok := lookup(EnvNotional); ok {
		f, err := cast.ToFloat64E(v)
		errs = multierr.Append(errs, envErr(EnvNotional, err))
		if err == nil {
			c.Notional = f
		}
	}
	if v, ok := lookup(EnvMaxOpen); ok {
		n, err := cast.ToIntE(v)
		errs = multierr.Append(errs, envErr(EnvMaxOpen, err))
		if err == nil {
			c.MaxOpenPositions = n
		}
	}
	if v, ok := lookup(EnvRouterURL); ok {
		c.Execution.RouterURL = v
	}
	if v, ok := lookup(EnvToken); ok {
		c.Execution.Token = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvPairs); ok {
		var pairs []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				pairs = append(pairs, p)
			}
		}
		c.Instruments = pairs
	}
	return errs
}

func envErr(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

var validate = validator.New()

// Validate runs the struct tags and the cross-field checks, reporting every
// problem found.
func (c *Config) Validate() error {
	var errs error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = multierr.Append(errs, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = multierr.Append(errs, err)
		}
	}

	if c.MaxNotional > 0 && c.Notional > c.MaxNotional {
		errs = multierr.Append(errs, fmt.Errorf("notional %v exceeds max_notional %v", c.Notional, c.MaxNotional))
	}
	if !c.DryRun && c.Execution.RouterURL == "" {
		errs = multierr.Append(errs, errors.New("execution.router_url is required unless dry_run is set"))
	}

	for name, b := range c.PriceBounds {
		if b.Min <= 0 || b.Max <= b.Min {
			errs = multierr.Append(errs, fmt.Errorf("price_bounds %s: need 0 < min < max, got [%v, %v]", name, b.Min, b.Max))
		}
	}

	seen := map[string]bool{}
	for _, s := range c.Strategies {
		if seen[s.ID] {
			errs = multierr.Append(errs, fmt.Errorf("duplicate strategy id %q", s.ID))
		}
		seen[s.ID] = true
	}
	if _, err := c.Params(); err != nil {
		errs = multierr.Append(errs, err)
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			errs = multierr.Append(errs, errors.New("journal.db_path required for sqlite"))
		}
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EventsFile == "" {
			errs = multierr.Append(errs, errors.New("journal.trades_file and journal.events_file required for csv"))
		}
	case "both":
		if c.Journal.DBPath == "" || c.Journal.TradesFile == "" || c.Journal.EventsFile == "" {
			errs = multierr.Append(errs, errors.New("journal.db_path, trades_file and events_file required for both"))
		}
	}

	switch c.Feed.Type {
	case "csv":
		if c.Feed.Path == "" {
			errs = multierr.Append(errs, errors.New("feed.path required for csv"))
		}
	case "websocket":
		if c.Feed.URL == "" {
			errs = multierr.Append(errs, errors.New("feed.url required for websocket"))
		}
	}
	return errs
}

// Default returns the two default strategies in dry-run mode.
func Default() *Config {
	mr, rb := strategies.MeanReversion(), strategies.RSIBands()
	return &Config{
		Instruments:          []string{"SOL/USDC"},
		Lookback:             14,
		MaxOpenPositions:     2,
		Notional:             10,
		MaxNotional:          50,
		DryRun:               true,
		MaxConsecutiveErrors: 5,
		MaxBadBars:           3,
		PriceBounds:          regime.DefaultBounds(),
		Strategies: []StrategyConfig{
			fromParams(mr),
			fromParams(rb),
		},
		Execution: ExecutionConfig{
			SubmitTimeout: 30 * time.Second,
			EntryRetries:  1,
			ExitRetries:   5,
			RetryBackoff:  2 * time.Second,
			SlippageBps:   10,
		},
		Journal: JournalConfig{
			Type:    "sqlite",
			DBPath:  "./reversion.db",
			Timeout: 5 * time.Second,
			Retries: 3,
		},
		Logging: logging.Default(),
		Control: ControlConfig{Listen: "127.0.0.1:8088"},
		Feed:    FeedConfig{Type: "csv", Path: "./bars.csv"},
	}
}

func fromParams(p strategies.Params) StrategyConfig {
	cooldown := p.Cooldown
	return StrategyConfig{
		ID:             p.ID,
		Kind:           string(p.Kind),
		EntryThreshold: p.EntryThreshold,
		StopLossPct:    p.StopLossPct,
		TakeProfitPct:  p.TakeProfitPct,
		OscillatorExit: p.OscillatorExit,
		ForcedExit:     p.ForcedExit,
		PhaseOne:       p.PhaseOne,
		Cooldown:       &cooldown,
	}
}
