package cmd

import (
	"fmt"
	"net/http"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rustyeddy/reversion/alert"
	"github.com/rustyeddy/reversion/broker"
	"github.com/rustyeddy/reversion/broker/router"
	"github.com/rustyeddy/reversion/broker/sim"
	"github.com/rustyeddy/reversion/config"
	"github.com/rustyeddy/reversion/engine"
	"github.com/rustyeddy/reversion/feed"
	"github.com/rustyeddy/reversion/journal"
	"github.com/rustyeddy/reversion/regime"
	"github.com/rustyeddy/reversion/risk"
)

// app is everything one engine run needs.
type app struct {
	cfg *config.Config
	log *zap.Logger
	eng *engine.Engine
	rec journal.Recorder
}

func (a *app) Close() error {
	err := a.rec.Close()
	_ = a.log.Sync()
	return err
}

func build(cfg *config.Config, log *zap.Logger) (*app, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.RiskPolicy()
	if err != nil {
		return nil, err
	}
	rm, err := risk.NewManager(policy)
	if err != nil {
		return nil, err
	}

	rec, err := openRecorder(cfg.Journal)
	if err != nil {
		return nil, err
	}

	notifier := alert.Notifier(alert.Log{Logger: log.Named("alert")})
	if cfg.Alerts.WebhookURL != "" {
		notifier = alert.All(notifier, alert.NewWebhook(cfg.Alerts.WebhookURL))
	}

	tracker := regime.NewTracker(cfg.Lookback)
	for name, b := range cfg.PriceBounds {
		tracker.SetBounds(name, b)
	}

	eng, err := engine.New(engine.Options{
		Strategies:           params,
		Instruments:          cfg.Instruments,
		Tracker:              tracker,
		Risk:                 rm,
		Executor:             executor(cfg, log),
		Recorder:             rec,
		Notifier:             notifier,
		Logger:               log,
		SubmitTimeout:        cfg.Execution.SubmitTimeout,
		EntryRetries:         cfg.Execution.EntryRetries,
		ExitRetries:          cfg.Execution.ExitRetries,
		RetryBackoff:         cfg.Execution.RetryBackoff,
		JournalTimeout:       cfg.Journal.Timeout,
		JournalRetries:       cfg.Journal.Retries,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		MaxBadBars:           cfg.MaxBadBars,
		SyncDispatch:         replaying(cfg),
		Strict:               cfg.Strict,
	})
	if err != nil {
		return nil, multierr.Append(err, rec.Close())
	}

	return &app{cfg: cfg, log: log, eng: eng, rec: rec}, nil
}

// replaying reports whether recorded bars drive the simulator, in which
// case each fill must land before the next bar.
func replaying(cfg *config.Config) bool {
	return cfg.DryRun && cfg.Feed.Type == "csv"
}

func executor(cfg *config.Config, log *zap.Logger) broker.Executor {
	if cfg.DryRun {
		log.Info("dry run: intents fill locally", zap.Float64("slippage_bps", cfg.Execution.SlippageBps))
		return sim.NewExecutor(cfg.Execution.SlippageBps)
	}
	log.Info("live execution", zap.String("router", cfg.Execution.RouterURL))
	return &router.Client{
		BaseURL:     cfg.Execution.RouterURL,
		Token:       cfg.Execution.Token,
		SlippageBps: cfg.Execution.SlippageBps,
		HTTP:        &http.Client{},
	}
}

func openRecorder(jc config.JournalConfig) (journal.Recorder, error) {
	switch jc.Type {
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "csv":
		return journal.NewCSV(jc.EventsFile, jc.TradesFile)
	case "both":
		db, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			return nil, err
		}
		c, err := journal.NewCSV(jc.EventsFile, jc.TradesFile)
		if err != nil {
			return nil, multierr.Append(err, db.Close())
		}
		return journal.Tee(db, c), nil
	case "none", "":
		return journal.Discard, nil
	}
	return nil, fmt.Errorf("unknown journal type %q", jc.Type)
}

func source(cfg *config.Config, log *zap.Logger) (feed.Source, error) {
	switch cfg.Feed.Type {
	case "csv":
		return feed.CSV{Path: cfg.Feed.Path}, nil
	case "websocket":
		return &feed.WebSocket{
			URL:         cfg.Feed.URL,
			Instruments: cfg.Instruments,
			Logger:      log.Named("feed"),
		}, nil
	}
	return nil, fmt.Errorf("unknown feed type %q", cfg.Feed.Type)
}
