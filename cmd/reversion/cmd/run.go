package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/reversion/control"
	"github.com/rustyeddy/reversion/market"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine against the configured feed",
	Long: `Run streams bars from the configured feed into the lifecycle engine,
hands intents to the router (or the local simulator with dry_run), and
serves the control API when control.listen is set.

On SIGINT/SIGTERM new bars stop, then in-flight intents are drained before
exit. Open positions are left as they are and reported.

Examples:
  reversion run -c reversion.yaml
  REVERSION_DRY_RUN=true reversion run -c reversion.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runListen string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runListen, "listen", "", "override control.listen")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if runListen != "" {
		cfg.Control.Listen = runListen
	}

	a, err := build(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := source(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	bars := make(chan market.Bar, 256)

	g.Go(func() error {
		defer close(bars)
		return src.Stream(gctx, bars)
	})
	g.Go(func() error {
		// The feed ending ends the run.
		defer stop()
		return a.eng.Run(gctx, bars)
	})
	if cfg.Control.Listen != "" {
		srv := control.NewServer(a.eng, log)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.Control.Listen)
		})
	}

	log.Info("engine started",
		zap.Strings("instruments", cfg.Instruments),
		zap.Int("strategies", len(cfg.Strategies)),
		zap.Bool("dry_run", cfg.DryRun))

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	log.Info("draining in-flight intents")
	a.eng.Wait()

	st := a.eng.Status()
	for _, p := range st.Positions {
		if p.Status.Active() {
			log.Warn("position left active",
				zap.String("position_id", p.ID),
				zap.String("instrument", p.Instrument),
				zap.String("strategy", p.Strategy),
				zap.String("status", string(p.Status)),
				zap.Bool("stuck", p.Stuck))
		}
	}
	log.Info("engine stopped", zap.String("state", string(st.State)), zap.Int("active", st.Active))
	return err
}
