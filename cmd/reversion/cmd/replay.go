package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/reversion/config"
	"github.com/rustyeddy/reversion/journal"
	"github.com/rustyeddy/reversion/market"
)

var replayCmd = &cobra.Command{
	Use:   "replay <bars.csv>",
	Short: "Replay CSV bars through the engine in dry-run mode",
	Long: `Replay feeds time,instrument,price rows through the engine with the
local simulator and prints a summary plus an org-mode trade journal.
Every fill is applied before the next bar, so a replay is deterministic.

Examples:
  reversion replay bars.csv
  reversion replay -c reversion.yaml --db replay.db --pairs SOL/USDC,JUP/USDC bars.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	replayDB    string
	replayPairs []string
	replayOrg   bool
)

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replayDB, "db", "", "record the replay to this SQLite journal")
	replayCmd.Flags().StringSliceVar(&replayPairs, "pairs", nil, "instruments to trade (default: config instruments)")
	replayCmd.Flags().BoolVar(&replayOrg, "trades", true, "print every trade as org-mode")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	cfg.Journal.Type = "none"
	if replayDB != "" {
		cfg.Journal.Type = "sqlite"
		cfg.Journal.DBPath = replayDB
	}
	if len(replayPairs) > 0 {
		cfg.Instruments = replayPairs
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := replay(ctx, cfg, log, args[0])
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	out, err := journal.FormatSummaryOrg(journal.Summarize("Replay "+filepath.Base(args[0]), res.trades))
	if err != nil {
		return err
	}
	fmt.Print(out)
	if res.open > 0 {
		fmt.Printf("\n%d position(s) still open at end of data\n", res.open)
	}
	if replayOrg && len(res.trades) > 0 {
		fmt.Println()
		fmt.Println(journal.FormatTradesOrg(res.trades))
	}
	return nil
}

type replayResult struct {
	trades []journal.TradeRecord
	open   int
}

// replay runs the bars in path through a dry-run engine built from cfg and
// returns its closed trades in creation order.
func replay(ctx context.Context, cfg *config.Config, log *zap.Logger, path string) (res replayResult, err error) {
	cfg.DryRun = true
	cfg.Feed = config.FeedConfig{Type: "csv", Path: path}

	a, err := build(cfg, log)
	if err != nil {
		return res, err
	}
	defer func() { err = multierr.Append(err, a.Close()) }()

	src, err := source(cfg, log)
	if err != nil {
		return res, err
	}

	g, gctx := errgroup.WithContext(ctx)
	bars := make(chan market.Bar, 256)
	g.Go(func() error {
		defer close(bars)
		return src.Stream(gctx, bars)
	})
	g.Go(func() error {
		return a.eng.Run(gctx, bars)
	})
	if err := g.Wait(); err != nil {
		return res, err
	}
	a.eng.Wait()

	for _, p := range a.eng.Positions(false) {
		if t, ok := p.Trade(); ok {
			res.trades = append(res.trades, t)
		}
		if p.Status.Active() {
			res.open++
		}
	}
	return res, nil
}
