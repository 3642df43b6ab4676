package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/reversion/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the position journal",
	Long: `Query and display position journal records from the SQLite database.

Subcommands:
  trade   - Get details of a closed trade by position ID
  events  - List the lifecycle events of a position
  today   - List trades closed today
  day     - List trades closed on a specific day
  open    - List positions not yet closed

Examples:
  reversion journal trade 01HZX3Q9W8K4V6T2N1M0PQRSTU
  reversion journal today
  reversion journal day 2024-06-03`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <position-id>",
	Short: "Get details of a closed trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalEventsCmd = &cobra.Command{
	Use:   "events <position-id>",
	Short: "List the lifecycle events of a position",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEvents,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "List positions that have not closed",
	Args:  cobra.NoArgs,
	RunE:  runJournalOpen,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalEventsCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalOpenCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./reversion.db", "path to SQLite journal DB")
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetTrade(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Println(journal.FormatTradeOrg(rec))
	return nil
}

func runJournalEvents(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	evs, err := j.ListEvents(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(evs) == 0 {
		return fmt.Errorf("position %s: %w", args[0], journal.ErrNotFound)
	}
	for _, e := range evs {
		fmt.Printf("%s  %-15s %-8s intent=%s tx=%s\n",
			e.RecordedAt.UTC().Format(time.RFC3339), e.Event, e.Status, e.IntentID, e.TxID)
	}
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return listDay(cmd, time.Now().In(time.Local).Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return listDay(cmd, args[0])
}

func listDay(cmd *cobra.Command, day string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListTradesClosedBetween(cmd.Context(), start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	out, err := journal.FormatSummaryOrg(journal.Summarize("Trades "+day, recs))
	if err != nil {
		return err
	}
	fmt.Print(out)
	fmt.Println(journal.FormatTradesOrg(recs))
	return nil
}

func runJournalOpen(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	open, err := j.ListOpen(cmd.Context())
	if err != nil {
		return fmt.Errorf("list open: %w", err)
	}
	if len(open) == 0 {
		fmt.Println("no open positions")
		return nil
	}
	for _, s := range open {
		stuck := ""
		if s.Stuck {
			stuck = "  STUCK"
		}
		fmt.Printf("%s  %-12s %-16s %-8s entry=%.6f since %s%s\n",
			s.PositionID, s.Instrument, s.Strategy, s.Status, s.EntryPrice,
			s.RecordedAt.UTC().Format(time.RFC3339), stuck)
	}
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
