package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/codeguardian/internal/config"
	"github.com/joescharf/codeguardian/internal/output"
	"github.com/joescharf/codeguardian/internal/progress"
	"github.com/joescharf/codeguardian/internal/sessions"
	"github.com/joescharf/codeguardian/internal/store"
)

var progressSession string

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show the recorded quality scores",
	Long: `Show the quality score history of a session, oldest first, with a
summary of count, mean, min, max and latest.

History survives between runs only with history.backend set to "sqlite".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := historyStoreFor()
		if err != nil {
			return err
		}
		defer closeStore()
		return progressShowRun(cmd.Context(), s.Ledger(progressSession))
	},
}

var progressClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase the recorded scores of a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := historyStoreFor()
		if err != nil {
			return err
		}
		defer closeStore()
		return progressClearRun(cmd.Context(), s.Ledger(progressSession))
	},
}

var progressSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions with recorded scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := historyStoreFor()
		if err != nil {
			return err
		}
		defer closeStore()
		return progressSessionsRun(cmd.Context(), s)
	},
}

func init() {
	progressCmd.PersistentFlags().StringVarP(&progressSession, "session", "s", sessions.CLISessionID, "Session to show (cli, mcp, or a browser session ID)")
	progressCmd.AddCommand(progressClearCmd)
	progressCmd.AddCommand(progressSessionsCmd)
	rootCmd.AddCommand(progressCmd)
}

// historyStoreFor opens the persistent store, refusing when history lives
// only in server memory.
func historyStoreFor() (store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.History.Backend != config.HistorySQLite {
		return nil, fmt.Errorf("history.backend is %q; set it to %q to keep scores between runs", cfg.History.Backend, config.HistorySQLite)
	}
	return getStore()
}

func progressShowRun(ctx context.Context, ledger progress.Ledger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	entries, err := ledger.Entries(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.Info("No data")
		return nil
	}

	table := ui.Table([]string{"#", "Recorded", "Label", "Score", ""})
	for i, e := range entries {
		_ = table.Append([]string{
			fmt.Sprintf("%d", i+1),
			e.Timestamp.Local().Format("2006-01-02 15:04"),
			e.Label,
			output.ScoreColor(e.Score),
			output.Bar(e.Score, 10, 20),
		})
	}
	_ = table.Render()

	sum, err := ledger.Summarize(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "%d reviews  mean %s  min %s  max %s  latest %s\n",
		sum.Count, output.ScoreColor(sum.Mean), output.ScoreColor(sum.Min),
		output.ScoreColor(sum.Max), output.ScoreColor(sum.Latest))
	return nil
}

func progressClearRun(ctx context.Context, ledger progress.Ledger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dryRun {
		ui.DryRunMsg("Would clear progress for session %s", progressSession)
		return nil
	}
	if err := ledger.Clear(ctx); err != nil {
		return err
	}
	ui.Success("Progress cleared for session %s", progressSession)
	return nil
}

func progressSessionsRun(ctx context.Context, s store.Store) error {
	if ctx == nil {
		ctx = context.Background()
	}
	stats, err := s.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		ui.Info("No data")
		return nil
	}

	table := ui.Table([]string{"Session", "Reviews", "Mean", "Last review"})
	for _, st := range stats {
		last := "-"
		if !st.LastReview.IsZero() {
			last = st.LastReview.Local().Format("2006-01-02 15:04")
		}
		_ = table.Append([]string{st.SessionID, fmt.Sprintf("%d", st.Count), output.ScoreColor(st.Mean), last})
	}
	return table.Render()
}

// summaryOrNoData renders a summary line, mapping an empty ledger to "no data".
func summaryOrNoData(ctx context.Context, ledger progress.Ledger) string {
	sum, err := ledger.Summarize(ctx)
	if errors.Is(err, progress.ErrNoData) {
		return "no data"
	}
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%d reviews, mean %.1f", sum.Count, sum.Mean)
}
