package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/codeguardian/internal/llm"
	"github.com/joescharf/codeguardian/internal/output"
	"github.com/joescharf/codeguardian/internal/progress"
	"github.com/joescharf/codeguardian/internal/review"
	"github.com/joescharf/codeguardian/internal/sessions"
)

var (
	reviewJSON     bool
	reviewNoCode   bool
	reviewNoRecord bool
	reviewLabel    string
)

var reviewCmd = &cobra.Command{
	Use:   "review <file>|-",
	Short: "Review a source file (or stdin) and print the score",
	Long: `Send a source file to the configured LLM and print the review,
the self-reported metrics, the keyword quality score and the optimized code.

Use "-" to read the code from stdin. Every review is recorded in the "cli"
history session (persisted when history.backend is "sqlite"); failed calls
are recorded with a degraded flag.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		code, label, err := loadSource(args[0], os.Stdin)
		if err != nil {
			return err
		}

		svc, p, err := newReviewService(ctx, cfg, newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = llm.Close(p) }()

		factory, err := ledgerFactory(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		return reviewRun(ctx, svc, factory(sessions.CLISessionID), code, label)
	},
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "Print the result as JSON")
	reviewCmd.Flags().BoolVar(&reviewNoCode, "no-code", false, "Do not print the optimized code")
	reviewCmd.Flags().BoolVar(&reviewNoRecord, "no-record", false, "Do not record the score in the history")
	reviewCmd.Flags().StringVar(&reviewLabel, "label", "", "Label stored with the score (default: file name)")
	rootCmd.AddCommand(reviewCmd)
}

// readSource loads code from path, or from stdin when path is "-".
func readSource(path string, stdin io.Reader) (code, label string, err error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "stdin", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	if err := review.ValidateUpload(name, data); err != nil {
		return "", "", err
	}
	return string(data), name, nil
}

// loadSource reads and validates the code to review, applying --label.
// It runs before any provider is built, so bad input fails fast.
func loadSource(path string, stdin io.Reader) (code, label string, err error) {
	code, label, err = readSource(path, stdin)
	if errors.Is(err, review.ErrEmptyCode) || (err == nil && strings.TrimSpace(code) == "") {
		ui.Warning("Please enter or upload some code first")
		return "", "", review.ErrEmptyCode
	}
	if err != nil {
		return "", "", err
	}
	if reviewLabel != "" {
		label = reviewLabel
	}
	return code, label, nil
}

func reviewRun(ctx context.Context, svc *review.Service, ledger progress.Ledger, code, label string) error {
	ui.VerboseLog("Reviewing %s (%d bytes)", label, len(code))
	res, err := svc.Review(ctx, code)
	if err != nil {
		return err
	}

	if !reviewNoRecord {
		entry := progress.NewEntry(res.Score, label)
		entry.Degraded = res.Degraded
		if dryRun {
			ui.DryRunMsg("Would record score %.1f for %s", res.Score, label)
		} else if err := ledger.Record(ctx, entry); err != nil {
			ui.Warning("Could not record score: %v", err)
		} else {
			ui.VerboseLog("History: %s", summaryOrNoData(ctx, ledger))
		}
	}

	if reviewJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		renderReview(res)
	}

	if res.Degraded {
		return fmt.Errorf("review failed: %s", res.Error)
	}
	return nil
}

func renderReview(res *review.Result) {
	if res.Degraded {
		ui.Error("%s", res.Review)
		return
	}

	fmt.Fprintln(ui.Out, output.Cyan("Review"))
	fmt.Fprintln(ui.Out, res.Review)
	fmt.Fprintln(ui.Out)

	table := ui.Table([]string{"Metric", "Value"})
	for _, p := range review.MetricPatterns {
		_ = table.Append([]string{p.Name, output.MetricColor(res.Metrics.Get(p.Name))})
	}
	_ = table.Render()
	fmt.Fprintln(ui.Out)

	fmt.Fprintf(ui.Out, "Quality score: %s / 10  %s  %s\n",
		output.ScoreColor(res.Score), output.Bar(res.Score, 10, 20), res.Rating.Label)

	if !reviewNoCode {
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, output.Cyan("Optimized code"))
		fmt.Fprintln(ui.Out, strings.TrimRight(review.StripFence(res.OptimizedCode), "\n"))
	}
}
