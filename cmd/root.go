package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/codeguardian/internal/config"
	"github.com/joescharf/codeguardian/internal/llm"
	"github.com/joescharf/codeguardian/internal/output"
	"github.com/joescharf/codeguardian/internal/review"
	"github.com/joescharf/codeguardian/internal/scoring"
	"github.com/joescharf/codeguardian/internal/sessions"
	"github.com/joescharf/codeguardian/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui           *output.UI
	historyStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "codeguardian",
	Short: "LLM code review with a quality score and progress tracking",
	Long: `codeguardian sends source code to an LLM for review, extracts the
self-reported readability, efficiency, maintainability and bug metrics,
computes a keyword quality score (0-10) and keeps a score history.

Run 'codeguardian serve' for the web UI or 'codeguardian review <file>'
for a one-shot review in the terminal.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/codeguardian/config.yaml)")
}

func initConfig() {
	_ = godotenv.Load()

	configDir, err := configDirFunc()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
		os.Exit(1)
	}

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper(), configDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The store and provider are created lazily, only by commands that
	// need them. This allows config/version commands to run without either.
}

// loadConfig returns the validated effective configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// newLogger returns the structured logger used by services.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// getStore returns the shared history store, initializing it on first call.
func getStore() (store.Store, error) {
	if historyStore != nil {
		return historyStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	historyStore = s
	return historyStore, nil
}

// closeStore closes the shared store if it was opened.
func closeStore() {
	if historyStore != nil {
		_ = historyStore.Close()
		historyStore = nil
	}
}

// ledgerFactory picks the progress backend from history.backend.
func ledgerFactory(cfg *config.Config) (sessions.LedgerFactory, error) {
	if cfg.History.Backend != config.HistorySQLite {
		return sessions.MemoryFactory(cfg.History.Capacity), nil
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return s.Ledger, nil
}

// newScorer builds the scorer, loading custom weights when configured.
func newScorer(cfg *config.Config) (*scoring.Scorer, error) {
	if cfg.Scoring.WeightsFile == "" {
		return scoring.NewScorer(), nil
	}
	w, err := scoring.LoadWeights(expandHome(cfg.Scoring.WeightsFile))
	if err != nil {
		return nil, err
	}
	ui.VerboseLog("Using scoring weights from %s", cfg.Scoring.WeightsFile)
	return scoring.NewScorerWithWeights(w), nil
}

// newProvider creates the configured LLM provider.
func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	p, err := llm.New(ctx, cfg.ProviderOptions())
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.LLM.Provider, err)
	}
	ui.VerboseLog("Using %s model %s", p.Name(), p.Model())
	return p, nil
}

// newReviewService wires provider, scorer and settings into a review.Service.
// The returned provider must be released with llm.Close.
func newReviewService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*review.Service, llm.Provider, error) {
	scorer, err := newScorer(cfg)
	if err != nil {
		return nil, nil, err
	}
	p, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := review.NewService(p, scorer, review.Config{
		Timeout:   cfg.LLM.Timeout,
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)
	return svc, p, nil
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
