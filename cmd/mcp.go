package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joescharf/codeguardian/internal/llm"
	"github.com/joescharf/codeguardian/internal/mcp"
	"github.com/joescharf/codeguardian/internal/sessions"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for AI assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients request code reviews and read the score history.
Configure the client with:

  {
    "mcpServers": {
      "codeguardian": { "command": "codeguardian", "args": ["mcp"] }
    }
  }

Available tools: review_code, progress_summary, clear_progress`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout carries the protocol; logs go nowhere unless verbose.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verbose {
		logger = newLogger()
	}

	svc, p, err := newReviewService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = llm.Close(p) }()

	factory, err := ledgerFactory(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	return mcp.NewServer(svc, factory(sessions.MCPSessionID), buildVersion).ServeStdio(ctx)
}
