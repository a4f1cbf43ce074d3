package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/codeguardian/internal/progress"
	"github.com/joescharf/codeguardian/internal/review"
)

// Server exposes the review pipeline and progress ledger as MCP tools.
type Server struct {
	reviews *review.Service
	ledger  progress.Ledger
	version string
}

// NewServer creates the MCP server wrapper. Every review is recorded in
// ledger, failed calls with their degraded flag set.
func NewServer(svc *review.Service, ledger progress.Ledger, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{reviews: svc, ledger: ledger, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("codeguardian", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.reviewCodeTool())
	srv.AddTool(s.progressSummaryTool())
	srv.AddTool(s.clearProgressTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// review_code
func (s *Server) reviewCodeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("review_code",
		mcp.WithDescription("Review source code with the configured LLM. Returns JSON with the review text, optimized code, self-reported metrics (1-10), a heuristic quality score (0-10) and its rating."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Source code to review")),
		mcp.WithString("filename", mcp.Description("Optional file name recorded with the score")),
	)
	return tool, s.handleReviewCode
}

func (s *Server) handleReviewCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := request.GetString("code", "")
	filename := request.GetString("filename", "")

	res, err := s.reviews.Review(ctx, code)
	if err != nil {
		if errors.Is(err, review.ErrEmptyCode) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}

	type reviewOut struct {
		*review.Result
		Recorded bool `json:"recorded"`
	}
	entry := progress.NewEntry(res.Score, filename)
	entry.Degraded = res.Degraded
	if err := s.ledger.Record(ctx, entry); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record progress: %v", err)), nil
	}
	out := reviewOut{Result: res, Recorded: true}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal review: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// progress_summary
func (s *Server) progressSummaryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("progress_summary",
		mcp.WithDescription("Summarize the quality scores recorded by review_code: count, mean, min, max, latest and how many came from failed calls, plus the entries oldest first."),
	)
	return tool, s.handleProgressSummary
}

func (s *Server) handleProgressSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.ledger.Summarize(ctx)
	if errors.Is(err, progress.ErrNoData) {
		return mcp.NewToolResultText("no data"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to summarize progress: %v", err)), nil
	}
	entries, err := s.ledger.Entries(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list progress: %v", err)), nil
	}

	data, err := json.Marshal(struct {
		Summary *progress.Summary `json:"summary"`
		Entries []*progress.Entry `json:"entries"`
	}{sum, entries})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// clear_progress
func (s *Server) clearProgressTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("clear_progress",
		mcp.WithDescription("Erase all recorded quality scores. This cannot be undone."),
	)
	return tool, s.handleClearProgress
}

func (s *Server) handleClearProgress(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ledger.Clear(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear progress: %v", err)), nil
	}
	return mcp.NewToolResultText("progress cleared"), nil
}
