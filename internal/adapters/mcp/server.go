package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
	"github.com/kirillkom/tutorial-pipeline/internal/core/ports"
)

const (
	serverName    = "tutorial-pipeline"
	serverVersion = "1.0.0"
)

// Tools exposes submission ingest, lookup and advance as MCP tools.
type Tools struct {
	ingestor ports.SubmissionIngestor
	reader   ports.SubmissionReader
	advancer ports.SubmissionAdvancer
}

func NewTools(ingestor ports.SubmissionIngestor, reader ports.SubmissionReader, advancer ports.SubmissionAdvancer) *Tools {
	return &Tools{ingestor: ingestor, reader: reader, advancer: advancer}
}

func (t *Tools) Server() *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("submit_url",
		mcp.WithDescription("Queue a URL (article, video, post or PDF) to be turned into a tutorial."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL of the source")),
		mcp.WithBoolean("hot_news", mcp.Description("Frame the tutorial as timely news")),
	), t.submitURL)

	s.AddTool(mcp.NewTool("get_submission",
		mcp.WithDescription("Return the pipeline state of a submission."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Submission id")),
	), t.getSubmission)

	s.AddTool(mcp.NewTool("advance_submission",
		mcp.WithDescription("Run pipeline steps for a submission until it publishes, fails or the budget runs out."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Submission id")),
		mcp.WithNumber("budget_ms", mcp.Description("Wall-clock budget in milliseconds; 0 uses the default")),
		mcp.WithBoolean("hot_news", mcp.Description("Frame the tutorial as timely news")),
	), t.advanceSubmission)

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (t *Tools) ServeStdio() error {
	return server.ServeStdio(t.Server())
}

func (t *Tools) submitURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sub, err := t.ingestor.Submit(ctx, ports.SubmitRequest{
		URL:     rawURL,
		Channel: domain.ChannelAPI,
		Sender:  "mcp",
		HotNews: req.GetBool("hot_news", false),
	})
	if err != nil && sub == nil {
		return toolError("submit_url", err), nil
	}
	if err != nil {
		slog.Warn("submission_queue_deferred", "submission_id", sub.ID, "error", err)
	}
	return jsonResult(sub)
}

func (t *Tools) getSubmission(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sub, err := t.reader.GetByID(ctx, id)
	if err != nil {
		return toolError("get_submission", err), nil
	}
	return jsonResult(sub)
}

func (t *Tools) advanceSubmission(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := domain.AdvanceOptions{
		HotNews: req.GetBool("hot_news", false),
		Budget:  time.Duration(req.GetInt("budget_ms", 0)) * time.Millisecond,
	}
	result, err := t.advancer.Advance(ctx, id, opts)
	if err != nil {
		return toolError("advance_submission", err), nil
	}
	return jsonResult(result)
}

func toolError(tool string, err error) *mcp.CallToolResult {
	slog.Warn("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", tool, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
