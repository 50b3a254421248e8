// Package mcpserver exposes notebook runs as an MCP tool over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/AdityaGoyal-512/notebook-runner/internal/backend"
	"github.com/AdityaGoyal-512/notebook-runner/internal/history"
	"github.com/AdityaGoyal-512/notebook-runner/internal/session"
)

// ToolRunNotebook is the name of the single tool.
const ToolRunNotebook = "run_notebook"

// Handler serves tool calls.
type Handler struct {
	client  *backend.Client
	journal *history.Store
	log     *zap.Logger
	timeout time.Duration
}

// NewHandler returns a handler running notebooks through client. journal may
// be nil.
func NewHandler(client *backend.Client, journal *history.Store, log *zap.Logger, timeout time.Duration) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{client: client, journal: journal, log: log, timeout: timeout}
}

// New builds the MCP server with the run_notebook tool registered.
func New(h *Handler, version string) *server.MCPServer {
	s := server.NewMCPServer("notebook-runner", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(Tool(), h.RunNotebook)
	return s
}

// Tool describes run_notebook.
func Tool() mcp.Tool {
	return mcp.NewTool(ToolRunNotebook,
		mcp.WithDescription("Run a pre-defined backend notebook and return its output."),
		mcp.WithNumber("notebook",
			mcp.Required(),
			mcp.Description("Notebook to run: 1 or 2"),
		),
	)
}

// Serve runs the server on stdin and stdout until the client disconnects.
func Serve(h *Handler, version string) error {
	return server.ServeStdio(New(h, version))
}

// RunNotebook handles a run_notebook call. Backend failures come back as tool
// error results; only malformed calls are protocol errors.
func (h *Handler) RunNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireFloat("notebook")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if raw != math.Trunc(raw) {
		return mcp.NewToolResultError(fmt.Sprintf("notebook must be 1 or 2, got %v", raw)), nil
	}
	n := backend.Notebook(raw)
	if err := n.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	started := time.Now()
	result, err := h.client.RunNotebook(ctx, n)
	if err != nil {
		h.log.Warn("mcp notebook run failed", zap.Int("notebook", int(n)), zap.Error(err))
		result = backend.TransportFailure()
	}

	text := session.RenderText(result)
	if h.journal != nil {
		status := history.StatusOK
		switch {
		case err != nil:
			status = history.StatusTransportError
		case !result.Success:
			status = history.StatusFailed
		}
		if _, jerr := h.journal.Record(ctx, history.Run{
			Variant:    history.VariantDispatch,
			Notebook:   int(n),
			StartedAt:  started,
			FinishedAt: time.Now(),
			Status:     status,
			Summary:    text,
		}); jerr != nil {
			h.log.Warn("record run failed", zap.Error(jerr))
		}
	}

	if !result.Success {
		return mcp.NewToolResultError(session.StatusLine(result) + ": " + text), nil
	}
	return mcp.NewToolResultText(text), nil
}
