package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cloudsecmentor/think-extension-azure-chat/internal/lifecycle"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Manager Lifecycle
	Threads ThreadStore // optional; if nil, the recent-threads resource is empty
}

// NewMCPServer creates an MCP server exposing the think workflow as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"thinkd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("thinkd — asynchronous think service: submit a chat query, then poll the returned id until the reply is ready."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("think_submit",
			mcp.WithDescription("Submit a chat query for asynchronous processing. Returns an id to poll with think_poll."),
			mcp.WithString("user_query", mcp.Description("The user's question"), mcp.Required()),
			mcp.WithString("history", mcp.Description("Optional JSON array of {role, message} history entries")),
			mcp.WithString("thread_id", mcp.Description("Optional thread id; completed exchanges on a thread are archived")),
		),
		mcpThinkSubmit(deps),
	)

	s.AddTool(
		mcp.NewTool("think_poll",
			mcp.WithDescription("Poll a previously submitted think request. Returns the reply once processing completed."),
			mcp.WithString("id", mcp.Description("Id returned by think_submit"), mcp.Required()),
		),
		mcpThinkPoll(deps),
	)

	s.AddTool(
		mcp.NewTool("current_date",
			mcp.WithDescription("Return the current date and time in UTC."),
		),
		mcpCurrentDate(),
	)

	s.AddResource(
		mcp.NewResource(
			"threads://recent",
			"Recent Threads",
			mcp.WithResourceDescription("Recently active chat threads with message counts"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentThreads(deps),
	)

	return s
}

func mcpThinkSubmit(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userQuery, err := req.RequireString("user_query")
		if err != nil {
			return mcpError("user_query is required"), nil
		}

		var history []lifecycle.Turn
		if raw := req.GetString("history", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &history); err != nil {
				return mcpError(fmt.Sprintf("invalid history JSON: %v", err)), nil
			}
		}
		threadID := req.GetString("thread_id", "")

		id, err := deps.Manager.Submit(threadID, history, userQuery)
		if err != nil {
			if errors.Is(err, lifecycle.ErrInvalidQuery) {
				return mcpError("user_query must not be empty"), nil
			}
			return mcpError(fmt.Sprintf("submitting request: %v", err)), nil
		}

		return mcpText(id), nil
	}
}

func mcpThinkPoll(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		res, err := deps.Manager.Poll(id)
		if err != nil {
			if errors.Is(err, lifecycle.ErrNotFound) {
				return mcpError("Invalid or expired ID"), nil
			}
			return mcpError(fmt.Sprintf("polling request: %v", err)), nil
		}
		if !res.Ready {
			return mcpText("not ready"), nil
		}
		return mcpText(res.Reply), nil
	}
}

func mcpCurrentDate() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpText(time.Now().UTC().Format(time.RFC3339)), nil
	}
}

func mcpResourceRecentThreads(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var out []map[string]any
		if deps.Threads != nil {
			threads, err := deps.Threads.ListRecentThreads(10)
			if err != nil {
				return nil, fmt.Errorf("listing threads: %w", err)
			}
			for _, t := range threads {
				out = append(out, map[string]any{
					"thread_id":     t.ThreadID,
					"message_count": t.MessageCount,
					"last_activity": t.LastActivity,
				})
			}
		}

		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
