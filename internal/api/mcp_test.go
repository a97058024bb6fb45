package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cloudsecmentor/think-extension-azure-chat/internal/lifecycle"
	"github.com/cloudsecmentor/think-extension-azure-chat/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mgr := lifecycle.New(echoProcessor(), lifecycle.Options{Archiver: store})
	t.Cleanup(mgr.Close)

	return MCPDeps{Manager: mgr, Threads: store}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_ThinkSubmitAndPoll(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	submit := mcpThinkSubmit(deps)
	poll := mcpThinkPoll(deps)

	result, err := submit(context.Background(), makeCallToolRequest("think_submit", map[string]interface{}{
		"user_query": "What is SITHID?",
		"history":    `[{"role":"user","message":"earlier question"}]`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("submit returned error: %s", toolText(t, result))
	}
	id := toolText(t, result)
	if id == "" {
		t.Fatal("submit returned empty id")
	}

	want := "Response to 'What is SITHID?' received."
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		result, err := poll(context.Background(), makeCallToolRequest("think_poll", map[string]interface{}{"id": id}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("poll returned error: %s", toolText(t, result))
		}
		if text := toolText(t, result); text != "not ready" {
			if text != want {
				t.Fatalf("reply = %q, want %q", text, want)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("request never became ready")
}

func TestMCPTool_ThinkSubmitRequiresQuery(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpThinkSubmit(deps)

	result, err := handler(context.Background(), makeCallToolRequest("think_submit", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing user_query")
	}
}

func TestMCPTool_ThinkPollUnknownID(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpThinkPoll(deps)

	result, err := handler(context.Background(), makeCallToolRequest("think_poll", map[string]interface{}{
		"id": "nonexistent",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown id")
	}
	if text := toolText(t, result); text != "Invalid or expired ID" {
		t.Errorf("error text = %q, want %q", text, "Invalid or expired ID")
	}
}

func TestMCPTool_CurrentDate(t *testing.T) {
	handler := mcpCurrentDate()

	result, err := handler(context.Background(), makeCallToolRequest("current_date", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}
	if _, err := time.Parse(time.RFC3339, toolText(t, result)); err != nil {
		t.Errorf("current_date returned unparseable time: %v", err)
	}
}

func TestMCPResource_RecentThreads(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	if err := store.ArchiveExchange("thread-1", "req-1", "q", "a"); err != nil {
		t.Fatalf("archiving: %v", err)
	}

	handler := mcpResourceRecentThreads(deps)
	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "threads://recent"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("len(contents) = %d, want 1", len(contents))
	}

	text := contents[0].(mcp.TextResourceContents).Text
	var threads []map[string]any
	if err := json.Unmarshal([]byte(text), &threads); err != nil {
		t.Fatalf("resource is not valid JSON: %v", err)
	}
	if len(threads) != 1 || threads[0]["thread_id"] != "thread-1" {
		t.Errorf("threads = %v", threads)
	}
}
