package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"detail":"not found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAskCommand_Submit(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /think": `{"id":"req-123"}`,
	})

	client := ts.client()

	resp, err := client.post(ctx, "/think", map[string]string{
		"user_query": "what is sitmd",
		"thread_id":  "demo",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if result["id"] != "req-123" {
		t.Errorf("id = %q, want %q", result["id"], "req-123")
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	r := ts.requests[0]
	if r.Method != "POST" {
		t.Errorf("method = %q, want POST", r.Method)
	}
	if r.Path != "/think" {
		t.Errorf("path = %q, want /think", r.Path)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["user_query"] != "what is sitmd" {
		t.Errorf("body.user_query = %q, want %q", body["user_query"], "what is sitmd")
	}
	if body["thread_id"] != "demo" {
		t.Errorf("body.thread_id = %q, want %q", body["thread_id"], "demo")
	}
}

func TestAskCommand_Poll(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /think": `{"reply":"not ready"}`,
	})

	client := ts.client()

	resp, err := client.post(ctx, "/think", map[string]string{"id": "req-123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if result["reply"] != "not ready" {
		t.Errorf("reply = %q, want %q", result["reply"], "not ready")
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if _, ok := body["user_query"]; ok {
		t.Error("poll body should not carry user_query")
	}
}

func TestThreadsCommand_SendsBearerToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /threads": `[{"thread_id":"demo","message_count":4,"last_activity":"2026-01-02T03:04:05Z"}]`,
	})

	client := ts.client()

	resp, err := client.get(ctx, "/threads?limit=10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var threads []struct {
		ThreadID     string `json:"thread_id"`
		MessageCount int    `json:"message_count"`
	}
	if err := decodeJSON(resp, &threads); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(threads) != 1 || threads[0].ThreadID != "demo" || threads[0].MessageCount != 4 {
		t.Errorf("unexpected threads: %+v", threads)
	}

	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	if r.Path != "/threads?limit=10" {
		t.Errorf("path = %q, want /threads?limit=10", r.Path)
	}
}

func TestHistoryCommand_FetchesThreadMessages(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /threads/demo/messages": `[
			{"role":"user","name":"","content":"hello"},
			{"role":"assistant","name":"think_extension","content":"hi there"}
		]`,
	})

	client := ts.client()

	resp, err := client.get(ctx, "/threads/demo/messages?limit=100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var messages []struct {
		Role    string `json:"role"`
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	if err := decodeJSON(resp, &messages); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[1].Name != "think_extension" {
		t.Errorf("assistant name = %q, want think_extension", messages[1].Name)
	}
}

func TestDecodeJSON_ErrorStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	client := ts.client()

	resp, err := client.get(ctx, "/nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out any
	if err := decodeJSON(resp, &out); err == nil {
		t.Fatal("expected error for 404 response")
	}
}
