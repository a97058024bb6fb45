package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cloudsecmentor/think-extension-azure-chat/internal/lifecycle"
	"github.com/cloudsecmentor/think-extension-azure-chat/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

const (
	notReadyReply    = "not ready"
	notFoundDetail   = "Invalid or expired ID"
	badPayloadDetail = "Invalid request. Provide either 'user_query' to submit a new query or 'id' to poll."
)

// Lifecycle is the request lifecycle manager as seen by the transport layer.
type Lifecycle interface {
	Submit(threadID string, history []lifecycle.Turn, userQuery string) (string, error)
	Poll(id string) (lifecycle.PollResult, error)
	Len() int
}

// ThreadStore abstracts the message archive for the management routes.
type ThreadStore interface {
	GetThreadMessages(threadID string, limit int) ([]storage.ChatMessage, error)
	ListRecentThreads(limit int) ([]storage.ThreadSummary, error)
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Manager Lifecycle
	Threads ThreadStore // optional; if nil, thread routes answer 404
	Token   string      // bearer token guarding the management routes
}

// ThinkRequest is the single wire shape of POST /think. A body carrying
// user_query submits a new request; a body carrying only id polls one.
type ThinkRequest struct {
	ID        string           `json:"id,omitempty"`
	ThreadID  string           `json:"thread_id,omitempty"`
	History   []lifecycle.Turn `json:"history,omitempty"`
	UserQuery string           `json:"user_query,omitempty"`
}

// NewHandler returns the HTTP handler serving the think contract plus the
// bearer-authed management routes.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/think", handleThink(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/threads", handleListThreads(deps))
		r.Get("/threads/{id}/messages", handleThreadMessages(deps))
		r.Get("/requests/stats", handleRequestStats(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleThink(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ThinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpDetail(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		// Submission mode: a new query is present.
		if req.UserQuery != "" {
			id, err := deps.Manager.Submit(req.ThreadID, req.History, req.UserQuery)
			if err != nil {
				if errors.Is(err, lifecycle.ErrInvalidQuery) {
					httpDetail(w, http.StatusBadRequest, "user_query must not be empty")
					return
				}
				httpDetail(w, http.StatusInternalServerError, "submitting request: %v", err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
			return
		}

		// Polling mode: id present, no new query.
		if req.ID != "" {
			res, err := deps.Manager.Poll(req.ID)
			if err != nil {
				if errors.Is(err, lifecycle.ErrNotFound) {
					httpDetail(w, http.StatusNotFound, notFoundDetail)
					return
				}
				httpDetail(w, http.StatusInternalServerError, "polling request: %v", err)
				return
			}
			reply := notReadyReply
			if res.Ready {
				reply = res.Reply
			}
			writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
			return
		}

		httpDetail(w, http.StatusBadRequest, badPayloadDetail)
	}
}

func handleListThreads(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Threads == nil {
			httpDetail(w, http.StatusNotFound, "thread archive is not enabled")
			return
		}
		limit := queryInt(r, "limit", 10)

		threads, err := deps.Threads.ListRecentThreads(limit)
		if err != nil {
			httpDetail(w, http.StatusInternalServerError, "listing threads: %v", err)
			return
		}

		out := make([]map[string]any, 0, len(threads))
		for _, t := range threads {
			out = append(out, map[string]any{
				"thread_id":     t.ThreadID,
				"message_count": t.MessageCount,
				"last_activity": t.LastActivity,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleThreadMessages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Threads == nil {
			httpDetail(w, http.StatusNotFound, "thread archive is not enabled")
			return
		}
		threadID := chi.URLParam(r, "id")
		limit := queryInt(r, "limit", 100)

		msgs, err := deps.Threads.GetThreadMessages(threadID, limit)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpDetail(w, http.StatusNotFound, "thread %q has no messages", threadID)
				return
			}
			httpDetail(w, http.StatusInternalServerError, "loading thread: %v", err)
			return
		}

		out := make([]map[string]any, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, map[string]any{
				"id":         m.ID,
				"request_id": m.RequestID,
				"role":       m.Role,
				"name":       m.Name,
				"content":    m.Content,
				"created_at": m.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleRequestStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"tracked_requests": deps.Manager.Len()})
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// httpDetail writes an error body in the {"detail": ...} shape the
// collaborating chat system expects.
func httpDetail(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"detail": fmt.Sprintf(format, args...)})
}
