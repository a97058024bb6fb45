package lifecycle

import (
	"errors"
	"time"
)

// ErrInvalidQuery is returned by Submit when no user query was provided.
var ErrInvalidQuery = errors.New("user_query is required")

// ErrNotFound is returned by Poll for ids that are unknown, expired, or
// belong to a failed request. Callers cannot distinguish the three cases.
var ErrNotFound = errors.New("invalid or expired id")

// Status is the internal state of a request. Pending and processing are
// indistinguishable to pollers; both answer "not ready".
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Turn is a single entry of the conversation history.
type Turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Request tracks one submitted query from submission to expiry. History and
// UserQuery are immutable after Submit; Result is written exactly once, at
// the transition to completed.
type Request struct {
	ID        string
	Status    Status
	ThreadID  string
	History   []Turn
	UserQuery string
	Result    string
	Err       error
	CreatedAt time.Time
}

// PollResult is the outcome of a successful Poll. Ready is false while the
// request is still pending or processing.
type PollResult struct {
	Ready bool
	Reply string
}
