package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ChatMessage is one finalized message of a chat thread. The archive keeps
// the user query and the agent reply of every completed request, keyed by
// the thread identifier the collaborating chat system supplied.
type ChatMessage struct {
	ID        string
	ThreadID  string
	RequestID string
	Role      string
	Name      string
	Content   string
	CreatedAt time.Time
}

// ThreadSummary describes a thread for listing purposes.
type ThreadSummary struct {
	ThreadID     string
	MessageCount int
	LastActivity time.Time
}
