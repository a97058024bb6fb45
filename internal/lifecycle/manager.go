package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Processor is the opaque external processing operation: given the
// conversation history and a user query it produces the reply text.
type Processor interface {
	Process(ctx context.Context, history []Turn, userQuery string) (string, error)
}

// Archiver persists a finalized exchange. Archive failures are logged and
// never affect the request's lifecycle state.
type Archiver interface {
	ArchiveExchange(threadID, requestID, userQuery, reply string) error
}

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	// Retention is how long a request stays reachable after submission.
	Retention time.Duration
	// MaxConcurrent bounds the number of in-flight processor calls.
	MaxConcurrent int64
	// Archiver receives completed exchanges that carry a thread id. Optional.
	Archiver Archiver
}

const (
	defaultRetention     = 15 * time.Minute
	defaultMaxConcurrent = 8
	defaultReapInterval  = time.Minute
)

// Manager owns the id → request mapping and drives each request through
// pending → processing → completed (or failed). It is safe for concurrent
// use by the submit path, pollers, and the background completion path.
type Manager struct {
	processor Processor
	archiver  Archiver
	retention time.Duration
	sem       *semaphore.Weighted
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	requests map[string]*Request

	now func() time.Time // test hook
}

// New creates a Manager. Call Close when the service stops to release the
// background processing context.
func New(p Processor, opts Options) *Manager {
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		processor: p,
		archiver:  opts.Archiver,
		retention: opts.Retention,
		sem:       semaphore.NewWeighted(opts.MaxConcurrent),
		logger:    slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
		requests:  make(map[string]*Request),
		now:       time.Now,
	}
}

// Close cancels in-flight processing and waits for background work to stop.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// Submit stores a new pending request and schedules its processing. It
// returns the fresh request id immediately, without waiting for processing
// to start. An empty or whitespace-only query is rejected before any record
// is created.
func (m *Manager) Submit(threadID string, history []Turn, userQuery string) (string, error) {
	if strings.TrimSpace(userQuery) == "" {
		return "", ErrInvalidQuery
	}

	req := &Request{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		ThreadID:  threadID,
		History:   history,
		UserQuery: userQuery,
	}

	m.mu.Lock()
	req.CreatedAt = m.now()
	m.requests[req.ID] = req
	m.mu.Unlock()

	m.logger.Info("request submitted", "id", req.ID, "history_len", len(history))

	m.wg.Add(1)
	go m.process(req.ID)

	return req.ID, nil
}

// Poll reports the current state of a request. Unknown, expired, and failed
// ids all return ErrNotFound. Completed requests keep returning the same
// result on every poll until they expire; Poll never mutates state beyond
// lazily evicting an expired entry.
func (m *Manager) Poll(id string) (PollResult, error) {
	m.mu.Lock()
	req, ok := m.requests[id]
	if ok && m.now().Sub(req.CreatedAt) > m.retention {
		delete(m.requests, id)
		ok = false
	}
	if !ok {
		m.mu.Unlock()
		return PollResult{}, ErrNotFound
	}
	status, result := req.Status, req.Result
	m.mu.Unlock()

	switch status {
	case StatusCompleted:
		return PollResult{Ready: true, Reply: result}, nil
	case StatusFailed:
		return PollResult{}, ErrNotFound
	default:
		return PollResult{}, nil
	}
}

// Len reports the number of tracked requests, including completed ones that
// have not yet expired.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reap removes all expired requests and returns how many were evicted.
// Expiry is also enforced lazily on Poll; the sweep only frees memory for
// requests nobody polls anymore.
func (m *Manager) Reap() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for id, req := range m.requests {
		if now.Sub(req.CreatedAt) > m.retention {
			delete(m.requests, id)
			n++
		}
	}
	return n
}

// Run sweeps expired requests on the given interval until ctx is cancelled.
// If interval is <= 0, it defaults to one minute.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultReapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Reap(); n > 0 {
				m.logger.Debug("reaped expired requests", "count", n)
			}
		}
	}
}

// process runs on its own goroutine per request. The submit caller never
// waits on it. Processor errors mark the request failed and are contained
// here; they must not leak into other requests' state.
func (m *Manager) process(id string) {
	defer m.wg.Done()

	if err := m.sem.Acquire(m.ctx, 1); err != nil {
		// Shutdown before the request got a slot.
		m.fail(id, err)
		return
	}
	defer m.sem.Release(1)

	m.mu.Lock()
	req, ok := m.requests[id]
	if !ok {
		// Expired (or reaped) before processing began.
		m.mu.Unlock()
		return
	}
	req.Status = StatusProcessing
	threadID, history, query := req.ThreadID, req.History, req.UserQuery
	m.mu.Unlock()

	m.logger.Info("processing request", "id", id)

	reply, err := m.processor.Process(m.ctx, history, query)
	if err != nil {
		m.logger.Warn("processing failed", "id", id, "error", err)
		m.fail(id, err)
		return
	}

	m.mu.Lock()
	if req, ok := m.requests[id]; ok && req.Status == StatusProcessing {
		// Status and result move together so a poller never observes a
		// completed request without its result.
		req.Status = StatusCompleted
		req.Result = reply
	}
	m.mu.Unlock()

	m.logger.Info("request completed", "id", id)

	if m.archiver != nil && threadID != "" {
		if err := m.archiver.ArchiveExchange(threadID, id, query, reply); err != nil {
			m.logger.Warn("archiving exchange failed", "id", id, "thread_id", threadID, "error", err)
		}
	}
}

func (m *Manager) fail(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req, ok := m.requests[id]; ok && req.Status != StatusCompleted {
		req.Status = StatusFailed
		req.Err = err
	}
}
