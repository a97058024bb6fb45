package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cloudsecmentor/think-extension-azure-chat/internal/lifecycle"
)

const (
	defaultTimeout = 120 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Client invokes the external agent tier over HTTP. It implements
// lifecycle.Processor by POSTing the history and query to the agent's
// /agent endpoint and returning the reply text.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an agent client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithTimeout creates a client with a custom per-request timeout.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	c := NewClient(baseURL)
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

type agentRequest struct {
	UserQuery string           `json:"user_query"`
	History   []lifecycle.Turn `json:"history,omitempty"`
}

type agentResponse struct {
	Message string `json:"message"`
}

// Process sends the request to the agent tier and returns the reply text.
// Connection errors and 5xx responses are retried with exponential backoff;
// any 4xx response fails immediately.
func (c *Client) Process(ctx context.Context, history []lifecycle.Turn, userQuery string) (string, error) {
	body, err := json.Marshal(agentRequest{UserQuery: userQuery, History: history})
	if err != nil {
		return "", fmt.Errorf("marshaling agent request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		reply, err := c.invoke(ctx, body)
		if err == nil {
			return reply, nil
		}
		if !isRetryable(err) {
			return "", err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("agent unavailable after %d attempts: %w", maxRetries, lastErr)
}

func (c *Client) invoke(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agent", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &transientError{err: fmt.Errorf("calling agent: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &transientError{err: fmt.Errorf("agent returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("agent returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding agent response: %w", err)
	}
	return parsed.Message, nil
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
