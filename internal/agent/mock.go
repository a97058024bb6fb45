package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudsecmentor/think-extension-azure-chat/internal/lifecycle"
)

// Mock simulates a long-running agent call with a deterministic reply. It is
// the default processor for local runs and tests; swap in Client to reach a
// real agent tier.
type Mock struct {
	// Delay before the reply is produced. Zero answers immediately.
	Delay time.Duration
}

// Process returns a fixed transformation of the user query after Delay.
func (m *Mock) Process(ctx context.Context, _ []lifecycle.Turn, userQuery string) (string, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	return fmt.Sprintf("Response to '%s' is that SITMD is a short hand for Super Intelligent Teleport Master Data.", userQuery), nil
}
