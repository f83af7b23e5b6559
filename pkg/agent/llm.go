package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mathmentor/pkg/adapter"
)

const (
	maxCallRetries = 2
	baseBackoff    = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// llmCaller is the shared model-calling seam for all stage agents.
// Transient provider faults are retried with exponential backoff.
type llmCaller struct {
	adapter adapter.Adapter
	model   string
	logger  *zap.Logger
}

func newLLMCaller(a adapter.Adapter, model string, logger *zap.Logger) llmCaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return llmCaller{adapter: a, model: model, logger: logger}
}

func (c *llmCaller) generate(ctx context.Context, agentName, system, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxCallRetries; attempt++ {
		resp, err := c.adapter.Generate(ctx, c.model, system, prompt)
		if err == nil {
			return resp.Content(), nil
		}

		lastErr = err
		c.logger.Warn("model call failed",
			zap.String("agent", agentName),
			zap.String("model", c.model),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if !adapter.IsTransient(err) || attempt == maxCallRetries {
			break
		}
		if err := sleepWithContext(ctx, computeBackoff(attempt)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func computeBackoff(attempt int) time.Duration {
	backoff := baseBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
