package client

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/wikiai/kbclient/pkg/types"
)

// RetryPolicy configures the exponential backoff retry loop. The defaults
// (3 attempts, 1s initial delay, multiplier 2) produce delays of 1s and 2s
// before the second and third attempts.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration

	// Multiplier is the factor by which the delay grows per attempt.
	Multiplier float64
}

// DefaultRetryPolicy returns the standard policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Backoff returns the delay to wait after the given failed attempt
// (1-based): InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func (p RetryPolicy) applyDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// doWithRetry runs the transport with bounded exponential backoff. Failures
// never propagate as Go errors: the terminal outcome is folded into an
// error-status envelope. The only error return is caller cancellation.
func (c *Client) doWithRetry(ctx context.Context, req Request) (*types.Envelope, error) {
	maxAttempts := c.policy.MaxAttempts
	if req.NoRetry {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		env, err := c.roundTrip(ctx, req)
		if err == nil {
			return env, nil
		}
		if ctx.Err() != nil {
			// Caller cancellation, distinct from a per-attempt timeout.
			return nil, ctx.Err()
		}

		var apiErr *types.APIError
		retryable := errors.As(err, &apiErr) && apiErr.IsRetryable()

		if attempt < maxAttempts && retryable {
			delay := c.policy.Backoff(attempt)
			c.log.Warn().
				Str("method", req.Method).
				Str("url", req.URL).
				Int("attempt", attempt).
				Int("max_attempts", maxAttempts).
				Dur("delay", delay).
				Str("error", err.Error()).
				Msg("retrying request")
			c.metrics.retries.Add(1)

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if apiErr != nil {
			return types.ErrorEnvelope(apiErr.Error(), types.ExtractDetail(apiErr.Details)), nil
		}
		return types.ErrorEnvelope(err.Error(), nil), nil
	}
}
