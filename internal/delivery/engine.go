// Package delivery pushes payloads to the ingest endpoint with bounded
// retries and exponential backoff, surfacing a definitive outcome. It
// never touches the buffer; the coordinator decides what to persist.
package delivery

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	URL         string
	MaxAttempts int           // attempts per Deliver call, including the first
	BaseDelay   time.Duration // backoff before the second attempt
	Jitter      float64       // fraction 0..1; 0 gives the pure base*2^n schedule
	Timeout     time.Duration // per-attempt HTTP timeout, independent of backoff
}

type Engine struct {
	transport Transport
	cfg       Config
	log       *zap.Logger
}

func New(transport Transport, cfg Config, log *zap.Logger) *Engine {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Engine{transport: transport, cfg: cfg, log: log}
}

// delay computes the backoff before attempt+1: BaseDelay * 2^(attempt-1),
// spread by ±Jitter so a fleet of agents does not retry in lockstep.
func (c Config) delay(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(2, float64(attempt-1))
	if c.Jitter > 0 {
		d += d * c.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

// Deliver posts payload until the endpoint answers 200 or attempts run
// out. Returns the total elapsed time on success, or the last observed
// error after exhaustion. Anything that is not a 200 counts as a
// retryable failure, including connection errors and timeouts.
func (e *Engine) Deliver(ctx context.Context, payload any) (time.Duration, error) {
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		status, body, err := e.transport.Post(ctx, e.cfg.URL, payload, e.cfg.Timeout)
		if err == nil && status == http.StatusOK {
			return time.Since(start), nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d: %s", status, truncate(body, 200))
		}

		e.log.Warn("delivery attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.cfg.MaxAttempts),
			zap.Error(lastErr))

		// backoff between attempts, never after the last
		if attempt < e.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(e.cfg.delay(attempt)):
			}
		}
	}

	return 0, fmt.Errorf("delivery failed after %d attempts: %w", e.cfg.MaxAttempts, lastErr)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
