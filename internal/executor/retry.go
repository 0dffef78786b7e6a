package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

const rateLimitKey = "clob"

// call runs one venue call under the shared discipline: wait for a
// rate-limit slot, bound the call with the per-call timeout, and retry
// transient failures with a fixed backoff. Non-transient failures return
// immediately.
func (e *Engine) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.cfg.Attempts; attempt++ {
		if e.limiter != nil && e.cfg.MaxCallsPerMinute > 0 {
			if err := e.limiter.Wait(ctx, rateLimitKey, e.cfg.MaxCallsPerMinute, time.Minute); err != nil {
				return fmt.Errorf("executor: %s: rate limit wait: %w", op, err)
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if e.cfg.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return nil
		}
		lastErr = err

		if !domain.Transient(err) {
			return err
		}
		if attempt == e.cfg.Attempts {
			break
		}

		e.logger.Warn("transient call failure, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(e.cfg.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("executor: %s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("executor: %s: %d attempts exhausted: %w", op, e.cfg.Attempts, lastErr)
}
