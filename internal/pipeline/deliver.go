package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/dealfeed-bot/internal/models"
	"github.com/pauljones0/dealfeed-bot/internal/notifier"
)

// maxRateLimitWait caps how long an advised rate-limit wait may stretch one
// delivery before the attempt is abandoned as transient.
const maxRateLimitWait = 5 * time.Minute

// Deliverer sends one deal at a time with pacing and category-aware retries.
type Deliverer struct {
	notifier    notifier.Notifier
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration

	// sleep is replaced in tests so retries do not wall-clock wait.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDeliverer(n notifier.Notifier, sendInterval time.Duration, maxAttempts int, baseDelay time.Duration) *Deliverer {
	return &Deliverer{
		notifier:    n,
		limiter:     rate.NewLimiter(rate.Every(sendInterval), 1),
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Deliver sends a deal, retrying transient and conflict failures with a
// growing backoff. A rate-limited response waits out the advised delay plus a
// second without spending an attempt; a fatal response stops immediately.
func (d *Deliverer) Deliver(ctx context.Context, deal models.Deal) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send slot: %w", err)
	}

	for attempt := 1; ; {
		err := d.notifier.Send(ctx, deal)
		if err == nil {
			return nil
		}

		var sendErr *notifier.SendError
		if !errors.As(err, &sendErr) {
			return fmt.Errorf("delivering %q: %w", deal.Title, err)
		}

		switch sendErr.Category {
		case notifier.Fatal:
			return fmt.Errorf("delivering %q: %w", deal.Title, err)

		case notifier.RateLimited:
			// Honoring the advised wait does not spend an attempt; the
			// budget is for real failures, not pacing.
			wait := sendErr.RetryAfter + time.Second
			if wait > maxRateLimitWait {
				return fmt.Errorf("delivering %q: advised wait %v exceeds cap: %w", deal.Title, sendErr.RetryAfter, err)
			}
			slog.Warn("Rate limited, honoring advised wait", "title", deal.Title, "wait", wait)
			if serr := d.sleep(ctx, wait); serr != nil {
				return serr
			}

		default: // Transient, Conflict
			if attempt >= d.maxAttempts {
				return fmt.Errorf("delivering %q failed after %d attempts: %w", deal.Title, d.maxAttempts, err)
			}
			backoff := time.Duration(attempt) * d.baseDelay
			slog.Warn("Delivery attempt failed, backing off",
				"title", deal.Title, "attempt", attempt, "backoff", backoff, "error", err)
			if serr := d.sleep(ctx, backoff); serr != nil {
				return serr
			}
			attempt++
		}
	}
}
