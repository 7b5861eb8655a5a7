// Package pipeline turns raw source listings into delivered deals: collect,
// deduplicate, score, select, send, record.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/dealfeed-bot/internal/collector"
	"github.com/pauljones0/dealfeed-bot/internal/models"
)

// maxConcurrentCollectors bounds how many sources are fetched at once.
const maxConcurrentCollectors = 4

// CollectResult is one source's outcome for a cycle. Err and Deals are
// mutually exclusive.
type CollectResult struct {
	Deals []models.Deal
	Err   error
}

// CollectAll runs every collector concurrently and returns a result per
// source. A failing or panicking source is recorded as its own error and
// never disturbs the others; the goroutines intentionally report nil to the
// group so no sibling gets cancelled.
func CollectAll(ctx context.Context, collectors []collector.Collector) map[string]CollectResult {
	results := make(map[string]CollectResult, len(collectors))
	if len(collectors) == 0 {
		return results
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCollectors)

	for _, c := range collectors {
		g.Go(func() error {
			var res CollectResult
			func() {
				defer func() {
					if r := recover(); r != nil {
						res = CollectResult{Err: fmt.Errorf("collector %s panicked: %v", c.Name(), r)}
					}
				}()
				deals, err := c.Collect(ctx)
				if err != nil {
					res = CollectResult{Err: fmt.Errorf("collecting from %s: %w", c.Name(), err)}
					return
				}
				res = CollectResult{Deals: deals}
			}()

			if res.Err != nil {
				slog.Warn("Source collection failed", "source", c.Name(), "error", res.Err)
			} else {
				slog.Info("Source collection finished", "source", c.Name(), "deals", len(res.Deals))
			}

			mu.Lock()
			results[c.Name()] = res
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}
