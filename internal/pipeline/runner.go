package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/pauljones0/dealfeed-bot/internal/collector"
	"github.com/pauljones0/dealfeed-bot/internal/models"
	"github.com/pauljones0/dealfeed-bot/internal/notifier"
)

// SeenStore is the slice of the storage layer a cycle needs.
type SeenStore interface {
	RecentFingerprints(ctx context.Context, window time.Duration) (map[string]struct{}, error)
	Record(ctx context.Context, rec models.SeenRecord) error
	Sweep(ctx context.Context, retention time.Duration) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// CycleStats summarizes one completed cycle.
type CycleStats struct {
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration"`
	Obtained      int            `json:"obtained"`
	New           int            `json:"new"`
	Selected      int            `json:"selected"`
	Sent          int            `json:"sent"`
	Swept         int64          `json:"swept"`
	SentBySource  map[string]int `json:"sent_by_source"`
	SourceErrors  int            `json:"source_errors"`
	DeliveryFails int            `json:"delivery_fails"`
}

// RunnerConfig carries the cycle tunables.
type RunnerConfig struct {
	Retention        time.Duration
	MaxDealsPerCycle int
	MinScore         float64
}

// Runner owns the collect→dedup→score→select→deliver→record cycle.
type Runner struct {
	mu        sync.Mutex
	registry  *collector.Registry
	store     SeenStore
	notifier  notifier.Notifier
	deliverer *Deliverer
	cfg       RunnerConfig

	statsMu   sync.Mutex
	lastStats *CycleStats

	// newRng seeds the presentation shuffle; fixed in tests.
	newRng func() *rand.Rand
	now    func() time.Time
}

func NewRunner(reg *collector.Registry, store SeenStore, n notifier.Notifier, d *Deliverer, cfg RunnerConfig) *Runner {
	return &Runner{
		registry:  reg,
		store:     store,
		notifier:  n,
		deliverer: d,
		cfg:       cfg,
		newRng:    func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
		now:       time.Now,
	}
}

// LastStats returns the most recent completed cycle's summary, or nil before
// the first cycle finishes.
func (r *Runner) LastStats() *CycleStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.lastStats
}

// RunCycle executes one full cycle. Cycles are mutually exclusive; a second
// caller blocks until the first finishes. Failures inside the cycle are
// contained, alerted and summarized, never propagated as panics.
func (r *Runner) RunCycle(ctx context.Context) (stats CycleStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats.StartedAt = r.now()
	stats.SentBySource = make(map[string]int)
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Cycle panicked", "panic", rec)
			r.alert(ctx, fmt.Sprintf("cycle panicked: %v", rec))
		}
		stats.Duration = r.now().Sub(stats.StartedAt)
		slog.Info("Cycle finished",
			"obtained", stats.Obtained,
			"new", stats.New,
			"selected", stats.Selected,
			"sent", stats.Sent,
			"sent_by_source", stats.SentBySource,
			"swept", stats.Swept,
			"source_errors", stats.SourceErrors,
			"delivery_fails", stats.DeliveryFails,
			"duration", stats.Duration)

		r.statsMu.Lock()
		snapshot := stats
		r.lastStats = &snapshot
		r.statsMu.Unlock()
	}()

	collectors := r.registry.Snapshot()
	slog.Info("Cycle started", "sources", len(collectors))

	for _, sc := range r.registry.Sessions() {
		if err := sc.Acquire(ctx); err != nil {
			slog.Error("Session acquire failed", "source", sc.Name(), "error", err)
			r.alert(ctx, fmt.Sprintf("session acquire failed for %s: %v", sc.Name(), err))
		}
	}
	defer func() {
		for _, sc := range r.registry.Sessions() {
			sc.Release()
		}
	}()

	results := CollectAll(ctx, collectors)

	seen, err := r.store.RecentFingerprints(ctx, r.cfg.Retention)
	if err != nil {
		slog.Error("Loading recent fingerprints failed", "error", err)
		r.alert(ctx, fmt.Sprintf("loading seen set failed: %v", err))
		return stats
	}

	perSource := make(map[string][]ScoredDeal)
	for source, res := range results {
		if res.Err != nil {
			stats.SourceErrors++
			r.alert(ctx, fmt.Sprintf("source %s failed: %v", source, res.Err))
			continue
		}
		stats.Obtained += len(res.Deals)

		fresh := FilterNew(res.Deals, seen)
		stats.New += len(fresh)

		var qualified []ScoredDeal
		for _, sd := range ScoreAll(fresh) {
			if sd.Score >= r.cfg.MinScore {
				qualified = append(qualified, sd)
			}
		}
		if len(qualified) > 0 {
			perSource[source] = qualified
		}
	}

	selected := Select(perSource, r.cfg.MaxDealsPerCycle, r.newRng())
	stats.Selected = len(selected)

	for _, deal := range selected {
		if err := r.deliverer.Deliver(ctx, deal); err != nil {
			stats.DeliveryFails++
			slog.Error("Delivery failed", "title", deal.Title, "source", deal.Source, "error", err)
			r.alert(ctx, fmt.Sprintf("delivery failed for %q: %v", deal.Title, err))
			continue
		}
		stats.Sent++
		stats.SentBySource[deal.Source]++

		if err := r.store.Record(ctx, models.NewSeenRecord(deal, r.now())); err != nil {
			// Already delivered; worst case it repeats next cycle.
			slog.Error("Recording delivered deal failed", "title", deal.Title, "error", err)
			r.alert(ctx, fmt.Sprintf("recording %q failed: %v", deal.Title, err))
		}
	}

	swept, err := r.store.Sweep(ctx, r.cfg.Retention)
	if err != nil {
		slog.Error("Retention sweep failed", "error", err)
		r.alert(ctx, fmt.Sprintf("retention sweep failed: %v", err))
	} else {
		stats.Swept = swept
	}

	return stats
}

func (r *Runner) alert(ctx context.Context, text string) {
	if err := r.notifier.SendAlert(ctx, text); err != nil {
		slog.Warn("Alert delivery failed", "error", err)
	}
}
