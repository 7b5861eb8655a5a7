// Package collector defines the per-source deal collectors and the registry
// the pipeline draws them from.
package collector

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/dealfeed-bot/internal/models"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Collector fetches one source's current listings. Implementations return an
// empty slice (not an error) when the page simply has nothing, and an error
// only for transport or render failures.
type Collector interface {
	Name() string
	URL() string
	Tag() string
	Collect(ctx context.Context) ([]models.Deal, error)
}

// SessionCollector is implemented by collectors that hold an expensive shared
// session, such as a headless browser. The runner brackets each cycle with
// Acquire and Release.
type SessionCollector interface {
	Collector
	Acquire(ctx context.Context) error
	Release()
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// fetchDocument GETs a page with a browser user agent and parses it.
func fetchDocument(ctx context.Context, client *http.Client, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	return doc, nil
}

// SourceStatus describes one registered collector for the admin surface.
type SourceStatus struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Tag     string `json:"tag"`
	Enabled bool   `json:"enabled"`
}

// Registry holds the known collectors and their enabled flags. A cycle works
// from a Snapshot, so Enable and Disable taken mid-cycle apply to the next one.
type Registry struct {
	mu         sync.Mutex
	collectors map[string]Collector
	enabled    map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		collectors: make(map[string]Collector),
		enabled:    make(map[string]bool),
	}
}

// Register adds a collector under its own Name, enabled by default.
func (r *Registry) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[c.Name()] = c
	r.enabled[c.Name()] = true
}

// Snapshot returns the currently enabled collectors in stable name order.
func (r *Registry) Snapshot() []Collector {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		if r.enabled[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]Collector, 0, len(names))
	for _, name := range names {
		out = append(out, r.collectors[name])
	}
	return out
}

// Sessions returns every registered SessionCollector, enabled or not, so the
// runner can release sessions for a source disabled mid-flight.
func (r *Registry) Sessions() []SessionCollector {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []SessionCollector
	for _, c := range r.collectors {
		if sc, ok := c.(SessionCollector); ok {
			out = append(out, sc)
		}
	}
	return out
}

// Enable marks a source active from the next snapshot on.
func (r *Registry) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable removes a source from future snapshots.
func (r *Registry) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collectors[name]; !ok {
		return fmt.Errorf("unknown source %q", name)
	}
	r.enabled[name] = enabled
	return nil
}

// Status lists every registered source in name order.
func (r *Registry) Status() []SourceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SourceStatus, 0, len(r.collectors))
	for name, c := range r.collectors {
		out = append(out, SourceStatus{
			Name:    name,
			URL:     c.URL(),
			Tag:     c.Tag(),
			Enabled: r.enabled[name],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
