// Package admin exposes the bot's small operational HTTP surface: health,
// status, source toggles and a manual cycle trigger.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pauljones0/dealfeed-bot/internal/collector"
	"github.com/pauljones0/dealfeed-bot/internal/pipeline"
)

// cycleTimeout bounds a manually triggered cycle.
const cycleTimeout = 10 * time.Minute

type Server struct {
	registry *collector.Registry
	runner   *pipeline.Runner
	store    pipeline.SeenStore
}

func New(reg *collector.Registry, runner *pipeline.Runner, store pipeline.SeenStore) *Server {
	return &Server{registry: reg, runner: runner, store: store}
}

// Handler builds the admin mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /sources/{name}/enable", s.handleEnable)
	mux.HandleFunc("POST /sources/{name}/disable", s.handleDisable)
	mux.HandleFunc("POST /run", s.handleRun)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

type statusResponse struct {
	Sources   []collector.SourceStatus `json:"sources"`
	SeenCount int64                    `json:"seen_count"`
	LastCycle *pipeline.CycleStats     `json:"last_cycle,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		slog.Error("Status count failed", "error", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	resp := statusResponse{
		Sources:   s.registry.Status(),
		SeenCount: count,
		LastCycle: s.runner.LastStats(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Encoding status failed", "error", err)
	}
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	s.toggleSource(w, r, s.registry.Enable, "enabled")
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.toggleSource(w, r, s.registry.Disable, "disabled")
}

func (s *Server) toggleSource(w http.ResponseWriter, r *http.Request, toggle func(string) error, verb string) {
	name := r.PathValue("name")
	if err := toggle(name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	slog.Info("Source toggled via admin", "source", name, "state", verb)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"source":%q,"state":%q}`+"\n", name, verb)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	// Run asynchronously: a cycle can outlive any sane request timeout. The
	// runner's own mutex serializes it against the scheduled cycle.
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Panic in manual cycle", "panic", rec)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
		defer cancel()
		s.runner.RunCycle(ctx)
	}()

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Cycle started.")
}
