// Package http serves the scheduling JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"reactorops/internal/cache"
	"reactorops/internal/registry"
	"reactorops/internal/scheduling"
)

type Server struct {
	http.Server

	scheduler   *scheduling.Service
	registry    *registry.Registry
	rateLimiter *rateLimiter

	// Month views are cached per month key and invalidated on any edit
	// touching that month. Zone changes purge the whole cache since every
	// cached view embeds the zone list.
	viewCache *cache.LRU[scheduling.MonthView]

	cancelCleanup context.CancelFunc
	shutdownOnce  sync.Once
}

func NewServer(addr string, scheduler *scheduling.Service, reg *registry.Registry, cacheSize int, cacheTTL time.Duration) *Server {
	s := &Server{
		scheduler:   scheduler,
		registry:    reg,
		rateLimiter: newRateLimiter(),
		viewCache:   cache.NewLRU[scheduling.MonthView](cacheSize, cacheTTL),
	}

	cleanupCtx, cancel := context.WithCancel(context.Background())
	s.cancelCleanup = cancel
	s.viewCache.StartCleanup(cleanupCtx, 10*time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:         addr,
		Handler:      s.middleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/months/{month}/schedule", s.handleMonthSchedule)
	mux.HandleFunc("POST /api/months/{month}/reactors", s.handleAddReactor)
	mux.HandleFunc("PATCH /api/months/{month}/reactors/{id}/position", s.handleMoveReactor)
	mux.HandleFunc("DELETE /api/months/{month}/reactors/{id}", s.handleDeleteReactor)
	mux.HandleFunc("PUT /api/months/{month}/reactors/{id}/batches", s.handleSaveBatches)

	mux.HandleFunc("GET /api/zones", s.handleListZones)
	mux.HandleFunc("POST /api/zones", s.handleAddZone)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return traceMiddleware(securityHeaders(s.rateLimit(next)))
}

// Shutdown stops the HTTP server and the background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.cancelCleanup != nil {
			s.cancelCleanup()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.scheduler.Zones(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness probe failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
