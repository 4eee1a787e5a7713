package http

import (
	"log/slog"
	"net/http"
	"strings"

	"reactorops/internal/core"
)

func (s *Server) handleMonthSchedule(w http.ResponseWriter, r *http.Request) {
	month, ok := monthFromPath(w, r)
	if !ok {
		return
	}

	if v, hit := s.viewCache.Get(string(month)); hit {
		writeJSON(w, http.StatusOK, v)
		return
	}

	v, err := s.scheduler.MonthView(r.Context(), month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to build month view", "month", month, "error", err)
		writeDomainError(w, err)
		return
	}
	s.viewCache.Set(string(month), v)
	writeJSON(w, http.StatusOK, v)
}

type addReactorRequest struct {
	Capacity int `json:"capacity"`
	X        int `json:"x"`
	Y        int `json:"y"`
}

func (s *Server) handleAddReactor(w http.ResponseWriter, r *http.Request) {
	month, ok := monthFromPath(w, r)
	if !ok {
		return
	}
	var req addReactorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reactor, err := s.scheduler.AddResource(r.Context(), month, core.CapacityClass(req.Capacity), req.X, req.Y)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.viewCache.Delete(string(month))
	writeJSON(w, http.StatusCreated, reactor)
}

type moveReactorRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (s *Server) handleMoveReactor(w http.ResponseWriter, r *http.Request) {
	month, ok := monthFromPath(w, r)
	if !ok {
		return
	}
	var req moveReactorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pos, err := s.scheduler.MoveResource(r.Context(), month, r.PathValue("id"), req.X, req.Y)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.viewCache.Delete(string(month))
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleDeleteReactor(w http.ResponseWriter, r *http.Request) {
	month, ok := monthFromPath(w, r)
	if !ok {
		return
	}

	if err := s.scheduler.DeleteResource(r.Context(), month, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	s.viewCache.Delete(string(month))
	w.WriteHeader(http.StatusNoContent)
}

type saveBatchesRequest struct {
	Batches        []core.Batch `json:"batches"`
	StatusOverride core.Status  `json:"statusOverride"`
}

func (s *Server) handleSaveBatches(w http.ResponseWriter, r *http.Request) {
	month, ok := monthFromPath(w, r)
	if !ok {
		return
	}
	var req saveBatchesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	logEntry, err := s.scheduler.SaveBatches(r.Context(), month, r.PathValue("id"), req.Batches, req.StatusOverride)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.viewCache.Delete(string(month))
	writeJSON(w, http.StatusOK, logEntry)
}

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.scheduler.Zones(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

type addZoneRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddZone(w http.ResponseWriter, r *http.Request) {
	var req addZoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "zone name required")
		return
	}

	zone, err := s.scheduler.AddZone(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// Every cached month view embeds the zone list.
	s.viewCache.Purge()
	writeJSON(w, http.StatusCreated, zone)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.registry.Categories(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}
