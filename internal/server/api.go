package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/screenveil/screenveil/internal/cache"
	"github.com/screenveil/screenveil/internal/config"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Report())
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ErrorStats())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var st config.Settings
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		http.Error(w, "invalid settings payload", http.StatusBadRequest)
		return
	}
	if err := s.engine.UpdateSettings(st); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Settings())
}

func (s *Server) handlePressure(w http.ResponseWriter, r *http.Request) {
	var pm PressureMessage
	if err := json.NewDecoder(r.Body).Decode(&pm); err != nil {
		http.Error(w, "invalid pressure payload", http.StatusBadRequest)
		return
	}
	evicted := s.engine.Pressure(cache.ParsePressure(pm.Level))
	writeJSON(w, http.StatusOK, map[string]any{"level": pm.Level, "evicted": evicted})
}

func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	s.force()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) handleHistorySnapshots(w http.ResponseWriter, r *http.Request) {
	rows, err := s.history.RecentSnapshots(queryLimit(r))
	if err != nil {
		slog.Error("snapshot history query failed", "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHistoryDecisions(w http.ResponseWriter, r *http.Request) {
	rows, err := s.history.RecentDecisions(queryLimit(r))
	if err != nil {
		slog.Error("decision history query failed", "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func queryLimit(r *http.Request) int {
	limit := DefaultHistoryRows
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return min(limit, MaxHistoryRows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
