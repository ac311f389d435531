package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/meltforce/repsync/internal/syncer"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSyncIncremental(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncer.SyncIncremental(r.Context())
	s.writeSyncResult(w, result, err)
}

func (s *Server) handleSyncFull(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncer.SyncFull(r.Context())
	s.writeSyncResult(w, result, err)
}

func (s *Server) handleResetAndResync(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncer.ResetAndResync(r.Context())
	s.writeSyncResult(w, result, err)
}

// writeSyncResult maps a sync outcome to a response. A run already in
// progress is a conflict, not a server error; an aborted run still returns
// its partial result.
func (s *Server) writeSyncResult(w http.ResponseWriter, result *syncer.Result, err error) {
	if errors.Is(err, syncer.ErrSyncInProgress) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.Error("sync error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 50)
	runs, err := s.db.QuerySyncRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 50)
	sessions, err := s.db.QuerySessions(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.stats.Summary(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	days := intParam(r, "days", 365)
	entries, err := s.stats.Heatmap(r.Context(), days)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStreaks(w http.ResponseWriter, r *http.Request) {
	streaks, err := s.stats.Streaks(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, streaks)
}

func (s *Server) handleTopExercises(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 10)
	ranks, err := s.stats.TopExercises(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ranks)
}

// intParam reads a positive integer query parameter, falling back to def.
func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
