package dashboard

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"EconDash/internal/accumulator"
	"EconDash/internal/calculator"
	"EconDash/internal/model"
	"EconDash/internal/recorder"

	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 3650
	defaultRunsLimit   = 20
	maxRunsLimit       = 200
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SeriesResponse is the body of GET /api/v1/series/{name}. Rows holds
// observations, with Value_Percent when requested.
type SeriesResponse struct {
	Name    string             `json:"name"`
	Key     string             `json:"key"`
	Title   string             `json:"title"`
	Status  accumulator.Status `json:"status"`
	Fetched int                `json:"fetched"`
	Error   string             `json:"error,omitempty"`
	Rows    any                `json:"rows"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":  "ok",
			"version": s.version,
			"series":  len(s.series),
			"time":    s.now().UTC().Format("2006-01-02T15:04:05Z"),
		},
	})
}

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	series := s.series
	if series == nil {
		series = []model.SeriesSpec{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: series})
}

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.findSeries(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown series")
		return
	}
	percent := false
	if v := r.URL.Query().Get("percent"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "percent must be a boolean")
			return
		}
		percent = b
	}

	res := s.acc.Refresh(r.Context(), spec)
	body := SeriesResponse{
		Name:    spec.Name,
		Key:     spec.Key,
		Title:   spec.Title,
		Status:  res.Status,
		Fetched: res.Fetched,
		Rows:    res.Table,
	}
	if res.Err != nil {
		body.Error = res.Err.Error()
	}
	if percent {
		body.Rows = calculator.NormalizeToPercent(res.Table)
	}
	// Fail-soft: a stale or empty table is still a successful response.
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: body})
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	if s.markets == nil {
		writeError(w, http.StatusServiceUnavailable, "stock indices are not configured")
		return
	}
	quotes, err := s.fetchIndices(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if len(quotes) > model.IndicesLimit {
		quotes = quotes[:model.IndicesLimit]
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: quotes})
}

func (s *Server) handleIndexHistory(w http.ResponseWriter, r *http.Request) {
	if s.markets == nil {
		writeError(w, http.StatusServiceUnavailable, "stock indices are not configured")
		return
	}
	symbol := chi.URLParam(r, "symbol")
	days, ok := intParam(r, "days", defaultHistoryDays, maxHistoryDays)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 3650")
		return
	}

	end := model.DateOf(s.now())
	bars, err := s.markets.History(r.Context(), symbol, end.AddDays(-days), end)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: bars})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", defaultRunsLimit, maxRunsLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}
	runs, err := s.recorder.RecentAccumulations(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []recorder.AccumulationEvent{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: runs})
}

// intParam reads a positive integer query parameter no larger than max.
func intParam(r *http.Request, name string, def, max int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > max {
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
