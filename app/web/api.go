package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobtrack/app/tracker"
)

// APISeasonResponse is the JSON response for the active season, Season is null if nothing is active
type APISeasonResponse struct {
	Season *tracker.Season `json:"season"`
	Stats  *tracker.Stats  `json:"stats,omitempty"`
}

// APIJobsResponse is the JSON response for job listings
type APIJobsResponse struct {
	Jobs  []tracker.Job `json:"jobs"`
	Count int           `json:"count"`
}

// APIStatisticsResponse is the JSON response for /api/v1/statistics
type APIStatisticsResponse struct {
	Season      *tracker.Season       `json:"season"`
	Stats       tracker.Stats         `json:"stats"`
	SuccessRate int                   `json:"success_rate"`
	Breakdown   []tracker.StatusCount `json:"breakdown"`
}

// handleAPISeasons returns all seasons, the newest first
func (s *Server) handleAPISeasons(w http.ResponseWriter, r *http.Request) {
	seasons, err := s.tracker.ListSeasons(r.Context())
	if err != nil {
		s.writeTrackerError(w, err, "failed to list seasons")
		return
	}
	if seasons == nil {
		seasons = []tracker.Season{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"seasons": seasons})
}

// handleAPIActiveSeason returns the active season with its stats
func (s *Server) handleAPIActiveSeason(w http.ResponseWriter, r *http.Request) {
	ov, err := s.tracker.Overview(r.Context(), 0)
	if err != nil {
		s.writeTrackerError(w, err, "failed to get active season")
		return
	}
	resp := APISeasonResponse{Season: ov.Season}
	if ov.Season != nil {
		resp.Stats = &ov.Stats
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleAPICreateSeason starts a new season, body is {"name": "..."}
func (s *Server) handleAPICreateSeason(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	season, err := s.tracker.CreateSeason(r.Context(), req.Name)
	if err != nil {
		s.writeTrackerError(w, err, "failed to create season")
		return
	}
	s.writeJSON(w, http.StatusCreated, season)
}

// handleAPIEndSeason ends the active season
func (s *Server) handleAPIEndSeason(w http.ResponseWriter, r *http.Request) {
	season, err := s.tracker.EndActiveSeason(r.Context())
	if err != nil {
		s.writeTrackerError(w, err, "failed to end season")
		return
	}
	s.writeJSON(w, http.StatusOK, season)
}

// handleAPIJobs returns jobs of the season from season_id param or of the active season
func (s *Server) handleAPIJobs(w http.ResponseWriter, r *http.Request) {
	seasonID, err := seasonParam(r, "season_id")
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.tracker.ListJobs(r.Context(), seasonID)
	if err != nil {
		s.writeTrackerError(w, err, "failed to list jobs")
		return
	}
	s.writeJobs(w, jobs)
}

// handleAPISearchJobs returns jobs matching q param
func (s *Server) handleAPISearchJobs(w http.ResponseWriter, r *http.Request) {
	seasonID, err := seasonParam(r, "season_id")
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.tracker.SearchJobs(r.Context(), seasonID, r.URL.Query().Get("q"))
	if err != nil {
		s.writeTrackerError(w, err, "failed to search jobs")
		return
	}
	s.writeJobs(w, jobs)
}

// handleAPIFilterJobs returns jobs in the status from status param
func (s *Server) handleAPIFilterJobs(w http.ResponseWriter, r *http.Request) {
	seasonID, err := seasonParam(r, "season_id")
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.tracker.FilterJobs(r.Context(), seasonID, r.URL.Query().Get("status"))
	if err != nil {
		s.writeTrackerError(w, err, "failed to filter jobs")
		return
	}
	s.writeJobs(w, jobs)
}

// handleAPICreateJob adds a job, to the active season unless season_id is set
func (s *Server) handleAPICreateJob(w http.ResponseWriter, r *http.Request) {
	var req tracker.JobRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.tracker.CreateJob(r.Context(), req)
	if err != nil {
		s.writeTrackerError(w, err, "failed to create job")
		return
	}
	s.writeJSON(w, http.StatusCreated, job)
}

// handleAPIGetJob returns a single job
func (s *Server) handleAPIGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.tracker.GetJob(r.Context(), id)
	if err != nil {
		s.writeTrackerError(w, err, "failed to get job")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleAPIUpdateJob replaces job fields
func (s *Server) handleAPIUpdateJob(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req tracker.JobRequest
	if err = decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.tracker.UpdateJob(r.Context(), id, req)
	if err != nil {
		s.writeTrackerError(w, err, "failed to update job")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleAPIUpdateJobStatus moves a job to another status, body is {"status": "..."}
func (s *Server) handleAPIUpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err = decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.tracker.UpdateJobStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeTrackerError(w, err, "failed to update job status")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleAPIDeleteJob removes a job
func (s *Server) handleAPIDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.tracker.DeleteJob(r.Context(), id); err != nil {
		s.writeTrackerError(w, err, "failed to delete job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAPIStatistics returns stats of the season from season_id param or of the active season
func (s *Server) handleAPIStatistics(w http.ResponseWriter, r *http.Request) {
	seasonID, err := seasonParam(r, "season_id")
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	ov, err := s.tracker.Overview(r.Context(), seasonID)
	if err != nil {
		s.writeTrackerError(w, err, "failed to get statistics")
		return
	}
	s.writeJSON(w, http.StatusOK, APIStatisticsResponse{
		Season:      ov.Season,
		Stats:       ov.Stats,
		SuccessRate: ov.Stats.SuccessRate(),
		Breakdown:   ov.Breakdown,
	})
}

// handleAPIStatuses returns the status vocabulary in display order
func (s *Server) handleAPIStatuses(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"statuses": tracker.StatusNames()})
}

func (s *Server) writeJobs(w http.ResponseWriter, jobs []tracker.Job) {
	if jobs == nil {
		jobs = []tracker.Job{}
	}
	s.writeJSON(w, http.StatusOK, APIJobsResponse{Jobs: jobs, Count: len(jobs)})
}

// writeTrackerError maps tracker error kinds to http status codes.
// Unexpected errors are logged and reported with a generic message.
func (s *Server) writeTrackerError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, tracker.ErrValidation):
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrConflict):
		s.writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tracker.ErrNotFound):
		s.writeJSONError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("[ERROR] %s: %v", msg, err)
		s.writeJSONError(w, http.StatusInternalServerError, msg)
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[WARN] failed to encode JSON error response: %v", err)
	}
}

// decodeJSON reads request body into v, unknown fields are rejected
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// idParam returns positive id from the path
func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// seasonParam returns season id from the query or form param, 0 if not set
func seasonParam(r *http.Request, name string) (int64, error) {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return id, nil
}
