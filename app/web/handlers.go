package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobtrack/app/tracker"
)

const statusFilterCookie = "status-filter"

// handleDashboard renders the main dashboard for the active season or the one from season param
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	seasonID, err := seasonParam(r, "season")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := s.dashboardData(r.Context(), seasonID, r.URL.Query().Get("search"), s.getStatusFilter(r))
	if err != nil {
		s.renderError(w, r, err, "failed to load dashboard")
		return
	}
	data.Seasons, err = s.tracker.ListSeasons(r.Context())
	if err != nil {
		s.renderError(w, r, err, "failed to load seasons")
		return
	}
	s.render(w, http.StatusOK, "base.html", "base", data)
}

// dashboardData collects the season overview and jobs matching search and status filter.
// Stats always cover the whole season.
func (s *Server) dashboardData(ctx context.Context, seasonID int64, search string, status tracker.Status) (TemplateData, error) {
	ov, err := s.tracker.Overview(ctx, seasonID)
	if err != nil {
		return TemplateData{}, err
	}

	data := s.newTemplateData()
	data.Season = ov.Season
	data.Jobs = ov.Jobs
	data.Stats = ov.Stats
	data.Breakdown = ov.Breakdown
	data.Search = strings.TrimSpace(search)
	data.StatusFilter = status.String()

	if ov.Season == nil || (data.Search == "" && status.IsZero()) {
		return data, nil
	}
	data.Jobs, err = s.tracker.FindJobs(ctx, tracker.JobQuery{SeasonID: ov.Season.ID, Status: status, Search: data.Search})
	if err != nil {
		return TemplateData{}, err
	}
	return data, nil
}

// handleJobsPartial returns the jobs table with OOB stats updates for HTMX requests
func (s *Server) handleJobsPartial(w http.ResponseWriter, r *http.Request) {
	seasonID, err := seasonParam(r, "season")
	if err != nil {
		s.renderFlash(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s.renderJobs(w, r, seasonID, r.FormValue("search"), s.getStatusFilter(r))
}

// handleStatusFilter sets the status filter cookie, blank status clears the filter
func (s *Server) handleStatusFilter(w http.ResponseWriter, r *http.Request) {
	seasonID, err := seasonParam(r, "season")
	if err != nil {
		s.renderFlash(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var status tracker.Status
	if v := strings.TrimSpace(r.FormValue("status")); v != "" {
		if status, err = tracker.ParseStatus(v); err != nil {
			s.renderFlash(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	http.SetCookie(w, s.statusFilterCookie(status))
	s.renderJobs(w, r, seasonID, r.FormValue("search"), status)
}

// handleSeasonSwitch selects another season, search and status filter are reset
func (s *Server) handleSeasonSwitch(w http.ResponseWriter, r *http.Request) {
	seasonID, err := seasonParam(r, "season")
	if err != nil {
		s.renderFlash(w, r, http.StatusBadRequest, err.Error())
		return
	}

	http.SetCookie(w, s.statusFilterCookie(tracker.Status{}))

	target := s.dashboardURL(seasonID)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleJobModal renders the job details modal with edit and status forms
func (s *Server) handleJobModal(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.renderFlash(w, r, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.tracker.GetJob(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err, "failed to load job")
		return
	}

	data := s.newTemplateData()
	data.Job = job
	s.render(w, http.StatusOK, "partials", "job-modal", data)
}

// handleCreateSeasonForm starts a new season from the dashboard form
func (s *Server) handleCreateSeasonForm(w http.ResponseWriter, r *http.Request) {
	season, err := s.tracker.CreateSeason(r.Context(), r.FormValue("name"))
	if err != nil {
		s.renderError(w, r, err, "failed to create season")
		return
	}
	log.Printf("[DEBUG] season %d created from dashboard", season.ID)
	s.refreshPage(w, r, 0)
}

// handleEndSeasonForm ends the active season
func (s *Server) handleEndSeasonForm(w http.ResponseWriter, r *http.Request) {
	if _, err := s.tracker.EndActiveSeason(r.Context()); err != nil {
		s.renderError(w, r, err, "failed to end season")
		return
	}
	s.refreshPage(w, r, 0)
}

// handleCreateJobForm adds a job from the dashboard form
func (s *Server) handleCreateJobForm(w http.ResponseWriter, r *http.Request) {
	req, err := jobRequestFromForm(r)
	if err != nil {
		s.renderFlash(w, r, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.tracker.CreateJob(r.Context(), req)
	if err != nil {
		s.renderError(w, r, err, "failed to create job")
		return
	}
	s.refreshPage(w, r, job.SeasonID)
}

// handleUpdateJobForm saves the job edit form
func (s *Server) handleUpdateJobForm(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.renderFlash(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req, err := jobRequestFromForm(r)
	if err != nil {
		s.renderFlash(w, r, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.tracker.UpdateJob(r.Context(), id, req)
	if err != nil {
		s.renderError(w, r, err, "failed to update job")
		return
	}
	s.jobsChanged(w, r, job.SeasonID, fmt.Sprintf("%s at %s updated", job.Role, job.CompanyName))
}

// handleJobStatusForm moves a job to the status from the form
func (s *Server) handleJobStatusForm(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.renderFlash(w, r, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.tracker.UpdateJobStatus(r.Context(), id, r.FormValue("status"))
	if err != nil {
		s.renderError(w, r, err, "failed to update job status")
		return
	}
	s.jobsChanged(w, r, job.SeasonID, fmt.Sprintf("%s at %s is now %s", job.Role, job.CompanyName, job.Status))
}

// handleDeleteJobForm removes a job
func (s *Server) handleDeleteJobForm(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.renderFlash(w, r, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.tracker.GetJob(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err, "failed to delete job")
		return
	}
	if err := s.tracker.DeleteJob(r.Context(), id); err != nil {
		s.renderError(w, r, err, "failed to delete job")
		return
	}
	s.jobsChanged(w, r, job.SeasonID, "job deleted")
}

// renderJobs renders the jobs table with OOB stats updates
func (s *Server) renderJobs(w http.ResponseWriter, r *http.Request, seasonID int64, search string, status tracker.Status) {
	data, err := s.dashboardData(r.Context(), seasonID, search, status)
	if err != nil {
		s.renderError(w, r, err, "failed to load jobs")
		return
	}
	data.IsOOB = true

	tmpl, ok := s.templates["partials"]
	if !ok {
		log.Printf("[WARN] partials template not found")
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	for _, name := range []string{"jobs-table", "stats-updates"} {
		if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
			log.Printf("[ERROR] failed to render %s: %v", name, err)
			http.Error(w, "Failed to render jobs", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[ERROR] failed to write jobs HTML: %v", err)
	}
}

// refreshPage asks HTMX for a full page reload, plain form posts are redirected to the dashboard
// of the season, 0 for the active one
func (s *Server) refreshPage(w http.ResponseWriter, r *http.Request, seasonID int64) {
	if isHTMX(r) {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, s.dashboardURL(seasonID), http.StatusSeeOther)
}

// jobsChanged triggers jobs list reload and shows the message
func (s *Server) jobsChanged(w http.ResponseWriter, r *http.Request, seasonID int64, msg string) {
	if !isHTMX(r) {
		http.Redirect(w, r, s.dashboardURL(seasonID), http.StatusSeeOther)
		return
	}
	w.Header().Set("HX-Trigger", "refresh-jobs")
	s.renderFlash(w, r, http.StatusOK, msg)
}

// dashboardURL returns dashboard link for the season, active season for 0
func (s *Server) dashboardURL(seasonID int64) string {
	if seasonID <= 0 {
		return s.url("/")
	}
	return s.url("/?season=" + strconv.FormatInt(seasonID, 10))
}

// renderError renders tracker error as a flash message with matching status code
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, tracker.ErrValidation):
		s.renderFlash(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrConflict):
		s.renderFlash(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, tracker.ErrNotFound):
		s.renderFlash(w, r, http.StatusNotFound, err.Error())
	default:
		log.Printf("[ERROR] %s: %v", msg, err)
		s.renderFlash(w, r, http.StatusInternalServerError, msg)
	}
}

// renderFlash renders a message into the flash area. Errors are retargeted for HTMX
// so they show up regardless of the request target.
func (s *Server) renderFlash(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if isHTMX(r) && status >= http.StatusBadRequest {
		w.Header().Set("HX-Retarget", "#flash")
		w.Header().Set("HX-Reswap", "innerHTML")
	}
	data := s.newTemplateData()
	data.Message = msg
	data.IsError = status >= http.StatusBadRequest
	s.render(w, status, "partials", "flash", data)
}

// getStatusFilter returns status filter from the cookie, unknown values are ignored
func (s *Server) getStatusFilter(r *http.Request) tracker.Status {
	cookie, err := r.Cookie(statusFilterCookie)
	if err != nil || cookie.Value == "" {
		return tracker.Status{}
	}
	st, err := tracker.ParseStatus(cookie.Value)
	if err != nil {
		return tracker.Status{}
	}
	return st
}

// statusFilterCookie makes the status filter cookie, zero status removes it
func (s *Server) statusFilterCookie(st tracker.Status) *http.Cookie {
	c := &http.Cookie{
		Name:     statusFilterCookie,
		Value:    st.String(),
		Path:     s.cookiePath(),
		MaxAge:   365 * 24 * 60 * 60, // 1 year
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if st.IsZero() {
		c.MaxAge = -1
	}
	return c
}

// newTemplateData creates TemplateData with common fields populated
func (s *Server) newTemplateData() TemplateData {
	return TemplateData{
		BaseURL:     s.baseURL,
		Version:     shortVersion(s.version),
		CurrentYear: time.Now().Year(),
		AuthEnabled: s.passwordHash != "",
		Statuses:    tracker.StatusNames(),
	}
}

// jobRequestFromForm collects job fields from the posted form
func jobRequestFromForm(r *http.Request) (tracker.JobRequest, error) {
	if err := r.ParseForm(); err != nil {
		return tracker.JobRequest{}, fmt.Errorf("invalid form data: %w", err)
	}
	seasonID, err := seasonParam(r, "season_id")
	if err != nil {
		return tracker.JobRequest{}, err
	}
	return tracker.JobRequest{
		SeasonID:       seasonID,
		Role:           r.FormValue("role"),
		CompanyName:    r.FormValue("company_name"),
		CompanyWebsite: r.FormValue("company_website"),
		Source:         r.FormValue("source"),
		AppliedDate:    r.FormValue("applied_date"),
		JobDescription: r.FormValue("job_description"),
		ResumeSent:     r.FormValue("resume_sent"),
		Status:         r.FormValue("current_status"),
	}, nil
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
