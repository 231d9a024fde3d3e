// Package tracker implements the job application tracker domain: seasons, jobs,
// the status vocabulary and statistics, and the Service operating on top of a Store.
package tracker

import (
	"time"
)

// Season is a job hunting period. At most one season is active at a time.
type Season struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
}

// DurationDays returns the number of full days the season lasted, up to now for a running season
func (s Season) DurationDays(now time.Time) int {
	end := now
	if s.EndDate != nil {
		end = *s.EndDate
	}
	return daysBetween(s.StartDate, end)
}

// Job is a single application, belongs to exactly one season
type Job struct {
	ID             int64     `json:"id"`
	SeasonID       int64     `json:"season_id"`
	SeasonName     string    `json:"season_name,omitempty"`
	Role           string    `json:"role"`
	CompanyName    string    `json:"company_name"`
	CompanyWebsite string    `json:"company_website,omitempty"`
	Source         string    `json:"source,omitempty"`
	AppliedDate    time.Time `json:"applied_date"`
	JobDescription string    `json:"job_description,omitempty"`
	ResumeSent     string    `json:"resume_sent,omitempty"`
	Status         Status    `json:"current_status"`
	LastUpdated    time.Time `json:"last_updated"`
}

// DaysSinceApplied returns full days passed since the application date
func (j Job) DaysSinceApplied(now time.Time) int { return daysBetween(j.AppliedDate, now) }

// DaysSinceUpdate returns full days passed since the last status or field change
func (j Job) DaysSinceUpdate(now time.Time) int { return daysBetween(j.LastUpdated, now) }

// JobRequest is an input for job creation and update, as received from clients
type JobRequest struct {
	SeasonID       int64  `json:"season_id"`
	Role           string `json:"role"`
	CompanyName    string `json:"company_name"`
	CompanyWebsite string `json:"company_website"`
	Source         string `json:"source"`
	AppliedDate    string `json:"applied_date"`
	JobDescription string `json:"job_description"`
	ResumeSent     string `json:"resume_sent"`
	Status         string `json:"current_status"`
}

// JobQuery defines job listing criteria for Store.ListJobs. Zero values match everything.
type JobQuery struct {
	SeasonID int64
	Status   Status
	Search   string // case-insensitive substring of role, company name or source
}

// Overview is a season with its jobs and statistics. Season is nil when nothing is selected.
type Overview struct {
	Season    *Season
	Jobs      []Job
	Stats     Stats
	Breakdown []StatusCount
}

// StatusChange describes a job moved to another status
type StatusChange struct {
	Job  Job
	From Status
	To   Status
	At   time.Time
}

func daysBetween(from, to time.Time) int {
	if from.IsZero() || to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
