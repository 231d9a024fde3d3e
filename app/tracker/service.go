package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
)

// Store is a persistence layer for seasons and jobs.
// Missing records are reported with errors of ErrNotFound kind, duplicates with ErrConflict.
type Store interface {
	ListSeasons(ctx context.Context) ([]Season, error)
	GetSeason(ctx context.Context, id int64) (Season, error)
	ActiveSeason(ctx context.Context) (Season, error)
	CreateSeason(ctx context.Context, name string, start time.Time) (Season, error)
	EndActiveSeason(ctx context.Context, at time.Time) (Season, error)

	ListJobs(ctx context.Context, q JobQuery) ([]Job, error)
	GetJob(ctx context.Context, id int64) (Job, error)
	CreateJob(ctx context.Context, job Job) (Job, error)
	UpdateJob(ctx context.Context, job Job) (Job, error)
	UpdateJobStatus(ctx context.Context, id int64, status Status, at time.Time) (Job, error)
	DeleteJob(ctx context.Context, id int64) error
}

// EventHandler is notified about job status changes
type EventHandler interface {
	OnStatusChange(ctx context.Context, ev StatusChange)
}

// Service implements tracker operations on top of Store
type Service struct {
	store  Store
	events EventHandler
	now    func() time.Time
}

// NewService makes a Service. events is optional.
func NewService(store Store, events EventHandler) *Service {
	return &Service{store: store, events: events, now: time.Now}
}

// ListSeasons returns all seasons, the newest first
func (s *Service) ListSeasons(ctx context.Context) ([]Season, error) {
	return s.store.ListSeasons(ctx)
}

// GetSeason returns a season by id
func (s *Service) GetSeason(ctx context.Context, id int64) (Season, error) {
	return s.store.GetSeason(ctx, id)
}

// ActiveSeason returns the active season or nil if there is none
func (s *Service) ActiveSeason(ctx context.Context) (*Season, error) {
	season, err := s.store.ActiveSeason(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &season, nil
}

// CreateSeason starts a new active season. A previously active season is ended at the same moment.
func (s *Service) CreateSeason(ctx context.Context, name string) (Season, error) {
	name, err := ValidateSeasonName(name)
	if err != nil {
		return Season{}, err
	}
	season, err := s.store.CreateSeason(ctx, name, s.now())
	if err != nil {
		return Season{}, err
	}
	log.Printf("[INFO] season %q (%d) started", season.Name, season.ID)
	return season, nil
}

// EndActiveSeason ends the active season, returns ErrNoActiveSeason if nothing is active
func (s *Service) EndActiveSeason(ctx context.Context) (Season, error) {
	season, err := s.store.EndActiveSeason(ctx, s.now())
	if errors.Is(err, ErrNotFound) {
		return Season{}, ErrNoActiveSeason
	}
	if err != nil {
		return Season{}, err
	}
	log.Printf("[INFO] season %q (%d) ended", season.Name, season.ID)
	return season, nil
}

// ListJobs returns jobs of the season, seasonID 0 selects the active season.
// Without an active season the result is empty, unknown season is ErrNotFound.
func (s *Service) ListJobs(ctx context.Context, seasonID int64) ([]Job, error) {
	return s.FindJobs(ctx, JobQuery{SeasonID: seasonID})
}

// SearchJobs returns jobs of the season matching the query in role, company name or source
func (s *Service) SearchJobs(ctx context.Context, seasonID int64, query string) ([]Job, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, Validationf("search term is required")
	}
	return s.FindJobs(ctx, JobQuery{SeasonID: seasonID, Search: query})
}

// FilterJobs returns jobs of the season in the given status
func (s *Service) FilterJobs(ctx context.Context, seasonID int64, status string) ([]Job, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.FindJobs(ctx, JobQuery{SeasonID: seasonID, Status: st})
}

// FindJobs returns jobs matching the query. SeasonID 0 is resolved to the active season.
func (s *Service) FindJobs(ctx context.Context, q JobQuery) ([]Job, error) {
	seasonID, err := s.resolveSeason(ctx, q.SeasonID)
	if err != nil {
		return nil, err
	}
	if seasonID == 0 {
		return []Job{}, nil
	}
	q.SeasonID = seasonID
	q.Search = strings.TrimSpace(q.Search)
	return s.store.ListJobs(ctx, q)
}

// GetJob returns a job by id
func (s *Service) GetJob(ctx context.Context, id int64) (Job, error) {
	return s.store.GetJob(ctx, id)
}

// CreateJob validates the request and adds a job. Without season id in the request
// the job is added to the active season.
func (s *Service) CreateJob(ctx context.Context, req JobRequest) (Job, error) {
	job, err := req.Validate(s.now())
	if err != nil {
		return Job{}, err
	}

	switch job.SeasonID {
	case 0:
		active, err := s.store.ActiveSeason(ctx)
		if errors.Is(err, ErrNotFound) {
			return Job{}, ErrNoActiveSeason
		}
		if err != nil {
			return Job{}, err
		}
		job.SeasonID = active.ID
	default:
		if _, err := s.store.GetSeason(ctx, job.SeasonID); err != nil {
			return Job{}, err
		}
	}

	created, err := s.store.CreateJob(ctx, job)
	if err != nil {
		return Job{}, err
	}
	log.Printf("[INFO] job %d added, %s at %s", created.ID, created.Role, created.CompanyName)
	return created, nil
}

// UpdateJob replaces job fields with the request. Blank season id keeps the current season,
// blank status keeps the current status.
func (s *Service) UpdateJob(ctx context.Context, id int64, req JobRequest) (Job, error) {
	current, err := s.store.GetJob(ctx, id)
	if err != nil {
		return Job{}, err
	}
	job, err := req.Validate(s.now())
	if err != nil {
		return Job{}, err
	}
	if strings.TrimSpace(req.Status) == "" {
		job.Status = current.Status // may be a label outside of the vocabulary
	}
	if strings.TrimSpace(req.AppliedDate) == "" {
		job.AppliedDate = current.AppliedDate
	}
	if job.SeasonID == 0 {
		job.SeasonID = current.SeasonID
	}
	if job.SeasonID != current.SeasonID {
		if _, err := s.store.GetSeason(ctx, job.SeasonID); err != nil {
			return Job{}, err
		}
	}
	job.ID = id

	updated, err := s.store.UpdateJob(ctx, job)
	if err != nil {
		return Job{}, err
	}
	s.statusChanged(ctx, current, updated)
	return updated, nil
}

// UpdateJobStatus moves a job to another status. The status must be one of the vocabulary labels,
// the job is left intact otherwise.
func (s *Service) UpdateJobStatus(ctx context.Context, id int64, status string) (Job, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return Job{}, err
	}
	current, err := s.store.GetJob(ctx, id)
	if err != nil {
		return Job{}, err
	}
	updated, err := s.store.UpdateJobStatus(ctx, id, st, s.now())
	if err != nil {
		return Job{}, err
	}
	log.Printf("[INFO] job %d status %q -> %q", id, current.Status, updated.Status)
	s.statusChanged(ctx, current, updated)
	return updated, nil
}

// DeleteJob removes a job
func (s *Service) DeleteJob(ctx context.Context, id int64) error {
	if err := s.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	log.Printf("[INFO] job %d deleted", id)
	return nil
}

// Overview returns the season with its jobs and statistics, seasonID 0 selects the active season.
// Without an active season the overview is empty.
func (s *Service) Overview(ctx context.Context, seasonID int64) (Overview, error) {
	res := Overview{Jobs: []Job{}, Breakdown: CountByStatus(nil)}
	if seasonID == 0 {
		active, err := s.ActiveSeason(ctx)
		if err != nil {
			return Overview{}, err
		}
		if active == nil {
			return res, nil
		}
		res.Season = active
	} else {
		season, err := s.store.GetSeason(ctx, seasonID)
		if err != nil {
			return Overview{}, err
		}
		res.Season = &season
	}

	jobs, err := s.store.ListJobs(ctx, JobQuery{SeasonID: res.Season.ID})
	if err != nil {
		return Overview{}, err
	}
	res.Jobs = jobs
	res.Stats = ComputeStats(jobs)
	res.Breakdown = CountByStatus(jobs)
	if res.Stats.Unrecognized > 0 {
		log.Printf("[WARN] season %d has %d jobs with unrecognized status", res.Season.ID, res.Stats.Unrecognized)
	}
	return res, nil
}

// resolveSeason returns seasonID itself or the active season id for 0, 0 if nothing is active.
// Unknown explicit season is reported as ErrNotFound.
func (s *Service) resolveSeason(ctx context.Context, seasonID int64) (int64, error) {
	if seasonID != 0 {
		if _, err := s.store.GetSeason(ctx, seasonID); err != nil {
			return 0, err
		}
		return seasonID, nil
	}
	active, err := s.ActiveSeason(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get active season: %w", err)
	}
	if active == nil {
		return 0, nil
	}
	return active.ID, nil
}

func (s *Service) statusChanged(ctx context.Context, before, after Job) {
	if s.events == nil || before.Status == after.Status {
		return
	}
	s.events.OnStatusChange(ctx, StatusChange{Job: after, From: before.Status, To: after.Status, At: after.LastUpdated})
}
