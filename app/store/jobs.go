package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/umputun/jobtrack/app/tracker"
)

type jobRow struct {
	ID             int64          `db:"id"`
	SeasonID       int64          `db:"season_id"`
	SeasonName     string         `db:"season_name"`
	Role           string         `db:"role"`
	CompanyName    string         `db:"company_name"`
	CompanyWebsite sql.NullString `db:"company_website"`
	Source         sql.NullString `db:"source"`
	AppliedDate    int64          `db:"applied_date"`
	JobDescription sql.NullString `db:"job_description"`
	ResumeSent     sql.NullString `db:"resume_sent"`
	Status         string         `db:"current_status"`
	LastUpdated    int64          `db:"last_updated"`
}

func (r jobRow) job() tracker.Job {
	return tracker.Job{
		ID:             r.ID,
		SeasonID:       r.SeasonID,
		SeasonName:     r.SeasonName,
		Role:           r.Role,
		CompanyName:    r.CompanyName,
		CompanyWebsite: r.CompanyWebsite.String,
		Source:         r.Source.String,
		AppliedDate:    timeFromUnix(r.AppliedDate),
		JobDescription: r.JobDescription.String,
		ResumeSent:     r.ResumeSent.String,
		Status:         tracker.StatusFromLabel(r.Status),
		LastUpdated:    timeFromUnix(r.LastUpdated),
	}
}

func newJobRow(j tracker.Job) jobRow {
	return jobRow{
		ID:             j.ID,
		SeasonID:       j.SeasonID,
		Role:           j.Role,
		CompanyName:    j.CompanyName,
		CompanyWebsite: nullString(j.CompanyWebsite),
		Source:         nullString(j.Source),
		AppliedDate:    unixOrZero(j.AppliedDate),
		JobDescription: nullString(j.JobDescription),
		ResumeSent:     nullString(j.ResumeSent),
		Status:         j.Status.String(),
		LastUpdated:    unixOrZero(j.LastUpdated),
	}
}

const selectJobs = `SELECT j.id, j.season_id, s.name AS season_name, j.role, j.company_name, j.company_website,
	j.source, j.applied_date, j.job_description, j.resume_sent, j.current_status, j.last_updated
	FROM jobs j JOIN seasons s ON s.id = j.season_id`

// likeEscaper escapes LIKE wildcards, used with ESCAPE '\'
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListJobs returns jobs matching the query, the most recently applied first
func (s *SQLite) ListJobs(ctx context.Context, q tracker.JobQuery) ([]tracker.Job, error) {
	where, args := []string{}, []any{}
	if q.SeasonID != 0 {
		where = append(where, "j.season_id = ?")
		args = append(args, q.SeasonID)
	}
	if !q.Status.IsZero() {
		where = append(where, "j.current_status = ?")
		args = append(args, q.Status.String())
	}
	if q.Search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(q.Search)) + "%"
		where = append(where, `(LOWER(j.role) LIKE ? ESCAPE '\' OR LOWER(j.company_name) LIKE ? ESCAPE '\' `+
			`OR LOWER(COALESCE(j.source, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	query := selectJobs
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY j.applied_date DESC, j.id DESC"

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	res := make([]tracker.Job, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.job())
	}
	return res, nil
}

// GetJob returns a job by id
func (s *SQLite) GetJob(ctx context.Context, id int64) (tracker.Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, selectJobs+" WHERE j.id = ?", id)
	if notFound(err) {
		return tracker.Job{}, tracker.NotFoundf("job %d not found", id)
	}
	if err != nil {
		return tracker.Job{}, fmt.Errorf("failed to get job %d: %w", id, err)
	}
	return row.job(), nil
}

// CreateJob inserts a job, the season must exist
func (s *SQLite) CreateJob(ctx context.Context, job tracker.Job) (tracker.Job, error) {
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO jobs
		(season_id, role, company_name, company_website, source, applied_date, job_description, resume_sent,
		current_status, last_updated)
		VALUES (:season_id, :role, :company_name, :company_website, :source, :applied_date, :job_description,
		:resume_sent, :current_status, :last_updated)`, newJobRow(job))
	if isForeignKeyViolation(err) {
		return tracker.Job{}, tracker.NotFoundf("season %d not found", job.SeasonID)
	}
	if err != nil {
		return tracker.Job{}, fmt.Errorf("failed to insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return tracker.Job{}, fmt.Errorf("failed to get job id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// UpdateJob replaces all job fields
func (s *SQLite) UpdateJob(ctx context.Context, job tracker.Job) (tracker.Job, error) {
	res, err := s.db.NamedExecContext(ctx, `UPDATE jobs SET
		season_id = :season_id, role = :role, company_name = :company_name, company_website = :company_website,
		source = :source, applied_date = :applied_date, job_description = :job_description,
		resume_sent = :resume_sent, current_status = :current_status, last_updated = :last_updated
		WHERE id = :id`, newJobRow(job))
	if isForeignKeyViolation(err) {
		return tracker.Job{}, tracker.NotFoundf("season %d not found", job.SeasonID)
	}
	if err != nil {
		return tracker.Job{}, fmt.Errorf("failed to update job %d: %w", job.ID, err)
	}
	if err := checkAffected(res, job.ID); err != nil {
		return tracker.Job{}, err
	}
	return s.GetJob(ctx, job.ID)
}

// UpdateJobStatus sets job status and last update time
func (s *SQLite) UpdateJobStatus(ctx context.Context, id int64, status tracker.Status, at time.Time) (tracker.Job, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET current_status = ?, last_updated = ? WHERE id = ?`,
		status.String(), at.Unix(), id)
	if err != nil {
		return tracker.Job{}, fmt.Errorf("failed to update job %d status: %w", id, err)
	}
	if err := checkAffected(res, id); err != nil {
		return tracker.Job{}, err
	}
	return s.GetJob(ctx, id)
}

// DeleteJob removes a job by id
func (s *SQLite) DeleteJob(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	return checkAffected(res, id)
}

func checkAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return tracker.NotFoundf("job %d not found", id)
	}
	return nil
}
