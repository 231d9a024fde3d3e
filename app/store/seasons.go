package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/umputun/jobtrack/app/tracker"
)

type seasonRow struct {
	ID        int64         `db:"id"`
	Name      string        `db:"name"`
	StartDate int64         `db:"start_date"`
	EndDate   sql.NullInt64 `db:"end_date"`
	IsActive  bool          `db:"is_active"`
	CreatedAt int64         `db:"created_at"`
}

func (r seasonRow) season() tracker.Season {
	res := tracker.Season{
		ID:        r.ID,
		Name:      r.Name,
		StartDate: timeFromUnix(r.StartDate),
		IsActive:  r.IsActive,
		CreatedAt: timeFromUnix(r.CreatedAt),
	}
	if r.EndDate.Valid && !r.IsActive {
		end := time.Unix(r.EndDate.Int64, 0)
		res.EndDate = &end
	}
	return res
}

const seasonColumns = `id, name, start_date, end_date, is_active, created_at`

// ListSeasons returns all seasons, the newest first
func (s *SQLite) ListSeasons(ctx context.Context) ([]tracker.Season, error) {
	var rows []seasonRow
	q := `SELECT ` + seasonColumns + ` FROM seasons ORDER BY start_date DESC, id DESC`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("failed to query seasons: %w", err)
	}
	res := make([]tracker.Season, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.season())
	}
	return res, nil
}

// GetSeason returns a season by id
func (s *SQLite) GetSeason(ctx context.Context, id int64) (tracker.Season, error) {
	return getSeason(ctx, s.db, `SELECT `+seasonColumns+` FROM seasons WHERE id = ?`, id)
}

// ActiveSeason returns the active season, error of tracker.ErrNotFound kind if there is none
func (s *SQLite) ActiveSeason(ctx context.Context) (tracker.Season, error) {
	return getSeason(ctx, s.db, `SELECT `+seasonColumns+` FROM seasons WHERE is_active = 1`)
}

// CreateSeason ends the currently active season, if any, and adds the new active one
func (s *SQLite) CreateSeason(ctx context.Context, name string, start time.Time) (tracker.Season, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE seasons SET is_active = 0, end_date = ? WHERE is_active = 1`,
			start.Unix()); err != nil {
			return fmt.Errorf("failed to end active season: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO seasons (name, start_date, is_active, created_at) VALUES (?, ?, 1, ?)`,
			name, start.Unix(), start.Unix())
		if isUniqueViolation(err) {
			return tracker.Conflictf("season %q already exists", name)
		}
		if err != nil {
			return fmt.Errorf("failed to insert season: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get season id: %w", err)
		}
		return nil
	})
	if err != nil {
		return tracker.Season{}, err
	}
	return s.GetSeason(ctx, id)
}

// EndActiveSeason marks the active season ended at the given time
func (s *SQLite) EndActiveSeason(ctx context.Context, at time.Time) (tracker.Season, error) {
	var res tracker.Season
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		active, err := getSeason(ctx, tx, `SELECT `+seasonColumns+` FROM seasons WHERE is_active = 1`)
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `UPDATE seasons SET is_active = 0, end_date = ? WHERE id = ? AND is_active = 1`,
			at.Unix(), active.ID); err != nil {
			return fmt.Errorf("failed to end season %d: %w", active.ID, err)
		}
		res, err = getSeason(ctx, tx, `SELECT `+seasonColumns+` FROM seasons WHERE id = ?`, active.ID)
		return err
	})
	return res, err
}

func getSeason(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (tracker.Season, error) {
	var row seasonRow
	err := sqlx.GetContext(ctx, q, &row, query, args...)
	if notFound(err) {
		if len(args) == 0 {
			return tracker.Season{}, tracker.NotFoundf("no active season found")
		}
		return tracker.Season{}, tracker.NotFoundf("season %v not found", args[0])
	}
	if err != nil {
		return tracker.Season{}, fmt.Errorf("failed to get season: %w", err)
	}
	return row.season(), nil
}
