// Package seed loads seasons and jobs from a yaml file into an empty store
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/umputun/jobtrack/app/tracker"
)

//go:generate go run ./internal/schema seed-schema.json

// File is a seed file, seasons are imported in order
type File struct {
	Seasons []Season `yaml:"seasons" json:"seasons" jsonschema:"required,minItems=1,description=seasons in chronological order"`
}

// Season with its jobs. Only the last season may be active.
type Season struct {
	Name    string `yaml:"name" json:"name" jsonschema:"required,maxLength=100"`
	Started string `yaml:"started" json:"started" jsonschema:"required,description=start date like 2025-01-31"`
	Ended   string `yaml:"ended,omitempty" json:"ended,omitempty" jsonschema:"description=end date for finished seasons"`
	Active  bool   `yaml:"active,omitempty" json:"active,omitempty"`
	Jobs    []Job  `yaml:"jobs,omitempty" json:"jobs,omitempty"`
}

// Job is a single application
type Job struct {
	Role        string `yaml:"role" json:"role" jsonschema:"required,maxLength=200"`
	Company     string `yaml:"company" json:"company" jsonschema:"required,maxLength=200"`
	Website     string `yaml:"website,omitempty" json:"website,omitempty" jsonschema:"format=uri"`
	Source      string `yaml:"source,omitempty" json:"source,omitempty"`
	Applied     string `yaml:"applied,omitempty" json:"applied,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Resume      string `yaml:"resume,omitempty" json:"resume,omitempty"`
	Status      string `yaml:"status,omitempty" json:"status,omitempty" jsonschema:"enum=Applied,enum=Phone Screen,enum=Technical Interview,enum=Onsite Interview,enum=Final Interview,enum=Offer,enum=Rejected,enum=Withdrawn,enum=On Hold"` //nolint:lll // enum list
}

// Store is a subset of tracker.Store used for import
type Store interface {
	ListSeasons(ctx context.Context) ([]tracker.Season, error)
	CreateSeason(ctx context.Context, name string, start time.Time) (tracker.Season, error)
	EndActiveSeason(ctx context.Context, at time.Time) (tracker.Season, error)
	CreateJob(ctx context.Context, job tracker.Job) (tracker.Job, error)
}

// Result reports what was imported
type Result struct {
	Seasons int
	Jobs    int
	Skipped bool // store was not empty
}

// Load reads and validates a seed file
func Load(fname string) (*File, error) {
	data, err := os.ReadFile(fname) //nolint:gosec // seed file from command line
	if err != nil {
		return nil, fmt.Errorf("can't read seed file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes and validates seed yaml, unknown fields are rejected
func Parse(r io.Reader) (*File, error) {
	var res File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&res); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("can't parse seed yaml: %w", err)
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return &res, nil
}

// Validate checks the file content can be imported as-is
func (f *File) Validate() error {
	if len(f.Seasons) == 0 {
		return errors.New("no seasons defined")
	}
	names := map[string]bool{}
	for i, s := range f.Seasons {
		name, err := tracker.ValidateSeasonName(s.Name)
		if err != nil {
			return fmt.Errorf("season #%d: %w", i+1, err)
		}
		if names[name] {
			return fmt.Errorf("season #%d: duplicate name %q", i+1, name)
		}
		names[name] = true
		if s.Active && i != len(f.Seasons)-1 {
			return fmt.Errorf("season %q: only the last season can be active", name)
		}
		if s.Active && s.Ended != "" {
			return fmt.Errorf("season %q: active season can't have end date", name)
		}
		if _, err := parseRequiredDate(s.Started); err != nil {
			return fmt.Errorf("season %q: started: %w", name, err)
		}
		if _, err := tracker.ParseDate(s.Ended); err != nil {
			return fmt.Errorf("season %q: ended: %w", name, err)
		}
		for j, job := range s.Jobs {
			if err := job.validate(); err != nil {
				return fmt.Errorf("season %q, job #%d: %w", name, j+1, err)
			}
		}
	}
	return nil
}

// Apply imports the file into an empty store, does nothing if the store has seasons
func Apply(ctx context.Context, store Store, f *File) (Result, error) {
	existing, err := store.ListSeasons(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("can't list seasons: %w", err)
	}
	if len(existing) > 0 {
		log.Printf("[INFO] store has %d seasons, seed skipped", len(existing))
		return Result{Skipped: true}, nil
	}

	res := Result{}
	for _, s := range f.Seasons {
		started, err := parseRequiredDate(s.Started)
		if err != nil {
			return res, fmt.Errorf("season %q: %w", s.Name, err)
		}
		season, err := store.CreateSeason(ctx, strings.TrimSpace(s.Name), started)
		if err != nil {
			return res, fmt.Errorf("can't create season %q: %w", s.Name, err)
		}
		res.Seasons++

		for _, j := range s.Jobs {
			job, err := j.job(season.ID, started)
			if err != nil {
				return res, fmt.Errorf("season %q: %w", s.Name, err)
			}
			if _, err := store.CreateJob(ctx, job); err != nil {
				return res, fmt.Errorf("can't create job %q at %q: %w", j.Role, j.Company, err)
			}
			res.Jobs++
		}

		if s.Active {
			continue
		}
		ended, err := tracker.ParseDate(s.Ended)
		if err != nil {
			return res, fmt.Errorf("season %q: %w", s.Name, err)
		}
		if ended.IsZero() {
			ended = started
		}
		if _, err := store.EndActiveSeason(ctx, ended); err != nil {
			return res, fmt.Errorf("can't end season %q: %w", s.Name, err)
		}
	}
	log.Printf("[INFO] seeded %d seasons with %d jobs", res.Seasons, res.Jobs)
	return res, nil
}

func (j Job) validate() error {
	_, err := j.job(0, time.Now())
	return err
}

// job converts seed job to tracker.Job, applied date defaults to season start
func (j Job) job(seasonID int64, seasonStart time.Time) (tracker.Job, error) {
	req := tracker.JobRequest{SeasonID: seasonID, Role: j.Role, CompanyName: j.Company, CompanyWebsite: j.Website,
		Source: j.Source, AppliedDate: j.Applied, JobDescription: j.Description, ResumeSent: j.Resume, Status: j.Status}
	res, err := req.Validate(seasonStart)
	if err != nil {
		return tracker.Job{}, err
	}
	res.LastUpdated = res.AppliedDate
	return res, nil
}

func parseRequiredDate(v string) (time.Time, error) {
	t, err := tracker.ParseDate(v)
	if err != nil {
		return time.Time{}, err
	}
	if t.IsZero() {
		return time.Time{}, errors.New("date is required")
	}
	return t, nil
}
