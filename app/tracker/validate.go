package tracker

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxSeasonNameLen = 100
	maxJobFieldLen   = 200
)

// dateLayouts are accepted formats of applied date, tried in order
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02/01/2006",
}

// ParseDate parses a date in one of supported layouts. Blank input yields zero time.
func ParseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, Validationf("invalid date %q, expected YYYY-MM-DD", v)
}

// ValidateSeasonName trims the name and checks it is usable
func ValidateSeasonName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", Validationf("season name is required")
	case utf8.RuneCountInString(name) > maxSeasonNameLen:
		return "", Validationf("season name must be at most %d characters", maxSeasonNameLen)
	case strings.ContainsAny(name, `<>"'`):
		return "", Validationf("season name contains invalid characters")
	}
	return name, nil
}

// validateURL accepts blank values and absolute urls with scheme and host
func validateURL(field, v string) error {
	if v == "" {
		return nil
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Validationf("%s must be a valid URL", field)
	}
	return nil
}

// normalize trims all text fields in place
func (r *JobRequest) normalize() {
	for _, f := range []*string{&r.Role, &r.CompanyName, &r.CompanyWebsite, &r.Source,
		&r.AppliedDate, &r.JobDescription, &r.ResumeSent, &r.Status} {
		*f = strings.TrimSpace(*f)
	}
}

// Validate checks required fields and formats and converts the request into a Job.
// Status defaults to Applied and applied date to now, the season is copied as-is.
func (r JobRequest) Validate(now time.Time) (Job, error) {
	r.normalize()
	switch {
	case r.Role == "":
		return Job{}, Validationf("role is required")
	case r.CompanyName == "":
		return Job{}, Validationf("company name is required")
	case utf8.RuneCountInString(r.Role) > maxJobFieldLen:
		return Job{}, Validationf("role must be at most %d characters", maxJobFieldLen)
	case utf8.RuneCountInString(r.CompanyName) > maxJobFieldLen:
		return Job{}, Validationf("company name must be at most %d characters", maxJobFieldLen)
	}
	if err := validateURL("company website", r.CompanyWebsite); err != nil {
		return Job{}, err
	}

	status := StatusApplied
	if r.Status != "" {
		st, err := ParseStatus(r.Status)
		if err != nil {
			return Job{}, err
		}
		status = st
	}

	applied, err := ParseDate(r.AppliedDate)
	if err != nil {
		return Job{}, err
	}
	if applied.IsZero() {
		applied = now
	}

	return Job{
		SeasonID:       r.SeasonID,
		Role:           r.Role,
		CompanyName:    r.CompanyName,
		CompanyWebsite: r.CompanyWebsite,
		Source:         r.Source,
		AppliedDate:    applied,
		JobDescription: r.JobDescription,
		ResumeSent:     r.ResumeSent,
		Status:         status,
		LastUpdated:    now,
	}, nil
}
