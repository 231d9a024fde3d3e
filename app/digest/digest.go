// Package digest sends a periodic summary of the active season
package digest

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"

	"github.com/umputun/jobtrack/app/tracker"
)

//go:generate moq -out mocks/source.go -pkg mocks -skip-ensure -fmt goimports . Source
//go:generate moq -out mocks/sender.go -pkg mocks -skip-ensure -fmt goimports . Sender

// Source provides season overview
type Source interface {
	Overview(ctx context.Context, seasonID int64) (tracker.Overview, error)
}

// Sender delivers the digest
type Sender interface {
	Send(ctx context.Context, subj, text string) error
}

// Digest composes and sends summaries on schedule
type Digest struct {
	source   Source
	sender   Sender
	schedule cron.Schedule
	stale    time.Duration
	now      func() time.Time
}

// New makes Digest for a standard cron spec, i.e. "0 9 * * 1".
// Jobs without updates longer than stale are listed as waiting for follow-up.
func New(source Source, sender Sender, spec string, stale time.Duration) (*Digest, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("can't parse digest schedule %q: %w", spec, err)
	}
	return &Digest{source: source, sender: sender, schedule: sched, stale: stale, now: time.Now}, nil
}

// Run sends digests on schedule until ctx is canceled
func (d *Digest) Run(ctx context.Context) {
	c := cron.New()
	c.Schedule(d.schedule, cron.FuncJob(func() {
		if err := d.Send(ctx); err != nil {
			log.Printf("[WARN] can't send digest, %v", err)
		}
	}))
	c.Start()
	log.Printf("[INFO] digest scheduled, next at %s", d.schedule.Next(d.now()).Format(time.RFC3339))
	<-ctx.Done()
	<-c.Stop().Done()
	log.Printf("[DEBUG] digest stopped")
}

// Send makes a digest for the active season and delivers it. Nothing is sent without an active season.
func (d *Digest) Send(ctx context.Context) error {
	ov, err := d.source.Overview(ctx, 0)
	if err != nil {
		return fmt.Errorf("can't get overview: %w", err)
	}
	if ov.Season == nil {
		log.Printf("[DEBUG] no active season, digest skipped")
		return nil
	}
	text, err := d.Message(ov)
	if err != nil {
		return err
	}
	subj := fmt.Sprintf("Job search digest: %s", ov.Season.Name)
	if err := d.sender.Send(ctx, subj, text); err != nil {
		return fmt.Errorf("can't deliver digest: %w", err)
	}
	log.Printf("[INFO] digest for season %q sent", ov.Season.Name)
	return nil
}

// Message renders the digest text
func (d *Digest) Message(ov tracker.Overview) (string, error) {
	now := d.now()
	data := struct {
		Season      tracker.Season
		Days        int
		Stats       tracker.Stats
		SuccessRate string
		Breakdown   []tracker.StatusCount
		Stale       []tracker.Job
		StaleDays   int
	}{
		Stats:       ov.Stats,
		SuccessRate: ov.Stats.SuccessRateString(),
		StaleDays:   int(d.stale.Hours() / 24),
	}
	if ov.Season != nil {
		data.Season = *ov.Season
		data.Days = ov.Season.DurationDays(now)
	}
	for _, c := range ov.Breakdown {
		if c.Count > 0 {
			data.Breakdown = append(data.Breakdown, c)
		}
	}
	if d.stale > 0 {
		for _, j := range ov.Jobs {
			if isOpen(j.Status) && now.Sub(j.LastUpdated) > d.stale {
				data.Stale = append(data.Stale, j)
			}
		}
	}

	buf := bytes.Buffer{}
	if err := digestTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to apply digest template: %w", err)
	}
	return buf.String(), nil
}

// isOpen reports whether the job still waits for an outcome
func isOpen(st tracker.Status) bool {
	switch st {
	case tracker.StatusOffer, tracker.StatusRejected, tracker.StatusWithdrawn:
		return false
	}
	return true
}

var digestTmpl = template.Must(template.New("digest").Parse(`Season "{{.Season.Name}}", day {{.Days}}

Applications: {{.Stats.Total}}
Active: {{.Stats.Active}}
Interviews: {{.Stats.Interviews}}
Offers: {{.Stats.Offers}}
Rejected: {{.Stats.Rejected}}
Success rate: {{.SuccessRate}}
{{- if .Breakdown}}

By status:
{{- range .Breakdown}}
  {{.Status}}: {{.Count}}
{{- end}}
{{- end}}
{{- if .Stale}}

No updates for {{.StaleDays}}+ days:
{{- range .Stale}}
  {{.Role}} at {{.CompanyName}} ({{.Status}})
{{- end}}
{{- end}}
`))
