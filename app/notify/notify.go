// Package notify delivers tracker notifications via email and webhooks
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
	"github.com/go-pkgz/syncs"

	"github.com/umputun/jobtrack/app/tracker"
)

//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier

// Notifier delivers text to a destination, implemented by go-pkgz/notify senders
type Notifier interface {
	fmt.Stringer
	Schema() string
	Send(ctx context.Context, destination, text string) error
}

// DefaultStatuses are statuses triggering a notification unless configured otherwise
var DefaultStatuses = []string{"Phone Screen", "Technical Interview", "Onsite Interview", "Final Interview", "Offer"}

// Service sends messages to all configured destinations
type Service struct {
	destinations []Notifier
	fromEmail    string
	toEmail      []string
	webhooks     []string
	statuses     map[string]bool
	tmpl         *template.Template
	timeout      time.Duration
}

// Params defines what and how to notify about
type Params struct {
	Statuses       []string      // job moved into one of these statuses triggers a notification
	StatusTemplate string        // optional template file for status change messages
	Timeout        time.Duration // max time for a single delivery
}

// SendersParams defines destinations
type SendersParams struct {
	SMTPParams     notify.SMTPParams
	FromEmail      string
	ToEmails       []string
	WebhookURLs    []string
	WebhookHeaders []string // "Name:value" pairs
}

// NewService makes notification service, returns nil if no destinations configured
func NewService(p Params, sp SendersParams) *Service {
	res := Service{fromEmail: sp.FromEmail, toEmail: sp.ToEmails, webhooks: sp.WebhookURLs, timeout: p.Timeout}
	if len(sp.ToEmails) > 0 {
		res.destinations = append(res.destinations, notify.NewEmail(sp.SMTPParams))
	}
	if len(sp.WebhookURLs) > 0 {
		res.destinations = append(res.destinations,
			notify.NewWebhook(notify.WebhookParams{Timeout: p.Timeout, Headers: sp.WebhookHeaders}))
	}
	if len(res.destinations) == 0 {
		return nil
	}

	statuses := p.Statuses
	if len(statuses) == 0 {
		statuses = DefaultStatuses
	}
	res.statuses = make(map[string]bool, len(statuses))
	for _, st := range statuses {
		res.statuses[strings.ToLower(strings.TrimSpace(st))] = true
	}
	if res.timeout == 0 {
		res.timeout = 30 * time.Second
	}
	res.tmpl = res.loadTemplate(p.StatusTemplate)
	return &res
}

// OnStatusChange sends a message if the job moved to a watched status. Delivery errors are logged.
func (s *Service) OnStatusChange(ctx context.Context, ev tracker.StatusChange) {
	if s == nil || !s.IsWatched(ev.To) {
		return
	}
	msg, err := s.MakeStatusHTML(ev)
	if err != nil {
		log.Printf("[WARN] can't make status message for job %d, %v", ev.Job.ID, err)
		return
	}
	subj := fmt.Sprintf("%s at %s: %s", ev.Job.Role, ev.Job.CompanyName, ev.To)
	if err := s.Send(ctx, subj, msg); err != nil {
		log.Printf("[WARN] can't send status notification for job %d, %v", ev.Job.ID, err)
		return
	}
	log.Printf("[DEBUG] status notification for job %d sent", ev.Job.ID)
}

// String returns configured destinations, i.e. "email to a@example.com, webhook x2"
func (s *Service) String() string {
	var res []string
	if len(s.toEmail) > 0 {
		res = append(res, "email to "+strings.Join(s.toEmail, ","))
	}
	if len(s.webhooks) > 0 {
		res = append(res, fmt.Sprintf("webhook x%d", len(s.webhooks)))
	}
	return strings.Join(res, ", ")
}

// IsWatched reports whether moving into the status triggers a notification
func (s *Service) IsWatched(st tracker.Status) bool {
	return s.statuses[strings.ToLower(st.String())]
}

// MakeStatusHTML renders status change message
func (s *Service) MakeStatusHTML(ev tracker.StatusChange) (string, error) {
	data := struct {
		Job  tracker.Job
		From string
		To   string
		TS   time.Time
		Host string
	}{Job: ev.Job, From: ev.From.String(), To: ev.To.String(), TS: ev.At, Host: os.Getenv("MHOST")}

	buf := bytes.Buffer{}
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to apply template: %w", err)
	}
	return buf.String(), nil
}

// Send delivers the message to all destinations concurrently
func (s *Service) Send(ctx context.Context, subj, text string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	gr := syncs.NewErrSizedGroup(4)
	for _, dest := range s.destinations {
		for _, addr := range s.addresses(dest.Schema(), subj) {
			gr.Go(func() error {
				if err := dest.Send(ctx, addr, text); err != nil {
					return fmt.Errorf("%s: %w", dest.Schema(), err)
				}
				return nil
			})
		}
	}
	return gr.Wait()
}

// addresses returns destination strings for the notifier schema
func (s *Service) addresses(schema, subj string) []string {
	switch schema {
	case "mailto":
		return []string{makeEmailDestination(subj, s.fromEmail, s.toEmail)}
	default:
		return s.webhooks
	}
}

// makeEmailDestination makes mailto destination from subject, from and to emails
func makeEmailDestination(subj, from string, to []string) string {
	v := url.Values{}
	v.Set("from", from)
	v.Set("subject", subj)
	return fmt.Sprintf("mailto:%s?%s", strings.Join(to, ","), v.Encode())
}

func (s *Service) loadTemplate(fname string) *template.Template {
	if fname != "" {
		data, err := os.ReadFile(fname) //nolint:gosec // template file from config
		if err == nil {
			if t, err := template.New("status").Parse(string(data)); err == nil {
				return t
			}
		}
		log.Printf("[WARN] can't use status template %s, default template used", fname)
	}
	return template.Must(template.New("status").Parse(defaultStatusTemplate))
}

const defaultStatusTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		<style type="text/css">
			body { font-family: "Arial"; font-size: 1.0em; }
			ul { margin-top: -0.5em; margin-left: -0.5em; }
			.bold { color: #285088; font-weight: 900; }
		</style>
	</head>
	<body>
		<p>Application moved to <span class="bold">{{.To}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Role: <span class="bold">{{.Job.Role}}</span></li>
			<li>Company: <span class="bold">{{.Job.CompanyName}}</span></li>
			{{- if .From}}
			<li>Previous status: {{.From}}</li>
			{{- end}}
			{{- if .Job.SeasonName}}
			<li>Season: {{.Job.SeasonName}}</li>
			{{- end}}
		</ul>
	</body>
</html>
`
