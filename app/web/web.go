// Package web implements the dashboard and REST API of jobtrack
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/jobtrack/app/tracker"
)

//go:embed templates/*.html templates/partials/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Server represents the web server
type Server struct {
	tracker        Tracker
	templates      map[string]*template.Template
	baseURL        string // base URL path for reverse proxy (e.g., /jobtrack), empty for root
	version        string
	passwordHash   string                      // bcrypt hash for auth, empty to disable
	loginTTL       time.Duration               // session TTL
	csrfProtection *http.CrossOriginProtection // csrf protection for state-changing endpoints
	sessions       map[string]session          // active user sessions by token
	sessionsMu     sync.Mutex                  // protects sessions map
	loginLimiter   *limiter.Limiter            // rate limiter for login attempts
}

// Tracker defines tracker operations used by the server
type Tracker interface {
	ListSeasons(ctx context.Context) ([]tracker.Season, error)
	GetSeason(ctx context.Context, id int64) (tracker.Season, error)
	ActiveSeason(ctx context.Context) (*tracker.Season, error)
	CreateSeason(ctx context.Context, name string) (tracker.Season, error)
	EndActiveSeason(ctx context.Context) (tracker.Season, error)
	ListJobs(ctx context.Context, seasonID int64) ([]tracker.Job, error)
	FindJobs(ctx context.Context, q tracker.JobQuery) ([]tracker.Job, error)
	SearchJobs(ctx context.Context, seasonID int64, query string) ([]tracker.Job, error)
	FilterJobs(ctx context.Context, seasonID int64, status string) ([]tracker.Job, error)
	GetJob(ctx context.Context, id int64) (tracker.Job, error)
	CreateJob(ctx context.Context, req tracker.JobRequest) (tracker.Job, error)
	UpdateJob(ctx context.Context, id int64, req tracker.JobRequest) (tracker.Job, error)
	UpdateJobStatus(ctx context.Context, id int64, status string) (tracker.Job, error)
	DeleteJob(ctx context.Context, id int64) error
	Overview(ctx context.Context, seasonID int64) (tracker.Overview, error)
}

// Config holds server configuration
type Config struct {
	Tracker      Tracker
	BaseURL      string // base URL path for reverse proxy (e.g., /jobtrack), empty for root
	Version      string
	PasswordHash string        // bcrypt hash for auth (empty to disable)
	LoginTTL     time.Duration // session TTL, defaults to 24h if not set
}

// TemplateData holds data for templates
type TemplateData struct {
	BaseURL      string
	Version      string
	CurrentYear  int
	AuthEnabled  bool
	Seasons      []tracker.Season
	Season       *tracker.Season // selected season, nil if nothing is active
	Jobs         []tracker.Job
	Stats        tracker.Stats
	Breakdown    []tracker.StatusCount
	Statuses     []string
	Search       string
	StatusFilter string
	Job          tracker.Job // for job modal
	Message      string      // for flash messages
	IsError      bool        // flash message is an error
	IsOOB        bool        // for out-of-band stats updates
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("web server initialization failed: tracker is required")
	}

	loginTTL := cfg.LoginTTL
	if loginTTL == 0 {
		loginTTL = 24 * time.Hour
	}

	s := &Server{
		tracker:        cfg.Tracker,
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		version:        cfg.Version,
		passwordHash:   cfg.PasswordHash,
		loginTTL:       loginTTL,
		csrfProtection: http.NewCrossOriginProtection(),
		sessions:       make(map[string]session),
	}

	// a few login attempts per second from the same address
	s.loginLimiter = tollbooth.NewLimiter(1, nil).
		SetIPLookup(limiter.IPLookup{Name: "RemoteAddr", IndexFromRight: 0}).
		SetBurst(5).
		SetMessage("too many login attempts")

	templates, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w", err)
	}
	s.templates = templates
	return s, nil
}

// Run starts the web server and blocks until ctx is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// handler returns the http.Handler with base URL wrapping applied
func (s *Server) handler() http.Handler {
	routes := s.routes()
	if s.baseURL == "" {
		return routes
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.baseURL, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.baseURL+"/", http.StatusMovedPermanently)
	})
	mux.Handle(s.baseURL+"/", http.StripPrefix(s.baseURL, routes))
	return mux
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("jobtrack", "umputun", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(256*1024), // job descriptions can be long
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	// must be set before any routes are defined
	if s.passwordHash != "" {
		log.Printf("[INFO] authentication enabled")
		router.Use(s.authMiddleware)
		router.HandleFunc("GET /login", s.handleLoginForm)
		router.With(s.csrfProtection.Handler, tollbooth.HTTPMiddleware(s.loginLimiter)).HandleFunc("POST /login", s.handleLogin)
		router.HandleFunc("GET /logout", s.handleLogout)
	}

	router.HandleFunc("GET /", s.handleDashboard)

	// HTMX endpoints of the dashboard
	router.Mount("/web").Route(func(web *routegroup.Bundle) {
		web.Use(rest.NoCache)
		web.Use(s.csrfProtection.Handler)
		web.HandleFunc("GET /jobs", s.handleJobsPartial)
		web.HandleFunc("GET /jobs/{id}/modal", s.handleJobModal)
		web.HandleFunc("POST /jobs", s.handleCreateJobForm)
		web.HandleFunc("POST /jobs/{id}", s.handleUpdateJobForm)
		web.HandleFunc("POST /jobs/{id}/status", s.handleJobStatusForm)
		web.HandleFunc("POST /jobs/{id}/delete", s.handleDeleteJobForm)
		web.HandleFunc("POST /season", s.handleSeasonSwitch)
		web.HandleFunc("POST /filter", s.handleStatusFilter)
		web.HandleFunc("POST /seasons", s.handleCreateSeasonForm)
		web.HandleFunc("POST /seasons/end", s.handleEndSeasonForm)
	})

	// JSON API
	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.Use(s.csrfProtection.Handler)
		api.HandleFunc("GET /seasons", s.handleAPISeasons)
		api.HandleFunc("GET /seasons/active", s.handleAPIActiveSeason)
		api.HandleFunc("POST /seasons", s.handleAPICreateSeason)
		api.HandleFunc("POST /seasons/end", s.handleAPIEndSeason)
		api.HandleFunc("GET /jobs", s.handleAPIJobs)
		api.HandleFunc("POST /jobs", s.handleAPICreateJob)
		api.HandleFunc("GET /jobs/search", s.handleAPISearchJobs)
		api.HandleFunc("GET /jobs/filter", s.handleAPIFilterJobs)
		api.HandleFunc("GET /jobs/{id}", s.handleAPIGetJob)
		api.HandleFunc("PUT /jobs/{id}", s.handleAPIUpdateJob)
		api.HandleFunc("PUT /jobs/{id}/status", s.handleAPIUpdateJobStatus)
		api.HandleFunc("DELETE /jobs/{id}", s.handleAPIDeleteJob)
		api.HandleFunc("GET /statistics", s.handleAPIStatistics)
		api.HandleFunc("GET /statuses", s.handleAPIStatuses)
	})

	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		router.Handle("GET /static/", http.FileServer(http.FS(staticFS)))
	} else {
		router.HandleFiles("/static/", http.FS(fsys))
	}

	return router
}

// render renders a template
func (s *Server) render(w http.ResponseWriter, status int, page, tmplName string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Printf("[WARN] template %s not found", page)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, tmplName, data); err != nil {
		log.Printf("[WARN] failed to execute template: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// parseTemplates parses all templates
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)

	funcMap := template.FuncMap{
		"humanDate":   humanDate,
		"inputDate":   inputDate,
		"daysSince":   daysSince,
		"statusClass": statusClass,
		"percent":     percent,
		"truncate":    truncate,
		"url":         s.url,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templatesFS,
		"templates/base.html", "templates/dashboard.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}
	templates["base.html"] = base

	// partials separately for HTMX requests
	partials, err := template.New("jobs.html").Funcs(funcMap).ParseFS(templatesFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}
	templates["partials"] = partials

	// login is standalone, doesn't use base
	login, err := template.New("login.html").Funcs(funcMap).ParseFS(templatesFS, "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse login template: %w", err)
	}
	templates["login"] = login

	return templates, nil
}

// template helper functions

func humanDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2, 2006")
}

func inputDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// daysSince formats days passed since t, like "today", "1 day", "12 days"
func daysSince(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	days := int(time.Since(t).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", days)
	}
}

// statusClass makes css class from a status label, "Phone Screen" -> "status-phone-screen"
func statusClass(st any) string {
	return "status-" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(fmt.Sprint(st))), " ", "-")
}

// percent returns part of total in percents, for breakdown bars
func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return part * 100 / total
}

func truncate(str string, n int) string {
	r := []rune(str)
	if len(r) <= n {
		return str
	}
	return string(r[:n]) + "..."
}

// url prepends the base URL to a path for reverse proxy support
func (s *Server) url(path string) string {
	return s.baseURL + path
}

// cookiePath returns the cookie path with base URL support
func (s *Server) cookiePath() string {
	if s.baseURL == "" {
		return "/"
	}
	return s.baseURL + "/"
}

// shortVersion extracts a short version string from full version,
// "v1.7.0-abc1234-20241225" -> "v1.7.0"
func shortVersion(fullVer string) string {
	if fullVer == "" || fullVer == "unknown" {
		return fullVer
	}
	if idx := strings.Index(fullVer, "-"); idx > 0 {
		return fullVer[:idx]
	}
	return fullVer
}
