package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	ntf "github.com/go-pkgz/notify"
	"github.com/joho/godotenv"
	"github.com/umputun/go-flags"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/jobtrack/app/digest"
	"github.com/umputun/jobtrack/app/notify"
	"github.com/umputun/jobtrack/app/seed"
	"github.com/umputun/jobtrack/app/store"
	"github.com/umputun/jobtrack/app/tracker"
	"github.com/umputun/jobtrack/app/web"
)

type options struct {
	DB      string `long:"db" env:"JOBTRACK_DB" default:"jobtrack.db" description:"sqlite database file"`
	Seed    string `long:"seed" env:"JOBTRACK_SEED" description:"yaml file with seasons and jobs, imported into empty database"`
	Hash    string `long:"hash" description:"print bcrypt hash for the password and exit"`
	EnvFile string `long:"env-file" env:"JOBTRACK_ENV_FILE" description:"load environment variables from file"`
	Dbg     bool   `long:"dbg" env:"JOBTRACK_DEBUG" description:"debug mode"`

	Web struct {
		Address      string        `long:"address" env:"ADDRESS" default:":8080" description:"web server listen address"`
		BaseURL      string        `long:"base-url" env:"BASE_URL" description:"base URL path for reverse proxy, e.g. /jobtrack"`
		PasswordHash string        `long:"password-hash" env:"PASSWORD_HASH" description:"bcrypt hash of the dashboard password, empty disables auth"`
		LoginTTL     time.Duration `long:"login-ttl" env:"LOGIN_TTL" default:"24h" description:"login session TTL"`
	} `group:"web" namespace:"web" env-namespace:"JOBTRACK_WEB"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"filename" env:"FILENAME" default:"jobtrack.log" description:"log file name"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log file size in MB"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of rotated files"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"30" description:"max age of rotated files in days"`
		EnabledCompress bool   `long:"compress" env:"COMPRESS" description:"compress rotated files"`
	} `group:"log" namespace:"log" env-namespace:"JOBTRACK_LOG"`

	Notify struct {
		Statuses       []string      `long:"status" env:"STATUSES" env-delim:"," description:"statuses triggering notifications"`
		Template       string        `long:"template" env:"TEMPLATE" description:"status change message template file"`
		Timeout        time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"delivery timeout"`
		SMTPHost       string        `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host"`
		SMTPPort       int           `long:"smtp-port" env:"SMTP_PORT" default:"25" description:"SMTP port"`
		SMTPUsername   string        `long:"smtp-username" env:"SMTP_USERNAME" description:"SMTP user name"`
		SMTPPassword   string        `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
		SMTPTLS        bool          `long:"smtp-tls" env:"SMTP_TLS" description:"enable SMTP TLS"`
		SMTPStartTLS   bool          `long:"smtp-starttls" env:"SMTP_STARTTLS" description:"enable SMTP StartTLS"`
		SMTPTimeOut    time.Duration `long:"smtp-timeout" env:"SMTP_TIMEOUT" default:"10s" description:"SMTP TCP connection timeout"`
		FromEmail      string        `long:"from" env:"FROM" description:"SMTP from email"`
		ToEmails       []string      `long:"to" env:"TO" env-delim:"," description:"SMTP to email(s)"`
		Webhooks       []string      `long:"webhook" env:"WEBHOOKS" env-delim:"," description:"webhook URL(s)"`
		WebhookHeaders []string      `long:"webhook-header" env:"WEBHOOK_HEADERS" env-delim:"," description:"webhook headers, Name:value"`
		HostName       string        `long:"host" env:"HOSTNAME" description:"host name used in default from address"`
	} `group:"notify" namespace:"notify" env-namespace:"JOBTRACK_NOTIFY"`

	Digest struct {
		Schedule string        `long:"schedule" env:"SCHEDULE" description:"cron schedule of season digest, e.g. '0 9 * * 1'"`
		Stale    time.Duration `long:"stale" env:"STALE" default:"336h" description:"open jobs not updated for this long are listed in digest"`
	} `group:"digest" namespace:"digest" env-namespace:"JOBTRACK_DIGEST"`
}

var opts options

var revision = "unknown"

func main() {
	fmt.Printf("jobtrack %s\n", revision)

	var err error
	if opts, err = parseOpts(os.Args[1:]); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		if !errors.As(err, &flagsErr) { // flags errors are printed by parser
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	if opts.Hash != "" {
		hash, err := makeHash(opts.Hash)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	out := setupLogs()
	setupLogger(out, opts.Dbg)

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}

// run wires store, tracker, notifications and web server, blocks until ctx is canceled
func run(ctx context.Context) error {
	st, err := store.NewSQLite(opts.DB)
	if err != nil {
		return fmt.Errorf("can't open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("[WARN] failed to close store: %v", err)
		}
	}()

	if opts.Seed != "" {
		f, err := seed.Load(opts.Seed)
		if err != nil {
			return fmt.Errorf("can't load seed: %w", err)
		}
		if _, err := seed.Apply(ctx, st, f); err != nil {
			return fmt.Errorf("can't apply seed: %w", err)
		}
	}

	notifier := makeNotifier()
	var events tracker.EventHandler
	if notifier != nil {
		log.Printf("[INFO] notifications enabled: %s", notifier)
		events = notifier
	}
	svc := tracker.NewService(st, events)

	if opts.Digest.Schedule != "" {
		if notifier == nil {
			return errors.New("digest requires notification destinations")
		}
		dgst, err := digest.New(svc, notifier, opts.Digest.Schedule, opts.Digest.Stale)
		if err != nil {
			return fmt.Errorf("can't make digest: %w", err)
		}
		go dgst.Run(ctx)
	}

	srv, err := web.New(web.Config{
		Tracker:      svc,
		BaseURL:      validateBaseURL(opts.Web.BaseURL),
		Version:      revision,
		PasswordHash: opts.Web.PasswordHash,
		LoginTTL:     opts.Web.LoginTTL,
	})
	if err != nil {
		return fmt.Errorf("can't make web server: %w", err)
	}
	return srv.Run(ctx, opts.Web.Address)
}

// parseOpts parses command line and environment. Variables from env file are loaded
// before the final parse and don't override already set environment.
func parseOpts(args []string) (options, error) {
	var res options
	p := flags.NewParser(&res, flags.Default)
	if _, err := p.ParseArgs(args); err != nil {
		return options{}, err
	}
	if res.EnvFile == "" {
		return res, nil
	}

	if err := godotenv.Load(res.EnvFile); err != nil {
		return options{}, fmt.Errorf("can't load env file %s: %w", res.EnvFile, err)
	}
	res = options{}
	p = flags.NewParser(&res, flags.Default)
	if _, err := p.ParseArgs(args); err != nil {
		return options{}, err
	}
	return res, nil
}

func makeNotifier() *notify.Service {
	from := opts.Notify.FromEmail
	if from == "" && len(opts.Notify.ToEmails) > 0 {
		from = "jobtrack@" + makeHostName()
	}

	return notify.NewService(
		notify.Params{
			Statuses:       opts.Notify.Statuses,
			StatusTemplate: opts.Notify.Template,
			Timeout:        opts.Notify.Timeout,
		},
		notify.SendersParams{
			SMTPParams: ntf.SMTPParams{
				Host:        opts.Notify.SMTPHost,
				Port:        opts.Notify.SMTPPort,
				TLS:         opts.Notify.SMTPTLS,
				StartTLS:    opts.Notify.SMTPStartTLS,
				ContentType: "text/html",
				Username:    opts.Notify.SMTPUsername,
				Password:    opts.Notify.SMTPPassword,
				TimeOut:     opts.Notify.SMTPTimeOut,
			},
			FromEmail:      from,
			ToEmails:       opts.Notify.ToEmails,
			WebhookURLs:    opts.Notify.Webhooks,
			WebhookHeaders: opts.Notify.WebhookHeaders,
		},
	)
}

func makeHostName() string {
	if opts.Notify.HostName != "" {
		return opts.Notify.HostName
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

func makeHash(passwd string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("can't make password hash: %w", err)
	}
	return string(hash), nil
}

// validateBaseURL normalizes base URL: leading slash, no trailing slash, "/" means root
func validateBaseURL(u string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return u
}

// setupLogs returns log destination, rotated file if file logging enabled and stdout otherwise
func setupLogs() io.Writer {
	if !opts.Log.Enabled || opts.Log.Filename == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   opts.Log.Filename,
		MaxSize:    opts.Log.MaxSize,
		MaxBackups: opts.Log.MaxBackups,
		MaxAge:     opts.Log.MaxAge,
		Compress:   opts.Log.EnabledCompress,
	}
}

func setupLogger(out io.Writer, dbg bool) {
	if dbg {
		log.Setup(log.Out(out), log.Err(out), log.Debug, log.Msec, log.CallerFunc, log.CallerPkg, log.CallerFile)
		return
	}
	log.Setup(log.Out(out), log.Err(out), log.Msec)
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			log.Printf("[INFO] %s received, shutting down", sig)
			cancel()
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
}
