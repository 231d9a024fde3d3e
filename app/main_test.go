package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/natefinch/lumberjack.v2"
)

func Test_makeHostName(t *testing.T) {
	opts.Notify.HostName = "test"
	assert.Equal(t, "test", makeHostName())

	opts.Notify.HostName = ""
	exp, err := os.Hostname()
	require.NoError(t, err)
	assert.Equal(t, exp, makeHostName())
}

func Test_makeNotifier(t *testing.T) {
	opts = options{}
	assert.Nil(t, makeNotifier(), "no destinations")

	opts.Notify.ToEmails = []string{"test@example.com"}
	opts.Notify.HostName = "box"
	notif := makeNotifier()
	require.NotNil(t, notif)
	assert.Equal(t, "email to test@example.com", notif.String())

	opts.Notify.ToEmails = nil
	opts.Notify.Webhooks = []string{"https://example.com/hook"}
	notif = makeNotifier()
	require.NotNil(t, notif)
	assert.Equal(t, "webhook x1", notif.String())
	opts = options{}
}

func Test_makeHash(t *testing.T) {
	hash, err := makeHash("secret")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")))
}

func Test_setupLogsWithLogsDisabled(t *testing.T) {
	opts.Log.Enabled = false
	assert.Equal(t, os.Stdout, setupLogs())
}

func Test_setupLogsToFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "jobtrack.log")

	opts.Log.Enabled = true
	opts.Log.Filename = fname
	opts.Log.MaxSize = 100
	opts.Log.MaxBackups = 7
	opts.Log.MaxAge = 0
	opts.Log.EnabledCompress = false
	defer func() { opts = options{} }()

	out := setupLogs()
	assert.IsType(t, &lumberjack.Logger{}, out)

	logger := out.(*lumberjack.Logger)
	assert.Equal(t, fname, logger.Filename)
	assert.Equal(t, 100, logger.MaxSize)
	assert.Equal(t, 7, logger.MaxBackups)
	assert.Equal(t, 0, logger.MaxAge)
	assert.False(t, logger.Compress)
}

func Test_validateBaseURL(t *testing.T) {
	tests := []struct{ name, input, want string }{
		{"empty string", "", ""},
		{"root path", "/", ""},
		{"path without trailing slash", "/jobtrack", "/jobtrack"},
		{"path with trailing slash", "/jobtrack/", "/jobtrack"},
		{"multi-segment path", "/app/jobtrack", "/app/jobtrack"},
		{"multi-segment with trailing slash", "/app/jobtrack/", "/app/jobtrack"},
		{"no leading slash", "jobtrack", "/jobtrack"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validateBaseURL(tt.input))
		})
	}
}

func Test_parseOpts(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		res, err := parseOpts([]string{})
		require.NoError(t, err)
		assert.Equal(t, "jobtrack.db", res.DB)
		assert.Equal(t, ":8080", res.Web.Address)
		assert.Equal(t, 24*time.Hour, res.Web.LoginTTL)
		assert.Equal(t, 30*time.Second, res.Notify.Timeout)
		assert.Equal(t, 14*24*time.Hour, res.Digest.Stale)
		assert.Empty(t, res.Digest.Schedule)
	})

	t.Run("flags and env", func(t *testing.T) {
		t.Setenv("JOBTRACK_WEB_BASE_URL", "/jt")
		t.Setenv("JOBTRACK_NOTIFY_TO", "a@example.com,b@example.com")
		res, err := parseOpts([]string{"--db=/tmp/x.db", "--web.address=:9090", "--notify.status=Offer"})
		require.NoError(t, err)
		assert.Equal(t, "/tmp/x.db", res.DB)
		assert.Equal(t, ":9090", res.Web.Address)
		assert.Equal(t, "/jt", res.Web.BaseURL)
		assert.Equal(t, []string{"a@example.com", "b@example.com"}, res.Notify.ToEmails)
		assert.Equal(t, []string{"Offer"}, res.Notify.Statuses)
	})

	t.Run("env file", func(t *testing.T) {
		envFile := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(envFile, []byte("JOBTRACK_DIGEST_SCHEDULE=0 9 * * 1\nJOBTRACK_SEED=seed.yml\n"), 0o600))
		t.Cleanup(func() {
			_ = os.Unsetenv("JOBTRACK_DIGEST_SCHEDULE")
			_ = os.Unsetenv("JOBTRACK_SEED")
		})

		res, err := parseOpts([]string{"--env-file=" + envFile, "--notify.status=Offer", "--notify.status=Rejected"})
		require.NoError(t, err)
		assert.Equal(t, "0 9 * * 1", res.Digest.Schedule)
		assert.Equal(t, "seed.yml", res.Seed)
		assert.Equal(t, []string{"Offer", "Rejected"}, res.Notify.Statuses)
	})

	t.Run("missing env file", func(t *testing.T) {
		_, err := parseOpts([]string{"--env-file=/no/such/file"})
		require.Error(t, err)
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := parseOpts([]string{"--no-such-flag"})
		require.Error(t, err)
	})
}
