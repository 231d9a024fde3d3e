//go:build e2e

// Package e2e provides end-to-end browser tests for the jobtrack dashboard.
//
// Test organization:
// - e2e_test.go: TestMain, shared helpers, constants, core dashboard tests
// - auth_test.go: authentication tests (login/logout)
// - jobs_test.go: job modal, status change, add job, search and filter tests
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	baseURL      = "http://localhost:18090"
	testDBPath   = "/tmp/jobtrack-e2e.db"
	testSeedPath = "/tmp/jobtrack-e2e-seed.yml"
	binaryPath   = "/tmp/jobtrack-e2e"
)

// auth server constants (separate server for auth tests to avoid rate limiting main tests)
const (
	authBaseURL  = "http://localhost:18091"
	authDBPath   = "/tmp/jobtrack-e2e-auth.db"
	testPassword = "testpass123"                                                  //nolint:gosec // test password for e2e tests
	passwordHash = "$2y$10$ZcZnRH/ya6JUmBRGE8qlBupIFUYgvOewRXtpkB8HecWtUnryAHr0S" //nolint:gosec // bcrypt hash of testpass123 for e2e tests
)

var (
	pw        *playwright.Playwright
	serverCmd *exec.Cmd
)

func TestMain(m *testing.M) {
	// clean old test data
	_ = os.Remove(testDBPath)
	_ = os.Remove(authDBPath)

	if err := createTestSeed(); err != nil {
		fmt.Printf("failed to create test seed: %v\n", err)
		os.Exit(1)
	}

	// build test binary
	ctx := context.Background()
	build := exec.CommandContext(ctx, "go", "build", "-o", binaryPath, "./app")
	build.Dir = ".."
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Printf("failed to build: %v\n", err)
		os.Exit(1)
	}

	// start server with seeded data (no auth - auth tests use separate server)
	serverCmd = exec.CommandContext(ctx, binaryPath,
		"--db="+testDBPath,
		"--seed="+testSeedPath,
		"--web.address=:18090",
	)
	serverCmd.Stdout = os.Stdout
	serverCmd.Stderr = os.Stderr
	if err := serverCmd.Start(); err != nil {
		fmt.Printf("failed to start server: %v\n", err)
		os.Exit(1)
	}

	if err := waitForServer(baseURL+"/ping", 30*time.Second); err != nil {
		fmt.Printf("server not ready: %v\n", err)
		_ = serverCmd.Process.Kill()
		os.Exit(1)
	}

	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		fmt.Printf("failed to install playwright: %v\n", err)
		_ = serverCmd.Process.Kill()
		os.Exit(1)
	}

	var err error
	pw, err = playwright.Run()
	if err != nil {
		fmt.Printf("failed to start playwright: %v\n", err)
		_ = serverCmd.Process.Kill()
		os.Exit(1)
	}

	code := m.Run()

	_ = pw.Stop()
	_ = serverCmd.Process.Kill()
	_ = os.Remove(testDBPath)
	_ = os.Remove(authDBPath)
	_ = os.Remove(testSeedPath)

	os.Exit(code)
}

func createTestSeed() error {
	content := `seasons:
  - name: Autumn 2024
    started: 2024-09-01
    ended: 2024-12-20
    jobs:
      - role: Backend Engineer
        company: Old Corp
        applied: 2024-09-10
        status: Rejected
  - name: Spring 2025
    started: 2025-03-01
    active: true
    jobs:
      - role: Staff Engineer
        company: Acme
        source: LinkedIn
        applied: 2025-03-03
        status: Technical Interview
      - role: SRE
        company: Globex
        applied: 2025-03-05
      - role: Platform Engineer
        company: Umbrella
        applied: 2025-03-10
        status: Offer
`
	if err := os.WriteFile(testSeedPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write test seed: %w", err)
	}
	return nil
}

func waitForServer(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("server not ready after %v", timeout)
		default:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody) // #nosec G107 - test url
			if err != nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			resp, err := client.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

func newPage(t *testing.T) playwright.Page {
	t.Helper()
	headless := os.Getenv("E2E_HEADLESS") != "false"
	slowMo := 0.0
	if !headless {
		slowMo = 50 // 50ms slowdown for UI mode
	}
	brow, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		SlowMo:   playwright.Float(slowMo),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = brow.Close() })

	// isolated context for each test
	ctx, err := brow.NewContext()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })

	page, err := ctx.NewPage()
	require.NoError(t, err)

	// accept hx-confirm dialogs
	page.OnDialog(func(d playwright.Dialog) { _ = d.Accept() })
	return page
}

// navigateToDashboard opens the dashboard and waits for the header
func navigateToDashboard(t *testing.T, page playwright.Page) {
	t.Helper()
	_, err := page.Goto(baseURL)
	require.NoError(t, err)
	waitVisible(t, page.Locator(".header"))
}

func waitVisible(t *testing.T, loc playwright.Locator) {
	t.Helper()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	})
	require.NoError(t, err)
}

func textOf(t *testing.T, loc playwright.Locator) string {
	t.Helper()
	text, err := loc.TextContent()
	require.NoError(t, err)
	return text
}

// --- dashboard tests ---

func TestDashboard_PageLoads(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	title, err := page.Title()
	require.NoError(t, err)
	assert.Equal(t, "Jobtrack - Spring 2025", title)
	assert.Equal(t, "Spring 2025", textOf(t, page.Locator("#season-name")))
}

func TestDashboard_ShowsJobs(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)
	waitVisible(t, page.Locator(".job-row").First())

	count, err := page.Locator(".job-row").Count()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 3, "seeded jobs of the active season")

	body := textOf(t, page.Locator(".jobs-table"))
	assert.Contains(t, body, "Acme")
	assert.NotContains(t, body, "Old Corp", "jobs of ended season are not shown")
}

func TestDashboard_ShowsStats(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	waitVisible(t, page.Locator("#stats"))
	assert.NotEqual(t, "0", textOf(t, page.Locator("#stat-total")))
	assert.Contains(t, textOf(t, page.Locator("#stat-success")), "%")
}

func TestDashboard_SwitchSeason(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	_, err := page.Locator(".season-select select").SelectOption(playwright.SelectOptionValues{
		Labels: playwright.StringSlice("Autumn 2024"),
	})
	require.NoError(t, err)
	require.NoError(t, page.WaitForURL(regexp.MustCompile(`season=\d+`)))
	waitVisible(t, page.Locator(".job-row").First())

	assert.Equal(t, "Autumn 2024", textOf(t, page.Locator("#season-name")))
	assert.Contains(t, textOf(t, page.Locator(".jobs-table")), "Old Corp")

	visible, err := page.Locator(".new-job").IsVisible()
	require.NoError(t, err)
	assert.False(t, visible, "no add form for ended season")
}
