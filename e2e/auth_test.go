//go:build e2e

package e2e

import (
	"context"
	"net/http"
	"os/exec"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// authServer manages the auth-enabled server for auth tests
type authServer struct {
	cmd *exec.Cmd
}

// startAuthServer starts a server with authentication enabled
func startAuthServer(t *testing.T) *authServer {
	t.Helper()

	ctx := context.Background()
	cmd := exec.CommandContext(ctx, binaryPath,
		"--db="+authDBPath,
		"--web.address=:18091",
		"--web.password-hash="+passwordHash,
	)
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start auth server: %v", err)
	}

	if err := waitForServer(authBaseURL+"/ping", 10*time.Second); err != nil {
		_ = cmd.Process.Kill()
		t.Fatalf("auth server not ready: %v", err)
	}
	return &authServer{cmd: cmd}
}

func (s *authServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
}

// authLogin performs login with test credentials on auth server
func authLogin(t *testing.T, page playwright.Page) {
	t.Helper()
	_, err := page.Goto(authBaseURL + "/login")
	require.NoError(t, err)
	require.NoError(t, page.Locator("input[name='password']").Fill(testPassword))
	require.NoError(t, page.Locator("button[type='submit']").Click())
	require.NoError(t, page.WaitForURL(authBaseURL+"/"))
}

func TestAuth_RedirectsToLogin(t *testing.T) {
	srv := startAuthServer(t)
	defer srv.stop()

	page := newPage(t)
	_, err := page.Goto(authBaseURL)
	require.NoError(t, err)
	require.NoError(t, page.WaitForURL(authBaseURL+"/login"))

	title, err := page.Title()
	require.NoError(t, err)
	assert.Equal(t, "Jobtrack - Login", title)
	waitVisible(t, page.Locator("input[name='password']"))
}

func TestAuth_WrongPassword(t *testing.T) {
	srv := startAuthServer(t)
	defer srv.stop()

	page := newPage(t)
	_, err := page.Goto(authBaseURL + "/login")
	require.NoError(t, err)
	require.NoError(t, page.Locator("input[name='password']").Fill("wrong"))
	require.NoError(t, page.Locator("button[type='submit']").Click())

	waitVisible(t, page.Locator(".flash-error"))
	assert.Contains(t, textOf(t, page.Locator(".flash-error")), "Invalid password")
}

func TestAuth_LoginLogout(t *testing.T) {
	srv := startAuthServer(t)
	defer srv.stop()

	page := newPage(t)
	authLogin(t, page)
	waitVisible(t, page.Locator(".header"))
	assert.Equal(t, "No active season", textOf(t, page.Locator("#season-name")))

	require.NoError(t, page.Locator(".logout").Click())
	require.NoError(t, page.WaitForURL(authBaseURL+"/login"))

	// session is dropped, dashboard redirects to login again
	_, err := page.Goto(authBaseURL)
	require.NoError(t, err)
	require.NoError(t, page.WaitForURL(authBaseURL+"/login"))
}

func TestAuth_APIRequiresCredentials(t *testing.T) {
	srv := startAuthServer(t)
	defer srv.stop()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, authBaseURL+"/api/v1/seasons", http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequestWithContext(context.Background(), http.MethodGet, authBaseURL+"/api/v1/seasons", http.NoBody)
	require.NoError(t, err)
	req.SetBasicAuth("jobtrack", testPassword)
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
