//go:build e2e

package e2e

import (
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobs_ModalOpens(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	require.NoError(t, page.Locator(".job-row", playwright.PageLocatorOptions{HasText: "Acme"}).Click())
	waitVisible(t, page.Locator(".modal"))
	assert.Contains(t, textOf(t, page.Locator("#modal-title")), "Staff Engineer at Acme")

	require.NoError(t, page.Keyboard().Press("Escape"))
	count, err := page.Locator(".modal").Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "modal closed on escape")
}

func TestJobs_AddAndChangeStatus(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	company := fmt.Sprintf("E2E Corp %d", time.Now().UnixNano())
	form := page.Locator(".new-job form")
	require.NoError(t, form.Locator("input[name='role']").Fill("Test Engineer"))
	require.NoError(t, form.Locator("input[name='company_name']").Fill(company))
	require.NoError(t, form.Locator("button[type='submit']").Click())

	// page refreshes after job added
	row := page.Locator(".job-row", playwright.PageLocatorOptions{HasText: company})
	waitVisible(t, row)
	assert.Contains(t, textOf(t, row), "Applied")

	require.NoError(t, row.Click())
	waitVisible(t, page.Locator(".modal .status-form"))
	_, err := page.Locator(".modal .status-form select").SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice("Phone Screen"),
	})
	require.NoError(t, err)
	require.NoError(t, page.Locator(".modal .status-form button[type='submit']").Click())

	waitVisible(t, page.Locator("#flash .flash-ok"))
	assert.Contains(t, textOf(t, page.Locator("#flash")), "is now Phone Screen")

	// jobs table reloaded on refresh-jobs trigger
	updated := page.Locator(".job-row", playwright.PageLocatorOptions{HasText: company}).Locator(".status")
	require.NoError(t, updated.Filter(playwright.LocatorFilterOptions{HasText: "Phone Screen"}).WaitFor())
}

func TestJobs_AddInvalidShowsError(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	// bypass browser validation to reach the server
	_, err := page.Evaluate(`() => document.querySelectorAll('.new-job [required]').forEach(el => el.removeAttribute('required'))`)
	require.NoError(t, err)
	require.NoError(t, page.Locator(".new-job button[type='submit']").Click())

	waitVisible(t, page.Locator("#flash .flash-error"))
	assert.Contains(t, textOf(t, page.Locator("#flash")), "role is required")
}

func TestJobs_Search(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	require.NoError(t, page.Locator("input[name='search']").Fill("globex"))
	require.NoError(t, page.Locator(".job-row", playwright.PageLocatorOptions{HasText: "Acme"}).WaitFor(
		playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateDetached}))

	body := textOf(t, page.Locator(".jobs-table"))
	assert.Contains(t, body, "Globex")
	assert.NotContains(t, body, "Acme")
}

func TestJobs_StatusFilter(t *testing.T) {
	page := newPage(t)
	navigateToDashboard(t, page)

	_, err := page.Locator("select[name='status']").First().SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice("Offer"),
	})
	require.NoError(t, err)
	require.NoError(t, page.Locator(".job-row", playwright.PageLocatorOptions{HasText: "Acme"}).WaitFor(
		playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateDetached}))
	assert.Contains(t, textOf(t, page.Locator(".jobs-table")), "Umbrella")

	// filter survives reload
	_, err = page.Reload()
	require.NoError(t, err)
	waitVisible(t, page.Locator(".job-row").First())
	assert.NotContains(t, textOf(t, page.Locator(".jobs-table")), "Acme")
}
