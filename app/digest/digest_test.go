package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobtrack/app/digest/mocks"
	"github.com/umputun/jobtrack/app/tracker"
)

func testOverview(now time.Time) tracker.Overview {
	jobs := []tracker.Job{
		{Role: "Go Dev", CompanyName: "Acme", Status: tracker.StatusOffer, LastUpdated: now.AddDate(0, 0, -20)},
		{Role: "SRE", CompanyName: "Initech", Status: tracker.StatusPhoneScreen, LastUpdated: now.AddDate(0, 0, -10)},
		{Role: "Backend", CompanyName: "Globex", Status: tracker.StatusApplied, LastUpdated: now.AddDate(0, 0, -1)},
		{Role: "Platform", CompanyName: "Umbrella", Status: tracker.StatusRejected, LastUpdated: now.AddDate(0, 0, -30)},
	}
	return tracker.Overview{
		Season:    &tracker.Season{ID: 1, Name: "Spring", StartDate: now.AddDate(0, 0, -45), IsActive: true},
		Jobs:      jobs,
		Stats:     tracker.ComputeStats(jobs),
		Breakdown: tracker.CountByStatus(jobs),
	}
}

func TestNew(t *testing.T) {
	_, err := New(&mocks.SourceMock{}, &mocks.SenderMock{}, "0 9 * * 1", 0)
	require.NoError(t, err)

	_, err = New(&mocks.SourceMock{}, &mocks.SenderMock{}, "bad spec", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't parse digest schedule")
}

func TestDigest_Message(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	d, err := New(&mocks.SourceMock{}, &mocks.SenderMock{}, "@weekly", 7*24*time.Hour)
	require.NoError(t, err)
	d.now = func() time.Time { return now }

	msg, err := d.Message(testOverview(now))
	require.NoError(t, err)
	t.Log(msg)
	assert.Contains(t, msg, `Season "Spring", day 45`)
	assert.Contains(t, msg, "Applications: 4\n")
	assert.Contains(t, msg, "Active: 2\n")
	assert.Contains(t, msg, "Interviews: 1\n")
	assert.Contains(t, msg, "Success rate: 25%")
	assert.Contains(t, msg, "  Phone Screen: 1")
	assert.NotContains(t, msg, "On Hold", "zero counts skipped")
	assert.Contains(t, msg, "No updates for 7+ days:\n  SRE at Initech (Phone Screen)")
	assert.NotContains(t, msg, "Umbrella (Rejected)", "closed jobs are not stale")
	assert.NotContains(t, msg, "Globex (Applied)")
}

func TestDigest_Send(t *testing.T) {
	now := time.Now()

	t.Run("sends for active season", func(t *testing.T) {
		src := &mocks.SourceMock{OverviewFunc: func(context.Context, int64) (tracker.Overview, error) {
			return testOverview(now), nil
		}}
		snd := &mocks.SenderMock{SendFunc: func(context.Context, string, string) error { return nil }}
		d, err := New(src, snd, "@weekly", 0)
		require.NoError(t, err)

		require.NoError(t, d.Send(context.Background()))
		require.Len(t, snd.SendCalls(), 1)
		assert.Equal(t, "Job search digest: Spring", snd.SendCalls()[0].Subj)
		assert.NotContains(t, snd.SendCalls()[0].Text, "No updates for")
		require.Len(t, src.OverviewCalls(), 1)
		assert.Equal(t, int64(0), src.OverviewCalls()[0].SeasonID)
	})

	t.Run("skips without active season", func(t *testing.T) {
		src := &mocks.SourceMock{OverviewFunc: func(context.Context, int64) (tracker.Overview, error) {
			return tracker.Overview{}, nil
		}}
		snd := &mocks.SenderMock{SendFunc: func(context.Context, string, string) error { return nil }}
		d, err := New(src, snd, "@weekly", 0)
		require.NoError(t, err)
		require.NoError(t, d.Send(context.Background()))
		assert.Empty(t, snd.SendCalls())
	})

	t.Run("errors", func(t *testing.T) {
		src := &mocks.SourceMock{OverviewFunc: func(context.Context, int64) (tracker.Overview, error) {
			return tracker.Overview{}, errors.New("db locked")
		}}
		d, err := New(src, &mocks.SenderMock{}, "@weekly", 0)
		require.NoError(t, err)
		assert.ErrorContains(t, d.Send(context.Background()), "db locked")

		src.OverviewFunc = func(context.Context, int64) (tracker.Overview, error) { return testOverview(now), nil }
		snd := &mocks.SenderMock{SendFunc: func(context.Context, string, string) error { return errors.New("smtp down") }}
		d, err = New(src, snd, "@weekly", 0)
		require.NoError(t, err)
		assert.ErrorContains(t, d.Send(context.Background()), "can't deliver digest: smtp down")
	})
}

func TestDigest_Run(t *testing.T) {
	snd := &mocks.SenderMock{SendFunc: func(context.Context, string, string) error { return nil }}
	src := &mocks.SourceMock{OverviewFunc: func(context.Context, int64) (tracker.Overview, error) {
		return testOverview(time.Now()), nil
	}}
	d, err := New(src, snd, "* * * * *", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("digest didn't stop")
	}
}
