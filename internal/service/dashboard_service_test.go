package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brymix/dashboard-bff/internal/domain"
	"github.com/brymix/dashboard-bff/internal/repository/repotest"
	"github.com/brymix/dashboard-bff/internal/upstream"
)

func job(id, status string, minutesAgo int) upstream.Job {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return upstream.Job{
		ID:          id,
		UserID:      "player-" + id,
		ChallengeID: "challenge-" + id,
		Status:      status,
		CreatedAt:   base.Add(-time.Duration(minutesAgo) * time.Minute),
	}
}

func newDashboardTestService(t *testing.T, up *fakeUpstream, keys ...domain.APIKey) (*DashboardService, *repotest.Store) {
	t.Helper()
	now := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	store := repotest.NewStore(now)
	for _, k := range keys {
		require.NoError(t, store.APIKeys().Add(context.Background(), "user-1", k))
	}
	return NewDashboardService(store.APIKeys(), up, nil, now, 2), store
}

func TestDashboardOverview(t *testing.T) {
	up := &fakeUpstream{
		jobs: map[string][]upstream.Job{
			"key-a": {job("1", "completed", 5), job("2", "failed", 1)},
			"key-b": {job("3", "pending", 3), job("4", "processing", 2), job("5", "completed", 4)},
		},
	}
	svc, store := newDashboardTestService(t, up,
		domain.APIKey{KeyID: "key-a", Name: "a"},
		domain.APIKey{KeyID: "key-b", Name: "b"},
	)

	overview, err := svc.Overview(context.Background(), "user-1", "")
	require.NoError(t, err)
	require.Equal(t, 5, overview.TotalJobs)
	require.Equal(t, 2, overview.CompletedJobs)
	require.Equal(t, 1, overview.FailedJobs)
	require.Equal(t, 1, overview.PendingJobs)
	require.Equal(t, 1, overview.ProcessingJobs)
	require.Equal(t, 2, overview.TotalAPIKeys)
	require.Equal(t, "2", overview.RecentJobs[0].ID, "newest first")

	keys, err := store.APIKeys().List(context.Background(), "user-1")
	require.NoError(t, err)
	for _, k := range keys {
		require.NotNil(t, k.LastUsed)
	}
}

func TestDashboardOverviewSkipsFailingKey(t *testing.T) {
	up := &fakeUpstream{
		jobs:   map[string][]upstream.Job{"key-a": {job("1", "completed", 5)}},
		jobErr: map[string]error{"key-b": errors.New("invalid api key")},
	}
	svc, _ := newDashboardTestService(t, up,
		domain.APIKey{KeyID: "key-a", Name: "a"},
		domain.APIKey{KeyID: "key-b", Name: "b"},
	)

	overview, err := svc.Overview(context.Background(), "user-1", "")
	require.NoError(t, err)
	require.Equal(t, 1, overview.TotalJobs)
	require.Equal(t, 2, overview.TotalAPIKeys)
}

func TestDashboardOverviewWithoutKeys(t *testing.T) {
	svc, _ := newDashboardTestService(t, &fakeUpstream{})
	overview, err := svc.Overview(context.Background(), "user-1", "")
	require.NoError(t, err)
	require.Zero(t, overview.TotalJobs)
	require.NotNil(t, overview.RecentJobs)
}

func TestDashboardSelectUnknownKey(t *testing.T) {
	svc, _ := newDashboardTestService(t, &fakeUpstream{}, domain.APIKey{KeyID: "key-a", Name: "a"})
	_, err := svc.Overview(context.Background(), "user-1", "key-zzz")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDashboardJobsFilterAndPaginate(t *testing.T) {
	var jobs []upstream.Job
	for i := 0; i < 25; i++ {
		status := "completed"
		if i%5 == 0 {
			status = "failed"
		}
		jobs = append(jobs, job(string(rune('a'+i)), status, i))
	}
	up := &fakeUpstream{jobs: map[string][]upstream.Job{"key-a": jobs}}
	svc, _ := newDashboardTestService(t, up, domain.APIKey{KeyID: "key-a", Name: "a"})
	ctx := context.Background()

	page, err := svc.Jobs(ctx, "user-1", JobQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 25, page.Total)
	require.Equal(t, 3, page.Pages)
	require.Len(t, page.Jobs, 10)
	require.Equal(t, "k", page.Jobs[0].ID)

	page, err = svc.Jobs(ctx, "user-1", JobQuery{Status: "failed"})
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Equal(t, 20, page.Limit)

	page, err = svc.Jobs(ctx, "user-1", JobQuery{Search: "CHALLENGE-C"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "c", page.Jobs[0].ID)

	page, err = svc.Jobs(ctx, "user-1", JobQuery{Page: 9, Limit: 500})
	require.NoError(t, err)
	require.Equal(t, 100, page.Limit)
	require.Empty(t, page.Jobs)
}

func TestDashboardJob(t *testing.T) {
	up := &fakeUpstream{jobs: map[string][]upstream.Job{
		"key-a": {job("1", "completed", 1)},
		"key-b": {job("2", "pending", 1)},
	}}
	svc, _ := newDashboardTestService(t, up,
		domain.APIKey{KeyID: "key-a", Name: "a"},
		domain.APIKey{KeyID: "key-b", Name: "b"},
	)

	found, err := svc.Job(context.Background(), "user-1", "2")
	require.NoError(t, err)
	require.Equal(t, "pending", found.Status)

	_, err = svc.Job(context.Background(), "user-1", "404")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestDashboardTestConnection(t *testing.T) {
	up := &fakeUpstream{health: json.RawMessage(`{"status":"healthy"}`)}
	svc, _ := newDashboardTestService(t, up)

	doc, err := svc.TestConnection(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"healthy"}`, string(doc))

	up.downErr = upstream.ErrUpstreamUnavailable
	_, err = svc.TestConnection(context.Background())
	require.ErrorIs(t, err, upstream.ErrUpstreamUnavailable)
}
