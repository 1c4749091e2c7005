package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brymix/dashboard-bff/internal/domain"
	"github.com/brymix/dashboard-bff/internal/repository"
	"github.com/brymix/dashboard-bff/internal/upstream"
)

const (
	overviewJobLimit = 100
	listingJobLimit  = 1000
	recentJobCount   = 10
	defaultPageSize  = 20
	maxPageSize      = 100
)

// JobUpstream is the slice of the challenge service used by the dashboard.
type JobUpstream interface {
	ListJobs(ctx context.Context, apiKey string, limit int) ([]upstream.Job, error)
	GetJob(ctx context.Context, apiKey, jobID string) (*upstream.Job, error)
	Health(ctx context.Context) (json.RawMessage, error)
}

// Overview counts jobs by status across the selected keys.
type Overview struct {
	TotalJobs      int
	CompletedJobs  int
	FailedJobs     int
	PendingJobs    int
	ProcessingJobs int
	TotalAPIKeys   int
	RecentJobs     []upstream.Job
}

// JobQuery filters and paginates the jobs listing.
type JobQuery struct {
	Page     int
	Limit    int
	Status   string
	Search   string
	APIKeyID string
}

// JobPage is one page of jobs plus pagination metadata.
type JobPage struct {
	Jobs  []upstream.Job
	Page  int
	Limit int
	Total int
	Pages int
}

// DashboardService reads job data from the challenge service with the
// user's own API keys.
type DashboardService struct {
	keys        repository.APIKeyRepository
	upstream    JobUpstream
	logger      *zap.Logger
	now         func() time.Time
	concurrency int
}

// NewDashboardService builds the service. concurrency bounds the per-key
// upstream fan-out.
func NewDashboardService(keys repository.APIKeyRepository, up JobUpstream, logger *zap.Logger, now func() time.Time, concurrency int) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &DashboardService{keys: keys, upstream: up, logger: logger, now: now, concurrency: concurrency}
}

// Overview summarizes the jobs of every active key, or only apiKeyID.
func (s *DashboardService) Overview(ctx context.Context, userID, apiKeyID string) (*Overview, error) {
	active, selected, err := s.selectKeys(ctx, userID, apiKeyID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return &Overview{RecentJobs: []upstream.Job{}}, nil
	}

	jobs := s.fetchJobs(ctx, selected, overviewJobLimit)
	out := &Overview{
		TotalJobs:    len(jobs),
		TotalAPIKeys: len(active),
	}
	for _, job := range jobs {
		switch job.Status {
		case "completed":
			out.CompletedJobs++
		case "failed":
			out.FailedJobs++
		case "pending":
			out.PendingJobs++
		case "processing":
			out.ProcessingJobs++
		}
	}
	if len(jobs) > recentJobCount {
		jobs = jobs[:recentJobCount]
	}
	out.RecentJobs = jobs
	return out, nil
}

// Jobs lists filtered jobs newest first.
func (s *DashboardService) Jobs(ctx context.Context, userID string, q JobQuery) (*JobPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}

	active, selected, err := s.selectKeys(ctx, userID, q.APIKeyID)
	if err != nil {
		return nil, err
	}
	page := &JobPage{Jobs: []upstream.Job{}, Page: q.Page, Limit: q.Limit}
	if len(active) == 0 {
		return page, nil
	}

	jobs := filterJobs(s.fetchJobs(ctx, selected, listingJobLimit), q.Status, q.Search)
	page.Total = len(jobs)
	page.Pages = (len(jobs) + q.Limit - 1) / q.Limit

	start := (q.Page - 1) * q.Limit
	if start < len(jobs) {
		end := start + q.Limit
		if end > len(jobs) {
			end = len(jobs)
		}
		page.Jobs = jobs[start:end]
	}
	return page, nil
}

// Job returns the first match among the user's active keys.
func (s *DashboardService) Job(ctx context.Context, userID, jobID string) (*upstream.Job, error) {
	keys, err := s.keys.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	for _, key := range domain.ActiveKeys(keys) {
		job, err := s.upstream.GetJob(ctx, key.KeyID, jobID)
		if err == nil {
			s.touch(ctx, userID, []domain.APIKey{key})
			return job, nil
		}
		if !errors.Is(err, upstream.ErrNotFound) {
			s.logger.Warn("fetch job failed", zap.String("job_id", jobID), zap.String("key", domain.MaskKey(key.KeyID)), zap.Error(err))
		}
	}
	return nil, ErrJobNotFound
}

// TestConnection passes the upstream health document through.
func (s *DashboardService) TestConnection(ctx context.Context) (json.RawMessage, error) {
	return s.upstream.Health(ctx)
}

func (s *DashboardService) selectKeys(ctx context.Context, userID, apiKeyID string) (active, selected []domain.APIKey, err error) {
	keys, err := s.keys.List(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list keys: %w", err)
	}
	active = domain.ActiveKeys(keys)
	if len(active) == 0 {
		return active, nil, nil
	}
	if apiKeyID == "" {
		selected = active
	} else {
		for _, k := range active {
			if k.KeyID == apiKeyID {
				selected = append(selected, k)
			}
		}
		if len(selected) == 0 {
			return nil, nil, ErrKeyNotFound
		}
	}
	s.touch(ctx, userID, selected)
	return active, selected, nil
}

func (s *DashboardService) touch(ctx context.Context, userID string, keys []domain.APIKey) {
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k.KeyID)
	}
	if err := s.keys.TouchLastUsed(ctx, userID, ids, s.now().UTC()); err != nil {
		s.logger.Warn("touch api keys", zap.String("user_id", userID), zap.Error(err))
	}
}

// fetchJobs queries every key concurrently. A failing key is logged and
// skipped so one revoked key does not blank the dashboard.
func (s *DashboardService) fetchJobs(ctx context.Context, keys []domain.APIKey, limit int) []upstream.Job {
	var (
		mu  sync.Mutex
		all []upstream.Job
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, key := range keys {
		g.Go(func() error {
			jobs, err := s.upstream.ListJobs(gctx, key.KeyID, limit)
			if err != nil {
				s.logger.Warn("fetch jobs failed", zap.String("key_name", key.Name), zap.Error(err))
				return nil
			}
			mu.Lock()
			all = append(all, jobs...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all
}

func filterJobs(jobs []upstream.Job, status, search string) []upstream.Job {
	status = strings.TrimSpace(status)
	search = strings.ToLower(strings.TrimSpace(search))
	if (status == "" || status == "all") && search == "" {
		return jobs
	}
	out := make([]upstream.Job, 0, len(jobs))
	for _, job := range jobs {
		if status != "" && status != "all" && job.Status != status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(job.UserID), search) &&
			!strings.Contains(strings.ToLower(job.ChallengeID), search) &&
			!strings.Contains(strings.ToLower(job.ID), search) {
			continue
		}
		out = append(out, job)
	}
	return out
}
