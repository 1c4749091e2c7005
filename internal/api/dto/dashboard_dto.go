package dto

import (
	"encoding/json"

	"github.com/brymix/dashboard-bff/internal/service"
	"github.com/brymix/dashboard-bff/internal/upstream"
)

// OverviewResponse is the dashboard landing summary.
type OverviewResponse struct {
	TotalJobs      int            `json:"totalJobs"`
	CompletedJobs  int            `json:"completedJobs"`
	FailedJobs     int            `json:"failedJobs"`
	PendingJobs    int            `json:"pendingJobs"`
	ProcessingJobs int            `json:"processingJobs"`
	TotalAPIKeys   int            `json:"totalApiKeys"`
	RecentJobs     []upstream.Job `json:"recentJobs"`
}

// NewOverviewResponse maps the service overview.
func NewOverviewResponse(o *service.Overview) OverviewResponse {
	recent := o.RecentJobs
	if recent == nil {
		recent = []upstream.Job{}
	}
	return OverviewResponse{
		TotalJobs:      o.TotalJobs,
		CompletedJobs:  o.CompletedJobs,
		FailedJobs:     o.FailedJobs,
		PendingJobs:    o.PendingJobs,
		ProcessingJobs: o.ProcessingJobs,
		TotalAPIKeys:   o.TotalAPIKeys,
		RecentJobs:     recent,
	}
}

// Pagination describes a page of results.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// JobListResponse is one page of jobs.
type JobListResponse struct {
	Jobs       []upstream.Job `json:"jobs"`
	Pagination Pagination     `json:"pagination"`
}

// NewJobListResponse maps the service page.
func NewJobListResponse(p *service.JobPage) JobListResponse {
	jobs := p.Jobs
	if jobs == nil {
		jobs = []upstream.Job{}
	}
	return JobListResponse{
		Jobs:       jobs,
		Pagination: Pagination{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.Pages},
	}
}

// ConnectionResponse reports upstream reachability.
type ConnectionResponse struct {
	Status  string          `json:"status"`
	FastAPI json.RawMessage `json:"fastapi,omitempty"`
	Error   string          `json:"error,omitempty"`
}
