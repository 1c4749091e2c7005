package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/brymix/dashboard-bff/internal/api/dto"
	"github.com/brymix/dashboard-bff/internal/service"
	"github.com/brymix/dashboard-bff/internal/upstream"
)

// DashboardHandler exposes the /dashboard endpoints.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Overview handles GET /dashboard/overview.
func (h *DashboardHandler) Overview(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	overview, err := h.dashboard.Overview(c.UserContext(), user.ID, c.Query("apiKeyId"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.NewOverviewResponse(overview))
}

// Jobs handles GET /dashboard/jobs.
func (h *DashboardHandler) Jobs(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	page, err := h.dashboard.Jobs(c.UserContext(), user.ID, service.JobQuery{
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 20),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		APIKeyID: c.Query("apiKeyId"),
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.NewJobListResponse(page))
}

// Job handles GET /dashboard/jobs/:jobId.
func (h *DashboardHandler) Job(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	job, err := h.dashboard.Job(c.UserContext(), user.ID, c.Params("jobId"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(job)
}

// TestConnection handles GET /dashboard/test-connection.
func (h *DashboardHandler) TestConnection(c *fiber.Ctx) error {
	health, err := h.dashboard.TestConnection(c.UserContext())
	if err != nil {
		if errors.Is(err, upstream.ErrUpstreamUnavailable) {
			return c.Status(http.StatusServiceUnavailable).JSON(dto.ConnectionResponse{
				Status: "error",
				Error:  "cannot connect to backend service",
			})
		}
		return mapServiceError(err)
	}
	return c.JSON(dto.ConnectionResponse{Status: "connected", FastAPI: health})
}
