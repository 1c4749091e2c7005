package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/brymix/dashboard-bff/internal/api/dto"
	"github.com/brymix/dashboard-bff/internal/observability"
	"github.com/brymix/dashboard-bff/internal/service"
)

// AdminHandler exposes account administration for admin users.
type AdminHandler struct {
	auth    *service.AuthService
	metrics *observability.Metrics
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{auth: authService, metrics: metrics}
}

// SetStatus handles PUT /admin/users/:id/status.
func (h *AdminHandler) SetStatus(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.SetAccountStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validationFailed(req.Validate()); err != nil {
		return err
	}

	if err := h.auth.SetAccountActive(c.UserContext(), actor.ID, c.Params("id"), *req.IsActive); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.MessageResponse{Message: "account status updated"})
}

// Unlock handles POST /admin/users/:id/unlock.
func (h *AdminHandler) Unlock(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.auth.UnlockAccount(c.UserContext(), actor.ID, c.Params("id")); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.MessageResponse{Message: "account unlocked"})
}

// Metrics handles GET /admin/metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}
