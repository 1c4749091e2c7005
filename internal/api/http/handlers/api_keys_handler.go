package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/brymix/dashboard-bff/internal/api/dto"
	"github.com/brymix/dashboard-bff/internal/service"
)

// APIKeysHandler exposes the /keys endpoints.
type APIKeysHandler struct {
	keys *service.APIKeyService
}

// NewAPIKeysHandler constructs handler.
func NewAPIKeysHandler(keys *service.APIKeyService) *APIKeysHandler {
	return &APIKeysHandler{keys: keys}
}

// List handles GET /keys.
func (h *APIKeysHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	views, err := h.keys.List(c.UserContext(), user)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.NewKeyListResponse(views))
}

// Create handles POST /keys.
func (h *APIKeysHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateKeyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	created, err := h.keys.Create(c.UserContext(), user, req.Name)
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(http.StatusCreated).JSON(dto.NewCreatedKeyResponse(created))
}

// Revoke handles DELETE /keys/:keyId.
func (h *APIKeysHandler) Revoke(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.keys.Revoke(c.UserContext(), user, c.Params("keyId")); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.MessageResponse{Message: "API key deleted successfully"})
}
