package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/brymix/dashboard-bff/internal/api/dto"
	"github.com/brymix/dashboard-bff/internal/service"
	apperrors "github.com/brymix/dashboard-bff/pkg/util"
)

// TwoFactorHandler exposes the /2fa endpoints.
type TwoFactorHandler struct {
	twoFactor *service.TwoFactorService
}

// NewTwoFactorHandler constructs handler.
func NewTwoFactorHandler(twoFactor *service.TwoFactorService) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactor: twoFactor}
}

// Setup handles POST /2fa/setup.
func (h *TwoFactorHandler) Setup(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	result, err := h.twoFactor.Setup(c.UserContext(), user.ID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.SetupResponse{QRCode: result.QRCode, Secret: result.Secret})
}

// Enable handles POST /2fa/enable. A wrong code is a 400 here, not a login failure.
func (h *TwoFactorHandler) Enable(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.EnableRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validationFailed(req.Validate()); err != nil {
		return err
	}

	codes, err := h.twoFactor.Enable(c.UserContext(), user.ID, req.Token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTwoFactorToken) {
			return apperrors.NewBadRequest("invalid 2FA token")
		}
		return mapServiceError(err)
	}
	return c.JSON(dto.EnableResponse{Message: "2FA enabled successfully", BackupCodes: codes})
}

// Disable handles POST /2fa/disable.
func (h *TwoFactorHandler) Disable(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.DisableRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validationFailed(req.Validate()); err != nil {
		return err
	}

	if err := h.twoFactor.Disable(c.UserContext(), user.ID, req.Password); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.MessageResponse{Message: "2FA disabled successfully"})
}

// Verify handles POST /2fa/verify. It is unauthenticated and rate limited.
func (h *TwoFactorHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validationFailed(req.Validate()); err != nil {
		return err
	}

	verified, err := h.twoFactor.Verify(c.UserContext(), service.VerifyInput{
		Email:        req.Email,
		Token:        req.Token,
		IsBackupCode: req.IsBackupCode,
		ClientIP:     c.IP(),
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.VerifyResponse{Verified: verified})
}

// Status handles GET /2fa/status.
func (h *TwoFactorHandler) Status(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	status, err := h.twoFactor.Status(c.UserContext(), user.ID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.StatusResponse{Enabled: status.Enabled, BackupCodesCount: status.BackupCodesCount})
}
