package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/brymix/dashboard-bff/internal/api/dto"
	"github.com/brymix/dashboard-bff/internal/repository"
	"github.com/brymix/dashboard-bff/internal/service"
	apperrors "github.com/brymix/dashboard-bff/pkg/util"
)

// AuthHandler exposes the /auth endpoints.
type AuthHandler struct {
	auth        *service.AuthService
	minPassword int
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, minPassword int) *AuthHandler {
	return &AuthHandler{auth: authService, minPassword: minPassword}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validationFailed(req.Validate(h.minPassword)); err != nil {
		return err
	}

	result, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Company:  req.Company,
		Name:     req.Name,
		ClientIP: c.IP(),
	})
	if err != nil {
		return mapServiceError(err)
	}

	return c.Status(http.StatusCreated).JSON(dto.AuthResponse{
		Message:      "user registered successfully",
		User:         dto.NewUserResponse(result.User),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validationFailed(req.Validate()); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), service.LoginInput{
		Email:          req.Email,
		Password:       req.Password,
		TwoFactorToken: req.TwoFactorToken,
		IsBackupCode:   req.IsBackupCode,
		ClientIP:       c.IP(),
	})
	if err != nil {
		return mapServiceError(err)
	}
	if result.RequiresTwoFactor {
		return c.JSON(dto.TwoFactorRequiredResponse{RequiresTwoFactor: true})
	}

	return c.JSON(dto.AuthResponse{
		Message:      "login successful",
		User:         dto.NewUserResponse(result.User),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return apperrors.NewUnauthorized("refresh token required")
	}

	tokens, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.TokenPairResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(dto.UserEnvelope{User: dto.NewUserResponse(user)})
}

// UpdateProfile handles PUT /auth/profile.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validationFailed(req.Validate()); err != nil {
		return err
	}

	update := repository.ProfileUpdate{Name: req.Name, Company: req.Company}
	if req.Settings != nil {
		settings := req.Settings.ToDomain()
		update.Settings = &settings
	}
	updated, err := h.auth.UpdateProfile(c.UserContext(), user.ID, update)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.UserEnvelope{Message: "profile updated successfully", User: dto.NewUserResponse(updated)})
}

// ChangePassword handles PUT /auth/password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validationFailed(req.Validate(h.minPassword)); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.UserContext(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.MessageResponse{Message: "password changed successfully"})
}
