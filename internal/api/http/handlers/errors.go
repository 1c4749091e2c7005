package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/brymix/dashboard-bff/internal/api/dto"
	"github.com/brymix/dashboard-bff/internal/auth"
	"github.com/brymix/dashboard-bff/internal/domain"
	"github.com/brymix/dashboard-bff/internal/service"
	"github.com/brymix/dashboard-bff/internal/upstream"
	apperrors "github.com/brymix/dashboard-bff/pkg/util"
)

// mapServiceError translates service and upstream errors into API errors.
// Unknown errors pass through and render as INTERNAL_ERROR.
func mapServiceError(err error) error {
	var statusErr *upstream.StatusError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrDuplicateUser):
		return apperrors.NewDuplicateUser()
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewInvalidCredentials()
	case errors.Is(err, service.ErrInvalidTwoFactorToken):
		return apperrors.NewInvalidTwoFactorToken()
	case errors.Is(err, service.ErrAccountLocked):
		return apperrors.NewAccountLocked()
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return apperrors.NewTokenInvalid("invalid refresh token")
	case errors.Is(err, service.ErrWeakPassword):
		return apperrors.NewValidationError("validation failed", map[string]any{"password": err.Error()})
	case errors.Is(err, service.ErrCurrentPasswordInvalid):
		return apperrors.NewBadRequest("current password is incorrect")
	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.NewNotFound("user", nil)
	case errors.Is(err, service.ErrTwoFactorAlreadyEnabled):
		return apperrors.NewBadRequest("2FA is already enabled")
	case errors.Is(err, service.ErrNoPendingSetup):
		return apperrors.NewBadRequest("2FA setup not initiated")
	case errors.Is(err, service.ErrInvalidPassword):
		return apperrors.NewBadRequest("invalid password")
	case errors.Is(err, service.ErrInvalidVerifyRequest):
		return apperrors.NewBadRequest("invalid request")
	case errors.Is(err, service.ErrKeyNameRequired):
		return apperrors.NewValidationError("validation failed", map[string]any{"name": "is required"})
	case errors.Is(err, service.ErrKeyNotFound):
		return apperrors.NewNotFound("API key", nil)
	case errors.Is(err, service.ErrJobNotFound):
		return apperrors.NewNotFound("job", nil)
	case errors.Is(err, upstream.ErrUpstreamUnavailable):
		return apperrors.NewUpstreamUnavailable(err)
	case errors.Is(err, upstream.ErrNotFound):
		return apperrors.NewNotFound("upstream resource", nil)
	case errors.As(err, &statusErr):
		return apperrors.NewUpstreamError(statusErr.StatusCode, statusErr.Detail)
	}
	return err
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	return nil
}

func validationFailed(errs dto.FieldErrors) error {
	if errs == nil {
		return nil
	}
	return apperrors.NewValidationError("validation failed", errs.Details())
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return user, nil
}
