package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/user-account-service/internal/auth"
)

// writeError maps a service error to a stable status and message.  Causes
// of server-side failures are logged and never sent to the client.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	status, msg := http.StatusInternalServerError, "internal server error"
	switch {
	case errors.Is(err, auth.ErrNotFound):
		status, msg = http.StatusNotFound, "user not found"
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, auth.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenInvalid):
		status, msg = http.StatusUnauthorized, "invalid token"
	case errors.Is(err, auth.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, auth.ErrMismatch):
		status, msg = http.StatusBadRequest, "passwords do not match"
	case errors.Is(err, auth.ErrPolicyViolation):
		status, msg = http.StatusBadRequest, policyReason(err)
	case errors.Is(err, auth.ErrEmailTaken):
		status, msg = http.StatusConflict, "email already registered"
	default:
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func policyReason(err error) string {
	reason := strings.TrimPrefix(err.Error(), auth.ErrPolicyViolation.Error()+": ")
	if reason == "" || reason == err.Error() {
		return auth.ErrPolicyViolation.Error()
	}
	return reason
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
