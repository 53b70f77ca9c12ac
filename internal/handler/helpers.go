package handler

import (
	"errors"
	"net/http"
	"time"

	"appgrav/internal/apierror"
	"appgrav/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "Invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError maps service-layer errors to HTTP statuses and the stable
// error-code envelope. Unknown errors are logged by ErrorHandler and
// surface as a safe 500.
func respondError(c *gin.Context, err error) {
	var (
		invalid    *service.InvalidCredentialError
		locked     *service.LockedError
		forbidden  *service.ForbiddenError
		ended      *service.SessionEndedError
		validation *service.ValidationError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, validation.Message))
	case errors.As(err, &invalid):
		resp := apierror.New(apierror.CodeInvalidPIN, "Invalid PIN")
		remaining := invalid.AttemptsRemaining
		resp.AttemptsRemaining = &remaining
		c.JSON(http.StatusUnauthorized, resp)
	case errors.As(err, &locked):
		resp := apierror.New(apierror.CodeAccountLocked, "Account locked due to repeated failed attempts")
		resp.LockedUntil = locked.Until.UTC().Format(time.RFC3339)
		c.JSON(http.StatusForbidden, resp)
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, apierror.New(apierror.CodePermissionDenied, "Missing permission: "+forbidden.Permission))
	case errors.As(err, &ended):
		c.JSON(http.StatusUnauthorized, apierror.New(apierror.CodeSessionEnded, "Session already ended: "+ended.Reason))
	case errors.Is(err, service.ErrInvalidPINFormat):
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeInvalidPINFormat, "PIN must be 4 to 6 digits"))
	case errors.Is(err, service.ErrCurrentPINMissing):
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "current_pin is required without admin_override"))
	case errors.Is(err, service.ErrInactive):
		c.JSON(http.StatusForbidden, apierror.New(apierror.CodeUserInactive, "Account is deactivated"))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, apierror.New(apierror.CodeUserNotFound, "User not found"))
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusUnauthorized, apierror.New(apierror.CodeSessionNotFound, "Session not found"))
	case errors.Is(err, service.ErrSessionTimeout):
		c.JSON(http.StatusUnauthorized, apierror.New(apierror.CodeSessionTimeout, "Session expired due to inactivity"))
	case errors.Is(err, service.ErrSelfAction):
		c.JSON(http.StatusForbidden, apierror.New(apierror.CodeSelfActionRejected, "Cannot perform this action on your own account"))
	case errors.Is(err, service.ErrProtectedAccount):
		c.JSON(http.StatusForbidden, apierror.New(apierror.CodeProtectedAccount, "Super admin accounts cannot be modified this way"))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.Internal())
	}
}

// respondSessionLookupError maps get-session failures. Whatever the
// underlying cause — unknown owner, deactivated owner, dead token — the
// caller holds no usable session, so every auth-state failure here is a 401.
func respondSessionLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInactive):
		c.JSON(http.StatusUnauthorized, apierror.New(apierror.CodeUserInactive, "Account is deactivated"))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusUnauthorized, apierror.New(apierror.CodeUserNotFound, "User not found"))
	default:
		respondError(c, err)
	}
}

// respondLogoutError maps logout failures. A session the caller does not
// own looks identical to one that never existed, and both are a 404 on
// this endpoint: the resource asked to be ended is not there.
func respondLogoutError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, apierror.New(apierror.CodeSessionNotFound, "Session not found"))
		return
	}
	respondError(c, err)
}
