package handler

import (
	"net/http"

	"appgrav/internal/dto"
	"appgrav/internal/middleware"
	"appgrav/internal/model"
	"appgrav/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthHandler struct{ svc service.AuthService }

func NewAuthHandler(svc service.AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// VerifyPin godoc
// @Summary PIN login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.VerifyPinRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Router /v1/auth/verify-pin [post]
func (h *AuthHandler) VerifyPin(c *gin.Context) {
	var req dto.VerifyPinRequest
	if !bindAndValidate(c, &req) {
		return
	}

	device := service.DeviceInfo{
		Type: req.DeviceType,
		Name: req.DeviceName,
	}
	if ip := c.ClientIP(); ip != "" {
		device.IPAddress = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		device.UserAgent = &ua
	}

	resp, err := h.svc.LoginWithPin(c.Request.Context(), req, device)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetSession godoc
// @Summary Validate a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.GetSessionRequest true "Session token"
// @Success 200 {object} dto.SessionValidationResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/get-session [post]
func (h *AuthHandler) GetSession(c *gin.Context) {
	var req dto.GetSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.GetSession(c.Request.Context(), req.SessionToken)
	if err != nil {
		respondSessionLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary End a session
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.LogoutRequest true "Session to end"
// @Success 200 {object} dto.OKResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req dto.LogoutRequest
	if !bindAndValidate(c, &req) {
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		respondLogoutError(c, service.ErrSessionNotFound)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(c, service.ErrNotFound)
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = model.EndReasonLogout
	}

	actor := middleware.GetIdentity(c)
	if err := h.svc.Logout(c.Request.Context(), actor, sessionID, userID, reason); err != nil {
		respondLogoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OKResponse{Success: true})
}

// ChangePin godoc
// @Summary Change a user's PIN
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.ChangePinRequest true "PIN change"
// @Success 200 {object} dto.OKResponse
// @Failure 400 {object} apierror.APIError
// @Failure 403 {object} apierror.APIError
// @Router /v1/auth/change-pin [post]
func (h *AuthHandler) ChangePin(c *gin.Context) {
	var req dto.ChangePinRequest
	if !bindAndValidate(c, &req) {
		return
	}

	actor := middleware.GetIdentity(c)
	if err := h.svc.ChangePin(c.Request.Context(), actor, req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OKResponse{Success: true, Message: "PIN updated"})
}
