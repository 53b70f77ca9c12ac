package handler

import (
	"net/http"

	"appgrav/internal/apierror"
	"appgrav/internal/dto"
	"appgrav/internal/middleware"
	"appgrav/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type UsersHandler struct {
	svc   service.AuthService
	audit service.AuditService
}

func NewUsersHandler(svc service.AuthService, audit service.AuditService) *UsersHandler {
	return &UsersHandler{svc: svc, audit: audit}
}

// Manage godoc
// @Summary Create, update, deactivate or delete a staff account
// @Tags users
// @Accept json
// @Produce json
// @Param body body dto.UserManagementRequest true "Action envelope"
// @Success 200 {object} dto.UserManagementResponse
// @Failure 403 {object} apierror.APIError
// @Router /v1/auth/user-management [post]
func (h *UsersHandler) Manage(c *gin.Context) {
	var req dto.UserManagementRequest
	if !bindAndValidate(c, &req) {
		return
	}

	actor := middleware.GetIdentity(c)
	resp, err := h.svc.ManageUser(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List godoc
// @Summary List staff accounts
// @Tags users
// @Produce json
// @Param include_inactive query bool false "Include deactivated accounts"
// @Success 200 {object} dto.ListUsersResponse
// @Router /v1/users [get]
func (h *UsersHandler) List(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"
	resp, err := h.svc.ListUsers(c.Request.Context(), includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Roles godoc
// @Summary List the role catalog
// @Tags users
// @Produce json
// @Success 200 {object} dto.ListRolesResponse
// @Router /v1/roles [get]
func (h *UsersHandler) Roles(c *gin.Context) {
	resp, err := h.svc.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AuditLogs godoc
// @Summary List audit log entries, newest first
// @Tags audit
// @Produce json
// @Param user_id query string false "Filter by actor"
// @Param module query string false "Filter by module"
// @Param action query string false "Filter by action"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Page offset"
// @Success 200 {object} dto.AuditLogResponse
// @Router /v1/audit-logs [get]
func (h *UsersHandler) AuditLogs(c *gin.Context) {
	var q dto.AuditLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeValidation, "Invalid query: "+err.Error()))
		return
	}
	if err := validate.Struct(&q); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return
	}

	resp, err := h.audit.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
