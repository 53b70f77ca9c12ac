package middleware

import (
	"errors"
	"net/http"
	"strings"

	"appgrav/internal/apierror"
	"appgrav/internal/service"

	"github.com/gin-gonic/gin"
)

const IdentityKey = "identity"

// SessionAuth validates the opaque Bearer session token on every protected
// route. The caller's identity comes exclusively from the validated session —
// request bodies never establish who is acting.
func SessionAuth(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				apierror.New(apierror.CodeSessionNotFound, "Authentication required"))
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		session, user, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, sessionError(err))
			return
		}

		sid := session.ID
		identity := service.Identity{
			UserID:    user.ID,
			SessionID: &sid,
		}
		if ip := c.ClientIP(); ip != "" {
			identity.IPAddress = &ip
		}
		if ua := c.Request.UserAgent(); ua != "" {
			identity.UserAgent = &ua
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// RequirePermission rejects callers lacking the permission code. Must run
// after SessionAuth.
func RequirePermission(perms service.PermissionService, code string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := GetIdentity(c)
		ok, err := perms.HasPermission(c.Request.Context(), identity.UserID, code)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.Internal())
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden,
				apierror.New(apierror.CodePermissionDenied, "Missing permission: "+code))
			return
		}
		c.Next()
	}
}

// GetIdentity retrieves the typed caller identity from the Gin context.
func GetIdentity(c *gin.Context) service.Identity {
	identity, _ := c.MustGet(IdentityKey).(service.Identity)
	return identity
}

func sessionError(err error) *apierror.APIError {
	var ended *service.SessionEndedError
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return apierror.New(apierror.CodeSessionNotFound, "Session not found")
	case errors.Is(err, service.ErrSessionTimeout):
		return apierror.New(apierror.CodeSessionTimeout, "Session expired due to inactivity")
	case errors.As(err, &ended):
		return apierror.New(apierror.CodeSessionEnded, "Session already ended: "+ended.Reason)
	case errors.Is(err, service.ErrInactive):
		return apierror.New(apierror.CodeUserInactive, "Account is deactivated")
	case errors.Is(err, service.ErrNotFound):
		return apierror.New(apierror.CodeUserNotFound, "User not found")
	default:
		return apierror.Internal()
	}
}
