package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"appgrav/internal/model"
	"appgrav/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type stubSessions struct {
	validateFn func(ctx context.Context, rawToken string) (*model.UserSession, *model.UserProfile, error)
}

func (s *stubSessions) Issue(context.Context, uuid.UUID, service.DeviceInfo) (*model.UserSession, string, error) {
	return nil, "", nil
}

func (s *stubSessions) Validate(ctx context.Context, rawToken string) (*model.UserSession, *model.UserProfile, error) {
	return s.validateFn(ctx, rawToken)
}

func (s *stubSessions) End(context.Context, uuid.UUID, uuid.UUID, string) error { return nil }

func (s *stubSessions) EndAllForUser(context.Context, uuid.UUID, string) (int64, error) {
	return 0, nil
}

type stubPerms struct {
	granted map[string]bool
}

func (p *stubPerms) EffectivePermissions(context.Context, uuid.UUID) ([]model.EffectivePermission, error) {
	return nil, nil
}

func (p *stubPerms) HasPermission(_ context.Context, _ uuid.UUID, code string) (bool, error) {
	return p.granted[code], nil
}

func (p *stubPerms) Invalidate(context.Context, uuid.UUID) {}

func protectedRouter(sessions service.SessionService, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append([]gin.HandlerFunc{SessionAuth(sessions)}, extra...)
	chain = append(chain, func(c *gin.Context) {
		identity := GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user_id": identity.UserID.String()})
	})
	r.GET("/protected", chain...)
	return r
}

func doGet(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestSessionAuth_MissingOrMalformedHeader(t *testing.T) {
	sessions := &stubSessions{
		validateFn: func(context.Context, string) (*model.UserSession, *model.UserProfile, error) {
			t.Fatal("Validate must not run without a bearer token")
			return nil, nil, nil
		},
	}
	r := protectedRouter(sessions)

	assert.Equal(t, http.StatusUnauthorized, doGet(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Basic abc123").Code)
}

func TestSessionAuth_ValidTokenSetsIdentity(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	sessions := &stubSessions{
		validateFn: func(_ context.Context, rawToken string) (*model.UserSession, *model.UserProfile, error) {
			assert.Equal(t, "tok-abc", rawToken)
			return &model.UserSession{ID: sessionID, UserID: userID, StartedAt: time.Now()},
				&model.UserProfile{ID: userID, IsActive: true}, nil
		},
	}

	w := doGet(protectedRouter(sessions), "Bearer tok-abc")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
}

func TestSessionAuth_RejectsInvalidSessions(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"unknown token", service.ErrSessionNotFound},
		{"idle timeout", service.ErrSessionTimeout},
		{"force ended", &service.SessionEndedError{Reason: model.EndReasonForced}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions := &stubSessions{
				validateFn: func(context.Context, string) (*model.UserSession, *model.UserProfile, error) {
					return nil, nil, tc.err
				},
			}
			assert.Equal(t, http.StatusUnauthorized, doGet(protectedRouter(sessions), "Bearer x").Code)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	userID := uuid.New()
	sessions := &stubSessions{
		validateFn: func(context.Context, string) (*model.UserSession, *model.UserProfile, error) {
			return &model.UserSession{ID: uuid.New(), UserID: userID},
				&model.UserProfile{ID: userID, IsActive: true}, nil
		},
	}
	perms := &stubPerms{granted: map[string]bool{"users.view": true}}

	allowed := protectedRouter(sessions, RequirePermission(perms, "users.view"))
	assert.Equal(t, http.StatusOK, doGet(allowed, "Bearer x").Code)

	denied := protectedRouter(sessions, RequirePermission(perms, "users.delete"))
	w := doGet(denied, "Bearer x")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "permission_denied")
}
