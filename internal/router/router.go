package router

import (
	"time"

	"appgrav/internal/config"
	"appgrav/internal/handler"
	"appgrav/internal/middleware"
	"appgrav/internal/repository"
	"appgrav/internal/service"
	"appgrav/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, dispatcher *worker.Dispatcher) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	rbacRepo := repository.NewRBACRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	auditSvc := service.NewAuditService(auditRepo, dispatcher)
	permSvc := service.NewPermissionService(rbacRepo, rdb, cfg)
	sessionSvc := service.NewSessionService(sessionRepo, userRepo, cfg)
	credentialSvc := service.NewCredentialService(userRepo, sessionSvc, permSvc, auditSvc, dispatcher, cfg)
	authSvc := service.NewAuthService(userRepo, rbacRepo, credentialSvc, sessionSvc, permSvc, auditSvc)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usersH := handler.NewUsersHandler(authSvc, auditSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Auth (public) — token travels in the body, identity comes from the PIN
	// or the token itself, never from headers.
	auth := r.Group("/v1/auth")
	{
		auth.POST("/verify-pin", middleware.LoginRateLimiter(), authH.VerifyPin)
		auth.POST("/get-session", authH.GetSession)
	}

	// Protected routes — bearer session token required
	sessionMW := middleware.SessionAuth(sessionSvc)
	v1 := r.Group("/v1", sessionMW)
	{
		v1.POST("/auth/logout", authH.Logout)
		v1.POST("/auth/change-pin", authH.ChangePin)
		v1.POST("/auth/user-management", usersH.Manage)

		v1.GET("/users", middleware.RequirePermission(permSvc, service.PermUsersView), usersH.List)
		v1.GET("/roles", middleware.RequirePermission(permSvc, service.PermUsersView), usersH.Roles)
		v1.GET("/audit-logs", middleware.RequirePermission(permSvc, service.PermAuditView), usersH.AuditLogs)
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
