package router

import (
	"github.com/gin-gonic/gin"

	"github.com/campusgate/recruitment-backend/internal/config"
	"github.com/campusgate/recruitment-backend/internal/http/handlers"
	"github.com/campusgate/recruitment-backend/internal/http/middleware"
	"github.com/campusgate/recruitment-backend/internal/models"
	"github.com/campusgate/recruitment-backend/internal/service"
)

// SetupRouter собирает таблицу маршрутов и цепочку middleware.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	hrHandler *handlers.HRHandler,
	passwordHandler *handlers.PasswordHandler,
	approvalHandler *handlers.ApprovalHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.ClientIPMiddleware(cfg.TrustedProxies))
	r.Use(middleware.RequestLoggerMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// Грубый срез по IP на все маршруты подтверждения и входа. Точные
	// лимиты по действиям считает персистентный лимитер в сервисах.
	authRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)

	authGroup := api.Group("/auth")
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register/start", authHandler.StartRegistration)
		authGroup.POST("/register/verify", authHandler.VerifyRegistration)
		authGroup.POST("/register/complete", authHandler.CompleteRegistration)
		authGroup.POST("/login", authHandler.Login)

		authGroup.POST("/password/forgot", passwordHandler.Forgot)
		authGroup.POST("/password/verify", passwordHandler.Verify)
		authGroup.POST("/password/reset", passwordHandler.Reset)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.GET("/me", authHandler.Me)
	}

	hrGroup := api.Group("/hr")
	hrGroup.Use(authRateLimit)
	{
		hrGroup.POST("/register/start", hrHandler.StartRegistration)
		hrGroup.POST("/register/verify", hrHandler.VerifyRegistration)
		hrGroup.POST("/register/complete", hrHandler.CompleteRegistration)

		// Ссылки решения из письма администратору: GET, авторизация токеном.
		hrGroup.GET("/approve/:token", approvalHandler.Approve)
		hrGroup.GET("/reject/:token", approvalHandler.Reject)
	}

	protectedHR := api.Group("/hr")
	protectedHR.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(models.RoleHR))
	{
		protectedHR.GET("/me", hrHandler.Me)
	}

	return r
}
