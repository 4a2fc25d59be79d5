package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campusgate/recruitment-backend/internal/clock"
	"github.com/campusgate/recruitment-backend/internal/config"
	"github.com/campusgate/recruitment-backend/internal/db"
	httpHandlers "github.com/campusgate/recruitment-backend/internal/http/handlers"
	httpRouter "github.com/campusgate/recruitment-backend/internal/http/router"
	"github.com/campusgate/recruitment-backend/internal/logger"
	"github.com/campusgate/recruitment-backend/internal/notify"
	"github.com/campusgate/recruitment-backend/internal/repository"
	"github.com/campusgate/recruitment-backend/internal/service"
	"github.com/campusgate/recruitment-backend/internal/session"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
	}
	logger.Init(logLevel, cfg.Env)

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	clk := clock.System{}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	otpRepo := repository.NewOTPRepository(dbConn)
	rateLimitRepo := repository.NewRateLimitRepository(dbConn)
	hrRepo := repository.NewHRRepository(dbConn)

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	notifier := notify.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.FromEmail, cfg.BaseURL)
	sessions := session.NewMemoryStore(cfg.FlowSessionTTL, clk)

	// Сервисы.
	otpService := service.NewOTPService(otpRepo, clk, service.OTPConfig{
		CodeTTL:           cfg.OTPCodeTTL,
		MaxFailedAttempts: cfg.OTPMaxFailed,
		LockoutDuration:   cfg.OTPLockout,
		ResendInterval:    cfg.OTPResendInterval,
		MaxPerWindow:      cfg.OTPMaxPerWindow,
		IssuanceWindow:    cfg.OTPIssuanceWindow,
	})
	rateLimitService := service.NewRateLimitService(rateLimitRepo, clk, service.RateLimitConfig{
		Window:        cfg.SourceLimitWindow,
		MaxAttempts:   cfg.SourceLimitMax,
		BlockDuration: cfg.SourceLimitBlock,
	})
	flowService := service.NewFlowService(otpService, rateLimitService, sessions, userRepo, notifier)
	approvalService := service.NewApprovalService(hrRepo, userRepo, notifier, clk, cfg.AdminEmail)
	authService := service.NewAuthService(userRepo, approvalService, flowService, tokenManager, clk)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService, flowService)
	hrHandler := httpHandlers.NewHRHandler(authService, flowService)
	passwordHandler := httpHandlers.NewPasswordHandler(authService, flowService)
	approvalHandler := httpHandlers.NewApprovalHandler(approvalService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, hrHandler, passwordHandler, approvalHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
