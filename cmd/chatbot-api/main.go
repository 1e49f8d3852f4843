package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/chatops-labs/chatbot-api/api/swagger"
	"github.com/chatops-labs/chatbot-api/internal/handler"
	"github.com/chatops-labs/chatbot-api/internal/middleware"
	"github.com/chatops-labs/chatbot-api/internal/repository"
	"github.com/chatops-labs/chatbot-api/internal/service"
	"github.com/chatops-labs/chatbot-api/pkg/cache"
	"github.com/chatops-labs/chatbot-api/pkg/config"
	"github.com/chatops-labs/chatbot-api/pkg/database"
	"github.com/chatops-labs/chatbot-api/pkg/logger"
	corsmiddleware "github.com/chatops-labs/chatbot-api/pkg/middleware/cors"
	reqidmiddleware "github.com/chatops-labs/chatbot-api/pkg/middleware/requestid"
)

// @title Chatbot API
// @version 1.0.0
// @description REST API for user registration, session management, and chat.
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Redis only backs the rate limit probe and readiness detail; the
		// API stays functional without it.
		logr.Warn("redis unavailable, rate limit probe disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	auditRecorder := service.NewAuditRecorder(auditRepo, logr)
	tokenSvc := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	sessionSvc := service.NewSessionService(tokenRepo, userRepo, tokenSvc, auditRecorder, metricsSvc, validate, logr, service.SessionConfig{
		RefreshTokenExpiry:  cfg.Auth.RefreshTokenExpiry,
		RefreshTokenMaxLife: cfg.Auth.RefreshTokenMaxLife,
		BcryptCost:          cfg.Auth.BcryptCost,
	})
	userSvc := service.NewUserService(userRepo, userRepo, auditRecorder, validate, logr, cfg.Auth.BcryptCost)
	chatSvc := service.NewChatService(logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	authHandler := handler.NewAuthHandler(userSvc, sessionSvc, handler.CookieConfig{
		MaxAge: int(cfg.Auth.RefreshTokenExpiry.Seconds()),
		Secure: cfg.Env == config.EnvProduction,
	})

	handler.RegisterRoutes(r, cfg, handler.RouterDeps{
		Auth:      authHandler,
		Chat:      handler.NewChatHandler(chatSvc),
		Health:    handler.NewHealthHandler(db, redisClient, logr),
		Metrics:   handler.NewMetricsHandler(metricsSvc),
		JWT:       middleware.JWT(tokenSvc, userRepo),
		RateLimit: middleware.RateLimitProbe(redisClient, cfg.RateLimit, logr),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
