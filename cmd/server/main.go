package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"carematch/internal/config"
	"carematch/internal/handler"
	"carematch/internal/middleware"
	"carematch/internal/registry"
	"carematch/internal/repository"
	"carematch/internal/service"
	"carematch/pkg/jwt"
	"carematch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	var repos *repository.Repositories
	if cfg.Database.DSN == "memory" {
		repos = repository.NewMemoryRepositories(rdb, appLogger)
		appLogger.Warn("Using in-memory store; rooms will not survive a restart")
	} else {
		dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
		if err != nil {
			appLogger.Fatal("Failed to connect to database", "error", err)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(context.Background()); err != nil {
			appLogger.Fatal("Failed to ping database", "error", err)
		}
		appLogger.Info("Database connection established")

		repos = repository.NewRepositories(dbPool, rdb, appLogger)
	}

	// The registry only tracks live sockets; it is rebuilt from scratch on
	// every restart as clients reconnect.
	roomRegistry := registry.New(appLogger)

	services := service.NewServices(repos, roomRegistry, cfg, appLogger)

	tokenManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer)
	authMiddleware := middleware.NewAuthMiddleware(tokenManager, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	handlers := handler.NewHandlers(services, authMiddleware, cfg, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)

	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			negotiations := protected.Group("/negotiations")
			{
				negotiations.POST("",
					rateLimitMiddleware.Limit("room_create", cfg.RateLimit.RoomsPerHour, 3600),
					handlers.Negotiation.Start)
				negotiations.GET("", handlers.Negotiation.List)
				negotiations.GET("/:id", handlers.Negotiation.GetByID)
				negotiations.PATCH("/:id/status", handlers.Negotiation.UpdateStatus)
				negotiations.POST("/:id/messages",
					rateLimitMiddleware.Limit("message_send", cfg.RateLimit.MessagesPerMinute, 60),
					handlers.Negotiation.SendMessage)
				negotiations.POST("/:id/read", handlers.Negotiation.MarkRead)
				negotiations.POST("/:id/proposal", handlers.Negotiation.SendProposal)
				negotiations.PATCH("/:id/proposal", handlers.Negotiation.RespondProposal)
				negotiations.GET("/:id/unread", handlers.Negotiation.UnreadCount)
			}
		}
	}

	// Realtime gateway; the token travels as a query param because browsers
	// cannot set headers on websocket upgrades.
	router.GET("/ws/negotiations/:id", handlers.WebSocket.HandleNegotiation)

	return router
}
