package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"challenge-scoring-api/config"
	"challenge-scoring-api/controllers"
	"challenge-scoring-api/middleware"
	"challenge-scoring-api/routes"
	"challenge-scoring-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml)")
	flag.Parse()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logFile, logger := config.InitLogging(settings.Logging)
	if logFile != nil {
		defer logFile.Close()
	}
	defer func() { _ = logger.Sync() }()

	if settings.Auth.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	// Initialize database
	db, err := config.InitDB(settings)
	if err != nil {
		logger.Fatal("database initialisation failed", zap.Error(err))
	}
	if settings.Database.AutoMigrate {
		sqlDB, err := db.DB()
		if err != nil {
			logger.Fatal("database handle unavailable", zap.Error(err))
		}
		if err := config.RunMigrations(sqlDB); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	opts := services.EngineOptions{
		ReEvaluationWorkers: settings.Scoring.ReEvaluationWorkers,
		BatchLockName:       settings.Scoring.BatchLockName,
		ItemTimeout:         settings.Scoring.ItemTimeout,
		TimelineMonths:      settings.Scoring.TimelineMonths,
	}
	if settings.Redis.Enabled {
		rdb, err := config.NewRedis(context.Background(), settings.Redis)
		if err != nil {
			logger.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			opts.Cache = services.NewRedisAnalyticsCache(rdb, settings.Redis.CacheTTL)
		}
	}
	engine := services.NewEngine(db, opts)
	controllers.Init(engine)

	// Set Gin mode
	if settings.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	auth := middleware.AuthOptions{Secret: settings.Auth.JWTSecret}
	if settings.Auth.VerifyUserExist {
		auth.Users = engine.Store
	}
	routes.SetupRoutes(router, auth)

	srv := &http.Server{
		Addr:              ":" + settings.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("port", settings.Server.Port),
			zap.String("environment", settings.Environment),
			zap.Bool("analytics_cache", settings.Redis.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
}
