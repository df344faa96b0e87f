package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/clipstream/backend/internal/auth"
	"github.com/zfogg/clipstream/backend/internal/cache"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/email"
	"github.com/zfogg/clipstream/backend/internal/handlers"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"github.com/zfogg/clipstream/backend/internal/metrics"
	"github.com/zfogg/clipstream/backend/internal/middleware"
	"github.com/zfogg/clipstream/backend/internal/models"
	"github.com/zfogg/clipstream/backend/internal/notify"
	"github.com/zfogg/clipstream/backend/internal/search"
	"github.com/zfogg/clipstream/backend/internal/storage"
	"github.com/zfogg/clipstream/backend/internal/telemetry"
	"github.com/zfogg/clipstream/backend/internal/video"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("Clipstream backend starting")

	// Tracing is opt-in via OTEL_ENABLED
	tracerProvider, err := telemetry.InitTracer(telemetry.ConfigFromEnv())
	if err != nil {
		logger.Log.Warn("failed to initialize tracing", zap.Error(err))
	}
	if tracerProvider != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tracerProvider.Shutdown(ctx)
		}()
	}

	if err := database.Initialize(); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	// Redis is optional; rate limiting and response caching degrade
	// gracefully without it
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost != "" {
		if _, err := cache.NewRedisClient(redisHost, os.Getenv("REDIS_PORT"), os.Getenv("REDIS_PASSWORD")); err != nil {
			logger.Log.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		}
	}

	metrics.Initialize()

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}

	authService := auth.NewService(
		jwtSecret,
		os.Getenv("GOOGLE_CLIENT_ID"),
		os.Getenv("GOOGLE_CLIENT_SECRET"),
	)

	mediaStore, localMediaRoot := buildMediaStore()

	if err := video.CheckFFmpegAvailable(); err != nil {
		logger.Log.Warn("FFmpeg not available, video processing will fail", zap.Error(err))
	}

	processor := video.NewProcessor(mediaStore)
	processor.Start()
	defer processor.Stop()

	// Elasticsearch is optional; catalog search falls back to SQL
	var searchClient *search.Client
	if os.Getenv("ELASTICSEARCH_URL") != "" {
		searchClient, err = search.NewClient()
		if err != nil {
			logger.Log.Warn("Elasticsearch unavailable, search will use SQL fallback", zap.Error(err))
			searchClient = nil
		} else if err := searchClient.InitializeIndices(context.Background()); err != nil {
			logger.Log.Warn("failed to initialize search indices", zap.Error(err))
		}
	}

	// SES is optional in development
	var emailService *email.EmailService
	if os.Getenv("SES_FROM_EMAIL") != "" {
		emailService, err = email.NewEmailService(
			os.Getenv("AWS_REGION"),
			os.Getenv("SES_FROM_EMAIL"),
			os.Getenv("SES_FROM_NAME"),
			os.Getenv("WEB_BASE_URL"),
		)
		if err != nil {
			logger.Log.Warn("email service unavailable", zap.Error(err))
		}
	}

	notifyHub := notify.NewHub()
	go notifyHub.Run()
	defer notifyHub.Shutdown()
	notifyHandler := notify.NewHandler(notifyHub, authService)

	h := handlers.NewHandlers(mediaStore, processor)
	h.SetNotifyHub(notifyHub)
	if searchClient != nil {
		h.SetSearchClient(searchClient)
	}

	authHandlers := handlers.NewAuthHandlers(authService)
	if emailService != nil {
		authHandlers.SetEmailService(emailService)
	}

	// Index finished videos and tell the uploader their clip is live
	processor.SetVideoCompleteCallback(func(videoID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var v models.Video
		if err := database.DB.Preload("User").Where("id = ?", videoID).First(&v).Error; err != nil {
			logger.Log.Warn("completed video vanished", logger.WithVideoID(videoID), zap.Error(err))
			return
		}

		if searchClient != nil && v.Watchable() {
			if err := searchClient.IndexVideo(ctx, v.ID, search.VideoDocument(&v)); err != nil {
				logger.Log.Warn("failed to index completed video",
					logger.WithVideoID(v.ID), zap.Error(err))
			}
		}
		if v.Watchable() {
			middleware.InvalidateResponseCache("/api/v1/catalog")
		}

		event := notify.EventVideoProcessed
		payload := map[string]interface{}{"video_id": v.ID, "title": v.Title}
		if v.ProcessingStatus == models.ProcessingFailed {
			event = notify.EventVideoFailed
			payload["error"] = v.ProcessingError
		}
		notifyHub.SendToUser(v.UserID, notify.NewEvent(event, payload))
	})

	r := buildRouter(h, authHandlers, notifyHandler, localMediaRoot)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8788"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		logger.InfoWithFields("listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.FatalWithFields("Server forced to shutdown", err)
	}

	logger.Log.Info("Server exited")
}

// buildMediaStore picks S3 or local disk based on STORAGE_DRIVER.
// Returns the local media root when serving from disk, "" otherwise.
func buildMediaStore() (storage.MediaStore, string) {
	if os.Getenv("STORAGE_DRIVER") == "local" {
		root := os.Getenv("MEDIA_DIR")
		if root == "" {
			root = "./media"
		}
		baseURL := os.Getenv("MEDIA_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:8788/media"
		}
		store, err := storage.NewLocalStore(root, baseURL)
		if err != nil {
			logger.FatalWithFields("Failed to initialize local media store", err)
		}
		logger.InfoWithFields("using local media store", zap.String("root", root))
		return store, root
	}

	store, err := storage.NewS3Store(
		os.Getenv("AWS_REGION"),
		os.Getenv("AWS_BUCKET"),
		os.Getenv("CDN_BASE_URL"),
	)
	if err != nil {
		logger.FatalWithFields("Failed to initialize S3 store", err)
	}
	if err := store.CheckBucketAccess(context.Background()); err != nil {
		logger.Log.Warn("S3 bucket access failed, uploads will fail", zap.Error(err))
	}
	return store, ""
}

func buildRouter(h *handlers.Handlers, authHandlers *handlers.AuthHandlers, notifyHandler *notify.Handler, localMediaRoot string) *gin.Engine {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(otelgin.Middleware("clipstream-backend"))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := database.Health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "clipstream-backend",
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Local development serves uploaded media straight from disk
	if localMediaRoot != "" {
		r.Static("/media", localMediaRoot)
	}

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", middleware.RedisRateLimitMiddleware("register", 10, time.Hour), authHandlers.Register)
			authGroup.POST("/login", middleware.RedisRateLimitMiddleware("login", 20, 15*time.Minute), authHandlers.Login)
			authGroup.POST("/logout", authHandlers.AuthMiddleware(), authHandlers.Logout)
			authGroup.GET("/me", authHandlers.AuthMiddleware(), authHandlers.Me)
			authGroup.POST("/verify-email", authHandlers.VerifyEmail)
			authGroup.POST("/reset-password", middleware.RedisRateLimitMiddleware("reset", 5, time.Hour), authHandlers.RequestPasswordReset)
			authGroup.POST("/reset-password/confirm", authHandlers.ConfirmPasswordReset)

			authGroup.GET("/google", authHandlers.GoogleLogin)
			authGroup.GET("/google/callback", authHandlers.GoogleCallback)

			twoFactor := authGroup.Group("/2fa", authHandlers.AuthMiddleware())
			{
				twoFactor.POST("/setup", authHandlers.SetupTwoFactor)
				twoFactor.POST("/enable", authHandlers.EnableTwoFactor)
				twoFactor.POST("/disable", authHandlers.DisableTwoFactor)
			}
		}

		videos := api.Group("/videos")
		{
			videos.POST("", authHandlers.AuthMiddleware(), middleware.RedisRateLimitMiddleware("upload", 20, time.Hour), h.UploadVideo)
			videos.GET("/status/:job_id", authHandlers.AuthMiddleware(), h.GetUploadStatus)
			videos.GET("/:id", authHandlers.OptionalAuthMiddleware(), h.GetVideo)
			videos.PUT("/:id", authHandlers.AuthMiddleware(), h.UpdateVideo)
			videos.DELETE("/:id", authHandlers.AuthMiddleware(), h.DeleteVideo)

			videos.POST("/:id/reaction", authHandlers.AuthMiddleware(), h.SetReaction)
			videos.DELETE("/:id/reaction", authHandlers.AuthMiddleware(), h.RemoveReaction)
			videos.GET("/:id/reactions", authHandlers.AuthMiddleware(), h.GetReactions)

			videos.POST("/:id/watchlist", authHandlers.AuthMiddleware(), h.AddToWatchlist)
			videos.DELETE("/:id/watchlist", authHandlers.AuthMiddleware(), h.RemoveFromWatchlist)
			videos.GET("/:id/watchlisted", authHandlers.AuthMiddleware(), h.CheckWatchlisted)

			videos.POST("/:id/comments", authHandlers.AuthMiddleware(), h.CreateComment)
			videos.GET("/:id/comments", authHandlers.OptionalAuthMiddleware(), h.GetComments)
		}

		catalog := api.Group("/catalog")
		{
			catalog.GET("", middleware.ResponseCacheMiddleware(30*time.Second), h.GetCatalog)
			catalog.GET("/search", middleware.RedisRateLimitMiddleware("search", 60, time.Minute), h.SearchCatalog)
			catalog.GET("/tags", middleware.ResponseCacheMiddleware(5*time.Minute), h.GetTags)
		}

		comments := api.Group("/comments")
		{
			comments.GET("/:id/replies", h.GetReplies)
			comments.PUT("/:id", authHandlers.AuthMiddleware(), h.UpdateComment)
			comments.DELETE("/:id", authHandlers.AuthMiddleware(), h.DeleteComment)
		}

		users := api.Group("/users")
		{
			users.GET("/me", authHandlers.AuthMiddleware(), h.GetMyProfile)
			users.PUT("/me", authHandlers.AuthMiddleware(), h.UpdateMyProfile)
			users.POST("/me/avatar", authHandlers.AuthMiddleware(), h.UploadAvatar)
			users.GET("/me/watchlist", authHandlers.AuthMiddleware(), h.GetWatchlist)
			users.GET("/:id/profile", h.GetPublicProfile)
			users.GET("/:id/videos", authHandlers.OptionalAuthMiddleware(), h.GetUserVideos)
		}

		admin := api.Group("/admin", authHandlers.AuthMiddleware(), middleware.RequireAdmin())
		{
			admin.DELETE("/videos/:id", h.AdminDeleteVideo)
			admin.DELETE("/comments/:id", h.AdminDeleteComment)
			admin.POST("/users/:id/ban", h.AdminBanUser)
			admin.GET("/stats", h.AdminGetStats)
		}

		api.GET("/ws", notifyHandler.HandleWebSocket)
	}

	return r
}
