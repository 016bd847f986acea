package main

import (
	"context"

	"postdeck/internal/ai"
	"postdeck/internal/config"
	"postdeck/internal/handlers"
	"postdeck/internal/media"
	"postdeck/internal/orchestrator"
	"postdeck/internal/platform"
	"postdeck/internal/platform/facebook"
	"postdeck/internal/platform/instagram"
	"postdeck/internal/platform/linkedin"
	"postdeck/internal/platform/twitter"
	"postdeck/internal/scheduler"
	"postdeck/internal/store"
	"postdeck/internal/tokencache"
	pkgconfig "postdeck/pkg/config"
	fieldcrypt "postdeck/pkg/crypto"
	"postdeck/pkg/database"
	"postdeck/pkg/logging"
	"postdeck/pkg/middleware"
	"postdeck/pkg/monitoring"
	"postdeck/pkg/redis"
	"postdeck/pkg/server"
	"postdeck/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("postdeck")

	// Load environment variables
	pkgconfig.LoadEnv(logger)

	logger.Info("Starting Postdeck (Multi-Platform Publish Orchestrator)")

	cfg := config.Load()

	// Connect to database
	db := database.MustConnect(database.DefaultConfig(cfg.DatabaseURL), logger)
	defer func() { _ = db.Close() }()

	// Stored platform tokens are field-encrypted when a key is configured
	var encryptor *fieldcrypt.FieldEncryptor
	if cfg.EncryptionKey != "" {
		var err error
		encryptor, err = fieldcrypt.DeriveFieldEncryptor([]byte(cfg.EncryptionKey), "credentials")
		if err != nil {
			logger.WithError(err).Fatal("Failed to derive field encryptor")
		}
	} else {
		logger.Warn("ENCRYPTION_KEY not set, storing platform tokens in plaintext")
	}

	st := store.New(db, encryptor)

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("postdeck", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("postdeck", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"JWT_SECRET":   cfg.JWTSecret,
	}))

	// Request-token cache: redis when configured, in-process otherwise
	var cache tokencache.Cache = tokencache.NewMemoryCache()
	if cfg.RedisAddr != "" {
		redisClient, err := redis.NewClient(context.Background(), redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to redis")
		}
		defer func() { _ = redisClient.Close() }()
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
		cache = tokencache.NewRedisCache(redisClient)
	} else {
		logger.Warn("REDIS_ADDR not set, using in-process request token cache (single instance only)")
	}

	fetcher := media.NewFetcher(cfg.MediaFetchTimeout)

	// Media rehosting is optional; without a bucket, schedule requests keep
	// their original media URLs.
	var mediaStore handlers.MediaStore
	if cfg.S3.Bucket != "" {
		s3Store, err := media.NewS3Store(cfg.S3, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize media object store")
		}
		mediaStore = s3Store
	} else {
		logger.Warn("S3_BUCKET not set, media rehosting disabled")
	}

	// Platform registry: twitter/linkedin/facebook degrade to a share
	// dialog on upstream failure, instagram has no manual fallback
	twitterClient := twitter.NewClient(cfg.TwitterConsumerKey, cfg.TwitterConsumerSecret, fetcher)
	registry := platform.NewRegistry()
	registry.Register(platform.Twitter, platform.Entry{Client: twitterClient, Fallback: twitter.ShareDialogResult})
	registry.Register(platform.LinkedIn, platform.Entry{Client: linkedin.NewClient(fetcher), Fallback: linkedin.ShareDialogResult})
	registry.Register(platform.Facebook, platform.Entry{Client: facebook.NewClient(), Fallback: facebook.ShareDialogResult})
	registry.Register(platform.Instagram, platform.Entry{Client: instagram.NewClient(), Fallback: nil})

	orch := orchestrator.New(logger, registry, st, st)
	for _, metric := range orch.Metrics() {
		metricsCollector.RegisterCustomMetric(metric)
	}

	// Background scheduler
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	worker := scheduler.NewWorker(logger, st, orch, cfg.SchedulerInterval)
	go worker.Start(schedulerCtx)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "postdeck", healthChecker, metricsCollector)

	publishHandler := handlers.NewPublishHandler(orch, logger)
	scheduleHandler := handlers.NewScheduleHandler(st, mediaStore, fetcher, logger)
	notificationsHandler := handlers.NewNotificationsHandler(st, logger)
	connectHandler := handlers.NewConnectHandler(twitterClient, st, cache, cfg.BaseURL+"/api/connect/twitter/callback", logger)
	generateHandler := handlers.NewGenerateHandler(ai.NewCaptioner(ai.Config{
		APIURL: cfg.AIAPIURL,
		APIKey: cfg.AIAPIKey,
		Model:  cfg.AIModel,
	}), logger)

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware([]byte(cfg.JWTSecret), logger))
	{
		api.POST("/publish", publishHandler.Handle)

		api.POST("/schedule", scheduleHandler.Create)
		api.GET("/schedule", scheduleHandler.List)
		api.DELETE("/schedule/:id", scheduleHandler.Cancel)

		api.GET("/notifications", notificationsHandler.List)
		api.POST("/notifications/:id/read", notificationsHandler.MarkRead)

		api.GET("/connect/twitter", connectHandler.StartTwitter)

		api.POST("/generate/caption", generateHandler.Caption)
	}

	// Twitter redirects the browser here without a bearer token; the user is
	// identified through the cached request token instead.
	router.GET("/api/connect/twitter/callback", connectHandler.TwitterCallback)

	serverConfig := server.DefaultConfig("postdeck", cfg.Port)
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}
