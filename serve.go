package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/ai"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/api"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/api/middleware"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/cache"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/catalog"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/config"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/db"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/logging"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/storage"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/tasks"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/weather"
)

const (
	shutdownTimeout   = 15 * time.Second
	imageFetchTimeout = 30 * time.Second
	weatherTimeout    = 10 * time.Second
)

func serve(ctx context.Context, mode string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(mode)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	clock := clockwork.NewRealClock()

	cat, err := catalog.FromDir(cfg.CatalogDir)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	rewards, err := config.LoadRewards(cfg.RewardsFile)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(rdb, logger); err != nil {
			logger.Error("Error disconnecting from Redis", zap.Error(err))
		}
	}()

	objects, err := openObjectStore(ctx, cfg)
	if err != nil {
		return err
	}

	taskClient := tasks.NewClient(rdb)
	defer taskClient.Close()
	queue := tasks.NewQueue(taskClient, tasks.QueueOptions{
		VerifyMaxRetry: cfg.VerifyMaxRetry,
		VerifyTimeout:  cfg.VerifyTimeout,
	}, logger)

	deps := services.MissionDeps{
		Store:   st,
		Catalog: cat,
		Objects: objects,
		Weather: weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey, &http.Client{Timeout: weatherTimeout}),
		Queue:   queue,
		Rewards: rewards,
		Options: services.MissionOptions{
			ImageMaxDimension: cfg.ImageMaxDimension,
			ImageMaxBytes:     cfg.ImageMaxSizeMB << 20,
		},
		Clock:  clock,
		Logger: logger,
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel,
			ai.HTTPFetcher(&http.Client{Timeout: imageFetchTimeout}, int64(cfg.ImageMaxSizeMB)<<20), nil)
		if err != nil {
			return err
		}
		deps.Verifier = gemini
		deps.Generator = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set: submissions wait for manual review and missions come from the catalog")
	}

	ledger := services.NewLedgerService(st, queue, clock, logger)
	deps.Ledger = ledger
	deps.Fraud = services.NewFraudService(st, services.FraudOptions{
		SubmissionHistory: cfg.FraudSubmissionHistory,
		SuspensionDays:    cfg.FraudSuspensionDays,
		MaxFarmDistanceKm: cfg.FraudMaxFarmDistanceKm,
	}, clock, logger)
	missions := services.NewMissionService(deps)
	badges := services.NewBadgeService(st, cat, clock, logger)

	activity := services.NewActivityService(st, ledger, clock, logger)

	svc := api.Services{
		Missions:    missions,
		Streaks:     services.NewStreakService(st, ledger, rewards, cfg.Location, clock, logger),
		Activity:    activity,
		Badges:      badges,
		Dashboard:   services.NewDashboardService(st, activity),
		Leaderboard: services.NewLeaderboardService(st, cache.NewJSONCache(rdb), cfg.LeaderboardCacheTTL, clock, logger),
		Fraud:       deps.Fraud,
		Catalog:     cat,
	}

	g, gctx := errgroup.WithContext(ctx)
	shutdownChan := make(chan struct{}, 1)

	// Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, st.Ping, shutdownChan, logger),
	}
	g.Go(func() error {
		logger.Info("Service API listening", zap.String("port", cfg.ServiceApiPort))
		return listen(serviceSrv)
	})

	var (
		mainApiSrv *http.Server
		limiters   api.Limiters
		taskSrv    *asynq.Server
		sweeper    *tasks.Sweeper
	)

	apiMode := func() {
		limiters = api.Limiters{
			General: middleware.NewRateLimiter("general", middleware.Bucket{
				Size: cfg.RateLimitBucketSize, Rate: cfg.RateLimitRefillRate, Per: time.Second,
			}, clock, logger),
			Upload: middleware.NewRateLimiter("upload", middleware.Bucket{
				Size: cfg.RateLimitUploadBucketSize, Rate: cfg.RateLimitUploadRefillRate, Per: time.Minute,
			}, clock, logger),
		}
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: api.SetupRouter(cfg, svc, limiters, logger),
		}
		g.Go(func() error {
			logger.Info("Main API listening", zap.String("port", cfg.ApiPort))
			return listen(mainApiSrv)
		})
	}

	workerMode := func() error {
		processor := tasks.NewTaskProcessor(missions, badges, logger)
		srv := tasks.SetupServer(tasks.RedisOpt(rdb), 0, logger)
		if err := srv.Start(processor.Mux()); err != nil {
			return fmt.Errorf("failed to start task server: %w", err)
		}
		taskSrv = srv
		logger.Info("Task server started")

		if deps.Verifier == nil {
			return nil
		}
		sweeper, err = tasks.NewSweeper(missions, cfg.SweepInterval, cfg.SweepStale, clock, logger)
		if err != nil {
			return err
		}
		return sweeper.Start()
	}

	logger.Info("Starting application", zap.String("mode", cfg.RunMode))
	switch cfg.RunMode {
	case "api":
		apiMode()
	case "worker":
		err = workerMode()
	case "all":
		apiMode()
		err = workerMode()
	}

	// --- Graceful Shutdown ---
	if err == nil {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received signal, shutting down gracefully", zap.String("signal", sig.String()))
		case <-shutdownChan:
			logger.Info("Shutdown requested via Service API, shutting down gracefully")
		case <-gctx.Done():
			logger.Error("Server stopped unexpectedly, shutting down")
		}
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		logger.Error("Service API server shutdown error", zap.Error(err))
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			logger.Error("Main API server shutdown error", zap.Error(err))
		}
	}
	if limiters.General != nil {
		limiters.General.Close()
		limiters.Upload.Close()
	}
	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			logger.Error("Sweeper shutdown error", zap.Error(err))
		}
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}

	waitErr := g.Wait()
	if err != nil {
		return err
	}
	if waitErr != nil {
		return waitErr
	}
	logger.Info("Server gracefully stopped")
	return nil
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("Using the in-memory store: data does not survive a restart")
		return store.NewMemoryStore(), func() {}, nil
	}
	client, database, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeFn := func() {
		if err := db.DisconnectDB(client, logger); err != nil {
			logger.Error("Error disconnecting from MongoDB", zap.Error(err))
		}
	}
	if err := db.EnsureIndexes(ctx, database, cfg.FraudHashTTLDays); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store.NewMongoStore(client, database), closeFn, nil
}

func openObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageDriver {
	case "cloudinary":
		return storage.NewCloudinaryStorage(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	case "memory":
		return storage.NewMemoryStorage(), nil
	}
	objects, err := storage.NewS3Storage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
	}
	return objects, nil
}
