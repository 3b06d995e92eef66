package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ups-sales/api/internal/banknoti"
	"github.com/ups-sales/api/internal/cache"
	"github.com/ups-sales/api/internal/chat"
	"github.com/ups-sales/api/internal/config"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/handler"
	"github.com/ups-sales/api/internal/logging"
	mw "github.com/ups-sales/api/internal/middleware"
	"github.com/ups-sales/api/internal/router"
	"github.com/ups-sales/api/internal/storage"
	"github.com/ups-sales/api/internal/tasks"
	"github.com/ups-sales/api/internal/ws"
	"go.uber.org/zap"
)

const (
	runModeAPI    = "api"
	runModeWorker = "worker"
	runModeAll    = "all"

	shutdownTimeout = 15 * time.Second
)

var runMode = flag.String("m", runModeAll, "Run mode: 'api', 'worker' (scheduled bank polling), 'all' (default)")

func main() {
	flag.Parse()
	if *runMode != runModeAPI && *runMode != runModeWorker && *runMode != runModeAll {
		log.Fatalf("invalid run mode %q", *runMode)
	}

	cfg := config.Load()

	logger := logging.New(cfg.LogEnv)
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("create database pool", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run(ctx)

	poller := banknoti.NewPoller(
		cfg.BankNotiURL,
		cfg.BankNotiTimeout,
		queries,
		chat.NewBankAlerter(newPoster(cfg, hub, logger), cfg.AlertChannel),
		logger,
	)

	var wg sync.WaitGroup
	var shutdowns []func(context.Context)

	if *runMode == runModeAPI || *runMode == runModeAll {
		shutdowns = append(shutdowns, startAPI(ctx, cfg, pool, hub, poller, logger, &wg))
	}
	if *runMode == runModeWorker || *runMode == runModeAll {
		shutdowns = append(shutdowns, startWorker(cfg, poller, logger))
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, fn := range shutdowns {
		fn(shutdownCtx)
	}
	wg.Wait()
	logger.Info("stopped")
}

// newPoster fans bank alerts out to websocket subscribers and, when
// configured, an Odoo discuss channel.
func newPoster(cfg *config.Config, hub *ws.Hub, logger *zap.Logger) chat.Poster {
	posters := chat.MultiPoster{chat.NewHubPoster(hub)}
	if cfg.OdooEnabled() {
		posters = append(posters, chat.NewOdooPoster(chat.OdooConfig{
			URL:      cfg.OdooURL,
			DB:       cfg.OdooDB,
			User:     cfg.OdooUser,
			Password: cfg.OdooPassword,
		}, logger))
		logger.Info("odoo chat alerts enabled", zap.String("url", cfg.OdooURL))
	}
	return posters
}

func startAPI(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, hub *ws.Hub, poller *banknoti.Poller, logger *zap.Logger, wg *sync.WaitGroup) func(context.Context) {
	limiter := mw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger.Named("ratelimit"))
	go limiter.Run(ctx)

	var covers handler.CoverUploader
	if cfg.S3Bucket != "" {
		client, err := storage.NewS3Client(ctx, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretAccessKey)
		if err != nil {
			logger.Fatal("create s3 client", zap.Error(err))
		}
		covers = storage.NewCoverStore(client, cfg.S3Bucket, cfg.CoverMaxDimension, logger.Named("storage"))
	} else {
		logger.Warn("S3_BUCKET not set, announcement cover uploads are disabled")
	}

	r := router.New(router.Deps{
		Config:  cfg,
		Pool:    pool,
		Hub:     hub,
		Poller:  poller,
		Limiter: limiter,
		Logger:  logger,
		Covers:  covers,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api server", zap.Error(err))
		}
	}()

	return func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("api shutdown", zap.Error(err))
		}
	}
}

func startWorker(cfg *config.Config, poller *banknoti.Poller, logger *zap.Logger) func(context.Context) {
	rdb, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	opt := tasks.RedisOpt(rdb)

	srv := tasks.NewServer(opt, 1, logger.Named("tasks"))
	if err := srv.Start(tasks.NewMux(tasks.NewProcessor(poller, logger.Named("tasks")))); err != nil {
		logger.Fatal("start task server", zap.Error(err))
	}

	scheduler, err := tasks.NewScheduler(opt, cfg.BankNotiSchedule, cfg.BankNotiTimeout)
	if err != nil {
		logger.Fatal("create scheduler", zap.Error(err))
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal("start scheduler", zap.Error(err))
	}
	logger.Info("worker started", zap.String("schedule", cfg.BankNotiSchedule))

	return func(context.Context) {
		scheduler.Shutdown()
		srv.Shutdown()
		if err := cache.DisconnectRedis(rdb); err != nil {
			logger.Error("disconnect redis", zap.Error(err))
		}
	}
}
