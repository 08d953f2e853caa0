package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dontcare/internal/api"
	"dontcare/internal/auth"
	"dontcare/internal/cache"
	"dontcare/internal/config"
	"dontcare/internal/database"
	"dontcare/internal/logger"
	"dontcare/internal/mailer"
	"dontcare/internal/market"
	"dontcare/internal/market/kis"
	"dontcare/internal/news"
	"dontcare/internal/otp"
	"dontcare/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	migrationsPath := flag.String("migrations", "migrations", "path to the migration files")
	flag.Parse()

	// best effort; config falls back to real environment variables
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Filename:   cfg.Logging.Filename,
		MaxSize:    cfg.Logging.MaxSize,
		MaxAge:     cfg.Logging.MaxAge,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})

	logger.WithFields(map[string]interface{}{
		"name":    cfg.App.Name,
		"version": cfg.App.Version,
		"env":     cfg.App.Env,
	}).Info("Starting server")

	// Database is optional: without it the market and news endpoints
	// still work, while account and portfolio endpoints fail per request.
	var db *database.DB
	if cfg.Database.Host != "" {
		db, err = database.NewConnection(&database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxOpen:  cfg.Database.MaxOpen,
			MaxIdle:  cfg.Database.MaxIdle,
			Timeout:  cfg.Database.Timeout,
		})
		if err != nil {
			logger.WithError(err).Error("Database unavailable, continuing without it")
			db = nil
		} else {
			defer db.Close()
			runMigrations(db, *migrationsPath)
		}
	}

	cacher, err := cache.NewCacher(&cache.Config{
		Enabled:  cfg.Redis.Addr != "",
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		logger.WithError(err).Error("Redis unavailable, falling back to in-memory cache")
		cacher = cache.NewMemoryCache()
	}
	defer cacher.Close()

	yahoo := market.NewYahooClient(market.YahooConfig{
		BaseURL:     cfg.Yahoo.BaseURL,
		Timeout:     cfg.Yahoo.Timeout,
		MinInterval: cfg.Yahoo.MinInterval,
		CallsPerMin: cfg.Yahoo.CallsPerMin,
	})
	marketSvc := market.NewService(yahoo, cacher, cfg.Yahoo.MaxParallel)

	var kisClient *kis.Client
	if cfg.KIS.Enabled {
		tokens := kis.NewTokenManager(cacher, cfg.KIS.BaseURL, cfg.KIS.AppKey, cfg.KIS.AppSecret, 0)
		kisClient = kis.NewClient(cfg.KIS.BaseURL, cfg.KIS.AppKey, cfg.KIS.AppSecret, tokens, 0)
	}

	naver := news.NewNaverClient(cfg.Naver.BaseURL, cfg.Naver.ClientID, cfg.Naver.ClientSecret, 0)
	newsSvc := news.NewService(naver, news.NewImageExtractor(0, 0), db, 4)

	server := api.NewServer(cfg, api.Deps{
		DB:     db,
		Cache:  cacher,
		JWT:    auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.AccessDuration, cfg.JWT.RefreshDuration),
		OTP:    otp.NewStore(cacher),
		Mailer: mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}),
		Market: marketSvc,
		KIS:    kisClient,
		News:   newsSvc,
	})

	var jobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobs, err = scheduler.Setup(cfg.Scheduler, scheduler.Deps{
			DB:     db,
			Market: marketSvc,
			News:   newsSvc,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to set up scheduler")
		}
		jobs.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server failed")
		}
	}

	if jobs != nil {
		jobs.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}

func runMigrations(db *database.DB, path string) {
	migrator, err := database.NewMigrator(db, path)
	if err != nil {
		logger.WithError(err).Error("Failed to create migrator, skipping migrations")
		return
	}
	defer migrator.Close()
	if err := migrator.Up(); err != nil {
		logger.WithError(err).Error("Migrations failed")
	}
}
