package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kevinaaaquil/writeups/auth"
	"github.com/kevinaaaquil/writeups/config"
	"github.com/kevinaaaquil/writeups/handlers"
	"github.com/kevinaaaquil/writeups/jobs"
	"github.com/kevinaaaquil/writeups/logging"
	"github.com/kevinaaaquil/writeups/middleware"
	"github.com/kevinaaaquil/writeups/realtime"
	"github.com/kevinaaaquil/writeups/service"
	"github.com/kevinaaaquil/writeups/store"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	format := "json"
	if cfg.Development() {
		format = "console"
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: format})
	if err := config.ValidateEnv(); err != nil {
		log.Fatal().Err(err).Msg("environment")
	}
	handlers.SetDebug(cfg.Development())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName, cfg.MongoRetry)
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb")
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("mongodb disconnect")
		}
	}()
	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("mongodb indexes")
	}

	settings := service.NewSettingsService(db)
	if err := settings.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("settings")
	}

	var objects service.ObjectStorage
	if cfg.S3Bucket != "" {
		s3Service, err := service.NewS3Service(ctx, service.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			Endpoint:        cfg.S3Endpoint,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("s3")
		}
		objects = s3Service
	} else {
		log.Warn().Msg("AWS_S3_BUCKET not set; book uploads and downloads are disabled")
	}

	var locker jobs.Locker = jobs.LocalLocker{}
	if cfg.RedisURL != "" {
		client, err := jobs.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis")
		}
		defer client.Close()
		locker = jobs.NewRedisLocker(client)
	}

	hub := realtime.NewHub()
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := hub.RunWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("realtime hub stopped")
		}
	}()

	tokens := auth.NewTokens(cfg.JWTSecret)
	content := service.NewContentService(db)
	books := service.NewBookService(db, objects, settings, cfg.ProgressTimeout)
	accounts := service.NewAccountService(db, tokens, settings, hub, service.AdminSeed{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
	})
	guard := middleware.NewGuard(tokens, accounts, handlers.WriteError)

	scheduler, err := jobs.Schedule(ctx, cfg.ResetSchedule, jobs.NewDailyReset(books, content, locker))
	if err != nil {
		log.Fatal().Err(err).Msg("daily reset schedule")
	}

	router := handlers.NewRouter(handlers.Deps{
		DB:          db,
		Guard:       guard,
		Content:     content,
		Books:       books,
		Settings:    settings,
		Accounts:    accounts,
		Stats:       service.NewStatsService(db),
		Socket:      realtime.Handler(hub, guard.AuthenticateSocket, handlers.WriteError, cfg.CORSOrigins),
		CORSOrigins: cfg.CORSOrigins,
		MaxUpload:   cfg.MaxUploadMB << 20,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Str("env", cfg.Env).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	scheduler.Stop(shutdownCtx)
	<-hubDone
}
