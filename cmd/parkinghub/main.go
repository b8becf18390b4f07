package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parkinghub/internal/config"
	"parkinghub/internal/db"
	httphandler "parkinghub/internal/http"
	"parkinghub/internal/queue"
	"parkinghub/internal/repository"
	"parkinghub/internal/service"
	"parkinghub/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := newLogger(cfg.Log)

	gormDB, err := db.New(cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	log.Info().Msg("database connected")

	var awsCfg *aws.Config
	if cfg.Storage.Driver == "s3" || cfg.SQS.QueueURL != "" {
		loaded, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load aws config")
		}
		awsCfg = &loaded
	}

	images, imagesFS, err := newImageSink(cfg, awsCfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to init image storage")
	}

	eventRepo := repository.NewEventRepository(gormDB)
	slotRepo := repository.NewSlotRepository(gormDB)

	parkingService := service.NewParkingService(eventRepo, slotRepo, images, service.ParkingOptions{
		ImagePrefix:        cfg.Storage.Prefix,
		SessionFetchMin:    cfg.Parking.SessionFetchMin,
		SessionFetchFactor: cfg.Parking.SessionFetchFactor,
		StatusFetchLimit:   cfg.Parking.StatusFetchLimit,
		DefaultPageSize:    cfg.Parking.DefaultPageSize,
		MaxPageSize:        cfg.Parking.MaxPageSize,
	}, log)
	slotService := service.NewSlotService(slotRepo, log)

	var wg sync.WaitGroup
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	if cfg.SQS.QueueURL == "" {
		log.Info().Msg("sqs queue url not set, device report consumer disabled")
	} else {
		consumer := queue.NewSQSConsumer(sqs.NewFromConfig(*awsCfg), cfg.SQS, parkingService, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Start(consumerCtx)
		}()
	}

	if !strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := httphandler.NewHandler(parkingService, slotService, cfg, log)
	router := httphandler.NewRouter(handler, log, imagesFS)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage.Driver).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	cancelConsumer()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shut down")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("sqs consumer did not stop in time")
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "parkinghub").Logger()
}

// newImageSink returns the configured store and, for local storage, the
// filesystem served under /images.
func newImageSink(cfg *config.Config, awsCfg *aws.Config) (service.ImageSink, http.FileSystem, error) {
	if cfg.Storage.Driver == "s3" {
		client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
			if cfg.AWS.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.S3Endpoint)
			}
			o.UsePathStyle = cfg.AWS.UsePathStyle
		})
		return storage.NewS3Store(client, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL), nil, nil
	}

	baseURL := cfg.Storage.PublicBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Server.Port + "/images"
	}
	local, err := storage.NewLocalStore(cfg.Storage.LocalDir, baseURL)
	if err != nil {
		return nil, nil, err
	}
	return local, local.FileSystem(), nil
}
