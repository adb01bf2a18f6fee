package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/rs/zerolog"

	apihttp "github.com/omspatilgit/BolBharat-AI/internal/api/http"
	"github.com/omspatilgit/BolBharat-AI/internal/app"
	"github.com/omspatilgit/BolBharat-AI/internal/config"
	"github.com/omspatilgit/BolBharat-AI/internal/events"
	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/observability"
	"github.com/omspatilgit/BolBharat-AI/internal/orchestrator"
	"github.com/omspatilgit/BolBharat-AI/internal/queue"
	"github.com/omspatilgit/BolBharat-AI/internal/resilience"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
	"github.com/omspatilgit/BolBharat-AI/internal/store/dynamo"
	"github.com/omspatilgit/BolBharat-AI/internal/store/memory"
	"github.com/omspatilgit/BolBharat-AI/internal/store/s3blob"
	"github.com/omspatilgit/BolBharat-AI/internal/stt"
	"github.com/omspatilgit/BolBharat-AI/internal/stt/google"
	sttmock "github.com/omspatilgit/BolBharat-AI/internal/stt/mock"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		application.Logger.Fatal().Err(err).Msg("application start failed")
	}
	logger := application.Logger

	publisher := events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicPartial:   cfg.Kafka.TopicPartial,
		TopicLifecycle: cfg.Kafka.TopicLifecycle,
		Principal:      cfg.Kafka.Principal,
	})
	defer publisher.Close()

	durable, blobs := buildStores(cfg, logger)

	batch, closeBatch, err := buildBatchTranscriber(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.STT.Provider).Msg("failed to build transcription provider")
	}
	defer closeBatch()

	qm := queue.NewManager(durable, queue.Config{
		ConfidenceThreshold: cfg.Queue.ConfidenceThreshold,
		Retention:           cfg.Store.Retention,
	}, logger)

	// One breaker per external dependency, built once and shared by
	// reference across every worker.
	breakers := orchestrator.NewBreakers(resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		CoolDown:         cfg.Breaker.CoolDown,
	})
	retrier := resilience.NewRetrier(resilience.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
	})

	orch := orchestrator.New(qm, blobs, batch, breakers, retrier, publisher, orchestrator.Config{
		MaxRetries:   cfg.Retry.MaxAttempts,
		AccessWindow: cfg.Blob.AccessWindow,
		PollInterval: cfg.STT.PollInterval,
	}, logger)
	runner := orchestrator.NewRunner(orch, qm, orchestrator.CycleConfig{
		BatchSize:      cfg.Cycle.BatchSize,
		CountThreshold: cfg.Cycle.CountThreshold,
		Interval:       cfg.Cycle.Interval,
	}, logger)

	obsServer := observability.NewServer(":" + cfg.Observability.MetricsPort)
	obsServer.Start()

	apiServer := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      apihttp.NewRouter(qm, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", apiServer.Addr).Msg("operator API listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("operator API server failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("cycle runner stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("operator API shutdown failed")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("observability server shutdown failed")
	}
	application.Shutdown()
}

func buildStores(cfg *config.Configuration, logger zerolog.Logger) (store.DurableStore, store.BlobStore) {
	if cfg.Store.Driver != "dynamo" && cfg.Blob.Driver != "s3" {
		logger.Info().Msg("using in-memory stores")
		return memory.New(), memory.NewBlobs(cfg.Blob.Bucket)
	}

	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Store.Region)})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create AWS session")
	}

	var durable store.DurableStore
	if cfg.Store.Driver == "dynamo" {
		durable = dynamo.New(dynamodb.New(sess), dynamo.Config{
			RecordingsTable: cfg.Store.TableName,
			QueueTable:      cfg.Store.TableName + "-queue",
		}, logger)
	} else {
		durable = memory.New()
	}

	var blobs store.BlobStore
	if cfg.Blob.Driver == "s3" {
		blobs = s3blob.New(s3.New(sess), cfg.Blob.Bucket, cfg.Blob.Region)
	} else {
		blobs = memory.NewBlobs(cfg.Blob.Bucket)
	}
	return durable, blobs
}

func buildBatchTranscriber(cfg *config.Configuration) (stt.BatchTranscriber, func() error, error) {
	switch cfg.STT.Provider {
	case "google":
		batch, err := google.NewBatch(context.Background(), cfg.STT.SampleRateHz, models.FormatWAV)
		if err != nil {
			return nil, nil, err
		}
		return batch, batch.Close, nil
	default:
		batch := sttmock.NewBatch()
		return batch, batch.Close, nil
	}
}
