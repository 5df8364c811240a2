// This file runs the document parser as a NATS JetStream worker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/ocr-parser-service/internal/config"
	"github.com/book-expert/ocr-parser-service/internal/docparser"
	"github.com/book-expert/ocr-parser-service/internal/ocrengine"
	"github.com/book-expert/ocr-parser-service/internal/worker"
)

const (
	natsFetchTimeout = 5 * time.Second
	ackWait          = 30 * time.Minute
	configURLEnv     = "DOCPARSE_CONFIG_URL"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	configURL := flag.String("config-url", os.Getenv(configURLEnv), "URL of the TOML configuration.")
	flag.Parse()

	runErr := run(ctx, *configURL)
	if runErr != nil {
		log.Printf("Fatal application error: %v", runErr)
		os.Exit(1)
	}

	log.Println("Application shut down gracefully.")
}

// run initializes all components and starts the message processing loop.
func run(ctx context.Context, configURL string) error {
	cfg, appLogger, setupErr := setupConfigAndLogger(configURL)
	if setupErr != nil {
		return setupErr
	}
	defer func() {
		if closeErr := appLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close app logger: %v", closeErr)
		}
	}()

	parser, engine := docparser.NewDefaultParser(
		docparser.Options{WorkDir: cfg.Paths.WorkDir, ArchiveDir: cfg.Paths.ArchiveDir},
		cfg.OCR,
		ocrengine.Options{Binary: cfg.Engine.Binary, Timeout: cfg.Engine.Timeout.Duration},
		cfg.Engine.DPIRounding,
		appLogger,
	)

	if binaryErr := engine.EnsureBinary(); binaryErr != nil {
		return binaryErr
	}

	natsConnection, connErr := nats.Connect(cfg.NATS.URL)
	if connErr != nil {
		return fmt.Errorf("failed to connect to NATS: %w", connErr)
	}
	defer natsConnection.Close()
	appLogger.Info("Connected to NATS server at %s", natsConnection.ConnectedUrl())

	jetStream, jsErr := jetstream.New(natsConnection)
	if jsErr != nil {
		return fmt.Errorf("failed to create JetStream context: %w", jsErr)
	}

	if jsSetupErr := setupJetStream(ctx, jetStream, &cfg.NATS); jsSetupErr != nil {
		return fmt.Errorf("failed to set up JetStream resources: %w", jsSetupErr)
	}

	stores, storesErr := bindStores(ctx, jetStream, &cfg.NATS)
	if storesErr != nil {
		return storesErr
	}

	consumer, consumerErr := jetStream.Consumer(ctx, cfg.NATS.SourceStreamName, cfg.NATS.SourceConsumerName)
	if consumerErr != nil {
		return fmt.Errorf("failed to get consumer: %w", consumerErr)
	}

	parseWorker := worker.New(
		worker.Options{ParsedSubject: cfg.NATS.ParsedSubject, WorkDir: cfg.Paths.WorkDir},
		parser,
		stores,
		jetStream,
		appLogger,
	)

	appLogger.Info("Worker is running, listening for jobs on '%s'...", cfg.NATS.SourceCreatedSubject)

	return processMessages(ctx, consumer, parseWorker, appLogger)
}

// setupConfigAndLogger loads configuration from configURL, or from the
// project configuration file when no URL is given, and opens the logger.
func setupConfigAndLogger(configURL string) (*config.Config, *logger.Logger, error) {
	tempLogger, tempLoggerErr := logger.New(os.TempDir(), "docparse-bootstrap.log")
	if tempLoggerErr != nil {
		return nil, nil, fmt.Errorf("failed to create bootstrap logger: %w", tempLoggerErr)
	}
	defer func() {
		if closeErr := tempLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close temp logger: %v", closeErr)
		}
	}()

	cfg, loadErr := loadConfig(configURL, tempLogger)
	if loadErr != nil {
		return nil, nil, loadErr
	}

	logsDir := cfg.Paths.BaseLogsDir
	if logsDir == "" {
		logsDir = os.TempDir()
	}

	appLogger, loggerErr := logger.New(logsDir, "docparse-service.log")
	if loggerErr != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", loggerErr)
	}

	return &cfg, appLogger, nil
}

func loadConfig(configURL string, tempLogger *logger.Logger) (config.Config, error) {
	if configURL != "" {
		cfg, err := config.LoadFromURL(configURL, tempLogger)
		if err != nil {
			return config.Config{}, err
		}

		log.Printf("Configuration loaded from %s", configURL)

		return cfg, nil
	}

	_, configPath, rootErr := configurator.FindProjectRoot(".")
	if rootErr != nil {
		return config.Config{}, fmt.Errorf("could not find project root: %w", rootErr)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	log.Printf("Configuration loaded from %s", configPath)

	return cfg, nil
}

// setupJetStream ensures all required NATS streams and object stores exist.
func setupJetStream(ctx context.Context, jetStream jetstream.JetStream, cfg *config.NATSConfig) error {
	_, streamErr := jetStream.CreateStream(ctx, newStreamConfig(cfg.SourceStreamName, cfg.SourceCreatedSubject))
	if streamErr != nil && !errors.Is(streamErr, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create source stream: %w", streamErr)
	}

	stream, streamErr := jetStream.Stream(ctx, cfg.SourceStreamName)
	if streamErr != nil {
		return fmt.Errorf("failed to get source stream handle: %w", streamErr)
	}

	_, consumerErr := stream.CreateOrUpdateConsumer(ctx, newConsumerConfig(cfg))
	if consumerErr != nil {
		return fmt.Errorf("failed to create source consumer: %w", consumerErr)
	}

	_, parsedErr := jetStream.CreateStream(ctx, newStreamConfig(cfg.ParsedStreamName, cfg.ParsedSubject))
	if parsedErr != nil && !errors.Is(parsedErr, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create parsed stream: %w", parsedErr)
	}

	for _, bucket := range []string{
		cfg.SourceObjectStoreBucket,
		cfg.TextObjectStoreBucket,
		cfg.ArchiveObjectStoreBucket,
	} {
		_, objStoreErr := jetStream.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:   bucket,
			MaxBytes: -1,
			Storage:  jetstream.FileStorage,
			Replicas: 1,
		})
		if objStoreErr != nil && !errors.Is(objStoreErr, jetstream.ErrBucketExists) {
			return fmt.Errorf("failed to create object store '%s': %w", bucket, objStoreErr)
		}
	}

	return nil
}

func newStreamConfig(name, subject string) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:              name,
		Subjects:          []string{subject},
		Retention:         jetstream.WorkQueuePolicy,
		MaxConsumers:      -1,
		MaxMsgs:           -1,
		MaxBytes:          -1,
		Discard:           jetstream.DiscardOld,
		MaxMsgsPerSubject: -1,
		MaxMsgSize:        -1,
		Storage:           jetstream.FileStorage,
		Replicas:          1,
	}
}

func newConsumerConfig(cfg *config.NATSConfig) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Durable:       cfg.SourceConsumerName,
		FilterSubject: cfg.SourceCreatedSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    -1,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
		MaxAckPending: -1,
	}
}

func bindStores(ctx context.Context, jetStream jetstream.JetStream, cfg *config.NATSConfig) (worker.Stores, error) {
	source, sourceErr := jetStream.ObjectStore(ctx, cfg.SourceObjectStoreBucket)
	if sourceErr != nil {
		return worker.Stores{}, fmt.Errorf("failed to bind to source object store: %w", sourceErr)
	}

	text, textErr := jetStream.ObjectStore(ctx, cfg.TextObjectStoreBucket)
	if textErr != nil {
		return worker.Stores{}, fmt.Errorf("failed to bind to text object store: %w", textErr)
	}

	archive, archiveErr := jetStream.ObjectStore(ctx, cfg.ArchiveObjectStoreBucket)
	if archiveErr != nil {
		return worker.Stores{}, fmt.Errorf("failed to bind to archive object store: %w", archiveErr)
	}

	return worker.Stores{Source: source, Text: text, Archive: archive}, nil
}

// processMessages implements the core worker loop.
func processMessages(
	ctx context.Context,
	consumer jetstream.Consumer,
	parseWorker *worker.Worker,
	appLogger *logger.Logger,
) error {
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("context error in message loop: %w", ctxErr)
		}

		batch, fetchErr := consumer.Fetch(1, jetstream.FetchMaxWait(natsFetchTimeout))
		if fetchErr != nil {
			if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, nats.ErrTimeout) {
				continue
			}

			appLogger.Error("Error fetching messages: %v", fetchErr)

			continue
		}

		for msg := range batch.Messages() {
			parseWorker.Handle(ctx, msg)
		}

		if batchErr := batch.Error(); batchErr != nil && !errors.Is(batchErr, nats.ErrTimeout) {
			appLogger.Error("Error during message batch processing: %v", batchErr)
		}
	}
}
