package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatery/internal/config"
	"chatery/internal/constants"
	"chatery/internal/delay"
	"chatery/internal/models"
	"chatery/internal/queue"
	"chatery/internal/retry"
	"chatery/internal/service"
	"chatery/internal/tracing"
	"chatery/pkg/protocol/rest"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("chatery %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting chatery")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	applyLogLevel(logger, cfg, *verbose)

	// Initialize OpenTelemetry tracing
	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Open the durable queue with exponential backoff retry
	var jobQueue *queue.Queue
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		jobQueue, initErr = queue.New(cfg.Database.Path, cfg.Retry, delay.NewResolver())
		if initErr != nil {
			logger.Warnf("Failed to open job queue: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to open job queue after retries: %w", err)
	}
	defer jobQueue.Close()

	registry, err := service.NewRegistry(cfg.DataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to create session registry: %w", err)
	}

	hub := service.NewHub(logger)
	fanOut := service.NewFanOut(hub, cfg.Delivery, logger)
	defer fanOut.Close()

	apiKey := os.Getenv("CHATERY_PROTOCOL_API_KEY")
	clients, err := registerSessions(cfg, registry, fanOut, apiKey, logger)
	if err != nil {
		return err
	}

	dispatcher := service.NewDispatcher(registry, logger)

	pool := queue.NewWorkerPool(jobQueue, dispatcher, queue.WorkerPoolConfig{
		Workers:         cfg.Queue.Workers,
		PollInterval:    time.Duration(cfg.Queue.PollIntervalMs) * time.Millisecond,
		RateLimitMax:    cfg.Queue.RateLimitMax,
		RateLimitWindow: time.Duration(cfg.Queue.RateLimitWindowMs) * time.Millisecond,
	}, logger)
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	defer pool.Stop()

	bulkTracker := service.NewBulkTracker(dispatcher, registry, cfg.Bulk, logger)
	defer bulkTracker.Close()

	scheduler := service.NewScheduler(registry, cfg.Store, logger)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	// Reload the log level on config file changes; everything else requires a
	// restart.
	watcher := config.NewWatcher(*configPath, logger)
	watcher.OnConfigChange(func(updated *models.Config) {
		applyLogLevel(logger, updated, *verbose)
	})
	if err := watcher.Start(ctx); err != nil {
		logger.Warnf("Config watcher disabled: %v", err)
	}

	server := NewServer(cfg, ServerDeps{
		Registry: registry,
		Queue:    jobQueue,
		Bulk:     bulkTracker,
		Hub:      hub,
		Clients:  clients,
	}, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	// Let in-flight webhook deliveries finish before the fan-out closes.
	fanOut.Drain()

	logger.Info("Server shutdown completed")
	return nil
}

// registerSessions creates a protocol client per configured session, registers
// it with the registry, and attaches the event consumer. A session that fails
// to connect stays registered in its disconnected state; the gateway reports
// readiness through a connection.update event.
func registerSessions(cfg *models.Config, registry *service.Registry, fanOut *service.FanOut, apiKey string, logger *logrus.Logger) (map[string]*rest.Client, error) {
	clients := make(map[string]*rest.Client, len(cfg.Protocol.Sessions))
	for _, sessionID := range cfg.Protocol.Sessions {
		client := rest.NewClient(rest.Config{
			BaseURL:    cfg.Protocol.BaseURL,
			APIKey:     apiKey,
			SessionID:  sessionID,
			TimeoutSec: cfg.Protocol.TimeoutSec,
		}, logger)

		session, err := registry.Create(sessionID, client)
		if err != nil {
			return nil, fmt.Errorf("failed to register session %s: %w", sessionID, err)
		}
		fanOut.Attach(session)
		clients[sessionID] = client
	}
	logger.WithField("sessions", len(clients)).Info("Sessions registered")
	return clients, nil
}

func applyLogLevel(logger *logrus.Logger, cfg *models.Config, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return
	}
	if cfg.LogLevel == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	if level > logrus.InfoLevel {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func validateConfig(cfg *models.Config) error {
	if cfg.Protocol.BaseURL == "" {
		return fmt.Errorf("protocol gateway base URL is required")
	}
	if len(cfg.Protocol.Sessions) == 0 {
		return fmt.Errorf("at least one session is required")
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	return nil
}
