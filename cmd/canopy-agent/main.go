package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saaga0h/canopy/internal/api"
	"github.com/saaga0h/canopy/internal/evidence"
	"github.com/saaga0h/canopy/internal/monitor"
	"github.com/saaga0h/canopy/internal/notify"
	"github.com/saaga0h/canopy/internal/registry"
	"github.com/saaga0h/canopy/pkg/config"
	"github.com/saaga0h/canopy/pkg/health"
	"github.com/saaga0h/canopy/pkg/llm"
	"github.com/saaga0h/canopy/pkg/mqtt"
	"github.com/saaga0h/canopy/pkg/postgres"
	"github.com/saaga0h/canopy/pkg/redis"
)

const alertHistorySize = 100

func main() {
	// Load configuration with hierarchy: defaults → env → flags
	cfg := config.NewConfig()
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Canopy Agent",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"redis_host", cfg.RedisAddress(),
		"registry_source", cfg.RegistrySource,
		"log_level", cfg.LogLevel)

	// Tuning errors are configuration errors and stop startup
	tuning, err := evidence.LoadTuning(cfg.TuningFile)
	if err != nil {
		logger.Error("Failed to load tuning", "file", cfg.TuningFile, "error", err)
		os.Exit(1)
	}

	// Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mqttClient := mqtt.NewClient(cfg, logger)
	redisClient := redis.NewClient(cfg, logger)

	healthChecker := health.NewChecker(mqttClient, logger)
	healthChecker.Register("redis", redisClient)

	// Zone registry
	var (
		reg      registry.Registry
		pgClient *postgres.PostgresClient
	)
	switch cfg.RegistrySource {
	case "postgres":
		pgClient = postgres.NewClient(cfg, logger)
		if err := pgClient.Connect(ctx); err != nil {
			logger.Error("Failed to connect to registry database", "error", err)
			os.Exit(1)
		}
		healthChecker.Register("postgres", pgClient)
		reg = registry.NewPostgresRegistry(pgClient, logger)
	default:
		reg = registry.NewFileRegistry(cfg.RegistryFile, logger)
	}

	// Notification sinks
	history := notify.NewHistory(redisClient, alertHistorySize)
	sinks := []notify.Sink{notify.NewMQTTSink(mqttClient), history}

	if cfg.NotifyWebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.NotifyWebhookURL, cfg.NotifyWebhookTimeout, logger))
		logger.Info("Webhook notifications enabled")
	}

	var kafkaSink *notify.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink = notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaAlertTopic, logger)
		sinks = append(sinks, kafkaSink)
		logger.Info("Kafka alert stream enabled", "topic", cfg.KafkaAlertTopic)
	}

	var rewriter *notify.Rewriter
	if cfg.LLMEnabled {
		llmClient := llm.NewOllamaClient(cfg.LLMEndpoint, 30*time.Second, logger)
		rewriter = notify.NewRewriter(llmClient, cfg.LLMModel, cfg.LLMMaxLength, logger)
		healthChecker.Register("llm", llmPinger{llmClient})
		logger.Info("LLM message rewriting enabled", "model", cfg.LLMModel)
	}

	dispatcher := notify.NewDispatcher(rewriter, sinks, 0, logger)

	agent := monitor.NewAgent(monitor.Dependencies{
		MQTT:       mqttClient,
		Redis:      redisClient,
		Registry:   reg,
		Tuning:     tuning,
		Dispatcher: dispatcher,
	}, cfg, logger)

	// Start health check and status API servers
	healthServer := startHealthServer(cfg.HealthPort, healthChecker, logger)
	apiServer := api.NewServer(agent, history, healthChecker, logger).Start(cfg.APIPort, os.Stdout)

	// Start agent in a goroutine
	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			logger.Error("Agent error", "error", err)
			agentErr <- err
		}
	}()

	// Wait for shutdown signal or agent error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	// Graceful shutdown
	logger.Info("Initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down status API server", "error", err)
	}

	if err := agent.Stop(); err != nil {
		logger.Error("Error stopping agent", "error", err)
	}

	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Error("Error closing Kafka writer", "error", err)
		}
	}

	if pgClient != nil {
		if err := pgClient.Disconnect(); err != nil {
			logger.Error("Error closing registry database", "error", err)
		}
	}

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	logger.Info("Canopy agent shutdown complete")
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting health check server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()

	return server
}

// llmPinger reports the rewrite model endpoint in the detailed health check
type llmPinger struct {
	client llm.Client
}

func (p llmPinger) Ping(ctx context.Context) error {
	return p.client.Health(ctx)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
