package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/saaga0h/canopy/e2e/internal/executor"
	"github.com/saaga0h/canopy/e2e/internal/observer"
	"github.com/saaga0h/canopy/e2e/internal/reporter"
	"github.com/saaga0h/canopy/e2e/internal/scenario"
	"github.com/saaga0h/canopy/pkg/config"
	"github.com/saaga0h/canopy/pkg/mqtt"
	"github.com/saaga0h/canopy/pkg/redis"
)

func main() {
	// Broker and Redis settings come from the shared agent configuration
	cfg := config.NewConfig()
	cfg.LoadFromEnv()
	cfg.RegisterFlags(pflag.CommandLine)

	scenarioPath := pflag.String("scenario", "", "Path to YAML scenario file (required)")
	outputDir := pflag.String("output-dir", "./test-output", "Output directory for test artifacts")
	verbose := pflag.Bool("verbose", false, "Enable debug logging")
	pflag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --scenario is required")
		pflag.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	scen, err := scenario.LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scenario: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	obs := observer.NewObserver(mqtt.NewClient(clientConfig(cfg, "canopy-e2e-observer"), logger), logger)
	if err := obs.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start observer: %v\n", err)
		os.Exit(1)
	}
	defer obs.Stop()

	player := executor.NewMQTTPlayer(mqtt.NewClient(clientConfig(cfg, "canopy-e2e-player"), logger), logger)
	if err := player.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start player: %v\n", err)
		os.Exit(1)
	}
	defer player.Close()

	redisClient := redis.NewClient(cfg, logger)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}

	runner := executor.NewRunner(player, obs, redisClient, logger)
	result, timelineEvents, err := runner.Run(ctx, scen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Test execution failed: %v\n", err)
		os.Exit(1)
	}

	name := strings.TrimSuffix(filepath.Base(*scenarioPath), filepath.Ext(*scenarioPath))

	timeline := reporter.GenerateTimeline(result, timelineEvents)
	fmt.Println(timeline)

	artifacts := []struct {
		kind string
		save func(string) error
		path string
	}{
		{"timeline", func(p string) error { return reporter.SaveTimeline(timeline, p) }, filepath.Join(*outputDir, "timelines", name+".txt")},
		{"capture", obs.SaveCapture, filepath.Join(*outputDir, "captures", name+".json")},
		{"summary", func(p string) error { return reporter.SaveSummary(result, p) }, filepath.Join(*outputDir, "summaries", name+".json")},
	}
	for _, a := range artifacts {
		if err := a.save(a.path); err != nil {
			logger.Warn("Failed to save artifact", "kind", a.kind, "error", err)
		}
	}

	if !result.Passed {
		os.Exit(1)
	}
}

// clientConfig gives each MQTT connection of the runner its own client id
func clientConfig(cfg *config.Config, clientID string) *config.Config {
	c := *cfg
	c.MQTTClientID = clientID
	return &c
}
