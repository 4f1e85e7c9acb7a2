package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/canopy/e2e/internal/observer"
	"github.com/saaga0h/canopy/pkg/config"
	"github.com/saaga0h/canopy/pkg/mqtt"
)

func main() {
	cfg := config.NewConfig()
	cfg.LoadFromEnv()
	cfg.RegisterFlags(pflag.CommandLine)

	outputDir := pflag.String("output-dir", "./test-output/captures", "Output directory for captures")
	snapshotInterval := pflag.Duration("snapshot-interval", 30*time.Second, "Interval between capture snapshots")
	pflag.Parse()

	cfg.MQTTClientID = "canopy-observer"
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	obs := observer.NewObserver(mqtt.NewClient(cfg, logger), logger)
	if err := obs.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start observer: %v\n", err)
		os.Exit(1)
	}
	defer obs.Stop()

	logger.Info("Observer running, press Ctrl+C to stop")

	ticker := time.NewTicker(*snapshotInterval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-ticker.C:
			name := fmt.Sprintf("snapshot-%s-%03d.json", time.Now().Format("20060102-150405"), n)
			if err := obs.SaveCapture(filepath.Join(*outputDir, name)); err != nil {
				logger.Warn("Failed to save snapshot", "error", err)
			}

		case <-ctx.Done():
			name := fmt.Sprintf("final-%s.json", time.Now().Format("20060102-150405"))
			if err := obs.SaveCapture(filepath.Join(*outputDir, name)); err != nil {
				logger.Warn("Failed to save final capture", "error", err)
			}
			return
		}
	}
}
