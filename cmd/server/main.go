// Screenveil daemon - captures the screen, analyzes frames for explicit
// content, and serves decisions to overlay clients
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/screenveil/screenveil/internal/capture"
	"github.com/screenveil/screenveil/internal/config"
	"github.com/screenveil/screenveil/internal/frame"
	"github.com/screenveil/screenveil/internal/pipeline"
	"github.com/screenveil/screenveil/internal/server"
	"github.com/screenveil/screenveil/internal/telemetry"
)

func main() {
	cfg := config.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	th, err := config.LoadThresholds(cfg.CalibrationFile)
	if err != nil {
		slog.Warn("calibration load failed, using defaults", "file", cfg.CalibrationFile, "error", err)
	}

	exporter := telemetry.NewExporter()
	sinks := telemetry.Multi{telemetry.MetricsSink{}}

	var history *telemetry.History
	if cfg.TelemetryDB != "" {
		history, err = telemetry.OpenHistory(cfg.TelemetryDB, 0)
		if err != nil {
			slog.Error("telemetry history disabled", "path", cfg.TelemetryDB, "error", err)
			history = nil
		} else {
			defer history.Close()
			sinks = append(sinks, history)
		}
	}

	src, err := capture.Open(cfg.CaptureSource)
	if err != nil {
		slog.Error("capture source unavailable", "source", cfg.CaptureSource, "error", err)
		os.Exit(1)
	}
	defer src.Close()

	// Create analysis engine
	eng := pipeline.New(cfg, th, sinks)

	// A forced pass skips change detection and admission throttling.
	forceCh := make(chan struct{}, 1)
	force := func() {
		select {
		case forceCh <- struct{}{}:
		default:
		}
	}

	// Create HTTP/WebSocket server
	srv := server.New(eng, history, exporter.Handler(), force)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng.Start(ctx)
	if history != nil {
		go history.Janitor(ctx, time.Hour)
	}
	go captureLoop(ctx, src, eng, cfg.CaptureRate, forceCh)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("screenveil daemon starting",
			"http", cfg.HTTPAddr,
			"source", cfg.CaptureSource,
			"rate_hz", cfg.CaptureRate,
			"quality", cfg.BaseQuality)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	eng.Stop()
	slog.Info("shutdown complete")
}

// captureLoop polls the screen at the configured rate and feeds changed
// frames to the engine. Force requests bypass both the change check and
// the admission throttle.
func captureLoop(ctx context.Context, src capture.Capturer, eng *pipeline.Engine, rate float64, forceCh <-chan struct{}) {
	if rate <= 0 {
		rate = 1
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-forceCh:
			if fr := src.CaptureAlways(); fr != nil {
				process(ctx, eng, fr, true)
			}
		case <-ticker.C:
			fr, changed := src.Capture()
			if !changed {
				continue
			}
			process(ctx, eng, fr, false)
		}
	}
}

func process(ctx context.Context, eng *pipeline.Engine, fr *frame.Frame, forced bool) {
	_, err := eng.Process(ctx, fr, forced)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrSkipped), errors.Is(err, pipeline.ErrSuperseded):
		slog.Debug("frame not processed", "seq", fr.Seq, "reason", err)
	case ctx.Err() != nil:
		// Shutdown in progress.
	default:
		slog.Error("frame processing failed", "seq", fr.Seq, "error", err)
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
