// Package main implements a standalone entry point for the timer manager:
// it wires a timer heap, the election pool, a Prometheus metrics server and
// a health monitor together, schedules one demonstration timer, and runs
// until signalled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/timermanager/config"
	"github.com/c360/timermanager/health"
	"github.com/c360/timermanager/metric"
	"github.com/c360/timermanager/pkg/clock"
	"github.com/c360/timermanager/pkg/timerheap"
	"github.com/c360/timermanager/pkg/timerpool"
)

const appName = "timermanager"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	metricsAddr := flag.Int("metrics-port", 9090, "port for the Prometheus metrics server")
	startThreaded := flag.Bool("start-threaded", true, "spawn the first worker immediately on Init")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	safeCfg := config.NewSafeConfig(&config.Config{StartThreaded: *startThreaded})

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	metricsServer := metric.NewServer(*metricsAddr, "/metrics", registry,
		metric.WithHealth(monitor, "metrics-server"))
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	defer func() {
		if err := metricsServer.Stop(); err != nil {
			logger.Warn("metrics server stop failed", "error", err)
		}
	}()

	var pool *timerpool.Manager
	source := timerheap.New(
		timerheap.WithClock(clock.NewReal()),
		timerheap.WithKicker(func() { pool.Kick() }),
	)

	pool = timerpool.New(source,
		timerpool.WithClock(clock.NewReal()),
		timerpool.WithLogger(logger),
		timerpool.WithStartThreaded(safeCfg.Get().StartThreaded),
		timerpool.WithMetrics(registry),
		timerpool.WithHealth(monitor, appName),
	)

	pool.Init()
	defer pool.Shutdown()

	source.Add(time.Now().Add(5*time.Second), func() {
		logger.Info("demonstration timer fired")
	})
	pool.Kick()

	logger.Info("timer manager started",
		"metrics_addr", metricsServer.Address(),
		"start_threaded", safeCfg.Get().StartThreaded)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutdown signal received, stopping timer manager")
	return nil
}
