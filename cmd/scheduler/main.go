package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/sugartom/nexus/internal/biz"
	"github.com/sugartom/nexus/internal/common"
	"github.com/sugartom/nexus/internal/config"
	"github.com/sugartom/nexus/internal/handler"
	"github.com/sugartom/nexus/internal/klogging"
	"github.com/sugartom/nexus/internal/metrics"
	"go.opencensus.io/stats/view"
)

// injected via -ldflags at build time
var Version string = "dev"
var GitCommit string = "unknown"
var BuildTime string = "unknown"

/*
export ETCD_ENDPOINTS=localhost:2379
export NEXUS_BEACON_INTERVAL_SEC=10
export NEXUS_EPOCH_INTERVAL_SEC=30
export NEXUS_WORKLOAD_FILE=/etc/nexus/workload.yaml
export API_PORT=8080
export METRICS_PORT=9090
export LOG_LEVEL=info
export LOG_FORMAT=json
./bin/scheduler
*/
func main() {
	ctx := context.Background()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	logrusLogger := klogging.NewLogrusLogger(ctx)
	logrusLogger.SetConfig(ctx, logLevel, logFormat)
	klogging.SetDefaultLogger(logrusLogger)
	klogging.Info(ctx).With("logLevel", logLevel).With("logFormat", logFormat).Log("LogLevelSet", "")

	common.SetVersion(Version)
	klogging.Info(ctx).With("version", Version).With("commit", GitCommit).With("buildTime", BuildTime).Log("ServerStarting", "Starting scheduler")

	pe, err := prometheus.NewExporter(prometheus.Options{
		Namespace: "nexus",
	})
	if err != nil {
		log.Fatalf("Failed to create Prometheus exporter: %v", err)
	}
	view.RegisterExporter(pe)
	if err := metrics.RegisterViews(); err != nil {
		log.Fatalf("Failed to register metric views: %v", err)
	}

	cfg := config.NewSchedulerConfigFromEnv()
	app := biz.NewApp(ctx, cfg)
	h := handler.NewHandler(app)
	mainMux := http.NewServeMux()
	h.RegisterRoutes(mainMux)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", pe)

	mainServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ApiPort),
		Handler: mainMux,
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	klogging.Info(ctx).
		With("api_port", cfg.ApiPort).
		With("metrics_port", cfg.MetricsPort).
		With("beacon_interval_sec", cfg.BeaconIntervalSec).
		With("epoch_interval_sec", cfg.EpochIntervalSec).
		Log("ServerConfig", "Server configuration")

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		klogging.Info(ctx).Log("ServerShutdown", "Shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := mainServer.Shutdown(shutdownCtx); err != nil {
			klogging.Error(ctx).WithError(err).Log("ServerShutdown", "API server shutdown error")
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			klogging.Error(ctx).WithError(err).Log("ServerShutdown", "metrics server shutdown error")
		}
		app.Stop(shutdownCtx)
	}()

	go func() {
		klogging.Info(ctx).With("addr", metricsServer.Addr).Log("MetricsServerStarting", "")
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			klogging.Error(ctx).WithError(err).Log("MetricsServerError", "")
		}
	}()

	klogging.Info(ctx).With("addr", mainServer.Addr).Log("ServerStarted", "API server listening")
	if err := mainServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	klogging.Info(ctx).Log("ServerStopped", "Server stopped")
}
