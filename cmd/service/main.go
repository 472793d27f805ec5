package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/gauge-data-service/internal/config"
	"github.com/kjstillabower/gauge-data-service/internal/engine"
	"github.com/kjstillabower/gauge-data-service/internal/forecast"
	"github.com/kjstillabower/gauge-data-service/internal/ingest"
	"github.com/kjstillabower/gauge-data-service/internal/observability"
	"github.com/kjstillabower/gauge-data-service/internal/publish"
	"github.com/kjstillabower/gauge-data-service/internal/snapshot"
)

var (
	version = "dev"
	build   = "unknown"
)

func main() {
	logger, err := observability.NewLogger("service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	builder := snapshot.NewBuilder(snapshot.Options{
		Timezone:          cfg.Timezone,
		DateFormat:        cfg.DateFormat,
		TimeFormat:        cfg.TimeFormat,
		FieldRemap:        cfg.FieldRemap,
		RainRateSmoothing: cfg.RainRateSmoothing,
		WindHistory:       cfg.WindHistory,
		Version:           version,
		Build:             build,
	})

	fanout := publish.NewFanout(logger.Named("publish"))
	fanout.Add(publish.NewFileSink(cfg.FilePath, cfg.FileName), cfg.FileInterval)
	logger.Info("file sink enabled", zap.String("path", cfg.FilePath), zap.String("name", cfg.FileName))

	if cfg.HTTPEnabled {
		fanout.Add(publish.NewHTTPSink(cfg.HTTPURL, cfg.HTTPTimeout), cfg.HTTPInterval)
		logger.Info("http sink enabled", zap.String("url", cfg.HTTPURL))
	}
	if cfg.RsyncEnabled {
		fanout.Add(publish.NewRsyncSink(publish.RsyncOptions{
			Server:        cfg.RsyncServer,
			User:          cfg.RsyncUser,
			Port:          cfg.RsyncPort,
			SSHOptions:    cfg.RsyncSSHOptions,
			RemotePath:    cfg.RsyncRemotePath,
			Timeout:       cfg.RsyncTimeout,
			SkipOlderThan: cfg.RsyncSkipOlderThan,
		}, cfg.FilePath, cfg.FileName), cfg.RsyncInterval)
		logger.Info("rsync sink enabled", zap.String("server", cfg.RsyncServer))
	}
	if cfg.MemcachedEnabled {
		mc := publish.NewMemcachedSink(splitAddrs(cfg.MemcachedAddrs), cfg.MemcachedKey, cfg.MemcachedTTL, cfg.MemcachedTimeout)
		if err := mc.Ping(); err != nil {
			logger.Warn("memcached unreachable at startup", zap.Error(err))
		}
		fanout.Add(mc, cfg.MemcachedInterval)
		logger.Info("memcached sink enabled", zap.String("addrs", cfg.MemcachedAddrs))
	}

	// The Zambretti source reads conditions from the engine, and the engine
	// reads forecast text from the refresher, so bind conditions lazily.
	var eng *engine.Engine
	conditions := func(now time.Time) (forecast.Conditions, bool) {
		if eng == nil {
			return forecast.Conditions{}, false
		}
		return eng.Conditions(now)
	}

	provider, substitute := buildForecastProvider(cfg, conditions)
	refresher := forecast.NewRefresher(provider, cfg.ForecastInterval, substitute, logger.Named("forecast"))

	eng = engine.New(cfg, builder, fanout, refresher, logger.Named("engine"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go refresher.Run(ctx)
	go serveMetrics(logger)
	go func() {
		if err := ingest.Run(ctx, os.Stdin, eng, logger.Named("ingest")); err != nil && ctx.Err() == nil {
			logger.Error("ingest stopped", zap.Error(err))
		}
	}()

	logger.Info("service starting",
		zap.String("version", version),
		zap.String("forecastSource", cfg.ForecastSource),
		zap.Int("sinks", fanout.Len()))

	eng.Run(ctx)
	logger.Info("shutdown complete")
}

func buildForecastProvider(cfg *config.Config, conditions forecast.ConditionsFunc) (forecast.Provider, bool) {
	switch cfg.ForecastSource {
	case config.ForecastZambretti:
		// No substitution pass: the lookup text carries no time directives.
		return forecast.NewZambretti(conditions, true), false
	case config.ForecastAPI:
		return forecast.NewAPI(cfg.ForecastAPIURL, cfg.ForecastAPIKey, cfg.ForecastAPITimeout), cfg.ForecastSubstitute
	case config.ForecastFile:
		return forecast.NewFile(cfg.ForecastFilePath), cfg.ForecastSubstitute
	default:
		return forecast.NewStatic(cfg.ForecastText), cfg.ForecastSubstitute
	}
}

func serveMetrics(logger *zap.Logger) {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9100"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	logger.Info("metrics listener starting", zap.String("addr", addr))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics listener", zap.Error(err))
	}
}

func splitAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
