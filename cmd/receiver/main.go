package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/gauge-data-service/internal/observability"
	"github.com/kjstillabower/gauge-data-service/internal/publish"
	"github.com/kjstillabower/gauge-data-service/internal/receiver"
)

func main() {
	logger, err := observability.NewLogger("receiver")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	addr := os.Getenv("RECEIVER_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	storeDir := os.Getenv("RECEIVER_STORE_DIR")
	if storeDir == "" {
		storeDir = "/var/tmp"
	}
	storeName := os.Getenv("RECEIVER_STORE_NAME")
	if storeName == "" {
		storeName = "gauge-data.txt"
	}

	handler := receiver.NewHandler(publish.NewFileSink(storeDir, storeName), logger)
	router := receiver.NewRouter(handler, logger)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("receiver starting",
			zap.String("addr", addr),
			zap.String("store", storeDir+"/"+storeName))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
