// Package main wires together the favicon service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/favicond/favicond/internal/api"
	"github.com/favicond/favicond/internal/cache"
	"github.com/favicond/favicond/internal/clock/system"
	"github.com/favicond/favicond/internal/config"
	"github.com/favicond/favicond/internal/convert"
	"github.com/favicond/favicond/internal/coordinator"
	"github.com/favicond/favicond/internal/fetcher"
	collyfetcher "github.com/favicond/favicond/internal/fetcher/colly"
	"github.com/favicond/favicond/internal/hash/sha256"
	"github.com/favicond/favicond/internal/logging"
	"github.com/favicond/favicond/internal/metrics"
	"github.com/favicond/favicond/internal/service"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hostCache, err := cache.New(cache.Config{
		Dir:        cfg.Cache.Dir,
		ScratchDir: cfg.Cache.ScratchDir,
	}, system.New(), logger)
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}

	icons := fetcher.NewIcon(fetcher.IconConfig{
		UserAgent:    cfg.HTTP.UserAgent,
		IdleTimeout:  cfg.IdleTimeout(),
		MaxRedirects: cfg.HTTP.MaxRedirects,
	})
	pages := collyfetcher.NewPage(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.IdleTimeout(),
	})
	hasher := sha256.New()

	coord := coordinator.New(icons, pages, hasher, logger)
	converter := convert.NewExec(convert.Config{
		Command: cfg.Convert.Command,
		Sizes:   cfg.Convert.Sizes,
		Timeout: cfg.ConvertTimeout(),
	}, logger)

	svc := service.New(hostCache, coord, converter, hasher, service.Config{
		TTL:          cfg.CacheTTL(),
		DefaultSize:  cfg.Icon.DefaultSize,
		DefaultImage: cfg.Icon.DefaultImage,
	}, logger)

	server := api.NewServer(svc, api.Config{
		SelfPath:     cfg.Icon.SelfPath,
		DefaultSize:  cfg.Icon.DefaultSize,
		DefaultImage: cfg.Icon.DefaultImage,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("favicond listening", zap.Int("port", cfg.Server.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}
}
