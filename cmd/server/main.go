// Package main runs the token aggregation service: the periodic aggregation
// cycle, the delta broadcaster, and the HTTP/websocket API on one port.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"token-pulse/internal/aggregator"
	"token-pulse/internal/cache"
	"token-pulse/internal/config"
	"token-pulse/internal/httpapi"
	"token-pulse/internal/logging"
	"token-pulse/internal/query"
	"token-pulse/internal/sources"
	"token-pulse/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Flags override env-derived config
	port := flag.Int("port", cfg.Port, "HTTP listen port")
	redisAddr := flag.String("redis-addr", cfg.Redis.Addr, "Redis address")
	useMemory := flag.Bool("use-memory-cache", cfg.UseMemoryCache, "Use in-memory cache instead of Redis")
	logFile := flag.String("log-file", cfg.LogFile, "Optional rotated log file path")
	flag.Parse()

	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: *logFile})
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cache backend
	var kv cache.KV
	if *useMemory {
		kv = cache.NewMemoryKV()
		logger.Info("using in-memory cache")
	} else {
		redisKV, err := cache.NewRedisKV(ctx, *redisAddr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("connect redis", zap.String("addr", *redisAddr), zap.Error(err))
		}
		defer redisKV.Close()
		kv = redisKV
		logger.Info("connected to redis", zap.String("addr", *redisAddr))
	}
	snapshots := cache.NewSnapshotCache(cache.SnapshotCacheOptions{
		KV:     kv,
		TTL:    cfg.CacheTTL,
		Logger: logger,
	})

	// Upstream sources
	httpTimeout := sources.WithTimeout(cfg.Aggregator.SourceTimeout)
	srcs := []sources.TokenSource{
		sources.NewDexScreenerSource(sources.DexScreenerOptions{
			Client:  sources.NewHTTPClient(sources.SourceDexScreener, httpTimeout),
			BaseURL: cfg.Sources.DexScreenerURL,
			Query:   cfg.Sources.DexScreenerQuery,
		}),
		sources.NewJupiterSource(sources.JupiterOptions{
			Client:  sources.NewHTTPClient(sources.SourceJupiter, httpTimeout),
			BaseURL: cfg.Sources.JupiterURL,
			Query:   cfg.Sources.JupiterQuery,
		}),
	}

	// Aggregation cycle
	agg := aggregator.New(aggregator.Options{
		Sources:        srcs,
		Snapshots:      snapshots,
		SourceTimeout:  cfg.Aggregator.SourceTimeout,
		MaxConcurrency: cfg.Aggregator.MaxConcurrency,
		Logger:         logger,
	})
	agg.Start(cfg.Aggregator.Interval)
	defer agg.Stop()

	// Push side
	hub := ws.NewHub(ws.HubOptions{Snapshots: snapshots, Logger: logger})
	broadcaster := ws.NewBroadcaster(ws.BroadcasterOptions{
		Hub:          hub,
		Snapshots:    snapshots,
		ThresholdPct: cfg.Broadcast.PriceThresholdPct,
		VolumeFactor: cfg.Broadcast.VolumeSpikeFactor,
		Logger:       logger,
	})
	broadcaster.Start(cfg.Broadcast.Interval, cfg.Broadcast.SweepInterval)
	defer broadcaster.Stop()

	// HTTP surface
	api := httpapi.New(httpapi.Options{
		Engine:     query.NewEngine(snapshots),
		Aggregator: agg,
		Hub:        hub,
		WSHandler:  ws.NewServer(ws.ServerOptions{Hub: hub, Logger: logger}),
		AdminKey:   cfg.AdminKey,
		Logger:     logger,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: api.Router(),
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
