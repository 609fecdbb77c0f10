package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imgproxy/pkg/admin"
	"imgproxy/pkg/config"
	"imgproxy/pkg/imgproxy"
	"imgproxy/pkg/obs/metrics"
	"imgproxy/pkg/obs/tracing"
	"imgproxy/pkg/server"
	"imgproxy/pkg/storage"
)

var version = "0.0.1-dev"

func main() {
	// Load config from IMGPROXY_CONFIG or ./config.yaml; defaults otherwise.
	cfg, err := config.Load(os.Getenv("IMGPROXY_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	setupLogging(cfg.Log)
	if err := config.EnsureDirs(cfg); err != nil {
		slog.Error("failed to ensure data dirs", slog.String("error", err.Error()))
		os.Exit(1)
	}

	traceShutdown, terr := tracing.Init(context.Background(), tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Protocol:    cfg.Tracing.Protocol,
		SampleRatio: cfg.Tracing.SampleRatio,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if terr != nil {
		slog.Warn("tracing init failed", slog.String("error", terr.Error()))
	}

	m := metrics.New()
	sm := metrics.NewStorageMetrics(m.Registry())

	backend, err := openStore(cfg.Store)
	if err != nil {
		slog.Error("init storage", slog.String("backend", cfg.Store.Backend), slog.String("error", err.Error()))
		os.Exit(1)
	}
	var store storage.ObjectStore = storage.NewObserved(backend, sm, "get")

	// Optional read-through cache in front of the observed store.
	c, err := openCache(context.Background(), cfg.Cache)
	if err != nil {
		slog.Error("init cache", slog.String("backend", cfg.Cache.Backend), slog.String("error", err.Error()))
		os.Exit(1)
	}
	var cachePollStop func()
	var stats admin.StatsSource
	if c != nil {
		store = storage.NewCached(store, c, cfg.Cache.MaxEntryBytes)
		cm := metrics.NewCacheMetrics(m.Registry(), cfg.Cache.Backend)
		cachePollStop = cm.StartPolling(c, 10*time.Second)
		stats = c
	}
	slog.Info("storage ready",
		slog.String("store", cfg.Store.Backend),
		slog.String("cache", cfg.Cache.Backend),
	)

	var console io.Writer
	if cfg.Log.Console {
		console = os.Stdout
	}
	s := server.New(server.Options{
		Images:       imgproxy.New(store, imgproxy.WithOutcome(m.ObserveOutcome)),
		Metrics:      m,
		Logger:       slog.Default(),
		Console:      console,
		TraceKeyHash: cfg.Tracing.KeyHashEnabled,
	})

	readTimeout, writeTimeout, idleTimeout := cfg.Server.Durations()
	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      s,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	// Admin server on a separate port: read-only endpoints and /metrics.
	// Without adminAddress metrics are collected but not exposed.
	var adminSrv *http.Server
	if cfg.AdminAddress != "" {
		adminSrv = &http.Server{
			Addr: cfg.AdminAddress,
			Handler: admin.NewMux(admin.Info{
				Version:      version,
				Address:      cfg.Address,
				AdminAddress: cfg.AdminAddress,
				StoreBackend: cfg.Store.Backend,
				CacheBackend: cfg.Cache.Backend,
			}, s.Ready, stats, m.Handler()),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		}
		go func() {
			slog.Info("admin listening", slog.String("addr", cfg.AdminAddress))
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("admin server error", slog.String("error", err.Error()))
				os.Exit(1)
			}
		}()
	}

	go func() {
		s.SetReady(true)
		slog.Info("imgproxy listening", slog.String("version", version), slog.String("addr", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	s.SetReady(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", slog.String("error", err.Error()))
	}
	if adminSrv != nil {
		if err := adminSrv.Shutdown(ctx); err != nil {
			slog.Error("admin shutdown error", slog.String("error", err.Error()))
		}
	}
	if cachePollStop != nil {
		cachePollStop()
	}
	if c != nil {
		if err := c.Close(); err != nil {
			slog.Error("cache close error", slog.String("error", err.Error()))
		}
	}
	if err := traceShutdown(ctx); err != nil {
		slog.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	slog.Info("imgproxy stopped")
}
