// dashboard follows one wallet's perpetual positions on Reya and serves the
// aggregated view as JSON.
// Usage: go run ./cmd/dashboard --config configs/dashboard.yaml
//
// Environment variables referenced from the config (for example
// ${REYA_WALLET_ADDRESS}) may be set in a .env file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/reya-positions/internal/api"
	"github.com/rickgao/reya-positions/internal/config"
	"github.com/rickgao/reya-positions/internal/connection"
	"github.com/rickgao/reya-positions/internal/feed"
	"github.com/rickgao/reya-positions/internal/logging"
	"github.com/rickgao/reya-positions/internal/market"
	"github.com/rickgao/reya-positions/internal/metrics"
	"github.com/rickgao/reya-positions/internal/poller"
	"github.com/rickgao/reya-positions/internal/router"
	"github.com/rickgao/reya-positions/internal/store"
	"github.com/rickgao/reya-positions/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/dashboard.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional .env file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logOut, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logOut.Close()
	logger = logger.With("instance_id", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting dashboard",
		"version", version.Version,
		"commit", version.Commit,
		"build_time", version.BuildTime,
		"config", *configPath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("dashboard failed", "error", err)
		os.Exit(1)
	}
	logger.Info("dashboard stopped")
}

func run(cfg *config.DashboardConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("configuration loaded",
		"rest_url", cfg.API.RestURL,
		"ws_url", cfg.API.WSURL,
		"wallet", cfg.Positions.WalletAddress,
	)

	apiOpts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	}
	if cfg.API.RateLimit > 0 {
		apiOpts = append(apiOpts, api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst))
	}
	apiClient := api.NewClient(cfg.API.RestURL, apiOpts...)

	registry := market.NewRegistry(market.Config{
		ReconcileInterval:  cfg.Markets.ReconcileInterval,
		InitialLoadTimeout: 30 * time.Second,
	}, apiClient, logger)

	connMgr := connection.NewManager(managerConfig(cfg), logger)
	rtr := router.NewRouter(connMgr.Messages(), connMgr, logger)

	prices := store.NewPriceStore(decimal.NewFromFloat(cfg.Prices.SignificanceThreshold))
	positionStore := store.NewPositionStore()
	portfolio := store.NewPortfolio(prices, positionStore, registry)

	priceFeed := feed.NewPriceFeed(connMgr, prices, logger)

	var positionFeed *feed.PositionFeed
	if cfg.Positions.WalletAddress != "" {
		positionFeed = feed.NewPositionFeed(connMgr, apiClient, positionStore, cfg.Positions.WalletAddress, poller.Config{
			Interval: cfg.Positions.RefreshInterval,
			Timeout:  cfg.Positions.RefreshTimeout,
		}, logger)
	}

	reg := metrics.NewRegistry(metrics.Sources{
		Connection: connMgr,
		Router:     rtr,
		Prices:     prices,
		Positions:  positionStore,
		Portfolio:  portfolio,
		Markets:    registry,
	})

	srv := &server{
		conn:      connMgr,
		prices:    prices,
		positions: positionStore,
		portfolio: portfolio,
		markets:   registry,
		wallet:    cfg.Positions.WalletAddress,
		logger:    logger,
	}
	apiServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("starting metrics server", "addr", metricsServer.Addr, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		watchEvents(connMgr.Events(), logger)
		return nil
	})

	logger.Info("starting market registry")
	if err := registry.Start(gctx); err != nil {
		return fmt.Errorf("start market registry: %w", err)
	}
	logger.Info("market registry started", "markets", len(registry.Symbols()))

	if err := rtr.Start(gctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}

	if err := priceFeed.Start(gctx); err != nil {
		logger.Warn("initial connect failed, reconnecting in background", "error", err)
	}
	if positionFeed != nil {
		if err := positionFeed.Start(gctx); err != nil {
			logger.Warn("initial positions load failed", "error", err)
		}
	} else {
		logger.Warn("no wallet address configured, positions disabled")
	}

	logger.Info("dashboard running",
		"positions_url", fmt.Sprintf("http://localhost%s/positions", cfg.HTTP.Addr),
		"metrics_url", fmt.Sprintf("http://localhost:%d%s", cfg.Metrics.Port, cfg.Metrics.Path),
	)

	<-gctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Outward surfaces first, then producers before their consumers.
	for name, s := range map[string]*http.Server{"http": apiServer, "metrics": metricsServer} {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown failed", "server", name, "error", err)
		}
	}
	if positionFeed != nil {
		if err := positionFeed.Stop(shutdownCtx); err != nil {
			logger.Warn("position feed stop failed", "error", err)
		}
	}
	priceFeed.Stop()
	if err := connMgr.Stop(shutdownCtx); err != nil {
		logger.Warn("connection manager stop failed", "error", err)
	}
	if err := rtr.Stop(shutdownCtx); err != nil {
		logger.Warn("router stop failed", "error", err)
	}
	if err := registry.Stop(shutdownCtx); err != nil {
		logger.Warn("market registry stop failed", "error", err)
	}

	return g.Wait()
}

func managerConfig(cfg *config.DashboardConfig) connection.ManagerConfig {
	c := cfg.Connection
	return connection.ManagerConfig{
		WSURL:                cfg.API.WSURL,
		HandshakeTimeout:     c.HandshakeTimeout,
		WriteTimeout:         c.WriteTimeout,
		ClientBufferSize:     c.BufferSize,
		HeartbeatInterval:    c.HeartbeatInterval,
		HeartbeatTimeout:     c.HeartbeatTimeout,
		ReconnectPolicy:      connection.ReconnectPolicy(c.ReconnectPolicy),
		ReconnectDelay:       c.ReconnectDelay,
		ReconnectMaxDelay:    c.ReconnectMaxDelay,
		ReconnectMaxAttempts: c.ReconnectMaxAttempts,
		MessageBufferSize:    c.BufferSize,
	}
}

// watchEvents logs connection lifecycle events until the channel closes.
func watchEvents(events <-chan connection.Event, logger *slog.Logger) {
	for ev := range events {
		switch ev.Kind {
		case connection.EventOpen:
			logger.Info("websocket open", "conn_id", ev.ConnID)
		case connection.EventReconnectScheduled:
			logger.Info("websocket reconnect scheduled", "attempt", ev.Attempt, "delay", ev.Delay)
		case connection.EventReconnectFailed:
			logger.Error("websocket gave up reconnecting", "attempt", ev.Attempt, "error", ev.Err)
		case connection.EventClose, connection.EventError:
			logger.Debug("websocket event", "kind", ev.Kind.String(), "conn_id", ev.ConnID, "error", ev.Err)
		}
	}
}
