// streamtest connects to the Reya WebSocket and prints channel data to the console.
// Usage: go run ./cmd/streamtest --config configs/dashboard.yaml [--wallet 0x...]
//
// Prices are always streamed. Positions are streamed for --wallet, or for
// positions.wallet_address from the config when the flag is empty.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/reya-positions/internal/api"
	"github.com/rickgao/reya-positions/internal/config"
	"github.com/rickgao/reya-positions/internal/connection"
	"github.com/rickgao/reya-positions/internal/feed"
	"github.com/rickgao/reya-positions/internal/positions"
	"github.com/rickgao/reya-positions/internal/router"
)

func main() {
	configPath := flag.String("config", "configs/dashboard.yaml", "path to config file")
	wallet := flag.String("wallet", "", "wallet address to stream positions for")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *wallet == "" {
		*wallet = cfg.Positions.WalletAddress
	}
	if *wallet != "" && !config.IsValidWalletAddress(*wallet) {
		logger.Error("invalid wallet address", "wallet", *wallet)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	connCfg := connection.DefaultManagerConfig()
	connCfg.WSURL = cfg.API.WSURL
	connCfg.HeartbeatTimeout = cfg.Connection.HeartbeatTimeout
	connCfg.ReconnectDelay = cfg.Connection.ReconnectDelay
	connCfg.ReconnectMaxAttempts = cfg.Connection.ReconnectMaxAttempts

	connMgr := connection.NewManager(connCfg, logger)
	rtr := router.NewRouter(connMgr.Messages(), connMgr, logger)

	// Handlers run on the router goroutine, one frame at a time.
	connMgr.Subscribe(feed.PricesChannel, func(data json.RawMessage) {
		printPrices(data, *verbose, logger)
	})
	if *wallet != "" {
		connMgr.Subscribe(feed.WalletPositionsChannel(*wallet), func(data json.RawMessage) {
			printPositions(data, *verbose, logger)
		})
		logger.Info("streaming positions", "wallet", positions.ShortAddress(*wallet))
	}

	logger.Info("starting router")
	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}

	logger.Info("connecting", "url", connCfg.WSURL)
	if err := connMgr.Connect(ctx); err != nil {
		logger.Warn("initial connect failed, retrying in background", "error", err)
	}

	go printEvents(connMgr.Events())

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				routerStats := rtr.Stats()
				connStats := connMgr.Stats()
				logger.Info("stats",
					"state", connStats.State.String(),
					"reconnect", connStats.ReconnectState.String(),
					"subscriptions", connStats.Subscriptions,
					"frames_received", connStats.FramesReceived,
					"router_routed", routerStats.MessagesRouted,
					"pongs", routerStats.PingsAnswered,
					"parse_errors", routerStats.ParseErrors,
					"buffer", connStats.Buffer.Count,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	connMgr.Stop(shutdownCtx)
	rtr.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

func printPrices(data json.RawMessage, verbose bool, logger *slog.Logger) {
	if verbose {
		fmt.Printf("[PRICES] %s\n", data)
		return
	}

	list, err := feed.DecodeList[api.APIPrice](data)
	if err != nil {
		logger.Warn("undecodable prices payload", "error", err)
		return
	}
	for _, p := range api.PricesToModel(list) {
		fmt.Printf("[PRICE] symbol=%s mark=%s oracle=%s pool=%s\n",
			positions.DisplaySymbol(p.Symbol), positions.MarkOf(p), p.OraclePrice, p.PoolPrice)
	}
}

func printPositions(data json.RawMessage, verbose bool, logger *slog.Logger) {
	if verbose {
		fmt.Printf("[POSITIONS] %s\n", data)
		return
	}

	list, err := feed.DecodeList[api.APIPosition](data)
	if err != nil {
		logger.Warn("undecodable positions payload", "error", err)
		return
	}
	for _, p := range api.PositionsToModel(list) {
		fmt.Printf("[POSITION] symbol=%s account=%d side=%s qty=%s seq=%d\n",
			p.Symbol, p.AccountID, p.Side, positions.FormatNumber(p.Qty, 4), p.LastTradeSequenceNumber)
	}
}

func printEvents(events <-chan connection.Event) {
	for ev := range events {
		switch ev.Kind {
		case connection.EventReconnectScheduled:
			fmt.Printf("[CONN] %s attempt=%d delay=%s\n", ev.Kind, ev.Attempt, ev.Delay)
		case connection.EventError, connection.EventReconnectFailed, connection.EventClose:
			fmt.Printf("[CONN] %s conn_id=%s err=%v\n", ev.Kind, ev.ConnID, ev.Err)
		default:
			fmt.Printf("[CONN] %s conn_id=%s\n", ev.Kind, ev.ConnID)
		}
	}
}
