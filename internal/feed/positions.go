package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/reya-positions/internal/api"
	"github.com/rickgao/reya-positions/internal/model"
	"github.com/rickgao/reya-positions/internal/poller"
	"github.com/rickgao/reya-positions/internal/store"
)

// PositionFeed keeps a PositionStore current for one wallet.
type PositionFeed struct {
	sub     Subscriber
	fetcher poller.PositionFetcher
	store   *store.PositionStore
	address string
	channel string
	timeout time.Duration
	logger  *slog.Logger

	poller *poller.Poller

	live atomic.Bool

	mu          sync.Mutex
	unsubscribe func()

	frames       atomic.Int64
	records      atomic.Int64
	decodeErrors atomic.Int64
	dropped      atomic.Int64
}

// NewPositionFeed creates a feed for address. refresh configures the
// background REST poll; its Timeout also bounds the initial load.
func NewPositionFeed(sub Subscriber, fetcher poller.PositionFetcher, positions *store.PositionStore, address string, refresh poller.Config, logger *slog.Logger) *PositionFeed {
	if logger == nil {
		logger = slog.Default()
	}
	if refresh.Timeout <= 0 {
		refresh.Timeout = poller.DefaultConfig().Timeout
	}

	f := &PositionFeed{
		sub:     sub,
		fetcher: fetcher,
		store:   positions,
		address: address,
		channel: WalletPositionsChannel(address),
		timeout: refresh.Timeout,
		logger:  logger.With("channel", WalletPositionsChannel(address)),
	}
	f.poller = poller.New(refresh, fetcher, address, poller.HandlerFunc(f.HandlePositions), logger)
	return f
}

// Start loads positions over REST, subscribes to the wallet channel and
// starts the background refresh. A failed load is recorded on the store
// as ErrFetchPositions; the channel and the refresh still start so the
// view recovers without a restart.
func (f *PositionFeed) Start(ctx context.Context) error {
	f.live.Store(true)

	f.store.SetLoading(true)
	f.store.SetError("")
	defer func() {
		if f.live.Load() {
			f.store.SetLoading(false)
		}
	}()

	loadErr := f.load(ctx)

	f.mu.Lock()
	if f.unsubscribe == nil && f.live.Load() {
		f.unsubscribe = f.sub.Subscribe(f.channel, f.handle)
	}
	f.mu.Unlock()

	if err := f.sub.Connect(ctx); err != nil {
		f.logger.Warn("connect failed, positions will stream after reconnect", "error", err)
	}

	if err := f.poller.Start(ctx); err != nil {
		return err
	}

	f.logger.Info("position feed started", "wallet", f.address)
	return loadErr
}

// Stop unsubscribes and stops the refresh. Late REST results and queued
// frames are discarded.
func (f *PositionFeed) Stop(ctx context.Context) error {
	f.live.Store(false)

	f.mu.Lock()
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	err := f.poller.Stop(ctx)
	f.logger.Info("position feed stopped")
	return err
}

// HandlePositions reconciles the store with a REST refresh, dropping
// positions the wallet no longer holds. It implements poller.Handler.
func (f *PositionFeed) HandlePositions(list []model.Position) error {
	if !f.live.Load() {
		return nil
	}
	res := f.store.Reconcile(list)
	f.store.SetError("")
	f.logger.Debug("positions refreshed",
		"inserted", res.Inserted,
		"replaced", res.Replaced,
		"stale", res.Stale,
		"removed", res.Removed,
	)
	return nil
}

// Stats returns frame counters.
func (f *PositionFeed) Stats() Stats {
	return Stats{
		Frames:       f.frames.Load(),
		Records:      f.records.Load(),
		DecodeErrors: f.decodeErrors.Load(),
		Dropped:      f.dropped.Load(),
	}
}

// PollerStats returns the background refresh counters.
func (f *PositionFeed) PollerStats() poller.Stats {
	return f.poller.Stats()
}

func (f *PositionFeed) load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	list, err := f.fetcher.GetWalletPositions(ctx, f.address)
	if !f.live.Load() {
		return nil
	}
	if err != nil {
		f.store.SetError(ErrFetchPositions.Error())
		f.logger.Error("error initializing positions", "error", err)
		return fmt.Errorf("%w: %w", ErrFetchPositions, err)
	}

	f.store.Set(list)
	f.logger.Info("positions loaded", "count", len(list))
	return nil
}

func (f *PositionFeed) handle(data json.RawMessage) {
	if !f.live.Load() {
		f.dropped.Add(1)
		return
	}
	f.frames.Add(1)

	list, err := DecodeList[api.APIPosition](data)
	if err != nil {
		f.decodeErrors.Add(1)
		f.logger.Warn("failed to decode positions", "error", err)
		return
	}

	f.records.Add(int64(len(list)))
	res := f.store.Merge(api.PositionsToModel(list))
	if res.Stale > 0 {
		f.logger.Debug("dropped stale position updates", "stale", res.Stale)
	}
}
