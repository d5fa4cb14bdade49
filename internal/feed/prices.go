package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/reya-positions/internal/api"
	"github.com/rickgao/reya-positions/internal/store"
)

// PriceFeed keeps a PriceStore current from the prices channel.
type PriceFeed struct {
	sub    Subscriber
	store  *store.PriceStore
	logger *slog.Logger

	live atomic.Bool

	mu          sync.Mutex
	unsubscribe func()

	frames       atomic.Int64
	records      atomic.Int64
	decodeErrors atomic.Int64
	dropped      atomic.Int64
}

// NewPriceFeed creates a feed writing into prices.
func NewPriceFeed(sub Subscriber, prices *store.PriceStore, logger *slog.Logger) *PriceFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceFeed{
		sub:    sub,
		store:  prices,
		logger: logger.With("channel", PricesChannel),
	}
}

// Start subscribes and asks the manager to connect. The subscription is
// registered first, so it is sent once the socket opens even when Connect
// fails now and a later reconnect succeeds.
func (f *PriceFeed) Start(ctx context.Context) error {
	f.live.Store(true)

	f.mu.Lock()
	if f.unsubscribe == nil {
		f.unsubscribe = f.sub.Subscribe(PricesChannel, f.handle)
	}
	f.mu.Unlock()

	if err := f.sub.Connect(ctx); err != nil {
		return err
	}
	f.logger.Info("price feed started")
	return nil
}

// Stop unsubscribes. Frames still queued are dropped.
func (f *PriceFeed) Stop() {
	f.live.Store(false)

	f.mu.Lock()
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	f.logger.Info("price feed stopped")
}

// Stats returns frame counters.
func (f *PriceFeed) Stats() Stats {
	return Stats{
		Frames:       f.frames.Load(),
		Records:      f.records.Load(),
		DecodeErrors: f.decodeErrors.Load(),
		Dropped:      f.dropped.Load(),
	}
}

func (f *PriceFeed) handle(data json.RawMessage) {
	if !f.live.Load() {
		f.dropped.Add(1)
		return
	}
	f.frames.Add(1)

	list, err := DecodeList[api.APIPrice](data)
	if err != nil {
		f.decodeErrors.Add(1)
		f.logger.Warn("failed to decode prices", "error", err)
		return
	}

	f.records.Add(int64(len(list)))
	if n := f.store.Update(api.PricesToModel(list)); n > 0 {
		f.logger.Debug("prices updated", "applied", n, "received", len(list))
	}
}
