package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/reya-positions/internal/connection"
	"github.com/rickgao/reya-positions/internal/model"
	"github.com/rickgao/reya-positions/internal/poller"
	"github.com/rickgao/reya-positions/internal/positions"
	"github.com/rickgao/reya-positions/internal/store"
)

const wallet = "0x1234567890abcdef1234567890abcdef12345678"

// fakeSubscriber captures handlers and counts unsubscribes.
type fakeSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]connection.Handler
	unsubscribed map[string]int
	connectErr   error
	connects     int
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		handlers:     make(map[string]connection.Handler),
		unsubscribed: make(map[string]int),
	}
}

func (s *fakeSubscriber) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	return s.connectErr
}

func (s *fakeSubscriber) Subscribe(channel string, h connection.Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[channel] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubscribed[channel]++
	}
}

func (s *fakeSubscriber) deliver(t *testing.T, channel, payload string) {
	t.Helper()
	s.mu.Lock()
	h, ok := s.handlers[channel]
	s.mu.Unlock()
	if !ok {
		t.Fatalf("no handler for %s", channel)
	}
	h(json.RawMessage(payload))
}

type stubFetcher struct {
	mu        sync.Mutex
	positions []model.Position
	err       error
	calls     atomic.Int32
}

func (f *stubFetcher) GetWalletPositions(ctx context.Context, address string) ([]model.Position, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions, f.err
}

func TestDecodeList(t *testing.T) {
	type item struct {
		Symbol string `json:"symbol"`
	}

	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{"array", `[{"symbol":"A"},{"symbol":"B"}]`, []string{"A", "B"}, false},
		{"object", `{"symbol":"A"}`, []string{"A"}, false},
		{"padded object", "  {\"symbol\":\"A\"}\n", []string{"A"}, false},
		{"empty array", `[]`, nil, false},
		{"null", `null`, nil, false},
		{"empty", ``, nil, false},
		{"number", `42`, nil, true},
		{"broken", `[{"symbol":`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeList[item](json.RawMessage(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i].Symbol != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i].Symbol, tt.want[i])
				}
			}
		})
	}
}

func TestWalletPositionsChannel(t *testing.T) {
	if got := WalletPositionsChannel(wallet); got != "/v2/wallet/"+wallet+"/positions" {
		t.Errorf("WalletPositionsChannel = %q", got)
	}
}

func TestPriceFeed_SnapshotAndUpdates(t *testing.T) {
	sub := newFakeSubscriber()
	prices := store.NewPriceStore(positions.DefaultSignificanceThreshold)
	f := NewPriceFeed(sub, prices, nil)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Snapshot arrives as an array, updates as single objects.
	sub.deliver(t, PricesChannel, `[{"symbol":"ETHRUSDPERP","oraclePrice":"2000","poolPrice":"1999"},{"symbol":"BTCRUSDPERP","poolPrice":60000}]`)
	sub.deliver(t, PricesChannel, `{"symbol":"ETHRUSDPERP","oraclePrice":"2100"}`)
	sub.deliver(t, PricesChannel, `"garbage"`)

	eth, ok := prices.Get("ETHRUSDPERP")
	if !ok || eth.OraclePrice.String() != "2100" {
		t.Errorf("ETH = %+v, want oracle 2100", eth)
	}
	if _, ok := prices.Get("BTCRUSDPERP"); !ok {
		t.Error("BTC price missing")
	}

	stats := f.Stats()
	if stats.Frames != 3 || stats.Records != 3 || stats.DecodeErrors != 1 {
		t.Errorf("Stats = %+v, want 3 frames 3 records 1 decode error", stats)
	}
}

func TestPriceFeed_StopDropsLateFrames(t *testing.T) {
	sub := newFakeSubscriber()
	prices := store.NewPriceStore(positions.DefaultSignificanceThreshold)
	f := NewPriceFeed(sub, prices, nil)

	f.Start(context.Background())
	f.Stop()
	f.Stop()

	sub.deliver(t, PricesChannel, `{"symbol":"ETHRUSDPERP","oraclePrice":"2000"}`)

	if _, ok := prices.Get("ETHRUSDPERP"); ok {
		t.Error("price stored after Stop")
	}
	if got := sub.unsubscribed[PricesChannel]; got != 1 {
		t.Errorf("unsubscribes = %d, want 1", got)
	}
	if got := f.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestPriceFeed_SubscribesBeforeConnectError(t *testing.T) {
	sub := newFakeSubscriber()
	sub.connectErr = errors.New("dial refused")
	f := NewPriceFeed(sub, store.NewPriceStore(positions.DefaultSignificanceThreshold), nil)

	if err := f.Start(context.Background()); err == nil {
		t.Error("Start should return the connect error")
	}
	if _, ok := sub.handlers[PricesChannel]; !ok {
		t.Error("subscription should be registered even when connect fails")
	}
}

func TestPositionFeed_LoadThenMerge(t *testing.T) {
	sub := newFakeSubscriber()
	fetcher := &stubFetcher{positions: []model.Position{
		{Symbol: "ETHRUSDPERP", AccountID: 1, Side: model.SideLong, LastTradeSequenceNumber: 5},
	}}
	ps := store.NewPositionStore()

	f := NewPositionFeed(sub, fetcher, ps, wallet, poller.Config{Interval: time.Hour}, nil)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer f.Stop(context.Background())

	st := ps.State()
	if st.Loading {
		t.Error("Loading should be false after Start")
	}
	if len(st.Positions) != 1 {
		t.Fatalf("positions = %d, want 1 after REST load", len(st.Positions))
	}

	channel := WalletPositionsChannel(wallet)
	sub.deliver(t, channel, `{"symbol":"ETHRUSDPERP","accountId":1,"qty":"3","side":"B","lastTradeSequenceNumber":6}`)
	sub.deliver(t, channel, `[{"symbol":"ETHRUSDPERP","accountId":1,"qty":"9","side":"B","lastTradeSequenceNumber":4},{"symbol":"BTCRUSDPERP","accountId":1,"qty":"1","side":"S","lastTradeSequenceNumber":1}]`)

	got := ps.Snapshot()
	if len(got) != 2 {
		t.Fatalf("positions = %d, want 2", len(got))
	}
	if got[0].Qty.String() != "3" {
		t.Errorf("ETH qty = %s, want 3 (seq 4 update is stale)", got[0].Qty)
	}
	if ps.Stats().Stale != 1 {
		t.Errorf("Stale = %d, want 1", ps.Stats().Stale)
	}
}

func TestPositionFeed_LoadFailure(t *testing.T) {
	sub := newFakeSubscriber()
	fetcher := &stubFetcher{err: errors.New("503")}
	ps := store.NewPositionStore()

	f := NewPositionFeed(sub, fetcher, ps, wallet, poller.Config{Interval: time.Hour}, nil)

	err := f.Start(context.Background())
	if !errors.Is(err, ErrFetchPositions) {
		t.Fatalf("Start = %v, want ErrFetchPositions", err)
	}
	defer f.Stop(context.Background())

	st := ps.State()
	if st.Error != "failed to fetch wallet positions" {
		t.Errorf("Error = %q, want %q", st.Error, "failed to fetch wallet positions")
	}
	if st.Loading {
		t.Error("Loading should be false after failed load")
	}
	if _, ok := sub.handlers[WalletPositionsChannel(wallet)]; !ok {
		t.Error("channel should still be subscribed after failed load")
	}

	// A successful refresh clears the error.
	f.HandlePositions([]model.Position{{Symbol: "ETHRUSDPERP", AccountID: 1}})
	if st := ps.State(); st.Error != "" || len(st.Positions) != 1 {
		t.Errorf("after refresh state = %+v, want positions and no error", st)
	}
}

func TestPositionFeed_RefreshMerges(t *testing.T) {
	sub := newFakeSubscriber()
	fetcher := &stubFetcher{positions: []model.Position{
		{Symbol: "ETHRUSDPERP", AccountID: 1, LastTradeSequenceNumber: 1},
	}}
	ps := store.NewPositionStore()

	f := NewPositionFeed(sub, fetcher, ps, wallet, poller.Config{Interval: 20 * time.Millisecond}, nil)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	fetcher.mu.Lock()
	fetcher.positions = []model.Position{
		{Symbol: "ETHRUSDPERP", AccountID: 1, LastTradeSequenceNumber: 1},
		{Symbol: "SOLRUSDPERP", AccountID: 1, LastTradeSequenceNumber: 1},
	}
	fetcher.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for len(ps.Snapshot()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("refresh did not merge new position")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := f.Stop(context.Background()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if f.PollerStats().Polls == 0 {
		t.Error("PollerStats.Polls = 0, want > 0")
	}
}

func TestPositionFeed_RefreshDropsClosedPositions(t *testing.T) {
	sub := newFakeSubscriber()
	fetcher := &stubFetcher{positions: []model.Position{
		{Symbol: "ETHRUSDPERP", AccountID: 1, LastTradeSequenceNumber: 1},
		{Symbol: "BTCRUSDPERP", AccountID: 1, LastTradeSequenceNumber: 2},
	}}
	ps := store.NewPositionStore()

	f := NewPositionFeed(sub, fetcher, ps, wallet, poller.Config{Interval: -1}, nil)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer f.Stop(context.Background())

	// A WS update newer than the refresh must survive it.
	sub.deliver(t, WalletPositionsChannel(wallet), `{"symbol":"ETHRUSDPERP","accountId":1,"qty":"4","side":"B","lastTradeSequenceNumber":8}`)

	f.HandlePositions([]model.Position{
		{Symbol: "ETHRUSDPERP", AccountID: 1, LastTradeSequenceNumber: 1},
	})

	got := ps.Snapshot()
	if len(got) != 1 || got[0].Symbol != "ETHRUSDPERP" {
		t.Fatalf("positions = %+v, want only ETHRUSDPERP", got)
	}
	if got[0].Qty.String() != "4" {
		t.Errorf("ETH qty = %s, want 4 from the newer stream update", got[0].Qty)
	}
	if n := ps.Stats().Removed; n != 1 {
		t.Errorf("Removed = %d, want 1", n)
	}
}

func TestPositionFeed_StopDiscardsLateData(t *testing.T) {
	sub := newFakeSubscriber()
	fetcher := &stubFetcher{}
	ps := store.NewPositionStore()

	f := NewPositionFeed(sub, fetcher, ps, wallet, poller.Config{Interval: -1}, nil)
	f.Start(context.Background())
	f.Stop(context.Background())

	sub.deliver(t, WalletPositionsChannel(wallet), `{"symbol":"ETHRUSDPERP","accountId":1}`)
	f.HandlePositions([]model.Position{{Symbol: "BTCRUSDPERP"}})

	if n := len(ps.Snapshot()); n != 0 {
		t.Errorf("positions = %d after Stop, want 0", n)
	}
	if got := sub.unsubscribed[WalletPositionsChannel(wallet)]; got != 1 {
		t.Errorf("unsubscribes = %d, want 1", got)
	}
}
