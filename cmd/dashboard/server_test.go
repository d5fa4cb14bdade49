package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/reya-positions/internal/config"
	"github.com/rickgao/reya-positions/internal/connection"
	"github.com/rickgao/reya-positions/internal/model"
	"github.com/rickgao/reya-positions/internal/positions"
	"github.com/rickgao/reya-positions/internal/store"
)

type fakeConn struct{ stats connection.ManagerStats }

func (f fakeConn) Stats() connection.ManagerStats { return f.stats }

type fakeMarkets struct{ defs map[string]model.MarketDefinition }

func (f fakeMarkets) Definitions() map[string]model.MarketDefinition { return f.defs }
func (f fakeMarkets) Version() uint64                                { return 1 }
func (f fakeMarkets) LastSyncAt() time.Time                          { return time.Time{} }

func newTestServer(t *testing.T, state connection.State) *server {
	t.Helper()

	prices := store.NewPriceStore(positions.DefaultSignificanceThreshold)
	prices.Update([]model.Price{
		{Symbol: "ETHRUSDPERP", OraclePrice: decimal.NewFromInt(2000)},
		{Symbol: "BTCRUSDPERP", PoolPrice: decimal.NewFromInt(60000)},
	})

	ps := store.NewPositionStore()
	ps.Set([]model.Position{
		{Symbol: "ETHRUSDPERP", AccountID: 1, Qty: decimal.NewFromInt(2), Side: model.SideLong, LastTradeSequenceNumber: 1},
		{Symbol: "BTCRUSDPERP", AccountID: 1, Qty: decimal.RequireFromString("0.1"), Side: model.SideShort, LastTradeSequenceNumber: 1},
	})

	markets := fakeMarkets{defs: map[string]model.MarketDefinition{
		"ETHRUSDPERP": {Symbol: "ETHRUSDPERP", MaxLeverage: "25"},
		"BTCRUSDPERP": {Symbol: "BTCRUSDPERP", MaxLeverage: "20"},
	}}

	return &server{
		conn:      fakeConn{stats: connection.ManagerStats{State: state}},
		prices:    prices,
		positions: ps,
		portfolio: store.NewPortfolio(prices, ps, markets),
		markets:   markets,
		wallet:    "0x1234567890abcdef1234567890abcdef12345678",
		logger:    slog.Default(),
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPositions(t *testing.T) {
	h := newTestServer(t, connection.StateConnected).routes()

	tests := []struct {
		name    string
		target  string
		symbols []string
	}{
		{"default order", "/positions", []string{"BTCRUSDPERP", "ETHRUSDPERP"}},
		{"value desc", "/positions?sort=value&dir=desc", []string{"BTCRUSDPERP", "ETHRUSDPERP"}},
		{"value asc", "/positions?sort=value", []string{"ETHRUSDPERP", "BTCRUSDPERP"}},
		{"symbol desc", "/positions?dir=desc", []string{"ETHRUSDPERP", "BTCRUSDPERP"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var resp positionsResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(resp.Rows) != len(tt.symbols) {
				t.Fatalf("rows = %d, want %d", len(resp.Rows), len(tt.symbols))
			}
			for i, want := range tt.symbols {
				if resp.Rows[i].Symbol != want {
					t.Errorf("row %d = %s, want %s", i, resp.Rows[i].Symbol, want)
				}
			}
		})
	}
}

func TestPositions_RowContents(t *testing.T) {
	h := newTestServer(t, connection.StateConnected).routes()

	var resp positionsResponse
	if err := json.Unmarshal(get(t, h, "/positions").Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	btc := resp.Rows[0]
	if btc.Side != "S" || btc.NetQty != "-0.1" {
		t.Errorf("BTC side/net = %s/%s, want S/-0.1", btc.Side, btc.NetQty)
	}
	if btc.MarkPrice != "60000" {
		t.Errorf("BTC mark = %s, want pool price 60000", btc.MarkPrice)
	}
	if btc.ValueUSD != "$6,000.00" {
		t.Errorf("BTC value = %s, want $6,000.00", btc.ValueUSD)
	}
	if btc.DisplaySymbol != "BTC" || btc.MaxLeverage != "20" {
		t.Errorf("BTC display/leverage = %s/%s", btc.DisplaySymbol, btc.MaxLeverage)
	}
	if resp.TotalUSD != "$10,000.00" {
		t.Errorf("TotalUSD = %s, want $10,000.00", resp.TotalUSD)
	}
}

func TestPositions_BadSort(t *testing.T) {
	h := newTestServer(t, connection.StateConnected).routes()

	for _, target := range []string{"/positions?sort=pnl", "/positions?dir=sideways"} {
		if rec := get(t, h, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", target, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name      string
		state     connection.State
		reconnect connection.ReconnectState
		loadErr   string
		status    string
		code      int
	}{
		{"connected", connection.StateConnected, connection.ReconnectIdle, "", "healthy", http.StatusOK},
		{"reconnecting", connection.StateDisconnected, connection.ReconnectConnecting, "", "degraded", http.StatusOK},
		{"load error", connection.StateConnected, connection.ReconnectIdle, "failed to fetch wallet positions", "degraded", http.StatusOK},
		{"gave up", connection.StateDisconnected, connection.ReconnectFailed, "", "unhealthy", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.state)
			s.conn = fakeConn{stats: connection.ManagerStats{State: tt.state, ReconnectState: tt.reconnect}}
			s.positions.SetError(tt.loadErr)

			rec := get(t, s.routes(), "/health")
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}

			var body struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.status {
				t.Errorf("status = %q, want %q", body.Status, tt.status)
			}
		})
	}
}

func TestPricesAndMarkets(t *testing.T) {
	h := newTestServer(t, connection.StateConnected).routes()

	var prices struct {
		Count  int        `json:"count"`
		Prices []priceRow `json:"prices"`
	}
	if err := json.Unmarshal(get(t, h, "/prices").Body.Bytes(), &prices); err != nil {
		t.Fatalf("decode prices: %v", err)
	}
	if prices.Count != 2 || prices.Prices[0].Symbol != "BTCRUSDPERP" {
		t.Errorf("prices = %+v", prices)
	}
	if prices.Prices[1].MarkPrice != "2000" || prices.Prices[1].PoolPrice != "" {
		t.Errorf("ETH price row = %+v", prices.Prices[1])
	}

	var markets struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(get(t, h, "/markets").Body.Bytes(), &markets); err != nil {
		t.Fatalf("decode markets: %v", err)
	}
	if markets.Count != 2 {
		t.Errorf("markets count = %d, want 2", markets.Count)
	}
}

func TestManagerConfig(t *testing.T) {
	cfg := config.Default()
	mc := managerConfig(cfg)
	if mc.WSURL != cfg.API.WSURL {
		t.Errorf("WSURL = %q, want %q", mc.WSURL, cfg.API.WSURL)
	}
	if mc.ReconnectPolicy != connection.PolicyFixed {
		t.Errorf("ReconnectPolicy = %q, want fixed", mc.ReconnectPolicy)
	}
	if mc.ReconnectMaxAttempts != 5 {
		t.Errorf("ReconnectMaxAttempts = %d, want 5", mc.ReconnectMaxAttempts)
	}
}
