package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/reya-positions/internal/connection"
	"github.com/rickgao/reya-positions/internal/model"
	"github.com/rickgao/reya-positions/internal/positions"
	"github.com/rickgao/reya-positions/internal/store"
)

// connStatus reports the WebSocket session.
type connStatus interface {
	Stats() connection.ManagerStats
}

// marketLister reports market definitions.
type marketLister interface {
	Definitions() map[string]model.MarketDefinition
	LastSyncAt() time.Time
}

// server renders the in-memory state as JSON.
type server struct {
	conn      connStatus
	prices    *store.PriceStore
	positions *store.PositionStore
	portfolio *store.Portfolio
	markets   marketLister
	wallet    string
	logger    *slog.Logger
}

type positionRow struct {
	Symbol        string `json:"symbol"`
	DisplaySymbol string `json:"display_symbol"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	NetQty        string `json:"net_qty"`
	MarkPrice     string `json:"mark_price"`
	Value         string `json:"value"`
	ValueUSD      string `json:"value_usd"`
	MaxLeverage   string `json:"max_leverage,omitempty"`
}

type positionsResponse struct {
	Wallet     string        `json:"wallet"`
	Rows       []positionRow `json:"rows"`
	TotalValue string        `json:"total_value"`
	TotalUSD   string        `json:"total_usd"`
	Sort       string        `json:"sort"`
	Dir        string        `json:"dir"`
	Loading    bool          `json:"loading"`
	Error      string        `json:"error,omitempty"`
	UpdatedAt  *time.Time    `json:"updated_at,omitempty"`
}

type priceRow struct {
	Symbol      string `json:"symbol"`
	OraclePrice string `json:"oracle_price"`
	PoolPrice   string `json:"pool_price"`
	MarkPrice   string `json:"mark_price"`
	UpdatedAt   int64  `json:"updated_at,omitempty"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /positions", s.handlePositions)
	mux.HandleFunc("GET /prices", s.handlePrices)
	mux.HandleFunc("GET /markets", s.handleMarkets)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	if s.conn != nil {
		stats := s.conn.Stats()
		ws := map[string]any{
			"state":         stats.State.String(),
			"reconnect":     stats.ReconnectState.String(),
			"subscriptions": stats.Subscriptions,
			"reconnects":    stats.Reconnects,
		}
		if stats.ConnID != "" {
			ws["conn_id"] = stats.ConnID
		}
		health.Components["websocket"] = ws

		switch {
		case stats.ReconnectState == connection.ReconnectFailed:
			health.Status = "unhealthy"
		case stats.State != connection.StateConnected:
			health.Status = "degraded"
		}
	}

	if s.positions != nil {
		ps := s.positions.State()
		comp := map[string]any{"records": len(ps.Positions), "loading": ps.Loading}
		if ps.Error != "" {
			comp["error"] = ps.Error
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
		health.Components["positions"] = comp
	}

	if s.prices != nil {
		health.Components["prices"] = map[string]any{"symbols": s.prices.Stats().Symbols}
	}

	if s.markets != nil {
		comp := map[string]any{"markets": len(s.markets.Definitions())}
		if at := s.markets.LastSyncAt(); !at.IsZero() {
			comp["last_sync_at"] = at
		}
		health.Components["market_registry"] = comp
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *server) handlePositions(w http.ResponseWriter, r *http.Request) {
	state, err := parseSort(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	view := s.portfolio.View(state)

	resp := positionsResponse{
		Wallet:     s.wallet,
		Rows:       make([]positionRow, 0, len(view.Rows)),
		TotalValue: view.TotalValue.String(),
		TotalUSD:   positions.FormatUSD(view.TotalValue),
		Sort:       string(view.Sort.Field),
		Dir:        string(view.Sort.Direction),
		Loading:    view.Loading,
		Error:      view.Error,
	}
	if !view.UpdatedAt.IsZero() {
		resp.UpdatedAt = &view.UpdatedAt
	}
	for _, row := range view.Rows {
		resp.Rows = append(resp.Rows, positionRow{
			Symbol:        row.Symbol,
			DisplaySymbol: positions.DisplaySymbol(row.Symbol),
			Side:          string(row.Side),
			Size:          positions.FormatNumber(row.Size(), 4),
			NetQty:        row.NetQty.String(),
			MarkPrice:     row.MarkPrice.String(),
			Value:         row.PositionValue.String(),
			ValueUSD:      positions.FormatUSD(row.PositionValue),
			MaxLeverage:   row.MaxLeverage,
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handlePrices(w http.ResponseWriter, r *http.Request) {
	snap := s.prices.Snapshot()

	rows := make([]priceRow, 0, len(snap))
	for _, p := range snap {
		rows = append(rows, priceRow{
			Symbol:      p.Symbol,
			OraclePrice: decimalString(p.OraclePrice),
			PoolPrice:   decimalString(p.PoolPrice),
			MarkPrice:   positions.MarkOf(p).String(),
			UpdatedAt:   p.UpdatedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })

	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(rows),
		"prices": rows,
	})
}

func (s *server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	defs := s.markets.Definitions()

	list := make([]model.MarketDefinition, 0, len(defs))
	for _, d := range defs {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Symbol < list[j].Symbol })

	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(list),
		"markets": list,
	})
}

// parseSort reads ?sort= and ?dir=. A field without a direction sorts
// ascending.
func parseSort(r *http.Request) (positions.SortState, error) {
	q := r.URL.Query()
	state := positions.DefaultSortState

	if v := q.Get("sort"); v != "" {
		field, err := positions.ParseSortField(v)
		if err != nil {
			return state, err
		}
		state = positions.SortState{Field: field, Direction: positions.Ascending}
	}
	if v := q.Get("dir"); v != "" {
		dir, err := positions.ParseSortDirection(v)
		if err != nil {
			return state, err
		}
		state.Direction = dir
	}
	return state, nil
}

func decimalString(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response failed", "error", err)
	}
}
