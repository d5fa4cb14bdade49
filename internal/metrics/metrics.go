package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/reya-positions/internal/connection"
	"github.com/rickgao/reya-positions/internal/model"
	"github.com/rickgao/reya-positions/internal/router"
	"github.com/rickgao/reya-positions/internal/store"
)

const namespace = "reya"

// ConnectionSource reports Connection Manager statistics.
type ConnectionSource interface {
	Stats() connection.ManagerStats
}

// RouterSource reports Message Router statistics.
type RouterSource interface {
	Stats() router.RouterStats
}

// PortfolioSource reports aggregated positions.
type PortfolioSource interface {
	Aggregated() map[string]model.AggregatedPosition
}

// MarketSource reports the known markets.
type MarketSource interface {
	Symbols() []string
}

// Sources are the components metrics read from. Nil fields are skipped.
type Sources struct {
	Connection ConnectionSource
	Router     RouterSource
	Prices     *store.PriceStore
	Positions  *store.PositionStore
	Portfolio  PortfolioSource
	Markets    MarketSource
}

// NewRegistry builds a registry with Go and process collectors plus one
// metric per exported statistic.
func NewRegistry(src Sources) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if src.Connection != nil {
		registerConnection(reg, src.Connection)
	}
	if src.Router != nil {
		registerRouter(reg, src.Router)
	}
	if src.Prices != nil {
		registerPrices(reg, src.Prices)
	}
	if src.Positions != nil {
		registerPositions(reg, src.Positions)
	}
	if src.Portfolio != nil {
		reg.MustRegister(newPortfolioCollector(src.Portfolio))
	}
	if src.Markets != nil {
		reg.MustRegister(gauge("markets", "known", "Market definitions currently known.",
			func() float64 { return float64(len(src.Markets.Symbols())) }))
	}

	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func registerConnection(reg *prometheus.Registry, src ConnectionSource) {
	reg.MustRegister(
		gauge("ws", "connected", "1 when the WebSocket is open.", func() float64 {
			if src.Stats().State == connection.StateConnected {
				return 1
			}
			return 0
		}),
		gauge("ws", "reconnect_failed", "1 once reconnection attempts are exhausted.", func() float64 {
			if src.Stats().ReconnectState == connection.ReconnectFailed {
				return 1
			}
			return 0
		}),
		gauge("ws", "reconnect_attempts", "Reconnect attempts since the last successful open.",
			func() float64 { return float64(src.Stats().ReconnectAttempts) }),
		gauge("ws", "subscriptions", "Registered channel subscriptions.",
			func() float64 { return float64(src.Stats().Subscriptions) }),
		counter("ws", "reconnects_total", "Successful reopens after the first connect.",
			func() float64 { return float64(src.Stats().Reconnects) }),
		counter("ws", "heartbeat_timeouts_total", "Connections closed for inbound silence.",
			func() float64 { return float64(src.Stats().HeartbeatTimeouts) }),
		counter("ws", "frames_received_total", "Frames received from the server.",
			func() float64 { return float64(src.Stats().FramesReceived) }),
		counter("ws", "frames_sent_total", "Frames sent to the server.",
			func() float64 { return float64(src.Stats().FramesSent) }),
		gauge("ws", "buffer_depth", "Frames waiting for the router.",
			func() float64 { return float64(src.Stats().Buffer.Count) }),
		gauge("ws", "buffer_high_water", "Largest router backlog seen.",
			func() float64 { return float64(src.Stats().Buffer.HighWater) }),
	)
}

func registerRouter(reg *prometheus.Registry, src RouterSource) {
	reg.MustRegister(
		counter("router", "messages_total", "Frames read by the router.",
			func() float64 { return float64(src.Stats().MessagesReceived) }),
		counter("router", "routed_total", "Payloads delivered to channel handlers.",
			func() float64 { return float64(src.Stats().MessagesRouted) }),
		counter("router", "pongs_total", "Pings answered.",
			func() float64 { return float64(src.Stats().PingsAnswered) }),
		counter("router", "server_errors_total", "Error frames sent by the server.",
			func() float64 { return float64(src.Stats().ServerErrors) }),
		counter("router", "parse_errors_total", "Frames that could not be parsed.",
			func() float64 { return float64(src.Stats().ParseErrors) }),
		counter("router", "unknown_total", "Frames with an unrecognized type.",
			func() float64 { return float64(src.Stats().UnknownMessages) }),
		counter("router", "unhandled_total", "Channel frames with no registered handler.",
			func() float64 { return float64(src.Stats().Unhandled) }),
		counter("router", "handler_panics_total", "Handler panics recovered.",
			func() float64 { return float64(src.Stats().HandlerPanics) }),
	)
}

func registerPrices(reg *prometheus.Registry, s *store.PriceStore) {
	reg.MustRegister(
		gauge("prices", "symbols", "Symbols with a stored price.",
			func() float64 { return float64(s.Stats().Symbols) }),
		counter("prices", "applied_total", "Price updates stored.",
			func() float64 { return float64(s.Stats().Applied) }),
		counter("prices", "suppressed_total", "Price updates dropped as insignificant.",
			func() float64 { return float64(s.Stats().Suppressed) }),
	)
}

func registerPositions(reg *prometheus.Registry, s *store.PositionStore) {
	reg.MustRegister(
		gauge("positions", "records", "Raw position records held.",
			func() float64 { return float64(s.Stats().Positions) }),
		counter("positions", "stale_total", "Position updates dropped as older than held.",
			func() float64 { return float64(s.Stats().Stale) }),
		counter("positions", "removed_total", "Positions dropped because a refresh no longer listed them.",
			func() float64 { return float64(s.Stats().Removed) }),
		gauge("positions", "load_error", "1 while the last positions load failed.", func() float64 {
			if s.State().Error != "" {
				return 1
			}
			return 0
		}),
	)
}

func gauge(subsystem, name, help string, fn func() float64) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

func counter(subsystem, name, help string, fn func() float64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}
