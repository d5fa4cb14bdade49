package connection

import (
	"log/slog"
	"sync"
	"time"
)

// heartbeat watches one connection for silence. Any inbound frame counts
// as a sign of life; the monitor never sends anything itself.
type heartbeat struct {
	interval time.Duration
	timeout  time.Duration
	lastSeen func() time.Time
	onStale  func(idle time.Duration)
	logger   *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// startHeartbeat begins polling every interval. onStale runs at most once,
// from the monitor goroutine, after which the monitor exits.
func startHeartbeat(interval, timeout time.Duration, lastSeen func() time.Time, onStale func(idle time.Duration), logger *slog.Logger) *heartbeat {
	h := &heartbeat{
		interval: interval,
		timeout:  timeout,
		lastSeen: lastSeen,
		onStale:  onStale,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *heartbeat) run() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case now := <-ticker.C:
			idle := now.Sub(h.lastSeen())
			if idle <= h.timeout {
				continue
			}

			// Stop may have raced the tick.
			select {
			case <-h.stop:
				return
			default:
			}

			h.logger.Warn("no frames received, connection stale",
				"idle", idle.Round(time.Millisecond),
				"timeout", h.timeout,
			)
			h.onStale(idle)
			return
		}
	}
}

// Stop ends monitoring. Safe to call more than once.
func (h *heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}
