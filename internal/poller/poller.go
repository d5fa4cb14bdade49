package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/reya-positions/internal/model"
)

// PositionFetcher loads a wallet's positions. *api.Client satisfies it.
type PositionFetcher interface {
	GetWalletPositions(ctx context.Context, address string) ([]model.Position, error)
}

// Handler receives fetched positions.
type Handler interface {
	HandlePositions(positions []model.Position) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func([]model.Position) error

func (f HandlerFunc) HandlePositions(p []model.Position) error {
	return f(p)
}

// Config holds poller configuration.
type Config struct {
	Interval  time.Duration // Poll interval (default: 10s); negative disables polling
	Timeout   time.Duration // Per-request timeout (default: 10s)
	Immediate bool          // Poll once on Start instead of waiting a full interval
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Stats counts poll outcomes.
type Stats struct {
	Polls    int64
	Errors   int64
	LastPoll time.Time
}

// Poller periodically fetches a wallet's positions via REST API.
type Poller struct {
	cfg     Config
	fetcher PositionFetcher
	address string
	handler Handler
	logger  *slog.Logger

	polls    atomic.Int64
	errors   atomic.Int64
	lastPoll atomic.Int64 // Unix nanoseconds

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, fetcher PositionFetcher, address string, handler Handler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval == 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		address: address,
		handler: handler,
		logger:  logger.With("wallet", address),
	}
}

// Enabled reports whether Start will run a polling loop.
func (p *Poller) Enabled() bool {
	return p.cfg.Interval > 0
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	if !p.Enabled() {
		p.logger.Info("positions refresh disabled")
		return nil
	}

	p.wg.Add(1)
	go p.run()

	p.logger.Info("positions poller started", "interval", p.cfg.Interval)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("positions poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns poll counters.
func (p *Poller) Stats() Stats {
	s := Stats{
		Polls:  p.polls.Load(),
		Errors: p.errors.Load(),
	}
	if ns := p.lastPoll.Load(); ns != 0 {
		s.LastPoll = time.Unix(0, ns)
	}
	return s
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	if p.cfg.Immediate {
		p.pollOnce()
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

// pollOnce fetches and hands off one result. Failures are logged only.
func (p *Poller) pollOnce() {
	start := time.Now()

	n, err := p.poll()
	p.polls.Add(1)
	p.lastPoll.Store(start.UnixNano())

	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		p.errors.Add(1)
		p.logger.Warn("background positions refresh failed", "error", err)
		return
	}

	p.logger.Debug("poll cycle complete",
		"positions", n,
		"duration", time.Since(start),
	)
}

func (p *Poller) poll() (int, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	list, err := p.fetcher.GetWalletPositions(ctx, p.address)
	if err != nil {
		return 0, err
	}

	// Stop may have landed while the request was in flight.
	if p.ctx.Err() != nil {
		return 0, p.ctx.Err()
	}

	if p.handler != nil {
		if err := p.handler.HandlePositions(list); err != nil {
			return 0, err
		}
	}

	return len(list), nil
}
