package market

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/reya-positions/internal/model"
)

// Config holds Market Registry configuration.
type Config struct {
	ReconcileInterval  time.Duration
	InitialLoadTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval:  5 * time.Minute,
		InitialLoadTimeout: 30 * time.Second,
	}
}

// registryImpl implements the Registry interface.
type registryImpl struct {
	cfg    Config
	source Source
	logger *slog.Logger

	state *registryState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a new Market Registry.
func NewRegistry(cfg Config, source Source, logger *slog.Logger) Registry {
	return newRegistry(cfg, source, logger)
}

func newRegistry(cfg Config, source Source, logger *slog.Logger) *registryImpl {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = def.ReconcileInterval
	}
	if cfg.InitialLoadTimeout <= 0 {
		cfg.InitialLoadTimeout = def.InitialLoadTimeout
	}

	return &registryImpl{
		cfg:    cfg,
		source: source,
		logger: logger,
		state:  newState(),
	}
}

// Start runs the initial sync and starts background reconciliation. A
// failed initial sync is logged, not returned: positions still display
// without leverage, and the next reconcile fills it in.
func (r *registryImpl) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.initialSync(r.ctx); err != nil {
		r.logger.Warn("initial market sync failed, will retry on reconcile", "error", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reconciliationLoop(r.ctx)
	}()

	r.logger.Info("market registry started",
		"markets", len(r.state.symbols()),
		"reconcile_interval", r.cfg.ReconcileInterval,
	)

	return nil
}

// Stop gracefully shuts down.
func (r *registryImpl) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("market registry stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Definitions returns every known market.
func (r *registryImpl) Definitions() map[string]model.MarketDefinition {
	return r.state.definitions()
}

// Get returns a specific market by symbol.
func (r *registryImpl) Get(symbol string) (model.MarketDefinition, bool) {
	return r.state.get(symbol)
}

// Symbols returns known symbols.
func (r *registryImpl) Symbols() []string {
	return r.state.symbols()
}

// Version returns the definitions version.
func (r *registryImpl) Version() uint64 {
	return r.state.getVersion()
}

// LastSyncAt returns the time of the last successful fetch.
func (r *registryImpl) LastSyncAt() time.Time {
	return r.state.getLastSyncAt()
}
