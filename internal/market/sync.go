package market

import (
	"context"
	"fmt"
	"time"
)

// initialSync fetches market definitions on startup.
func (r *registryImpl) initialSync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.InitialLoadTimeout)
	defer cancel()

	r.logger.Info("starting initial market sync")
	start := time.Now()

	res, err := r.sync(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("initial sync complete",
		"markets", res.Added,
		"duration", time.Since(start),
	)
	return nil
}

// reconciliationLoop periodically re-fetches definitions.
func (r *registryImpl) reconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile fetches definitions and logs what changed.
func (r *registryImpl) reconcile(ctx context.Context) {
	start := time.Now()

	res, err := r.sync(ctx)
	if err != nil {
		r.logger.Error("market reconciliation failed", "error", err)
		return
	}

	if res.any() {
		r.logger.Info("reconciliation found changes",
			"added", res.Added,
			"changed", res.Changed,
			"removed", res.Removed,
			"duration", time.Since(start),
		)
	} else {
		r.logger.Debug("reconciliation complete",
			"duration", time.Since(start),
		)
	}
}

func (r *registryImpl) sync(ctx context.Context) (syncResult, error) {
	defs, err := r.source.GetMarketDefinitions(ctx)
	if err != nil {
		return syncResult{}, fmt.Errorf("fetch market definitions: %w", err)
	}
	return r.state.replaceAll(defs, time.Now()), nil
}
