package connection

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// reconnector decides whether and when to retry after an unplanned close.
// It is not safe for concurrent use; the manager guards it with its mutex.
type reconnector struct {
	policy      backoff.BackOff
	maxAttempts int
	attempts    int
	state       ReconnectState
}

func newReconnector(cfg ManagerConfig) *reconnector {
	limit := cfg.ReconnectMaxAttempts
	if limit < 1 {
		limit = DefaultManagerConfig().ReconnectMaxAttempts
	}
	return &reconnector{
		policy:      newBackOff(cfg),
		maxAttempts: limit,
	}
}

func newBackOff(cfg ManagerConfig) backoff.BackOff {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultManagerConfig().ReconnectDelay
	}

	if cfg.ReconnectPolicy != PolicyExponential {
		return backoff.NewConstantBackOff(delay)
	}

	maxDelay := cfg.ReconnectMaxDelay
	if maxDelay < delay {
		maxDelay = delay
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.MaxInterval = maxDelay
	b.Reset()
	return b
}

// next returns the wait before the next attempt, or false once the
// attempt budget is spent (the controller is then Failed).
func (r *reconnector) next() (time.Duration, bool) {
	if r.attempts >= r.maxAttempts {
		r.state = ReconnectFailed
		return 0, false
	}

	d := r.policy.NextBackOff()
	if d == backoff.Stop {
		r.state = ReconnectFailed
		return 0, false
	}

	r.attempts++
	r.state = ReconnectConnecting
	return d, true
}

// opened records a successful open.
func (r *reconnector) opened() {
	r.attempts = 0
	r.policy.Reset()
	r.state = ReconnectConnected
}

// reset returns to Idle with a full attempt budget.
func (r *reconnector) reset() {
	r.attempts = 0
	r.policy.Reset()
	r.state = ReconnectIdle
}
