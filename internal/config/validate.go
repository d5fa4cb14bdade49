package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
)

var walletAddressRE = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsValidWalletAddress reports whether addr is a 0x-prefixed 20-byte hex address.
func IsValidWalletAddress(addr string) bool {
	return walletAddressRE.MatchString(addr)
}

// Validate checks that all required fields are set and values are valid.
func (c *DashboardConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := validateURL("api.rest_url", c.API.RestURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("api.ws_url", c.API.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.RateLimit < 0 {
		return errors.New("api.rate_limit must be >= 0")
	}

	if err := c.Connection.validate("connection"); err != nil {
		return err
	}

	if addr := c.Positions.WalletAddress; addr != "" && !IsValidWalletAddress(addr) {
		return fmt.Errorf("positions.wallet_address %q is not a valid address", addr)
	}

	if c.Prices.SignificanceThreshold < 0 {
		return errors.New("prices.significance_threshold must be >= 0")
	}

	if c.Markets.ReconcileInterval <= 0 {
		return errors.New("markets.reconcile_interval must be > 0")
	}

	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (c *ConnectionConfig) validate(prefix string) error {
	if c.BufferSize < 1 {
		return fmt.Errorf("%s.buffer_size must be >= 1", prefix)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%s.heartbeat_interval must be > 0", prefix)
	}
	if c.HeartbeatTimeout < c.HeartbeatInterval {
		return fmt.Errorf("%s.heartbeat_timeout (%s) cannot be shorter than heartbeat_interval (%s)",
			prefix, c.HeartbeatTimeout, c.HeartbeatInterval)
	}
	switch c.ReconnectPolicy {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("%s.reconnect_policy must be fixed or exponential, got %q", prefix, c.ReconnectPolicy)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("%s.reconnect_delay must be > 0", prefix)
	}
	if c.ReconnectMaxDelay < c.ReconnectDelay {
		return fmt.Errorf("%s.reconnect_max_delay (%s) cannot be shorter than reconnect_delay (%s)",
			prefix, c.ReconnectMaxDelay, c.ReconnectDelay)
	}
	if c.ReconnectMaxAttempts < 1 {
		return fmt.Errorf("%s.reconnect_max_attempts must be >= 1", prefix)
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s %q is not a valid URL", field, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s scheme must be one of %v, got %q", field, schemes, u.Scheme)
}
