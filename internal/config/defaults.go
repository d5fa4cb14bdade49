package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID            = "reya-positions"
	DefaultRestURL               = "https://api.reya.xyz/v2"
	DefaultWSURL                 = "wss://ws.reya.xyz"
	DefaultAPITimeout            = 10 * time.Second
	DefaultMaxRetries            = 3
	DefaultRateBurst             = 5
	DefaultHandshakeTimeout      = 10 * time.Second
	DefaultWriteTimeout          = 5 * time.Second
	DefaultBufferSize            = 1000
	DefaultHeartbeatInterval     = 30 * time.Second
	DefaultHeartbeatTimeout      = 60 * time.Second
	DefaultReconnectPolicy       = "fixed"
	DefaultReconnectDelay        = 3 * time.Second
	DefaultReconnectMaxDelay     = 30 * time.Second
	DefaultReconnectMaxAttempts  = 5
	DefaultRefreshInterval       = 10 * time.Second
	DefaultRefreshTimeout        = 10 * time.Second
	DefaultSignificanceThreshold = 0.0001
	DefaultReconcileInterval     = 5 * time.Minute
	DefaultHTTPAddr              = ":8080"
	DefaultShutdownTimeout       = 10 * time.Second
	DefaultMetricsPort           = 9090
	DefaultMetricsPath           = "/metrics"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
	DefaultLogMaxSizeMB          = 100
	DefaultLogMaxBackups         = 3
	DefaultLogMaxAgeDays         = 28
)

func (c *DashboardConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RateLimit > 0 && c.API.RateBurst == 0 {
		c.API.RateBurst = DefaultRateBurst
	}

	// Connection defaults
	conn := &c.Connection
	if conn.HandshakeTimeout == 0 {
		conn.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if conn.WriteTimeout == 0 {
		conn.WriteTimeout = DefaultWriteTimeout
	}
	if conn.BufferSize == 0 {
		conn.BufferSize = DefaultBufferSize
	}
	if conn.HeartbeatInterval == 0 {
		conn.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if conn.HeartbeatTimeout == 0 {
		conn.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if conn.ReconnectPolicy == "" {
		conn.ReconnectPolicy = DefaultReconnectPolicy
	}
	if conn.ReconnectDelay == 0 {
		conn.ReconnectDelay = DefaultReconnectDelay
	}
	if conn.ReconnectMaxDelay == 0 {
		conn.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if conn.ReconnectMaxAttempts == 0 {
		conn.ReconnectMaxAttempts = DefaultReconnectMaxAttempts
	}

	// Positions defaults
	if c.Positions.RefreshInterval == 0 {
		c.Positions.RefreshInterval = DefaultRefreshInterval
	}
	if c.Positions.RefreshTimeout == 0 {
		c.Positions.RefreshTimeout = DefaultRefreshTimeout
	}

	if c.Prices.SignificanceThreshold == 0 {
		c.Prices.SignificanceThreshold = DefaultSignificanceThreshold
	}

	if c.Markets.ReconcileInterval == 0 {
		c.Markets.ReconcileInterval = DefaultReconcileInterval
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}
