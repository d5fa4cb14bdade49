package config

import "time"

// DashboardConfig is the root configuration for a positions client instance.
type DashboardConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	API        APIConfig        `yaml:"api"`
	Connection ConnectionConfig `yaml:"connection"`
	Positions  PositionsConfig  `yaml:"positions"`
	Prices     PricesConfig     `yaml:"prices"`
	Markets    MarketsConfig    `yaml:"markets"`
	HTTP       HTTPConfig       `yaml:"http"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InstanceConfig identifies this client in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds exchange endpoint settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit"` // REST requests per second, 0 = unlimited
	RateBurst  int           `yaml:"rate_burst"`
}

// ConnectionConfig holds WebSocket session settings.
type ConnectionConfig struct {
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout     time.Duration `yaml:"heartbeat_timeout"`
	ReconnectPolicy      string        `yaml:"reconnect_policy"` // "fixed" or "exponential"
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	ReconnectMaxAttempts int           `yaml:"reconnect_max_attempts"`
}

// PositionsConfig selects the wallet to follow.
type PositionsConfig struct {
	WalletAddress string `yaml:"wallet_address"`
	// RefreshInterval re-fetches positions over REST; a negative value disables it.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RefreshTimeout  time.Duration `yaml:"refresh_timeout"`
}

// PricesConfig holds price feed settings.
type PricesConfig struct {
	SignificanceThreshold float64 `yaml:"significance_threshold"`
}

// MarketsConfig holds market definitions sync settings.
type MarketsConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// HTTPConfig holds the read-only JSON API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // Empty logs to stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}
