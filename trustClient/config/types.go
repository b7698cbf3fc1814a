package config

import "time"

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level" mapstructure:"log_level"`     // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format" mapstructure:"log_format"`   // "json" or "console"
	LogSampler bool   `json:"log_sampler" mapstructure:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home" mapstructure:"node_home"` // Node home directory (default: ~/.ptrust)

	// Validator list sources, as create params (file://, https://, contract+https://, static:)
	Sources []string `json:"sources" mapstructure:"sources"`

	// Scheduler Config
	RefreshIntervalSeconds int          `json:"refresh_interval_seconds" mapstructure:"refresh_interval_seconds"` // How long a fetched list stays fresh (default: 86400)
	WakeIntervalSeconds    int          `json:"wake_interval_seconds" mapstructure:"wake_interval_seconds"`       // Recurring idle-scan wake (default: 3600)
	FetchTimeoutSeconds    int          `json:"fetch_timeout_seconds" mapstructure:"fetch_timeout_seconds"`       // Per-fetch timeout, 0 disables (default: 0)
	StopTimeoutSeconds     int          `json:"stop_timeout_seconds" mapstructure:"stop_timeout_seconds"`         // Grace period for in-flight fetch on shutdown (default: 5)
	ExpectedResults        int          `json:"expected_results" mapstructure:"expected_results"`                 // Capacity hint for fetch buffers (default: 1000)
	RetryBackoff           RetryBackoff `json:"retry_backoff" mapstructure:"retry_backoff"`

	// Trust Config
	MinChosenValidators int `json:"min_chosen_validators" mapstructure:"min_chosen_validators"` // Warn when fewer validators are chosen (default: 0, disabled)

	// Query Server Config
	QueryServerPort int `json:"query_server_port" mapstructure:"query_server_port"` // Port for HTTP query server (default: 8080)

	HTTPSource HTTPSourceConfig `json:"http_source" mapstructure:"http_source"`
	Database   DatabaseConfig   `json:"database" mapstructure:"database"`
}

// RetryBackoff enables exponential backoff for failing sources. When disabled a
// failed source is retried on every idle scan.
type RetryBackoff struct {
	Enabled        bool `json:"enabled" mapstructure:"enabled"`
	InitialSeconds int  `json:"initial_seconds" mapstructure:"initial_seconds"` // default: 60
	MaxSeconds     int  `json:"max_seconds" mapstructure:"max_seconds"`         // capped at the refresh interval
}

// HTTPSourceConfig tunes the URL and contract sources.
type HTTPSourceConfig struct {
	MaxRetries     int `json:"max_retries" mapstructure:"max_retries"`         // default: 3
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"` // default: 30
}

// DatabaseConfig controls persistence of registered sources and fetch history.
type DatabaseConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	File    string `json:"file" mapstructure:"file"` // default: trust.db under <node_home>/data

	AttemptRetentionSeconds int `json:"attempt_retention_seconds" mapstructure:"attempt_retention_seconds"` // Fetch history kept for (default: 604800)
	CleanupIntervalSeconds  int `json:"cleanup_interval_seconds" mapstructure:"cleanup_interval_seconds"`   // How often old history is pruned (default: 3600)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c *Config) RefreshInterval() time.Duration { return seconds(c.RefreshIntervalSeconds) }
func (c *Config) WakeInterval() time.Duration    { return seconds(c.WakeIntervalSeconds) }
func (c *Config) FetchTimeout() time.Duration    { return seconds(c.FetchTimeoutSeconds) }
func (c *Config) StopTimeout() time.Duration     { return seconds(c.StopTimeoutSeconds) }

func (r RetryBackoff) Initial() time.Duration { return seconds(r.InitialSeconds) }
func (r RetryBackoff) Max() time.Duration     { return seconds(r.MaxSeconds) }

func (h HTTPSourceConfig) Timeout() time.Duration { return seconds(h.TimeoutSeconds) }

func (d DatabaseConfig) AttemptRetention() time.Duration { return seconds(d.AttemptRetentionSeconds) }
func (d DatabaseConfig) CleanupInterval() time.Duration  { return seconds(d.CleanupIntervalSeconds) }
