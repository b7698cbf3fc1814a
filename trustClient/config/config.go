package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pushchain/validator-trust/trustClient/constant"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	for i, src := range cfg.Sources {
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("source %d is empty", i)
		}
	}

	if cfg.RefreshIntervalSeconds < 0 || cfg.WakeIntervalSeconds < 0 ||
		cfg.FetchTimeoutSeconds < 0 || cfg.StopTimeoutSeconds < 0 {
		return fmt.Errorf("scheduler intervals must not be negative")
	}

	// Set defaults for scheduler config
	if cfg.RefreshIntervalSeconds == 0 {
		cfg.RefreshIntervalSeconds = int(constant.DefaultRefreshInterval.Seconds())
	}
	if cfg.WakeIntervalSeconds == 0 {
		cfg.WakeIntervalSeconds = int(constant.DefaultWakeInterval.Seconds())
	}
	if cfg.StopTimeoutSeconds == 0 {
		cfg.StopTimeoutSeconds = int(constant.DefaultStopTimeout.Seconds())
	}
	if cfg.ExpectedResults <= 0 {
		cfg.ExpectedResults = constant.DefaultExpectedResults
	}

	// Backoff never delays a retry beyond a regular refresh
	if cfg.RetryBackoff.InitialSeconds <= 0 {
		cfg.RetryBackoff.InitialSeconds = int(constant.DefaultBackoffInitial.Seconds())
	}
	if cfg.RetryBackoff.MaxSeconds <= 0 || cfg.RetryBackoff.MaxSeconds > cfg.RefreshIntervalSeconds {
		cfg.RetryBackoff.MaxSeconds = cfg.RefreshIntervalSeconds
	}
	if cfg.RetryBackoff.InitialSeconds > cfg.RetryBackoff.MaxSeconds {
		return fmt.Errorf("retry backoff initial_seconds must not exceed max_seconds")
	}

	if cfg.MinChosenValidators < 0 {
		return fmt.Errorf("min_chosen_validators must not be negative")
	}

	// Set defaults for query server
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = constant.DefaultAPIPort
	}
	if cfg.QueryServerPort < 0 || cfg.QueryServerPort > 65535 {
		return fmt.Errorf("query server port must be between 1 and 65535")
	}

	// Set defaults for HTTP sources
	if cfg.HTTPSource.MaxRetries == 0 {
		cfg.HTTPSource.MaxRetries = constant.DefaultHTTPSourceRetries
	}
	if cfg.HTTPSource.TimeoutSeconds == 0 {
		cfg.HTTPSource.TimeoutSeconds = int(constant.DefaultHTTPSourceTimeout.Seconds())
	}

	if cfg.Database.File == "" {
		cfg.Database.File = constant.DatabaseFile
	}
	if cfg.Database.AttemptRetentionSeconds <= 0 {
		cfg.Database.AttemptRetentionSeconds = int(constant.DefaultAttemptRetention.Seconds())
	}
	if cfg.Database.CleanupIntervalSeconds <= 0 {
		cfg.Database.CleanupIntervalSeconds = int(constant.DefaultCleanupInterval.Seconds())
	}

	return nil
}

// Validate applies defaults and checks the configuration.
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}

// Save writes the given config to <NodeHome>/config/ptrust_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads the config from <basePath>/config/ptrust_config.json, applies
// PTRUST_* environment overrides and fills defaults.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)

	v := viper.New()
	v.SetConfigFile(filepath.Clean(configFile))
	v.SetConfigType("json")
	v.SetEnvPrefix(constant.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.NodeHome == "" {
		cfg.NodeHome = basePath
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

// DefaultNodeHome returns ~/.ptrust, falling back to the working directory.
func DefaultNodeHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return constant.DefaultNodeHome
	}
	return filepath.Join(home, constant.DefaultNodeHome)
}

// DatabasePath returns the absolute location of the SQLite file.
func (c *Config) DatabasePath() (dir, file string) {
	if filepath.IsAbs(c.Database.File) {
		return filepath.Dir(c.Database.File), filepath.Base(c.Database.File)
	}
	return filepath.Join(c.NodeHome, constant.DataSubdir), c.Database.File
}
