// Package config loads the client configuration via viper: TOML file under
// $HOME/.config/circ, CIRC_* environment variables, flags on top.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the client configuration.
type Config struct {
	APIBaseURL            string `toml:"api_base_url" mapstructure:"api_base_url"`
	DataDir               string `toml:"data_dir" mapstructure:"data_dir"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	ListenAddr            string `toml:"listen_addr" mapstructure:"listen_addr"` // circ serve
}

// NewDefaultConfig returns a new Config with default values.
func NewDefaultConfig(dataDir string) *Config {
	return &Config{
		APIBaseURL:            "http://127.0.0.1:8000",
		DataDir:               dataDir,
		RequestTimeoutSeconds: 60,
		ListenAddr:            ":8000",
	}
}

// RequestTimeout returns the HTTP timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// LoadConfig loads configuration from viper.
func LoadConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	dataDir, err := ResolvePath(config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("error resolving data directory %q: %w", config.DataDir, err)
	}
	config.DataDir = dataDir

	return config, nil
}
