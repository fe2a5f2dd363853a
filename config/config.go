// Package config provides configuration loading for the locker gateway tools.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mmomasters/tkgateway/gateway"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultFile is the config file used when no path is given.
const DefaultFile = "config.json"

// Placeholder credentials shipped in config.example.json. A locker that still
// carries them is listed but not usable.
const (
	PlaceholderIdentifier = "YOUR_IDENTIFIER"
	PlaceholderCode       = "YOUR_SHARE_CODE"
)

const (
	// DefaultRateLimitDelay is the spacing between actuating operations, in seconds.
	DefaultRateLimitDelay = 1.0

	// DefaultRateLimitDelayLight is the spacing between status, list, sync and
	// update operations, in seconds.
	DefaultRateLimitDelayLight = 0.2
)

// Locker holds one locker's credentials.
type Locker struct {
	// Identifier names the locker on the gateway
	Identifier string `json:"identifier"`

	// Code is the shared secret used to sign requests. It never travels on
	// the wire itself.
	Code string `json:"code"`
}

// IsConfigured reports whether the credentials are real, as opposed to empty
// or the placeholders from the example config.
func (l Locker) IsConfigured() bool {
	if l.Identifier == "" || l.Code == "" {
		return false
	}
	return l.Identifier != PlaceholderIdentifier && l.Code != PlaceholderCode
}

// Config holds the shared configuration for all gateway tools.
type Config struct {
	// Gateway is the gateway address (host or host:port), without scheme
	Gateway string `json:"gateway"`

	// Lockers maps locker names to their credentials
	Lockers map[string]Locker `json:"lockers"`

	// RateLimitDelay is the minimum spacing in seconds between actuating
	// operations (open, close, calibrate, locker status)
	RateLimitDelay float64 `json:"rate_limit_delay"`

	// RateLimitDelayLight is the minimum spacing in seconds between light
	// operations (status, list, sync, update)
	RateLimitDelayLight float64 `json:"rate_limit_delay_light"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Gateway:             "192.168.0.129",
		RateLimitDelay:      DefaultRateLimitDelay,
		RateLimitDelayLight: DefaultRateLimitDelayLight,
	}
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadConfigFromEnv loads configuration from environment variables.
// Environment variables override values from the config file.
func LoadConfigFromEnv(cfg *Config) {
	if host := os.Getenv("TKGATEWAY_GATEWAY"); host != "" {
		cfg.Gateway = host
	}

	if delay := os.Getenv("TKGATEWAY_RATE_LIMIT_DELAY"); delay != "" {
		if f, err := strconv.ParseFloat(delay, 64); err == nil {
			cfg.RateLimitDelay = f
		}
	}

	if delay := os.Getenv("TKGATEWAY_RATE_LIMIT_DELAY_LIGHT"); delay != "" {
		if f, err := strconv.ParseFloat(delay, 64); err == nil {
			cfg.RateLimitDelayLight = f
		}
	}
}

// Validate checks that the config can drive a gateway client.
func (c *Config) Validate() error {
	if c.Gateway == "" {
		return fmt.Errorf("config has no gateway address")
	}
	return nil
}

// Locker looks up the credentials for a named locker.
func (c *Config) Locker(name string) (Locker, bool) {
	l, ok := c.Lockers[name]
	return l, ok
}

// LockerNames returns the configured locker names in sorted order.
func (c *Config) LockerNames() []string {
	names := make([]string, 0, len(c.Lockers))
	for name := range c.Lockers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HeavyDelay returns the actuating-operation spacing as a duration.
// Zero and negative values select the default.
func (c *Config) HeavyDelay() time.Duration {
	return secondsOrDefault(c.RateLimitDelay, DefaultRateLimitDelay)
}

// LightDelay returns the light-operation spacing as a duration.
// Zero and negative values select the default.
func (c *Config) LightDelay() time.Duration {
	return secondsOrDefault(c.RateLimitDelayLight, DefaultRateLimitDelayLight)
}

func secondsOrDefault(seconds, def float64) time.Duration {
	if seconds <= 0 {
		seconds = def
	}
	return time.Duration(seconds * float64(time.Second))
}

// ToClientConfig converts the config to a gateway.ClientConfig.
func (c *Config) ToClientConfig() gateway.ClientConfig {
	return gateway.ClientConfig{
		Host:       c.Gateway,
		Timeout:    gateway.DefaultTimeout,
		HeavyDelay: c.HeavyDelay(),
		LightDelay: c.LightDelay(),
	}
}
