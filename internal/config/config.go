package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location relative to the working dir.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	LogLevel      string `yaml:"logLevel"`

	EbayEnv     string `yaml:"ebayEnv"` // production or sandbox
	EbayAppID   string `yaml:"ebayAppID"`
	EbayOwnerID string `yaml:"ebayOwnerID"`

	ShopifyStore string `yaml:"shopifyStore"`

	FetchConcurrency  int     `yaml:"fetchConcurrency"`
	PushConcurrency   int     `yaml:"pushConcurrency"`
	RequestTimeout    string  `yaml:"requestTimeout"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	RequestBurst      int     `yaml:"requestBurst"`

	PushRateLimit  int    `yaml:"pushRateLimit"`
	PushRateWindow string `yaml:"pushRateWindow"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("SELLSYNC_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("SELLSYNC_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("EBAY_ENV"); v != "" {
		cfg.EbayEnv = v
	}
	if v := os.Getenv("EBAY_APP_ID"); v != "" {
		cfg.EbayAppID = v
	}
	if v := os.Getenv("EBAY_OWNER_ID"); v != "" {
		cfg.EbayOwnerID = v
	}
	if v := os.Getenv("SHOPIFY_STORE"); v != "" {
		cfg.ShopifyStore = v
	}
	if v := os.Getenv("SELLSYNC_FETCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FetchConcurrency = n
		}
	}
	if v := os.Getenv("SELLSYNC_PUSH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PushConcurrency = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseRequestTimeout converts the configured duration string, defaulting
// to 30s when unset.
func (c FileConfig) ParseRequestTimeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("config: requestTimeout: %w", err)
	}
	return d, nil
}

// ParsePushRateWindow converts the push limiter window, defaulting to 1s.
func (c FileConfig) ParsePushRateWindow() (time.Duration, error) {
	if c.PushRateWindow == "" {
		return time.Second, nil
	}
	d, err := time.ParseDuration(c.PushRateWindow)
	if err != nil {
		return 0, fmt.Errorf("config: pushRateWindow: %w", err)
	}
	return d, nil
}

// Sandbox reports whether the eBay sandbox endpoints should be used.
func (c FileConfig) Sandbox() bool {
	return c.EbayEnv == "sandbox"
}

func validateConfig(cfg FileConfig) error {
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or SELLSYNC_REDIS_ADDR)")
	}
	if cfg.EbayOwnerID == "" {
		return errors.New("config: ebayOwnerID is required (set in config.yaml or EBAY_OWNER_ID)")
	}
	if cfg.ShopifyStore == "" {
		return errors.New("config: shopifyStore is required (set in config.yaml or SHOPIFY_STORE)")
	}
	if cfg.EbayAppID == "" {
		return errors.New("config: ebayAppID is required (set in config.yaml or EBAY_APP_ID)")
	}
	if cfg.EbayEnv != "" && cfg.EbayEnv != "production" && cfg.EbayEnv != "sandbox" {
		return fmt.Errorf("config: ebayEnv must be production or sandbox, got %q", cfg.EbayEnv)
	}
	return nil
}
