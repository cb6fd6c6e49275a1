// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "certchain.config"

const (
	DefaultShutdownTimeout   = "30s"
	DefaultAPIRequestTimeout = "30s"
	DefaultBlobPlugin        = "badger"
	DefaultMetadataPlugin    = "sqlite"
	DefaultCacheBackend      = "memory"

	envPrefix = "certchain"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type tempConfig struct {
	Config   *Config         `yaml:"config,omitempty"`
	Database *databaseConfig `yaml:"database,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type CacheConfig struct {
	// Backend is one of "memory", "redis" or "none"
	Backend    string `yaml:"backend"`
	MaxEntries int64  `yaml:"maxEntries" split_words:"true"`
	TTL        string `yaml:"ttl"`
	RedisURL   string `yaml:"redisUrl"   split_words:"true"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"clientId"           split_words:"true"`
	// CreateTopic creates the topic on startup. Zero partitions or
	// replication use the broker defaults.
	CreateTopic       bool  `yaml:"createTopic"       split_words:"true"`
	Partitions        int32 `yaml:"partitions"`
	ReplicationFactor int16 `yaml:"replicationFactor" split_words:"true"`
}

type Config struct {
	DatabasePath      string      `yaml:"databasePath"      split_words:"true"`
	BlobPlugin        string      `yaml:"blobPlugin"        split_words:"true"`
	MetadataPlugin    string      `yaml:"metadataPlugin"    split_words:"true"`
	MetadataDSN       string      `yaml:"metadataDsn"       envconfig:"METADATA_DSN"`
	BlobCacheSize     uint64      `yaml:"blobCacheSize"     split_words:"true"`
	Owner             string      `yaml:"owner"`
	BindAddr          string      `yaml:"bindAddr"          split_words:"true"`
	APIPort           uint        `yaml:"apiPort"           envconfig:"API_PORT"`
	APIRequestTimeout string      `yaml:"apiRequestTimeout" envconfig:"API_REQUEST_TIMEOUT"`
	APIMaxInFlight    int         `yaml:"apiMaxInFlight"    envconfig:"API_MAX_IN_FLIGHT"`
	JWTSecret         string      `yaml:"jwtSecret"         envconfig:"JWT_SECRET"`
	JWTIssuer         string      `yaml:"jwtIssuer"         envconfig:"JWT_ISSUER"`
	MetricsPort       uint        `yaml:"metricsPort"       split_words:"true"`
	Tracing           bool        `yaml:"tracing"`
	TracingStdout     bool        `yaml:"tracingStdout"     split_words:"true"`
	ShutdownTimeout   string      `yaml:"shutdownTimeout"   split_words:"true"`
	Cache             CacheConfig `yaml:"cache"`
	Kafka             KafkaConfig `yaml:"kafka"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:      ".certchain",
		BlobPlugin:        DefaultBlobPlugin,
		MetadataPlugin:    DefaultMetadataPlugin,
		BindAddr:          "0.0.0.0",
		APIPort:           8080,
		APIRequestTimeout: DefaultAPIRequestTimeout,
		APIMaxInFlight:    16,
		MetricsPort:       12798,
		ShutdownTimeout:   DefaultShutdownTimeout,
		Cache: CacheConfig{
			Backend:    DefaultCacheBackend,
			MaxEntries: 10000,
			TTL:        "10m",
		},
	}
}

// LoadConfig builds the configuration from the defaults, the YAML config
// file and CERTCHAIN_* environment variables, in increasing precedence
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		// Check for config file in this path: ~/.certchain/certchain.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".certchain", "certchain.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/certchain/certchain.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/certchain/certchain.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := cfg.loadYAML(buf); err != nil {
			return nil, err
		}
	}
	// Process environment variables
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(buf []byte) error {
	// First unmarshal into temp config to handle the wrapper sections
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if tempCfg.Config != nil {
		// Overlay config values onto existing defaults
		configBytes, err := yaml.Marshal(tempCfg.Config)
		if err != nil {
			return fmt.Errorf("error re-marshalling config: %w", err)
		}
		if err := yaml.Unmarshal(configBytes, c); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else {
		// Otherwise unmarshal the whole file as main config
		if err := yaml.Unmarshal(buf, c); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if tempCfg.Database != nil {
		if name, ok := tempCfg.Database.Blob["plugin"].(string); ok {
			c.BlobPlugin = name
		}
		if size, ok := tempCfg.Database.Blob["cacheSize"].(int); ok && size > 0 {
			c.BlobCacheSize = uint64(size)
		}
		if name, ok := tempCfg.Database.Metadata["plugin"].(string); ok {
			c.MetadataPlugin = name
		}
		if dsn, ok := tempCfg.Database.Metadata["dsn"].(string); ok {
			c.MetadataDSN = dsn
		}
	}
	return nil
}

// Validate checks the values that are parsed later by the node
func (c *Config) Validate() error {
	if _, err := c.OwnerAddress(); err != nil {
		return err
	}
	if c.APIMaxInFlight < 0 {
		return fmt.Errorf("invalid apiMaxInFlight: %d", c.APIMaxInFlight)
	}
	for name, value := range map[string]string{
		"apiRequestTimeout": c.APIRequestTimeout,
		"shutdownTimeout":   c.ShutdownTimeout,
		"cache.ttl":         c.Cache.TTL,
	} {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	switch c.Cache.Backend {
	case "", "none", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redisUrl is required for the redis cache backend")
		}
	default:
		return fmt.Errorf(
			"invalid cache.backend: %q (must be 'memory', 'redis', or 'none')",
			c.Cache.Backend,
		)
	}
	return nil
}

// OwnerAddress parses Owner. An empty value returns the zero address, which
// adopts the owner already recorded in the ledger.
func (c *Config) OwnerAddress() (cert.Address, error) {
	if c.Owner == "" {
		return cert.Address{}, nil
	}
	addr, err := cert.ParseAddress(c.Owner)
	if err != nil {
		return cert.Address{}, fmt.Errorf("invalid owner: %w", err)
	}
	return addr, nil
}

func (c *Config) APIRequestTimeoutDuration() time.Duration {
	d, _ := parseDuration(c.APIRequestTimeout)
	return d
}

func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := parseDuration(c.ShutdownTimeout)
	return d
}

func (c *Config) CacheTTLDuration() time.Duration {
	d, _ := parseDuration(c.Cache.TTL)
	return d
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration: %s", value)
	}
	return d, nil
}
