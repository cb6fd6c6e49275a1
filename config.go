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

package certchain

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/certchain/cache"
	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/publish"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	CacheBackendNone   = "none"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"

	DefaultShutdownTimeout = 30 * time.Second
)

type Config struct {
	promRegistry      prometheus.Registerer
	logger            *slog.Logger
	dataDir           string
	blobPlugin        string
	metadataPlugin    string
	metadataDSN       string
	blobCacheSize     uint64
	owner             cert.Address
	apiListenAddress  string
	apiRequestTimeout time.Duration
	apiMaxInFlight    int
	jwtSecret         string
	jwtIssuer         string
	cacheBackend      string
	cacheMaxEntries   int64
	cacheTTL          time.Duration
	redisURL          string
	kafkaBrokers      []string
	kafkaTopic        string
	kafkaClientID     string
	kafkaCreateTopic  bool
	kafkaTopicSpec    publish.TopicSpec
	tracing           bool
	tracingStdout     bool
	shutdownTimeout   time.Duration
}

func (n *Node) configValidate() error {
	switch n.config.cacheBackend {
	case "", CacheBackendNone, CacheBackendMemory:
	case CacheBackendRedis:
		if n.config.redisURL == "" {
			return errors.New("redis cache backend requires a redis URL")
		}
	default:
		return fmt.Errorf("unknown cache backend: %q", n.config.cacheBackend)
	}
	if n.config.cacheMaxEntries < 0 {
		return fmt.Errorf(
			"invalid cache max entries: %d",
			n.config.cacheMaxEntries,
		)
	}
	if n.config.cacheTTL < 0 {
		return fmt.Errorf("invalid cache TTL: %s", n.config.cacheTTL)
	}
	if n.config.apiMaxInFlight < 0 {
		return fmt.Errorf(
			"invalid API in-flight limit: %d",
			n.config.apiMaxInFlight,
		)
	}
	if n.config.apiRequestTimeout < 0 {
		return fmt.Errorf(
			"invalid API request timeout: %s",
			n.config.apiRequestTimeout,
		)
	}
	if n.config.shutdownTimeout < 0 {
		return fmt.Errorf(
			"invalid shutdown timeout: %s",
			n.config.shutdownTimeout,
		)
	}
	for _, broker := range n.config.kafkaBrokers {
		if broker == "" {
			return errors.New("empty kafka broker address")
		}
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new certchain config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		cacheBackend:    CacheBackendMemory,
		cacheMaxEntries: cache.DefaultMaxEntries,
		cacheTTL:        cache.DefaultTTL,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithMetadataDSN specifies the connection string for network metadata plugins
func WithMetadataDSN(dsn string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataDSN = dsn
	}
}

func WithBlobCacheSize(size uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.blobCacheSize = size
	}
}

// WithOwner specifies the registry owner. It is only required when the
// ledger has no genesis block yet.
func WithOwner(owner cert.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.owner = owner
	}
}

// WithAPIListenAddress specifies the HTTP API listen address. An empty
// address disables the API server.
func WithAPIListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = addr
	}
}

func WithAPIRequestTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.apiRequestTimeout = timeout
	}
}

// WithAPIMaxInFlightPerIP limits concurrent issue and revoke requests per
// client address. Zero disables the limit.
func WithAPIMaxInFlightPerIP(limit int) ConfigOptionFunc {
	return func(c *Config) {
		c.apiMaxInFlight = limit
	}
}

// WithJWT specifies the HS256 signing key and expected issuer for caller
// tokens. Without a signing key the mutating API routes reject every request.
func WithJWT(secret string, issuer string) ConfigOptionFunc {
	return func(c *Config) {
		c.jwtSecret = secret
		c.jwtIssuer = issuer
	}
}

// WithCache specifies the verification cache backend: "memory", "redis" or "none"
func WithCache(backend string) ConfigOptionFunc {
	return func(c *Config) {
		c.cacheBackend = backend
	}
}

func WithCacheLimits(maxEntries int64, ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.cacheMaxEntries = maxEntries
		c.cacheTTL = ttl
	}
}

func WithRedisURL(url string) ConfigOptionFunc {
	return func(c *Config) {
		c.redisURL = url
	}
}

// WithKafka enables publishing of state transitions to the given brokers
func WithKafka(brokers []string, topic string, clientID string) ConfigOptionFunc {
	return func(c *Config) {
		c.kafkaBrokers = brokers
		c.kafkaTopic = topic
		c.kafkaClientID = clientID
	}
}

// WithKafkaTopicCreation creates the Kafka topic on startup when it is
// missing. Negative values use the broker defaults.
func WithKafkaTopicCreation(partitions int32, replicationFactor int16) ConfigOptionFunc {
	return func(c *Config) {
		c.kafkaCreateTopic = true
		c.kafkaTopicSpec = publish.TopicSpec{
			Partitions:        partitions,
			ReplicationFactor: replicationFactor,
		}
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) OTLP collector at localhost:4318.
// This can be configured via the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. Default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
