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
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/blinklabs-io/certchain/api"
	"github.com/blinklabs-io/certchain/cache"
	"github.com/blinklabs-io/certchain/chain"
	"github.com/blinklabs-io/certchain/database"
	"github.com/blinklabs-io/certchain/event"
	"github.com/blinklabs-io/certchain/publish"
	"github.com/blinklabs-io/certchain/reconstruct"
	"github.com/blinklabs-io/certchain/registry"
)

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	chain         *chain.Chain
	registry      *registry.Registry
	reconstructor *reconstruct.Reconstructor
	cache         cache.Cache
	publisher     *publish.Publisher
	api           *api.API
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	started       chan struct{}
	startOnce     sync.Once
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config:  cfg,
		done:    make(chan struct{}),
		started: make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// Run starts the node and blocks until ctx is cancelled or Stop is called
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return errors.Join(err, n.Stop())
	}
	select {
	case <-ctx.Done():
		return n.Stop()
	case <-n.done:
		return nil
	}
}

// Start opens storage and starts all configured components. It returns once
// the API listener is bound.
func (n *Node) Start(ctx context.Context) error {
	err := errors.New("node already started")
	n.startOnce.Do(func() {
		err = n.start(ctx)
		if err == nil {
			close(n.started)
		}
	})
	return err
}

// Started is closed once Start has completed successfully
func (n *Node) Started() <-chan struct{} {
	return n.started
}

func (n *Node) start(ctx context.Context) error {
	logger := n.config.logger
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	n.eventBus = event.NewEventBus(n.config.promRegistry, logger)
	// Load database
	db, err := database.New(&database.Config{
		DataDir:        n.config.dataDir,
		Logger:         logger,
		PromRegistry:   n.config.promRegistry,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
		MetadataDSN:    n.config.metadataDSN,
		BlobCacheSize:  n.config.blobCacheSize,
	})
	if db != nil {
		n.db = db
	}
	if err != nil {
		var dbErr database.CommitTimestampError
		if errors.As(err, &dbErr) {
			return fmt.Errorf(
				"database was left partially committed, run verify-chain to inspect it: %w",
				err,
			)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	// Load chain
	n.chain, err = chain.New(
		n.db,
		chain.WithLogger(logger),
		chain.WithEventBus(n.eventBus),
		chain.WithPromRegistry(n.config.promRegistry),
	)
	if err != nil {
		return fmt.Errorf("failed to load chain: %w", err)
	}
	// Publish transitions
	if len(n.config.kafkaBrokers) > 0 {
		n.publisher, err = publish.New(publish.Config{
			Brokers:      n.config.kafkaBrokers,
			Topic:        n.config.kafkaTopic,
			ClientID:     n.config.kafkaClientID,
			CreateTopic:  n.config.kafkaCreateTopic,
			TopicSpec:    n.config.kafkaTopicSpec,
			Logger:       logger,
			PromRegistry: n.config.promRegistry,
		})
		if err != nil {
			return fmt.Errorf("failed to create publisher: %w", err)
		}
		n.eventBus.RegisterSubscriber(chain.BlockEventType, n.publisher)
	}
	// Registry
	n.registry, err = registry.New(
		ctx,
		n.chain,
		n.config.owner,
		registry.WithLogger(logger),
		registry.WithPromRegistry(n.config.promRegistry),
	)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	logger.Info(
		"registry loaded",
		"component", "node",
		"owner", n.registry.Owner().String(),
		"tip_block", n.chain.Tip().BlockNumber,
	)
	// Read side
	n.cache, err = n.openCache(ctx)
	if err != nil {
		return err
	}
	n.reconstructor = reconstruct.New(
		n.chain,
		reconstruct.WithLogger(logger),
		reconstruct.WithCache(n.cache),
		reconstruct.WithPromRegistry(n.config.promRegistry),
	)
	// HTTP API
	if n.config.apiListenAddress != "" {
		if n.config.jwtSecret == "" {
			logger.Warn(
				"no JWT signing key configured, issue and revoke are disabled",
				"component", "node",
			)
		}
		n.api = api.New(
			api.Config{
				ListenAddress:  n.config.apiListenAddress,
				RequestTimeout: n.config.apiRequestTimeout,
				JWTSecret:      n.config.jwtSecret,
				JWTIssuer:      n.config.jwtIssuer,

				MaxInFlightPerIP: n.config.apiMaxInFlight,
			},
			n.registry,
			n.reconstructor,
			n.chain,
			api.WithLogger(logger),
			api.WithPromRegistry(n.config.promRegistry),
		)
		if err := n.api.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) openCache(ctx context.Context) (cache.Cache, error) {
	switch n.config.cacheBackend {
	case CacheBackendMemory:
		c, err := cache.NewMemory(n.config.cacheMaxEntries, n.config.cacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		return c, nil
	case CacheBackendRedis:
		c, err := cache.NewRedis(ctx, cache.RedisConfig{
			URL: n.config.redisURL,
			TTL: n.config.cacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis cache: %w", err)
		}
		return c, nil
	default:
		return cache.Noop{}, nil
	}
}

// Registry returns the write side of the node. It is nil until Start returns.
func (n *Node) Registry() *registry.Registry {
	return n.registry
}

// Reconstructor returns the read side of the node. It is nil until Start returns.
func (n *Node) Reconstructor() *reconstruct.Reconstructor {
	return n.reconstructor
}

func (n *Node) Chain() *chain.Chain {
	return n.chain
}

// APIAddr returns the bound API address, or nil when the API is disabled
func (n *Node) APIAddr() net.Addr {
	if n.api == nil {
		return nil
	}
	return n.api.Addr()
}

// APIIdentity returns the API token issuer, or nil when the API or
// authentication is disabled
func (n *Node) APIIdentity() *api.Identity {
	if n.api == nil {
		return nil
	}
	return n.api.Identity()
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	shutdownTimeout := DefaultShutdownTimeout
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	logger := n.config.logger

	logger.Debug("starting graceful shutdown", "component", "node")

	// Phase 1: Stop accepting new work
	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain subscribers. This also flushes the publisher.
	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	// Phase 3: Close storage
	if n.cache != nil {
		if closeErr := n.cache.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("cache close: %w", closeErr))
		}
	}
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	logger.Debug("graceful shutdown complete", "component", "node")
	close(n.done)
	return err
}
