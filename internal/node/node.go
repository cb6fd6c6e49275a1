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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/blinklabs-io/certchain"
	"github.com/blinklabs-io/certchain/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// configOptions maps the file/env configuration onto node options
func configOptions(
	cfg *config.Config,
	logger *slog.Logger,
) ([]certchain.ConfigOptionFunc, error) {
	owner, err := cfg.OwnerAddress()
	if err != nil {
		return nil, err
	}
	opts := []certchain.ConfigOptionFunc{
		certchain.WithLogger(logger),
		certchain.WithDatabasePath(cfg.DatabasePath),
		certchain.WithBlobPlugin(cfg.BlobPlugin),
		certchain.WithMetadataPlugin(cfg.MetadataPlugin),
		certchain.WithMetadataDSN(cfg.MetadataDSN),
		certchain.WithBlobCacheSize(cfg.BlobCacheSize),
		certchain.WithOwner(owner),
		certchain.WithCache(cfg.Cache.Backend),
		certchain.WithCacheLimits(cfg.Cache.MaxEntries, cfg.CacheTTLDuration()),
		certchain.WithRedisURL(cfg.Cache.RedisURL),
		certchain.WithKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID),
		certchain.WithShutdownTimeout(cfg.ShutdownTimeoutDuration()),
	}
	if cfg.Kafka.CreateTopic {
		partitions, replicas := cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor
		if partitions <= 0 {
			partitions = -1
		}
		if replicas <= 0 {
			replicas = -1
		}
		opts = append(opts, certchain.WithKafkaTopicCreation(partitions, replicas))
	}
	return opts, nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", redacted(cfg)), "component", "node")
	opts, err := configOptions(cfg, logger)
	if err != nil {
		return err
	}
	apiAddr := ""
	if cfg.APIPort > 0 {
		apiAddr = net.JoinHostPort(cfg.BindAddr, strconv.FormatUint(uint64(cfg.APIPort), 10))
	}
	opts = append(
		opts,
		certchain.WithAPIListenAddress(apiAddr),
		certchain.WithAPIRequestTimeout(cfg.APIRequestTimeoutDuration()),
		certchain.WithAPIMaxInFlightPerIP(cfg.APIMaxInFlight),
		certchain.WithJWT(cfg.JWTSecret, cfg.JWTIssuer),
		// Enable metrics with default prometheus registry
		certchain.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		certchain.WithTracing(cfg.Tracing),
		certchain.WithTracingStdout(cfg.TracingStdout),
	)
	n, err := certchain.New(certchain.NewConfig(opts...))
	if err != nil {
		return err
	}
	shutdownTimeout := cfg.ShutdownTimeoutDuration()
	if shutdownTimeout == 0 {
		shutdownTimeout = certchain.DefaultShutdownTimeout
	}
	// Metrics and debug listener
	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		http.Handle("/metrics", promhttp.Handler())
		metricsAddr := net.JoinHostPort(
			cfg.BindAddr,
			strconv.FormatUint(uint64(cfg.MetricsPort), 10),
		)
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component", "node",
		)
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				logger.Error(
					fmt.Sprintf("failed to start metrics listener: %s", err),
					"component", "node",
				)
			}
		}()
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	runErr := n.Run(signalCtx)
	if runErr != nil {
		logger.Error("node error", "error", runErr, "component", "node")
	} else {
		logger.Info("shutdown complete", "component", "node")
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	return runErr
}

// Open starts a node without network listeners for one-shot CLI commands.
// The caller must Stop it.
func Open(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*certchain.Node, error) {
	opts, err := configOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	// One-shot commands read through to storage
	opts = append(opts, certchain.WithCache(certchain.CacheBackendNone))
	n, err := certchain.New(certchain.NewConfig(opts...))
	if err != nil {
		return nil, err
	}
	if err := n.Start(ctx); err != nil {
		return nil, errors.Join(err, n.Stop())
	}
	return n, nil
}

func redacted(cfg *config.Config) config.Config {
	ret := *cfg
	if ret.JWTSecret != "" {
		ret.JWTSecret = "<redacted>"
	}
	if ret.MetadataDSN != "" {
		ret.MetadataDSN = "<redacted>"
	}
	if ret.Cache.RedisURL != "" {
		ret.Cache.RedisURL = "<redacted>"
	}
	return ret
}
