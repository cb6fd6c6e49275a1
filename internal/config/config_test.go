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
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/blinklabs-io/certchain/cert"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test-certchain.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return tmpFile
}

func TestLoad_CompareFullStruct(t *testing.T) {
	yamlContent := `
databasePath: "/var/lib/certchain"
owner: "0x0a00000000000000000000000000000000000000"
bindAddr: "127.0.0.1"
apiPort: 9000
apiRequestTimeout: "5s"
apiMaxInFlight: 4
jwtSecret: "secret"
jwtIssuer: "registrar"
metricsPort: 8088
tracing: true
shutdownTimeout: "10s"
cache:
  backend: "redis"
  maxEntries: 50
  ttl: "1m"
  redisUrl: "redis://localhost:6379/0"
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  topic: "certs"
  clientId: "certchain-test"
  createTopic: true
  partitions: 6
  replicationFactor: 3
`
	expected := &Config{
		DatabasePath:      "/var/lib/certchain",
		BlobPlugin:        DefaultBlobPlugin,
		MetadataPlugin:    DefaultMetadataPlugin,
		Owner:             "0x0a00000000000000000000000000000000000000",
		BindAddr:          "127.0.0.1",
		APIPort:           9000,
		APIRequestTimeout: "5s",
		APIMaxInFlight:    4,
		JWTSecret:         "secret",
		JWTIssuer:         "registrar",
		MetricsPort:       8088,
		Tracing:           true,
		ShutdownTimeout:   "10s",
		Cache: CacheConfig{
			Backend:    "redis",
			MaxEntries: 50,
			TTL:        "1m",
			RedisURL:   "redis://localhost:6379/0",
		},
		Kafka: KafkaConfig{
			Brokers:           []string{"kafka-1:9092", "kafka-2:9092"},
			Topic:             "certs",
			ClientID:          "certchain-test",
			CreateTopic:       true,
			Partitions:        6,
			ReplicationFactor: 3,
		},
	}

	actual, err := LoadConfig(writeConfigFile(t, yamlContent))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf(
			"Loaded config does not match expected.\nActual: %+v\nExpected: %+v",
			actual,
			expected,
		)
	}
	owner, err := actual.OwnerAddress()
	if err != nil {
		t.Fatalf("unexpected owner error: %v", err)
	}
	if owner != (cert.Address{0x0a}) {
		t.Errorf("unexpected owner: %s", owner)
	}
	if actual.APIRequestTimeoutDuration() != 5*time.Second {
		t.Errorf("unexpected API timeout: %s", actual.APIRequestTimeoutDuration())
	}
	if actual.CacheTTLDuration() != time.Minute {
		t.Errorf("unexpected cache TTL: %s", actual.CacheTTLDuration())
	}
}

func TestLoad_WithoutConfigFile_UsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf(
			"config mismatch without file:\nExpected: %+v\nGot:      %+v",
			DefaultConfig(),
			cfg,
		)
	}
	if cfg.ShutdownTimeoutDuration() != 30*time.Second {
		t.Errorf("unexpected shutdown timeout: %s", cfg.ShutdownTimeoutDuration())
	}
}

func TestLoad_ConfigAndDatabaseSections(t *testing.T) {
	yamlContent := `
config:
  databasePath: "data"
database:
  blob:
    plugin: "badger"
    cacheSize: 1048576
  metadata:
    plugin: "postgres"
    dsn: "host=localhost user=certchain dbname=certchain"
`
	cfg, err := LoadConfig(writeConfigFile(t, yamlContent))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.DatabasePath != "data" {
		t.Errorf("expected databasePath data, got: %s", cfg.DatabasePath)
	}
	if cfg.MetadataPlugin != "postgres" {
		t.Errorf("expected postgres metadata plugin, got: %s", cfg.MetadataPlugin)
	}
	if cfg.MetadataDSN != "host=localhost user=certchain dbname=certchain" {
		t.Errorf("unexpected DSN: %s", cfg.MetadataDSN)
	}
	if cfg.BlobCacheSize != 1048576 {
		t.Errorf("unexpected blob cache size: %d", cfg.BlobCacheSize)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CERTCHAIN_DATABASE_PATH", "/from/env")
	t.Setenv("CERTCHAIN_JWT_SECRET", "env-secret")
	t.Setenv("CERTCHAIN_CACHE_BACKEND", "none")
	t.Setenv("CERTCHAIN_KAFKA_BROKERS", "a:9092,b:9092")
	cfg, err := LoadConfig(writeConfigFile(t, `databasePath: "/from/file"`))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.DatabasePath != "/from/env" {
		t.Errorf("expected env database path, got: %s", cfg.DatabasePath)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Errorf("expected env JWT secret, got: %s", cfg.JWTSecret)
	}
	if cfg.Cache.Backend != "none" {
		t.Errorf("expected cache backend none, got: %s", cfg.Cache.Backend)
	}
	if !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"a:9092", "b:9092"}) {
		t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"owner":         `owner: "0x1234"`,
		"timeout":       `shutdownTimeout: "soon"`,
		"negative":      `apiRequestTimeout: "-1s"`,
		"in-flight":     `apiMaxInFlight: -1`,
		"cache backend": "cache:\n  backend: memcached",
		"redis url":     "cache:\n  backend: redis",
		"yaml":          "databasePath: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfigFile(t, content)); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatal("expected no config in empty context")
	}
	cfg := DefaultConfig()
	if FromContext(WithContext(context.Background(), cfg)) != cfg {
		t.Fatal("expected config from context")
	}
}
