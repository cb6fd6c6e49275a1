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
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestOpenPersistsOwner(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DatabasePath = t.TempDir()
	cfg.Owner = "0x0a00000000000000000000000000000000000000"
	n, err := Open(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, n.APIAddr())
	assert.Equal(t, cert.Address{0x0a}, n.Registry().Owner())
	require.NoError(t, n.Stop())

	// A later open adopts the stored owner
	cfg.Owner = ""
	n, err = Open(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer n.Stop()
	assert.Equal(t, cert.Address{0x0a}, n.Registry().Owner())
}

func TestOpenInvalidOwner(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DatabasePath = ""
	cfg.Owner = "not-an-address"
	_, err := Open(context.Background(), cfg, discardLogger())
	require.ErrorIs(t, err, cert.ErrInvalidAddress)
}

func TestRedacted(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.JWTSecret = "secret"
	cfg.Cache.RedisURL = "redis://:password@localhost:6379/0"
	out := redacted(cfg)
	assert.Equal(t, "<redacted>", out.JWTSecret)
	assert.Equal(t, "<redacted>", out.Cache.RedisURL)
	assert.Empty(t, out.MetadataDSN)
	assert.Equal(t, "secret", cfg.JWTSecret)
}
