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

// Package cache stores encoded read-side results. Keys embed the ledger tip hash,
// so entries never need explicit invalidation.
package cache

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultTTL        = 10 * time.Minute
	DefaultMaxEntries = 10000
)

var ErrMiss = errors.New("cache miss")

type Cache interface {
	// Get returns ErrMiss when the key is absent or expired
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Noop never stores anything
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error) {
	return nil, ErrMiss
}

func (Noop) Set(context.Context, string, []byte) error {
	return nil
}

func (Noop) Close() error {
	return nil
}
