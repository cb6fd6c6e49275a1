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

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Memory is a process-local cache bounded by entry count
type Memory struct {
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

func NewMemory(maxEntries int64, ttl time.Duration) (*Memory, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &Memory{cache: c, ttl: ttl}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.cache.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return value, nil
}

// Set stores value with a cost of one entry. Writes are applied before Set
// returns.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.cache.SetWithTTL(key, value, 1, m.ttl)
	m.cache.Wait()
	return nil
}

func (m *Memory) Close() error {
	m.cache.Close()
	return nil
}
