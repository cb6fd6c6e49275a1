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

package chain

import (
	"log/slog"
	"time"

	"github.com/blinklabs-io/certchain/event"
	"github.com/prometheus/client_golang/prometheus"
)

type ChainOptionFunc func(*Chain)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ChainOptionFunc {
	return func(c *Chain) {
		c.logger = logger
	}
}

// WithEventBus specifies the bus that receives committed blocks
func WithEventBus(eventBus *event.EventBus) ChainOptionFunc {
	return func(c *Chain) {
		c.eventBus = eventBus
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) ChainOptionFunc {
	return func(c *Chain) {
		c.promRegistry = registry
	}
}

// WithClock overrides the source of block timestamps
func WithClock(now func() time.Time) ChainOptionFunc {
	return func(c *Chain) {
		c.now = now
	}
}
