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

package reconstruct

import (
	"log/slog"

	"github.com/blinklabs-io/certchain/cache"
	"github.com/prometheus/client_golang/prometheus"
)

type ReconstructorOptionFunc func(*Reconstructor)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.logger = logger
	}
}

// WithCache specifies the cache for verification results
func WithCache(c cache.Cache) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.cache = c
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.promRegistry = registry
	}
}

// WithPageSize specifies how many events each log scan fetches at once
func WithPageSize(pageSize int) ReconstructorOptionFunc {
	return func(r *Reconstructor) {
		r.pageSize = pageSize
	}
}
