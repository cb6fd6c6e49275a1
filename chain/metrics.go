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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type chainMetrics struct {
	tipBlock       prometheus.Gauge
	tipPosition    prometheus.Gauge
	eventsTotal    prometheus.Counter
	submitFailures prometheus.Counter
	submitDuration prometheus.Histogram
}

func (c *Chain) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	c.metrics = &chainMetrics{
		tipBlock: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "chain_tip_block_number",
			Help: "number of the newest committed block",
		}),
		tipPosition: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "chain_tip_event_position",
			Help: "position of the newest committed event",
		}),
		eventsTotal: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "chain_events_total",
			Help: "events committed since start",
		}),
		submitFailures: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "chain_submit_failures_total",
			Help: "transactions that were rolled back",
		}),
		submitDuration: promautoFactory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chain_submit_duration_seconds",
			Help:    "time spent applying and committing a transaction",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
