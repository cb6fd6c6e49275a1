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

package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opIssue  = "issue"
	opRevoke = "revoke"
)

type registryMetrics struct {
	issued   prometheus.Counter
	revoked  prometheus.Counter
	rejected *prometheus.CounterVec
}

func (r *Registry) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	r.metrics = &registryMetrics{
		issued: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "registry_certificates_issued_total",
			Help: "certificates issued",
		}),
		revoked: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "registry_certificates_revoked_total",
			Help: "certificates revoked",
		}),
		rejected: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_rejected_total",
				Help: "mutating calls rejected, by operation and reason",
			},
			[]string{"op", "reason"},
		),
	}
}

func (r *Registry) recordRejection(op string, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.rejected.WithLabelValues(op, rejectionReason(err)).Inc()
}
