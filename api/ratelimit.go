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

package api

import (
	"net"
	"net/http"
	"sync"
)

// ipLimiter caps the number of in-flight requests per client address
type ipLimiter struct {
	limit    int
	inFlight map[string]int
	mu       sync.Mutex
}

func newIPLimiter(limit int) *ipLimiter {
	return &ipLimiter{
		limit:    limit,
		inFlight: make(map[string]int),
	}
}

// ipKey extracts a rate-limit key from a request remote address, with or
// without a port. IPv6 addresses are grouped by /64 prefix so that a client
// rotating within a single subnet counts as one source. Unparseable
// addresses return an empty string and are exempt.
func ipKey(remoteAddr string) string {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ""
	}
	if ip4 := ip.To4(); ip4 != nil {
		return ip4.String()
	}
	mask := net.CIDRMask(64, 128)
	return ip.Mask(mask).String() + "/64"
}

func (l *ipLimiter) acquire(key string) bool {
	if key == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight[key] >= l.limit {
		return false
	}
	l.inFlight[key]++
	return true
}

func (l *ipLimiter) release(key string) {
	if key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight[key]--
	if l.inFlight[key] <= 0 {
		delete(l.inFlight, key)
	}
}

func (l *ipLimiter) count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[key]
}

// limitPerIP rejects requests with 429 while the client already has the
// maximum number of requests in flight
func (a *API) limitPerIP(next http.Handler) http.Handler {
	if a.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ipKey(r.RemoteAddr)
		if !a.limiter.acquire(key) {
			writeError(
				w,
				http.StatusTooManyRequests,
				"Too Many Requests",
				"too many concurrent requests from this address",
			)
			return
		}
		defer a.limiter.release(key)
		next.ServeHTTP(w, r)
	})
}
