/**
 * Tenta DNS Server
 *
 *    Copyright 2017 Tenta, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 * For any questions, please contact developer@tenta.io
 *
 * ratelimiter.go: Per-client sliding-window admission control
 */

// Package security implements the two checks every inbound datagram
// and every upstream response pass through: per-client admission
// (RateLimiter) and per-response validation (validate.go).
package security

import (
	"sync"
	"time"

	"github.com/tenta-browser/dns-recursor/log"
)

// DefaultMaxQueriesPerWindow and DefaultWindow are the compiled-in rate
// limit: 250 queries per one-second sliding window, per client.
const (
	DefaultMaxQueriesPerWindow = 250
	DefaultWindow              = time.Second

	// defaultIdleSweepInterval and defaultIdleThreshold govern the
	// periodic client-table sweep. The original implementation declared
	// a cleanup hook but left it empty; this resolver actually reaps
	// clients that have gone quiet, so the table doesn't grow without
	// bound against a churn of distinct source addresses.
	defaultIdleSweepInterval = 10 * time.Minute
	defaultIdleThreshold     = 10 * time.Minute
)

var rlLogger = log.GetLogger("security")

type clientRecord struct {
	mu              sync.Mutex
	queryTimes      []time.Time
	totalQueries    uint64
	rateLimited     uint64
	lastInteraction time.Time
}

// RateLimiter admits or denies queries per source IP using a sliding
// time window, and periodically sweeps clients that have been idle past
// a threshold.
type RateLimiter struct {
	maxPerWindow int
	window       time.Duration

	idleSweepInterval time.Duration
	idleThreshold     time.Duration

	mu      sync.Mutex
	clients map[string]*clientRecord

	stop chan struct{}
}

// NewRateLimiter constructs a limiter with the given window; pass zero
// values to use the compiled-in defaults.
func NewRateLimiter(maxPerWindow int, window time.Duration) *RateLimiter {
	if maxPerWindow == 0 {
		maxPerWindow = DefaultMaxQueriesPerWindow
	}
	if window == 0 {
		window = DefaultWindow
	}
	return &RateLimiter{
		maxPerWindow:      maxPerWindow,
		window:            window,
		idleSweepInterval: defaultIdleSweepInterval,
		idleThreshold:     defaultIdleThreshold,
		clients:           make(map[string]*clientRecord),
		stop:              make(chan struct{}),
	}
}

// Allow reports whether clientIP may issue another query right now,
// pushing the current time into its sliding window if so.
func (r *RateLimiter) Allow(clientIP string) bool {
	now := time.Now()

	r.mu.Lock()
	rec, ok := r.clients[clientIP]
	if !ok {
		rec = &clientRecord{}
		r.clients[clientIP] = rec
	}
	r.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	windowStart := now.Add(-r.window)
	i := 0
	for i < len(rec.queryTimes) && rec.queryTimes[i].Before(windowStart) {
		i++
	}
	rec.queryTimes = rec.queryTimes[i:]

	rec.lastInteraction = now
	if len(rec.queryTimes) >= r.maxPerWindow {
		rec.rateLimited++
		return false
	}

	rec.queryTimes = append(rec.queryTimes, now)
	rec.totalQueries++
	return true
}

// ClientCount returns the number of distinct clients currently tracked.
func (r *RateLimiter) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// TotalRateLimited sums the rate-limited query count across every
// client ever seen.
func (r *RateLimiter) TotalRateLimited() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total uint64
	for _, rec := range r.clients {
		rec.mu.Lock()
		total += rec.rateLimited
		rec.mu.Unlock()
	}
	return total
}

// SetIdleThreshold overrides the compiled-in idle threshold (and uses
// it as the sweep interval too), e.g. from a loaded config file.
func (r *RateLimiter) SetIdleThreshold(d time.Duration) {
	r.idleThreshold = d
	r.idleSweepInterval = d
}

// StartIdleSweep launches the background goroutine that drops client
// records that have been idle past the idle threshold, so the client
// table doesn't grow without bound against a churn of distinct source
// addresses that each query only once or twice.
func (r *RateLimiter) StartIdleSweep() {
	go func() {
		ticker := time.NewTicker(r.idleSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweepIdle()
			case <-r.stop:
				return
			}
		}
	}()
}

// StopIdleSweep halts the background sweep goroutine.
func (r *RateLimiter) StopIdleSweep() {
	close(r.stop)
}

func (r *RateLimiter) sweepIdle() {
	cutoff := time.Now().Add(-r.idleThreshold)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for ip, rec := range r.clients {
		rec.mu.Lock()
		idle := rec.lastInteraction.Before(cutoff)
		rec.mu.Unlock()
		if idle {
			delete(r.clients, ip)
			removed++
		}
	}
	if removed > 0 {
		rlLogger.Debugf("idle sweep: removed %d stale client records", removed)
	}
}
