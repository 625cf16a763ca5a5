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
 * sink.go: The narrow read-only surface observers poll for the core's counters
 */

// Package stats is the only surface logging and monitoring are allowed
// to touch from inside the core: a Sink interface that yields read-only
// snapshots of the core's counters, a default implementation that reads
// them off the cache, rate limiter and root list, and an optional
// loopback-only HTTP endpoint for operators to poll it.
package stats

import (
	"github.com/tenta-browser/dns-recursor/cache"
	"github.com/tenta-browser/dns-recursor/roots"
	"github.com/tenta-browser/dns-recursor/security"
)

// Sink is the interface observers poll for observability data. Core
// packages do not call it; an implementation reads their counters when
// Snapshot is called. It never exposes anything that would let an
// observer mutate resolver state, only read it.
type Sink interface {
	Snapshot() Snapshot
}

// RootStat is one root server's point-in-time metrics.
type RootStat struct {
	Hostname      string
	Hits          uint64
	TimeoutCounts uint64
	AvgLatencyMs  float64
}

// Snapshot is a point-in-time view across the cache, rate limiter, and
// root server table.
type Snapshot struct {
	Cache           cache.Stats
	RateLimitedSeen uint64
	ActiveClients   int
	Roots           []RootStat
}

// DefaultSink reads live counters off a cache, rate limiter, and root
// server list every time Snapshot is called -- it holds no state of its
// own.
type DefaultSink struct {
	cache *cache.Cache
	rl    *security.RateLimiter
	roots []*roots.Server
}

// NewDefaultSink builds a sink over the given resolver components.
func NewDefaultSink(c *cache.Cache, rl *security.RateLimiter, rootList []*roots.Server) *DefaultSink {
	return &DefaultSink{cache: c, rl: rl, roots: rootList}
}

// Snapshot implements Sink.
func (s *DefaultSink) Snapshot() Snapshot {
	rootStats := make([]RootStat, len(s.roots))
	for i, r := range s.roots {
		rootStats[i] = RootStat{
			Hostname:      r.Hostname,
			Hits:          r.Hits(),
			TimeoutCounts: r.TimeoutCounts(),
			AvgLatencyMs:  float64(r.AvgLatency().Microseconds()) / 1000.0,
		}
	}
	return Snapshot{
		Cache:           s.cache.Stats(),
		RateLimitedSeen: s.rl.TotalRateLimited(),
		ActiveClients:   s.rl.ClientCount(),
		Roots:           rootStats,
	}
}
