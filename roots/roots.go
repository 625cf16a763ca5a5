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
 * roots.go: The static IANA root server hint list
 */

// Package roots holds the compiled-in root server hint list the
// resolver's iterative walk starts from, plus the per-root metrics
// (average latency, hits, timeout counts) the resolution loop updates
// as it uses them.
package roots

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Server is one root server hint plus the live metrics the resolver
// accumulates against it.
type Server struct {
	Hostname string
	Addr     [4]byte

	hits          uint64
	timeoutCounts uint64

	mu         sync.Mutex
	avgLatency time.Duration
}

// IP returns the root's address as a net.IP.
func (s *Server) IP() net.IP { return net.IPv4(s.Addr[0], s.Addr[1], s.Addr[2], s.Addr[3]) }

// RecordHit records a successful round trip and folds latency into a
// cumulative running mean: avg' = (avg*hits + latency) / (hits+1),
// computed before hits is incremented, matching the original
// implementation's running-average formula exactly rather than a
// 2-way average that overweights recent samples.
func (s *Server) RecordHit(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := atomic.LoadUint64(&s.hits)
	s.avgLatency = time.Duration((int64(s.avgLatency)*int64(hits) + int64(latency)) / int64(hits+1))
	atomic.AddUint64(&s.hits, 1)
}

// RecordTimeout increments this root's timeout counter.
func (s *Server) RecordTimeout() {
	atomic.AddUint64(&s.timeoutCounts, 1)
}

// Hits returns the number of successful round trips against this root.
func (s *Server) Hits() uint64 { return atomic.LoadUint64(&s.hits) }

// TimeoutCounts returns the number of timeouts against this root.
func (s *Server) TimeoutCounts() uint64 { return atomic.LoadUint64(&s.timeoutCounts) }

// AvgLatency returns the current running-average round-trip latency.
func (s *Server) AvgLatency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avgLatency
}

// hint is the immutable (hostname, address) pair for one root, before
// any live metrics are attached.
type hint struct {
	hostname string
	addr     [4]byte
}

// hints is the compiled-in IANA root server list, in the canonical
// a-through-m order the iterative resolution loop tries them in.
var hints = []hint{
	{"a.root-servers.net", [4]byte{198, 41, 0, 4}},
	{"b.root-servers.net", [4]byte{170, 247, 170, 2}},
	{"c.root-servers.net", [4]byte{192, 33, 4, 12}},
	{"d.root-servers.net", [4]byte{199, 7, 91, 13}},
	{"e.root-servers.net", [4]byte{192, 203, 230, 10}},
	{"f.root-servers.net", [4]byte{192, 5, 5, 241}},
	{"g.root-servers.net", [4]byte{192, 112, 36, 4}},
	{"h.root-servers.net", [4]byte{198, 97, 190, 53}},
	{"i.root-servers.net", [4]byte{192, 36, 148, 17}},
	{"j.root-servers.net", [4]byte{192, 58, 128, 30}},
	{"k.root-servers.net", [4]byte{193, 0, 14, 129}},
	{"l.root-servers.net", [4]byte{199, 7, 83, 42}},
	{"m.root-servers.net", [4]byte{202, 12, 27, 33}},
}

// NewDefaultList builds a fresh set of root servers with zeroed metrics,
// in hint order. Each resolver instance owns its own list so metrics
// from one resolver (or one test) never leak into another.
func NewDefaultList() []*Server {
	out := make([]*Server, len(hints))
	for i, h := range hints {
		out[i] = &Server{Hostname: h.hostname, Addr: h.addr}
	}
	return out
}
