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
 * stats.go: Cache performance counters and distinct-qname cardinality
 */

package cache

import (
	"hash/fnv"

	"github.com/sasha-s/go-hll"
)

// Stats is a read-only snapshot of the counters Cache maintains. It is
// returned by value so callers can't mutate live counters.
type Stats struct {
	Hits, Misses, Inserts, Evictions, Expirations uint64
	NSHits, NSMisses, NSInserts                   uint64
	NegHits, NegInserts                           uint64
	CurrentEntries                                int
	DistinctQnames                                uint64
}

// counters holds the live, mutable counters plus an HLL sketch used to
// estimate the number of distinct query names seen, without the memory
// cost of tracking them all. hllPrecision=14 matches the precision the
// rest of the stack uses for its own cardinality counters.
const hllPrecision = 14

type counters struct {
	hits, misses, inserts, evictions, expirations uint64
	nsHits, nsMisses, nsInserts                   uint64
	negHits, negInserts                           uint64
	sketch                                        hll.HLL
}

func newCounters() *counters {
	size, err := hll.SizeByP(hllPrecision)
	if err != nil {
		// SizeByP only fails for out-of-range precision; hllPrecision is
		// a fixed, valid constant, so this is unreachable in practice.
		size = 1 << 16
	}
	return &counters{sketch: make(hll.HLL, size)}
}

func (c *counters) observeQname(qname string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(qname))
	c.sketch.Add(h.Sum64())
}

func (c *counters) snapshot(currentEntries int) Stats {
	return Stats{
		Hits:            c.hits,
		Misses:          c.misses,
		Inserts:         c.inserts,
		Evictions:       c.evictions,
		Expirations:     c.expirations,
		NSHits:          c.nsHits,
		NSMisses:        c.nsMisses,
		NSInserts:       c.nsInserts,
		NegHits:         c.negHits,
		NegInserts:      c.negInserts,
		CurrentEntries:  currentEntries,
		DistinctQnames:  c.sketch.EstimateCardinality(),
	}
}
