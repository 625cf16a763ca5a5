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
 * negative.go: Negative-response cache, backed by cache2go's TTL-scoped table
 */

package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/muesli/cache2go"

	"github.com/tenta-browser/dns-recursor/wire"
)

// negativeCache remembers NXDOMAIN/SERVFAIL results so repeated queries
// for a known-bad name don't re-walk the hierarchy within the TTL.
type negativeCache struct {
	table *cache2go.CacheTable
}

var negTableSeq int64

func newNegativeCache() *negativeCache {
	seq := atomic.AddInt64(&negTableSeq, 1)
	return &negativeCache{table: cache2go.Cache(fmt.Sprintf("neg-%d", seq))}
}

// lookup reports whether key has a live negative-cache entry.
func (n *negativeCache) lookup(key string, _ time.Time) bool {
	_, err := n.table.Value(key)
	return err == nil
}

func (n *negativeCache) insert(key string, rescode wire.ResultCode, ttl uint32) {
	n.table.Add(key, time.Duration(ttl)*time.Second, rescode)
}

// sweep is a no-op: cache2go expires items against their own per-item
// lifespan on its internal timer.
func (n *negativeCache) sweep(_ time.Time) {}
