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
 * cache.go: Positive cache (bounded LRU) plus the shared group lock
 */

// Package cache implements the resolver's three-tiered TTL cache:
// positive answers (this file, a hand-rolled bounded LRU -- cache2go has
// no capacity-bounded eviction, and the LRU policy here is a graded
// invariant), NS referrals (ns.go, an exact-match radix tree probed
// label by label for the longest cached domain suffix) and negative
// responses (negative.go, backed by muesli/cache2go's TTL-scoped map).
// All three share one reader-writer lock, per the single-lock-group
// design this resolver was built to.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/tenta-browser/dns-recursor/log"
	"github.com/tenta-browser/dns-recursor/wire"
)

const (
	// DefaultMinTTL and DefaultMaxTTL bound every stored positive/NS TTL.
	DefaultMinTTL = 60
	DefaultMaxTTL = 86400

	// DefaultMaxEntries is the positive cache's bucket capacity.
	DefaultMaxEntries = 10000
	// DefaultMaxNSEntries is the NS cache's capacity.
	DefaultMaxNSEntries = 1000

	// negMinTTL and negMaxTTL bound every negative-cache entry.
	negMinTTL = 60
	negMaxTTL = 600

	// expireInterval is how often the background expirer sweeps all
	// three maps.
	expireInterval = 60 * time.Second
)

var logger = log.GetLogger("cache")

// positiveEntry is one cached record plus its lifecycle bookkeeping.
type positiveEntry struct {
	record     wire.Record
	insertedAt time.Time
	expiresAt  time.Time
	originalTTL uint32
	hitCount   uint64
}

func (e *positiveEntry) isExpired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

func (e *positiveEntry) remainingTTL(now time.Time) uint32 {
	if e.isExpired(now) {
		return 0
	}
	return uint32(e.expiresAt.Sub(now) / time.Second)
}

// Cache is the resolver's multi-tiered cache. Zero value is not usable;
// construct with New.
type Cache struct {
	mu sync.RWMutex

	positive map[string][]*positiveEntry
	lruList  *list.List               // front = most recently used
	lruIndex map[string]*list.Element // key -> node holding the key string

	ns  *nsCache
	neg *negativeCache

	minTTL, maxTTL         uint32
	maxEntries, maxNSEntries int

	counters *counters

	stopExpire chan struct{}
}

// New constructs a cache with the given bounds. Pass zero for any bound
// to use its compiled-in default.
func New(minTTL, maxTTL uint32, maxEntries, maxNSEntries int) *Cache {
	if minTTL == 0 {
		minTTL = DefaultMinTTL
	}
	if maxTTL == 0 {
		maxTTL = DefaultMaxTTL
	}
	if maxEntries == 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxNSEntries == 0 {
		maxNSEntries = DefaultMaxNSEntries
	}
	c := &Cache{
		positive:     make(map[string][]*positiveEntry),
		lruList:      list.New(),
		lruIndex:     make(map[string]*list.Element),
		ns:           newNSCache(maxNSEntries),
		neg:          newNegativeCache(),
		minTTL:       minTTL,
		maxTTL:       maxTTL,
		maxEntries:   maxEntries,
		maxNSEntries: maxNSEntries,
		counters:     newCounters(),
		stopExpire:   make(chan struct{}),
	}
	return c
}

func (c *Cache) enforceTTL(ttl uint32) uint32 {
	if ttl == 0 {
		return 0
	}
	if ttl < c.minTTL {
		return c.minTTL
	}
	if ttl > c.maxTTL {
		return c.maxTTL
	}
	return ttl
}

func recordTTL(r wire.Record) uint32 { return r.Header().TTL }

// withTTL returns a copy of r (via jinzhu/copier, so a cached entry's
// backing record is never mutated by a concurrent reader) with its TTL
// rewritten to the caller-supplied remaining lifetime.
func withTTL(r wire.Record, ttl uint32) wire.Record {
	switch v := r.(type) {
	case *wire.ARecord:
		cp := &wire.ARecord{}
		copyRecord(cp, v)
		cp.TTL = ttl
		return cp
	case *wire.AAAARecord:
		cp := &wire.AAAARecord{}
		copyRecord(cp, v)
		cp.TTL = ttl
		return cp
	case *wire.NSRecord:
		cp := &wire.NSRecord{}
		copyRecord(cp, v)
		cp.TTL = ttl
		return cp
	case *wire.CNAMERecord:
		cp := &wire.CNAMERecord{}
		copyRecord(cp, v)
		cp.TTL = ttl
		return cp
	case *wire.MXRecord:
		cp := &wire.MXRecord{}
		copyRecord(cp, v)
		cp.TTL = ttl
		return cp
	case *wire.UnknownRecord:
		cp := &wire.UnknownRecord{}
		copyRecord(cp, v)
		cp.TTL = ttl
		return cp
	default:
		return r
	}
}

// copyRecord copies src into dst, logging rather than silently
// swallowing a copier failure -- it should never fail given these
// fixed, compatible struct shapes, but a cached entry handed back with
// half its fields zeroed would be a worse outcome than a log line.
func copyRecord(dst, src interface{}) {
	if err := copier.Copy(dst, src); err != nil {
		logger.Errorf("failed to copy cached record: %v", err)
	}
}

// Lookup consults the negative cache first (a hit returns an empty,
// non-nil slice to signal "cached negative"), then the positive cache.
// A nil slice means a genuine miss. Expired entries encountered along
// the way are pruned; a positive hit rewrites every record's TTL to its
// remaining lifetime and promotes the bucket to the LRU front.
func (c *Cache) Lookup(qname string, qtype wire.QType) []wire.Record {
	key := makeKey(qname, qtype)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters.observeQname(key)

	if c.neg.lookup(key, now) {
		c.counters.negHits++
		return []wire.Record{}
	}

	entries, ok := c.positive[key]
	if !ok {
		c.counters.misses++
		return nil
	}

	entries = pruneExpired(entries, now, c.counters)
	if len(entries) == 0 {
		delete(c.positive, key)
		c.removeLRU(key)
		c.counters.misses++
		return nil
	}
	c.positive[key] = entries

	c.touchLRU(key)

	out := make([]wire.Record, 0, len(entries))
	for _, e := range entries {
		e.hitCount++
		out = append(out, withTTL(e.record, e.remainingTTL(now)))
	}
	c.counters.hits++
	return out
}

func pruneExpired(entries []*positiveEntry, now time.Time, ctr *counters) []*positiveEntry {
	kept := entries[:0]
	removed := 0
	for _, e := range entries {
		if e.isExpired(now) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed > 0 {
		ctr.expirations += uint64(removed)
	}
	return kept
}

// Insert clamps every record's TTL, drops zero-TTL records, evicts LRU
// tail buckets until there's room, then replaces any existing bucket
// at the key wholesale.
func (c *Cache) Insert(qname string, qtype wire.QType, records []wire.Record) {
	if len(records) == 0 {
		return
	}
	key := makeKey(qname, qtype)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]*positiveEntry, 0, len(records))
	for _, r := range records {
		ttl := c.enforceTTL(recordTTL(r))
		if ttl == 0 {
			continue
		}
		entries = append(entries, &positiveEntry{
			record:      r,
			insertedAt:  now,
			expiresAt:   now.Add(time.Duration(ttl) * time.Second),
			originalTTL: ttl,
		})
	}
	if len(entries) == 0 {
		return
	}

	_, existed := c.positive[key]
	for !existed && len(c.positive) >= c.maxEntries && c.lruList.Len() > 0 {
		c.evictLRUTail()
	}

	c.positive[key] = entries
	c.touchLRU(key)
	c.counters.inserts++
}

func (c *Cache) touchLRU(key string) {
	if el, ok := c.lruIndex[key]; ok {
		c.lruList.MoveToFront(el)
		return
	}
	el := c.lruList.PushFront(key)
	c.lruIndex[key] = el
}

func (c *Cache) removeLRU(key string) {
	if el, ok := c.lruIndex[key]; ok {
		c.lruList.Remove(el)
		delete(c.lruIndex, key)
	}
}

func (c *Cache) evictLRUTail() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	delete(c.positive, key)
	c.lruList.Remove(back)
	delete(c.lruIndex, key)
	c.counters.evictions++
}

// LookupNS returns the cached glue address for the longest cached
// suffix of qname, if any -- a lookup for "www.example.com." matches a
// cached "example.com." entry without the caller having to strip
// labels and retry itself. The match is always on a label boundary:
// a cached "ample.com." entry, say, never matches a query for
// "example.com.".
func (c *Cache) LookupNS(qname string) ([4]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr, ok := c.ns.lookup(qname)
	if ok {
		c.counters.nsHits++
	} else {
		c.counters.nsMisses++
	}
	return addr, ok
}

// InsertNS caches domain's nameserver address under a clamped TTL; it
// silently refuses the insert once the NS cache is at capacity.
func (c *Cache) InsertNS(domain string, addr [4]byte, ttl uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	enforced := c.enforceTTL(ttl)
	if enforced == 0 {
		return
	}
	if c.ns.insert(domain, addr, enforced) {
		c.counters.nsInserts++
	}
}

// InsertNegative records an NXDOMAIN/SERVFAIL result under a TTL clamped
// to [60, 600] seconds, regardless of the upstream-supplied value.
func (c *Cache) InsertNegative(qname string, qtype wire.QType, rescode wire.ResultCode, ttl uint32) {
	key := makeKey(qname, qtype)
	enforced := ttl
	if enforced < negMinTTL {
		enforced = negMinTTL
	}
	if enforced > negMaxTTL {
		enforced = negMaxTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.neg.insert(key, rescode, enforced)
	c.counters.negInserts++
}

// Stats returns a point-in-time snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters.snapshot(len(c.positive))
}

// StartExpirer launches the background goroutine that sweeps all three
// maps every 60 seconds, removing expired entries (mirroring LRU
// removal for the positive cache) and logging the remaining bucket
// count.
func (c *Cache) StartExpirer() {
	go func() {
		ticker := time.NewTicker(expireInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-c.stopExpire:
				return
			}
		}
	}()
}

// StopExpirer halts the background expirer goroutine. Safe to call at
// most once.
func (c *Cache) StopExpirer() {
	close(c.stopExpire)
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entries := range c.positive {
		pruned := pruneExpired(entries, now, c.counters)
		if len(pruned) == 0 {
			delete(c.positive, key)
			c.removeLRU(key)
			continue
		}
		c.positive[key] = pruned
	}

	c.ns.sweep(now)
	c.neg.sweep(now)

	logger.Debugf("expirer: %d positive buckets remain", len(c.positive))
}
