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
 * ns.go: Nameserver cache, an exact-match radix tree probed label by label
 */

package cache

import (
	"strings"
	"time"

	"github.com/armon/go-radix"
)

// nsEntry is one cached domain's nameserver glue address plus its
// expiry, the value stored at a radix tree node.
type nsEntry struct {
	addr      [4]byte
	expiresAt time.Time
}

// nsCache maps a domain to its cached nameserver glue address, keyed by
// the domain's byte-reversed form. A byte-level reversal does not make
// a raw prefix match label-safe -- reverse("example.com.") has
// reverse("ample.com.") as a byte prefix even though "ample.com." is
// not a suffix of "example.com." on label boundaries -- so lookup
// never does a single LongestPrefix probe. Instead it strips qname
// down to each successive parent domain and does an exact Get at each
// step, exactly as the original implementation's caller-side walk does
// against its NS map. It has no LRU policy of its own -- once at
// capacity it simply refuses new inserts, same as the original's NS
// map.
type nsCache struct {
	tree     *radix.Tree
	capacity int
}

func newNSCache(capacity int) *nsCache {
	return &nsCache{tree: radix.New(), capacity: capacity}
}

// reverseBytes reverses a domain name byte-for-byte. Domain names are
// ASCII, so this is safe at the byte level; it exists purely so equal
// keys land at the same radix node regardless of direction -- it is
// NOT relied upon for any prefix-matching property.
func reverseBytes(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// suffixDomains returns qname itself followed by each successive
// parent domain, all fully qualified (trailing "."): for
// "www.example.com." it returns ["www.example.com.", "example.com.",
// "com."] -- the exact probe order a longest-cached-suffix lookup
// needs, stopping short of the bare root.
func suffixDomains(qname string) []string {
	trimmed := strings.TrimSuffix(qname, ".")
	if trimmed == "" {
		return nil
	}
	labels := strings.Split(trimmed, ".")
	out := make([]string, 0, len(labels))
	for i := range labels {
		out = append(out, strings.Join(labels[i:], ".")+".")
	}
	return out
}

// lookup returns the cached address for the longest cached suffix of
// qname, or false if nothing matches or every match found along the
// way has expired.
func (n *nsCache) lookup(qname string) ([4]byte, bool) {
	now := time.Now()
	for _, candidate := range suffixDomains(qname) {
		key := reverseBytes(candidate)
		v, ok := n.tree.Get(key)
		if !ok {
			continue
		}
		entry := v.(*nsEntry)
		if now.After(entry.expiresAt) {
			n.tree.Delete(key)
			continue
		}
		return entry.addr, true
	}
	return [4]byte{}, false
}

// insert caches domain -> addr for ttl seconds, keyed on its fully
// qualified form (a trailing "." is added if missing, matching the
// forms lookup probes). It refuses the insert (returning false) once
// the tree is at capacity, unless domain is already a key (a refresh,
// not a new entry).
func (n *nsCache) insert(domain string, addr [4]byte, ttl uint32) bool {
	if !strings.HasSuffix(domain, ".") {
		domain += "."
	}
	key := reverseBytes(domain)
	if _, existed := n.tree.Get(key); !existed && n.tree.Len() >= n.capacity {
		return false
	}
	n.tree.Insert(key, &nsEntry{addr: addr, expiresAt: time.Now().Add(time.Duration(ttl) * time.Second)})
	return true
}

// sweep removes every entry whose TTL has lapsed since the last sweep.
// Expired keys are collected during the walk and deleted afterward --
// mutating a radix tree while walking it is not safe.
func (n *nsCache) sweep(now time.Time) {
	var expired []string
	n.tree.Walk(func(k string, v interface{}) bool {
		if e, ok := v.(*nsEntry); ok && now.After(e.expiresAt) {
			expired = append(expired, k)
		}
		return false
	})
	for _, k := range expired {
		n.tree.Delete(k)
	}
}
