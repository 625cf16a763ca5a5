package cache

import (
	"testing"
	"time"

	"github.com/tenta-browser/dns-recursor/wire"
)

func aRecord(domain string, ttl uint32) wire.Record {
	return &wire.ARecord{
		RecordHeader: wire.RecordHeader{Domain: domain, TTL: ttl},
		Addr:         [4]byte{1, 2, 3, 4},
	}
}

func TestInsertClampsTTL(t *testing.T) {
	c := New(60, 86400, 0, 0)
	c.Insert("clamped.example", wire.QTypeA, []wire.Record{aRecord("clamped.example", 5)})

	got := c.Lookup("clamped.example", wire.QTypeA)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	ttl := got[0].Header().TTL
	if ttl < 59 || ttl > 60 {
		t.Fatalf("expected clamped ttl around 60, got %d", ttl)
	}
}

func TestInsertDropsZeroTTL(t *testing.T) {
	c := New(0, 0, 0, 0)
	c.Insert("zero.example", wire.QTypeA, []wire.Record{aRecord("zero.example", 0)})

	if got := c.Lookup("zero.example", wire.QTypeA); got != nil {
		t.Fatalf("expected zero-ttl record to be dropped, got %v", got)
	}
}

func TestLookupMissVsHit(t *testing.T) {
	c := New(0, 0, 0, 0)
	if got := c.Lookup("missing.example", wire.QTypeA); got != nil {
		t.Fatalf("expected nil on miss, got %v", got)
	}

	c.Insert("hit.example", wire.QTypeA, []wire.Record{aRecord("hit.example", 120)})
	got := c.Lookup("hit.example", wire.QTypeA)
	if len(got) != 1 {
		t.Fatalf("expected a hit, got %v", got)
	}
	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestLRUEvictionAtCapacity(t *testing.T) {
	c := New(0, 0, 2, 0)
	c.Insert("a.example", wire.QTypeA, []wire.Record{aRecord("a.example", 120)})
	c.Insert("b.example", wire.QTypeA, []wire.Record{aRecord("b.example", 120)})
	// touch "a" so it's most-recently-used, making "b" the eviction target
	c.Lookup("a.example", wire.QTypeA)
	c.Insert("c.example", wire.QTypeA, []wire.Record{aRecord("c.example", 120)})

	if got := c.Lookup("b.example", wire.QTypeA); got != nil {
		t.Fatalf("expected b.example to be evicted, got %v", got)
	}
	if got := c.Lookup("a.example", wire.QTypeA); got == nil {
		t.Fatal("expected a.example to survive eviction")
	}
	if got := c.Lookup("c.example", wire.QTypeA); got == nil {
		t.Fatal("expected c.example to be present")
	}
}

func TestExpiryOnLookup(t *testing.T) {
	c := New(0, 0, 0, 0)
	c.Insert("shortlived.example", wire.QTypeA, []wire.Record{aRecord("shortlived.example", 60)})

	entries := c.positive[makeKey("shortlived.example", wire.QTypeA)]
	for _, e := range entries {
		e.expiresAt = time.Now().Add(-time.Second)
	}

	if got := c.Lookup("shortlived.example", wire.QTypeA); got != nil {
		t.Fatalf("expected expired entry to be a miss, got %v", got)
	}
	if c.Stats().Expirations == 0 {
		t.Fatal("expected expirations counter to be non-zero")
	}
}

func TestNegativeCaching(t *testing.T) {
	c := New(0, 0, 0, 0)
	c.InsertNegative("nx.example", wire.QTypeA, wire.NXDOMAIN, 300)

	got := c.Lookup("nx.example", wire.QTypeA)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected an empty non-nil slice for cached negative, got %v", got)
	}
}

func TestNegativeCacheTTLClampedTo600(t *testing.T) {
	c := New(0, 0, 0, 0)
	// requesting an absurdly long TTL must still clamp to 600s max
	c.InsertNegative("clamp-high.example", wire.QTypeA, wire.SERVFAIL, 10000)
	c.InsertNegative("clamp-low.example", wire.QTypeA, wire.SERVFAIL, 1)

	if got := c.Lookup("clamp-high.example", wire.QTypeA); got == nil {
		t.Fatal("expected negative entry to be present")
	}
	if got := c.Lookup("clamp-low.example", wire.QTypeA); got == nil {
		t.Fatal("expected negative entry clamped to the 60s floor to be present")
	}

	high, err := c.neg.table.Value(makeKey("clamp-high.example", wire.QTypeA))
	if err != nil || high.LifeSpan() != 600*time.Second {
		t.Fatalf("expected the high TTL to be clamped to 600s, got %v (err %v)", high, err)
	}
	low, err := c.neg.table.Value(makeKey("clamp-low.example", wire.QTypeA))
	if err != nil || low.LifeSpan() != 60*time.Second {
		t.Fatalf("expected the low TTL to be clamped to 60s, got %v (err %v)", low, err)
	}
}

func TestNSCacheRefusesAtCapacity(t *testing.T) {
	c := New(0, 0, 0, 1)
	c.InsertNS("ns1.example.com", [4]byte{1, 1, 1, 1}, 3600)
	c.InsertNS("ns2.example.com", [4]byte{2, 2, 2, 2}, 3600)

	if _, ok := c.LookupNS("ns1.example.com"); !ok {
		t.Fatal("expected first NS insert to succeed")
	}
	if _, ok := c.LookupNS("ns2.example.com"); ok {
		t.Fatal("expected second NS insert to be refused at capacity")
	}
}

func TestNSCacheMatchesLongestSuffix(t *testing.T) {
	c := New(0, 0, 0, 0)
	c.InsertNS("example.com.", [4]byte{1, 1, 1, 1}, 3600)

	addr, ok := c.LookupNS("www.example.com.")
	if !ok {
		t.Fatal("expected a subdomain lookup to match the cached parent NS entry")
	}
	if addr != [4]byte{1, 1, 1, 1} {
		t.Fatalf("unexpected NS address: %v", addr)
	}

	if _, ok := c.LookupNS("example.net."); ok {
		t.Fatal("expected an unrelated domain not to match")
	}
}

func TestNSCacheDoesNotMatchOnByteBoundaryOnly(t *testing.T) {
	c := New(0, 0, 0, 0)
	// "ample.com." is a byte-suffix of "example.com." but not a
	// label-suffix of it (stripping it from "example.com." leaves "ex",
	// not "" or something ending in "."), so it must never match.
	c.InsertNS("ample.com.", [4]byte{2, 2, 2, 2}, 3600)

	if _, ok := c.LookupNS("example.com."); ok {
		t.Fatal("expected a byte-suffix-only match not to be treated as a cache hit")
	}
}

func TestReplaceExistingBucket(t *testing.T) {
	c := New(0, 0, 0, 0)
	c.Insert("replace.example", wire.QTypeA, []wire.Record{aRecord("replace.example", 120)})
	c.Insert("replace.example", wire.QTypeA, []wire.Record{
		&wire.ARecord{RecordHeader: wire.RecordHeader{Domain: "replace.example", TTL: 300}, Addr: [4]byte{9, 9, 9, 9}},
	})

	got := c.Lookup("replace.example", wire.QTypeA)
	if len(got) != 1 {
		t.Fatalf("expected the bucket to be replaced wholesale, got %d entries", len(got))
	}
	ar := got[0].(*wire.ARecord)
	if ar.Addr != [4]byte{9, 9, 9, 9} {
		t.Fatalf("expected the replacement record, got %v", ar.Addr)
	}
}
