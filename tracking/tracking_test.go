package tracking

import (
	"testing"
	"time"

	"github.com/tenta-browser/dns-recursor/rerrors"
	"github.com/tenta-browser/dns-recursor/wire"
)

func TestRegisterExistsRemove(t *testing.T) {
	tr := NewTracker()
	tr.Register(42, "example.com", wire.QTypeA, [4]byte{1, 1, 1, 1})

	txn, ok := tr.Exists(42)
	if !ok {
		t.Fatal("expected transaction 42 to exist")
	}
	if txn.Qname != "example.com" {
		t.Fatalf("unexpected qname %q", txn.Qname)
	}

	tr.Remove(42)
	if _, ok := tr.Exists(42); ok {
		t.Fatal("expected transaction 42 to be removed")
	}
}

func TestCleanupReapsExpired(t *testing.T) {
	tr := NewTracker()
	tr.Register(1, "old.example", wire.QTypeA, [4]byte{})
	tr.inFlight[1].SentAt = time.Now().Add(-time.Hour)
	tr.Register(2, "fresh.example", wire.QTypeA, [4]byte{})

	tr.Cleanup(2000)

	if _, ok := tr.Exists(1); ok {
		t.Fatal("expected stale transaction to be reaped")
	}
	if _, ok := tr.Exists(2); !ok {
		t.Fatal("expected fresh transaction to survive cleanup")
	}
}

func TestNextIDAvoidsCollision(t *testing.T) {
	tr := NewTracker()
	seen := make(map[uint16]bool)
	for i := 0; i < 100; i++ {
		id, err := tr.NextID()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[id] {
			t.Fatalf("NextID returned a duplicate id %d before registration", id)
		}
		seen[id] = true
		tr.Register(id, "x", wire.QTypeA, [4]byte{})
	}
}

// TestNextIDExhaustsAfterExactlyFiveAttempts pins down the collision
// loop's boundary: it must try exactly maxIDRetries times, not
// maxIDRetries+1, before giving up. randBytes is swapped for a stub
// that always returns id 7, which NextID always finds already taken,
// so every call is a forced collision.
func TestNextIDExhaustsAfterExactlyFiveAttempts(t *testing.T) {
	orig := randBytes
	defer func() { randBytes = orig }()

	attempts := 0
	randBytes = func(n int) ([]byte, error) {
		attempts++
		return []byte{0, 7}, nil
	}

	tr := NewTracker()
	tr.Register(7, "collide.example", wire.QTypeA, [4]byte{})

	id, err := tr.NextID()
	if err != rerrors.ErrTxnCollision {
		t.Fatalf("expected ErrTxnCollision, got id=%d err=%v", id, err)
	}
	if attempts != maxIDRetries {
		t.Fatalf("expected exactly %d attempts, got %d", maxIDRetries, attempts)
	}
}
