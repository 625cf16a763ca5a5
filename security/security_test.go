package security

import (
	"testing"
	"time"

	"github.com/tenta-browser/dns-recursor/tracking"
	"github.com/tenta-browser/dns-recursor/wire"
)

func TestRateLimiterAllowsUnderCapThenDenies(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)
	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("expected query %d to be allowed", i)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("expected the 4th query within the window to be denied")
	}
	if rl.TotalRateLimited() != 1 {
		t.Fatalf("expected 1 rate-limited query, got %d", rl.TotalRateLimited())
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, 50*time.Millisecond)
	if !rl.Allow("9.9.9.9") {
		t.Fatal("expected first query to be allowed")
	}
	if rl.Allow("9.9.9.9") {
		t.Fatal("expected second immediate query to be denied")
	}
	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("9.9.9.9") {
		t.Fatal("expected query to be allowed again once the window slides past it")
	}
}

func TestRateLimiterPerClientIsolation(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	if !rl.Allow("1.1.1.1") {
		t.Fatal("expected first client's query to be allowed")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("expected a different client's query to be allowed independently")
	}
	if rl.ClientCount() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", rl.ClientCount())
	}
}

func TestIdleSweepRemovesStaleClients(t *testing.T) {
	rl := NewRateLimiter(10, time.Second)
	rl.idleSweepInterval = time.Millisecond
	rl.idleThreshold = time.Millisecond
	rl.Allow("3.3.3.3")
	time.Sleep(5 * time.Millisecond)

	rl.sweepIdle()

	if rl.ClientCount() != 0 {
		t.Fatalf("expected idle client to be swept, got %d remaining", rl.ClientCount())
	}
}

func TestValidateResponseRejectsWrongTxnID(t *testing.T) {
	txn := &tracking.Transaction{ID: 42, ServerIP: [4]byte{8, 8, 8, 8}}
	pkt := &wire.Packet{Header: wire.Header{ID: 99, Response: true}}

	if err := ValidateResponse(pkt, txn, [4]byte{8, 8, 8, 8}, 53, 53); err == nil {
		t.Fatal("expected transaction id mismatch to be rejected")
	}
}

func TestValidateResponseRejectsMissingQRBit(t *testing.T) {
	txn := &tracking.Transaction{ID: 42, ServerIP: [4]byte{8, 8, 8, 8}}
	pkt := &wire.Packet{Header: wire.Header{ID: 42, Response: false}}

	if err := ValidateResponse(pkt, txn, [4]byte{8, 8, 8, 8}, 53, 53); err == nil {
		t.Fatal("expected a non-response packet to be rejected")
	}
}

func TestValidateResponseRejectsSourceMismatch(t *testing.T) {
	txn := &tracking.Transaction{ID: 42, ServerIP: [4]byte{8, 8, 8, 8}}
	pkt := &wire.Packet{Header: wire.Header{ID: 42, Response: true}}

	if err := ValidateResponse(pkt, txn, [4]byte{1, 2, 3, 4}, 53, 53); err == nil {
		t.Fatal("expected a source address mismatch to be rejected")
	}
	if err := ValidateResponse(pkt, txn, [4]byte{8, 8, 8, 8}, 9999, 53); err == nil {
		t.Fatal("expected a source port mismatch to be rejected")
	}
}

func TestValidateResponseAccepts(t *testing.T) {
	txn := &tracking.Transaction{ID: 42, ServerIP: [4]byte{8, 8, 8, 8}}
	pkt := &wire.Packet{Header: wire.Header{ID: 42, Response: true}}

	if err := ValidateResponse(pkt, txn, [4]byte{8, 8, 8, 8}, 53, 53); err != nil {
		t.Fatalf("expected a matching response to validate cleanly, got %v", err)
	}
}
