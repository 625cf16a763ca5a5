package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tenta-browser/dns-recursor/cache"
	"github.com/tenta-browser/dns-recursor/security"
)

func TestNewDebugServerRejectsNonLoopback(t *testing.T) {
	sink := NewDefaultSink(cache.New(0, 0, 0, 0), security.NewRateLimiter(0, 0), nil)
	if _, err := NewDebugServer("93.184.216.34:8053", sink); err == nil {
		t.Fatal("expected a non-loopback listen address to be rejected")
	}
}

func TestNewDebugServerAcceptsLoopback(t *testing.T) {
	sink := NewDefaultSink(cache.New(0, 0, 0, 0), security.NewRateLimiter(0, 0), nil)
	ds, err := NewDebugServer("127.0.0.1:0", sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds == nil {
		t.Fatal("expected a non-nil debug server")
	}
}

func TestDebugServerServesStatsJSON(t *testing.T) {
	c := cache.New(0, 0, 0, 0)
	sink := NewDefaultSink(c, security.NewRateLimiter(0, 0), nil)

	ds, err := NewDebugServer("127.0.0.1:0", sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ds.Start()
	defer ds.Stop()
	time.Sleep(10 * time.Millisecond)

	// The server was bound with a ":0" port and net/http.Server doesn't
	// expose the resolved address, so exercise the handler directly
	// instead of dialing a real socket.
	req := httptest.NewRequest(http.MethodGet, "/debug/stats", nil)
	rec := httptest.NewRecorder()
	ds.serveStats(rec, req)

	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to decode stats JSON: %v", err)
	}
}
