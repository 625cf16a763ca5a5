package server

import (
	"net"
	"testing"
	"time"

	"github.com/tenta-browser/dns-recursor/cache"
	"github.com/tenta-browser/dns-recursor/resolver"
	"github.com/tenta-browser/dns-recursor/security"
	"github.com/tenta-browser/dns-recursor/tracking"
	"github.com/tenta-browser/dns-recursor/wire"
)

// panicTransport fails the test if the resolver ever tries to reach the
// network -- every scenario here is meant to be served from cache.
type panicTransport struct{ t *testing.T }

func (p panicTransport) Exchange(serverAddr [4]byte, serverPort uint16, req []byte, recvTimeout, sendTimeout time.Duration) ([]byte, [4]byte, uint16, error) {
	p.t.Fatal("transport should not be reached")
	return nil, [4]byte{}, 0, nil
}

func startTestHandler(t *testing.T) (*Handler, func()) {
	t.Helper()
	c := cache.New(0, 0, 0, 0)
	c.Insert("example.com.", wire.QTypeA, []wire.Record{
		&wire.ARecord{RecordHeader: wire.RecordHeader{Domain: "example.com.", TTL: 300}, Addr: [4]byte{7, 7, 7, 7}},
	})
	res := resolver.New(c, tracking.NewTracker(), panicTransport{t: t})
	rl := security.NewRateLimiter(0, 0)

	h, err := New("127.0.0.1:0", res, rl, 1)
	if err != nil {
		t.Fatalf("failed to start handler: %v", err)
	}
	go h.Serve()
	// give the accept loop a moment to enter its recv loop
	time.Sleep(10 * time.Millisecond)
	return h, func() { h.Stop() }
}

func sendQuery(t *testing.T, addr net.Addr, pkt *wire.Packet) *wire.Packet {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, addr.(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	buf := wire.NewBuffer()
	if err := pkt.Write(buf); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := conn.Write(buf.Bytes()); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline failed: %v", err)
	}
	respBytes := make([]byte, wire.BufSize)
	n, err := conn.Read(respBytes)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	resp, err := wire.FromBuffer(wire.NewBufferFrom(respBytes[:n]))
	if err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	return resp
}

func TestHandlerAnswersFromCache(t *testing.T) {
	h, stop := startTestHandler(t)
	defer stop()

	req := wire.NewPacket()
	req.Header.ID = 4242
	req.Header.RecursionDesired = true
	req.Questions = []wire.Question{{Name: "example.com.", Qtype: wire.QTypeA}}

	resp := sendQuery(t, h.Addr(), req)
	if resp.Header.ID != 4242 {
		t.Fatalf("expected echoed id 4242, got %d", resp.Header.ID)
	}
	if !resp.Header.Response || !resp.Header.RecursionAvailable {
		t.Fatal("expected response and recursion-available bits set")
	}
	if resp.Header.Rescode != wire.NOERROR {
		t.Fatalf("expected NOERROR, got %s", resp.Header.Rescode)
	}
	if len(resp.Answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(resp.Answers))
	}
}

func TestHandlerRejectsEmptyQuestionSection(t *testing.T) {
	h, stop := startTestHandler(t)
	defer stop()

	req := wire.NewPacket()
	req.Header.ID = 7

	resp := sendQuery(t, h.Addr(), req)
	if resp.Header.Rescode != wire.FORMERR {
		t.Fatalf("expected FORMERR for an empty question section, got %s", resp.Header.Rescode)
	}
}

func TestHandlerDeniesRateLimitedClientSilently(t *testing.T) {
	c := cache.New(0, 0, 0, 0)
	c.Insert("example.com.", wire.QTypeA, []wire.Record{
		&wire.ARecord{RecordHeader: wire.RecordHeader{Domain: "example.com.", TTL: 300}, Addr: [4]byte{7, 7, 7, 7}},
	})
	res := resolver.New(c, tracking.NewTracker(), panicTransport{t: t})
	rl := security.NewRateLimiter(0, 0)

	h, err := New("127.0.0.1:0", res, rl, 1)
	if err != nil {
		t.Fatalf("failed to start handler: %v", err)
	}
	go h.Serve()
	time.Sleep(10 * time.Millisecond)
	defer h.Stop()

	conn, err := net.DialUDP("udp4", nil, h.Addr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	req := wire.NewPacket()
	req.Header.ID = 1
	req.Questions = []wire.Question{{Name: "example.com.", Qtype: wire.QTypeA}}
	buf := wire.NewBuffer()
	if err := req.Write(buf); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	// Exhaust this client's window with a flood, then confirm the next
	// query gets no response at all within a short deadline.
	for i := 0; i < security.DefaultMaxQueriesPerWindow+5; i++ {
		if _, err := conn.Write(buf.Bytes()); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}

	if err := conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond)); err != nil {
		t.Fatalf("set deadline failed: %v", err)
	}
	drained := 0
	respBytes := make([]byte, wire.BufSize)
	for {
		if _, err := conn.Read(respBytes); err != nil {
			break
		}
		drained++
	}
	if drained > security.DefaultMaxQueriesPerWindow {
		t.Fatalf("expected at most %d responses within the window, got %d", security.DefaultMaxQueriesPerWindow, drained)
	}
}
