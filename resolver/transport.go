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
 * transport.go: UDP round trip to a single upstream nameserver
 */

package resolver

import (
	"net"
	"time"

	"github.com/tenta-browser/dns-recursor/rerrors"
)

// Transport sends one DNS request datagram to a server and waits for
// the reply. Implementations own the socket for the lifetime of a
// single Exchange call, mirroring the original's per-query bind/
// sendto/recvfrom/close pattern -- a resolver never keeps a long-lived
// socket open to an upstream.
type Transport interface {
	Exchange(serverAddr [4]byte, serverPort uint16, req []byte, recvTimeout, sendTimeout time.Duration) (resp []byte, fromAddr [4]byte, fromPort uint16, err error)
}

// UDPTransport is the production Transport: a fresh UDP socket per
// call, bound to an OS-assigned ephemeral port. The original
// implementation hardcoded local port 43210; this resolver lets the
// kernel pick one instead, so concurrent queries never collide on a
// single fixed source port.
type UDPTransport struct{}

// NewUDPTransport returns the default UDP transport.
func NewUDPTransport() *UDPTransport { return &UDPTransport{} }

// Exchange binds an ephemeral UDP socket, sends req to serverAddr:serverPort,
// and waits up to recvTimeout for a single reply datagram.
func (t *UDPTransport) Exchange(serverAddr [4]byte, serverPort uint16, req []byte, recvTimeout, sendTimeout time.Duration) ([]byte, [4]byte, uint16, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, [4]byte{}, 0, &rerrors.WireError{Op: "listen_udp", Err: err}
	}
	defer conn.Close()

	dst := &net.UDPAddr{IP: net.IPv4(serverAddr[0], serverAddr[1], serverAddr[2], serverAddr[3]), Port: int(serverPort)}

	if sendTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
			return nil, [4]byte{}, 0, &rerrors.WireError{Op: "set_write_deadline", Err: err}
		}
	}
	if _, err := conn.WriteToUDP(req, dst); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, [4]byte{}, 0, &rerrors.TimeoutError{Op: "send"}
		}
		return nil, [4]byte{}, 0, &rerrors.WireError{Op: "send", Err: err}
	}

	if recvTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(recvTimeout)); err != nil {
			return nil, [4]byte{}, 0, &rerrors.WireError{Op: "set_read_deadline", Err: err}
		}
	}
	buf := make([]byte, 512)
	n, from, err := conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, [4]byte{}, 0, &rerrors.TimeoutError{Op: "recv"}
		}
		return nil, [4]byte{}, 0, &rerrors.WireError{Op: "recv", Err: err}
	}

	var fromAddr [4]byte
	copy(fromAddr[:], from.IP.To4())
	return buf[:n], fromAddr, uint16(from.Port), nil
}
