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
 * handler.go: UDP accept loop, rate-limit admission, query dispatch
 */

// Package server wires the core packages into a running UDP DNS
// service: an accept loop that receives client datagrams, admits them
// through the rate limiter, and hands them to a fixed worker pool that
// runs the resolver and writes the response back.
package server

import (
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/tevino/abool"

	"github.com/tenta-browser/dns-recursor/log"
	"github.com/tenta-browser/dns-recursor/resolver"
	"github.com/tenta-browser/dns-recursor/security"
	"github.com/tenta-browser/dns-recursor/wire"
)

// DefaultListenAddr is the service's compiled-in bind address.
const DefaultListenAddr = "0.0.0.0:2053"

// socketReadTimeout bounds each accept-loop recv so the loop can notice
// a shutdown request instead of blocking forever.
const socketReadTimeout = 500 * time.Millisecond

var logger = log.GetLogger("server")

// Handler owns the listening socket and every piece of shared state a
// worker needs to answer one query: the resolver, the rate limiter, and
// the worker pool itself.
type Handler struct {
	conn        *net.UDPConn
	resolver    *resolver.Resolver
	rateLimiter *security.RateLimiter
	pool        *WorkerPool
	shutdown    abool.AtomicBool
}

// New binds listenAddr and wires a handler around res, rl, and a worker
// pool of workerCount workers (0 = GOMAXPROCS).
func New(listenAddr string, res *resolver.Resolver, rl *security.RateLimiter, workerCount int) (*Handler, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", listenAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, err
	}

	h := &Handler{conn: conn, resolver: res, rateLimiter: rl}
	h.pool = NewWorkerPool(workerCount, 256, h.handleTask)
	return h, nil
}

// Addr returns the handler's actual bound address, useful when
// listenAddr was passed with a ":0" port for tests.
func (h *Handler) Addr() net.Addr { return h.conn.LocalAddr() }

// Serve launches the worker pool and runs the accept loop until Stop is
// called. It blocks until the accept loop exits.
func (h *Handler) Serve() {
	h.pool.Start()
	logger.Infof("listening on %s", h.conn.LocalAddr())

	buf := make([]byte, wire.BufSize)
	for !h.shutdown.IsSet() {
		if err := h.conn.SetReadDeadline(time.Now().Add(socketReadTimeout)); err != nil {
			logger.Errorf("failed to set read deadline: %v", err)
			continue
		}
		n, from, err := h.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if h.shutdown.IsSet() {
				break
			}
			logger.Errorf("read error: %v", err)
			continue
		}

		if !h.rateLimiter.Allow(from.IP.String()) {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		h.pool.Submit(task{data: data, from: from})
	}
}

// Stop signals the accept loop and every worker to exit, then closes
// the socket.
func (h *Handler) Stop() {
	h.shutdown.Set()
	_ = h.pool.Stop()
	_ = h.conn.Close()
}

// handleTask parses one client datagram, runs the resolver, and sends a
// response back to the original source. A wire-format error in the
// request or a resolver failure is answered with SERVFAIL (echoing the
// request's header id), and an empty question section with FORMERR --
// a single bad query never takes the worker down.
func (h *Handler) handleTask(tk task) {
	reqID := uuid.New().String()
	lg := logger.WithField("req", reqID)

	defer func() {
		if rcv := recover(); rcv != nil {
			lg.Errorf("panic while answering %s: %v", tk.from, rcv)
		}
	}()

	req, err := wire.FromBuffer(wire.NewBufferFrom(tk.data))
	if err != nil {
		lg.Warnf("malformed request from %s: %v", tk.from, err)
		req = wire.NewPacket()
		if hdrErr := req.Header.Read(wire.NewBufferFrom(tk.data)); hdrErr != nil {
			return
		}
	}

	resp := wire.NewPacket()
	resp.Header.ID = req.Header.ID
	resp.Header.RecursionDesired = true
	resp.Header.RecursionAvailable = true
	resp.Header.Response = true

	if err != nil {
		resp.Header.Rescode = wire.SERVFAIL
	} else if len(req.Questions) == 0 {
		resp.Header.Rescode = wire.FORMERR
	} else {
		q := req.Questions[0]
		resp.Questions = []wire.Question{q}

		result, err := h.resolver.Resolve(q.Name, q.Qtype)
		if err != nil {
			lg.Warnf("lookup of %s %d failed: %v", q.Name, q.Qtype, err)
			resp.Header.Rescode = wire.SERVFAIL
		} else {
			resp.Header.Rescode = result.Header.Rescode
			resp.Answers = result.Answers
			resp.Authorities = result.Authorities
			resp.Resources = result.Resources
		}
	}

	respBuf := wire.NewBuffer()
	if err := resp.Write(respBuf); err != nil {
		lg.Errorf("failed to serialize response to %s: %v", tk.from, err)
		return
	}
	if _, err := h.conn.WriteToUDP(respBuf.Bytes(), tk.from); err != nil {
		lg.Errorf("failed to send response to %s: %v", tk.from, err)
	}
}
