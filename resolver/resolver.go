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
 * resolver.go: Iterative recursive resolution, root server by root server
 */

// Package resolver implements the iterative recursive walk: given a
// question, try the cache, then a cached NS hint, then every compiled-in
// root server in turn, following referrals (and, when a referred NS
// lacks a glue record, a bounded self-recursion to resolve it) until an
// answer, an NXDOMAIN, a SERVFAIL, or every root is exhausted.
package resolver

import (
	"time"

	"github.com/tenta-browser/dns-recursor/cache"
	"github.com/tenta-browser/dns-recursor/log"
	"github.com/tenta-browser/dns-recursor/retry"
	"github.com/tenta-browser/dns-recursor/rerrors"
	"github.com/tenta-browser/dns-recursor/roots"
	"github.com/tenta-browser/dns-recursor/security"
	"github.com/tenta-browser/dns-recursor/tracking"
	"github.com/tenta-browser/dns-recursor/wire"
)

const (
	// defaultRecvTimeout and defaultSendTimeout bound a single UDP
	// round trip to an upstream nameserver.
	defaultRecvTimeout = 2000 * time.Millisecond
	defaultSendTimeout = 1000 * time.Millisecond

	// maxDepth bounds the self-recursion used to resolve an unglued NS
	// name; it is a safety invariant against a referral chain that
	// points back into itself.
	maxDepth = 16

	// negativeTTL is the TTL recorded against an NXDOMAIN/SERVFAIL seen
	// directly from an upstream server, before the cache clamps it into
	// [60, 600] seconds.
	negativeTTL = 300

	dnsPort = 53
)

var logger = log.GetLogger("resolver")

// Resolver holds everything one iterative resolution walk needs: the
// shared cache, the transaction tracker, the transport used to reach
// upstream servers, the retry policy, and this resolver's own root
// server list (never shared across resolver instances, so metrics from
// one never bleed into another).
type Resolver struct {
	cache       *cache.Cache
	tracker     *tracking.Tracker
	transport   Transport
	retryPolicy retry.Policy
	roots       []*roots.Server

	recvTimeout time.Duration
	sendTimeout time.Duration
	maxDepth    int
}

// New constructs a resolver from its component parts, for tests and for
// callers that want to share a cache/tracker across resolvers.
func New(c *cache.Cache, tr *tracking.Tracker, transport Transport) *Resolver {
	return &Resolver{
		cache:       c,
		tracker:     tr,
		transport:   transport,
		retryPolicy: retry.NewDefaultPolicy(),
		roots:       roots.NewDefaultList(),
		recvTimeout: defaultRecvTimeout,
		sendTimeout: defaultSendTimeout,
		maxDepth:    maxDepth,
	}
}

// NewDefault wires the production stack: a fresh cache, transaction
// tracker, and UDP transport.
func NewDefault() *Resolver {
	return New(cache.New(0, 0, 0, 0), tracking.NewTracker(), NewUDPTransport())
}

// SetRetryPolicy overrides the compiled-in retry policy, e.g. from a
// loaded config file.
func (r *Resolver) SetRetryPolicy(p retry.Policy) { r.retryPolicy = p }

// SetTimeouts overrides the compiled-in per-query recv/send timeouts.
func (r *Resolver) SetTimeouts(recvTimeout, sendTimeout time.Duration) {
	r.recvTimeout = recvTimeout
	r.sendTimeout = sendTimeout
}

// Roots exposes this resolver's root server list (and their live
// metrics) for a stats endpoint to report.
func (r *Resolver) Roots() []*roots.Server { return r.roots }

// Cache exposes the resolver's cache for a stats endpoint to report.
func (r *Resolver) Cache() *cache.Cache { return r.cache }

// Tracker exposes the transaction tracker so a background goroutine can
// periodically reap timed-out transactions.
func (r *Resolver) Tracker() *tracking.Tracker { return r.tracker }

// query sends a single logical request to serverIP:serverPort and
// returns its validated response, retrying on timeout per r.retryPolicy.
// Each individual attempt -- not each logical query -- draws a fresh
// transaction id: a retried attempt is a brand new wire exchange, bound
// to the in-flight table and removed from it independently, exactly as
// the original implementation's per-attempt lookup() call does.
func (r *Resolver) query(serverIP [4]byte, serverPort uint16, qname string, qtype wire.QType) (*wire.Packet, error) {
	var result *wire.Packet

	err := retry.Do(r.retryPolicy, func() error {
		id, err := r.tracker.NextID()
		if err != nil {
			return err
		}
		r.tracker.Register(id, qname, qtype, serverIP)

		req := wire.NewPacket()
		req.Header.ID = id
		req.Header.RecursionDesired = true
		req.Questions = []wire.Question{{Name: qname, Qtype: qtype}}

		reqBuf := wire.NewBuffer()
		if err := req.Write(reqBuf); err != nil {
			return err
		}

		respBytes, fromAddr, fromPort, err := r.transport.Exchange(serverIP, serverPort, reqBuf.Bytes(), r.recvTimeout, r.sendTimeout)
		if err != nil {
			return err
		}

		respPkt, err := wire.FromBuffer(wire.NewBufferFrom(respBytes))
		if err != nil {
			return err
		}

		txn, _ := r.tracker.Exists(id)
		if err := security.ValidateResponse(respPkt, txn, fromAddr, fromPort, serverPort); err != nil {
			return err
		}

		r.tracker.Remove(id)
		result = respPkt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Resolve answers a single question from depth 0.
func (r *Resolver) Resolve(qname string, qtype wire.QType) (*wire.Packet, error) {
	return r.resolve(qname, qtype, 0)
}

func (r *Resolver) resolve(qname string, qtype wire.QType, depth int) (*wire.Packet, error) {
	if depth > r.maxDepth {
		return nil, rerrors.ErrMaxRecursionDepth
	}

	if cached := r.cache.Lookup(qname, qtype); cached != nil {
		resp := wire.NewPacket()
		if len(cached) == 0 {
			resp.Header.Rescode = wire.NXDOMAIN
		} else {
			resp.Header.Rescode = wire.NOERROR
			resp.Answers = cached
		}
		return resp, nil
	}

	ns, haveNS := r.cache.LookupNS(qname)

	prevTimedOut := false

	for _, root := range r.roots {
		if !haveNS || prevTimedOut {
			ns = root.Addr
			haveNS = true
		}

		for {
			start := time.Now()
			resp, err := r.query(ns, dnsPort, qname, qtype)
			if err != nil {
				if isTimeout(err) {
					root.RecordTimeout()
					logger.Warnf("root server %s timed out resolving %s", root.Hostname, qname)
					prevTimedOut = true
					break
				}
				return nil, err
			}
			root.RecordHit(time.Since(start))

			if len(resp.Answers) > 0 && resp.Header.Rescode == wire.NOERROR {
				r.cache.Insert(qname, qtype, resp.Answers)
				return resp, nil
			}

			if resp.Header.Rescode == wire.NXDOMAIN {
				r.cache.InsertNegative(qname, qtype, wire.NXDOMAIN, negativeTTL)
				return resp, nil
			}
			if resp.Header.Rescode == wire.SERVFAIL {
				r.cache.InsertNegative(qname, qtype, wire.SERVFAIL, negativeTTL)
				return resp, nil
			}

			for _, referral := range resp.GetNS(qname) {
				if glue, ok := resp.GlueA(referral.Host); ok {
					r.cache.InsertNS(referral.Domain, glue.Addr, glue.TTL)
				}
			}

			if resolved, ok := resp.GetResolvedNS(qname); ok {
				ns = resolved
				continue
			}

			unresolved, ok := resp.GetUnresolvedNS(qname)
			if !ok {
				return resp, nil
			}

			nsResp, err := r.resolve(unresolved, wire.QTypeA, depth+1)
			if err != nil {
				return nil, err
			}
			newNS, ok := nsResp.GetRandomA()
			if !ok {
				return resp, nil
			}
			ns = newNS
		}
	}

	return nil, rerrors.ErrNoAnswer
}

func isTimeout(err error) bool {
	to, ok := err.(interface{ Timeout() bool })
	return ok && to.Timeout()
}
