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
 * tracking.go: Per-query transaction tracker and id allocation
 */

// Package tracking binds outbound queries to their eventual responses:
// a Tracker hands out unique 16-bit transaction ids and remembers, for
// each in-flight id, which question and which upstream server it was
// sent to, so a later response can be validated against it.
package tracking

import (
	"sync"
	"time"

	"github.com/leonelquinteros/gorand"

	"github.com/tenta-browser/dns-recursor/rerrors"
	"github.com/tenta-browser/dns-recursor/wire"
)

// maxIDRetries bounds the id generator's collision-avoidance loop to 5
// attempts total; the fifth collision in a row is treated as
// exhausted, not retried forever.
const maxIDRetries = 5

// Transaction records what an in-flight query was for and when it was
// sent, so a timeout expirer can reap it and a response can be checked
// against it.
type Transaction struct {
	ID       uint16
	Qname    string
	Qtype    wire.QType
	ServerIP [4]byte
	SentAt   time.Time
}

func (t *Transaction) isExpired(now time.Time, timeout time.Duration) bool {
	return now.Sub(t.SentAt) > timeout
}

// Tracker is the in-flight transaction table. All accesses hold a
// single mutex, matching the original implementation's single-lock
// design for this small, hot structure.
type Tracker struct {
	mu       sync.Mutex
	inFlight map[uint16]*Transaction
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{inFlight: make(map[uint16]*Transaction)}
}

// NextID draws a uniform-random 16-bit id that isn't already in use,
// trying up to maxIDRetries times total. The fifth collision in a row
// is fatal, per the resource-exhaustion contract this tracker is built
// to.
func (t *Tracker) NextID() (uint16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 0; i < maxIDRetries; i++ {
		id, err := randomUint16()
		if err != nil {
			return 0, &rerrors.WireError{Op: "next_id", Err: err}
		}
		if _, taken := t.inFlight[id]; !taken {
			return id, nil
		}
	}
	return 0, rerrors.ErrTxnCollision
}

// randBytes is the id generator's entropy source, a package var so
// tests can substitute a deterministic stand-in instead of real
// randomness.
var randBytes = gorand.GetBytes

func randomUint16() (uint16, error) {
	b, err := randBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// Register records a new in-flight transaction.
func (t *Tracker) Register(id uint16, qname string, qtype wire.QType, server [4]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight[id] = &Transaction{
		ID:       id,
		Qname:    qname,
		Qtype:    qtype,
		ServerIP: server,
		SentAt:   time.Now(),
	}
}

// Exists reports whether id currently names an in-flight transaction,
// and returns it if so.
func (t *Tracker) Exists(id uint16) (*Transaction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	txn, ok := t.inFlight[id]
	return txn, ok
}

// Remove drops a transaction, e.g. once its response has been validated.
func (t *Tracker) Remove(id uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, id)
}

// Cleanup reaps every transaction older than timeoutMs milliseconds.
func (t *Tracker) Cleanup(timeoutMs uint32) {
	timeout := time.Duration(timeoutMs) * time.Millisecond
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, txn := range t.inFlight {
		if txn.isExpired(now, timeout) {
			delete(t.inFlight, id)
		}
	}
}

// Len reports the number of in-flight transactions; primarily for tests
// and stats reporting.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inFlight)
}
