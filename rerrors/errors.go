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
 * errors.go: Error taxonomy shared by every core package
 */

// Package rerrors collects the sentinel errors the resolver core can
// raise, grouped the way the original implementation split its
// exception hierarchy: wire/format, timeout, security, and resource
// errors never escape a single client query uncaught.
package rerrors

import "errors"

var (
	// ErrOutOfBounds signals a packet buffer read/write past position 512.
	ErrOutOfBounds = errors.New("wire: buffer position out of bounds")
	// ErrLabelTooLong signals a name label longer than 63 bytes.
	ErrLabelTooLong = errors.New("wire: label exceeds 63 bytes")
	// ErrJumpLimitExceeded signals a name compression pointer chain longer
	// than the five-jump safety cap.
	ErrJumpLimitExceeded = errors.New("wire: compression pointer jump limit exceeded")
	// ErrMalformedHeader signals a header or section count that doesn't
	// match the bytes actually present in the packet.
	ErrMalformedHeader = errors.New("wire: malformed header")

	// ErrTimeout is the sentinel every TimeoutError wraps.
	ErrTimeout = errors.New("resolver: operation timed out")
	// ErrSecurity is the sentinel every SecurityError wraps.
	ErrSecurity = errors.New("resolver: security validation failed")

	// ErrCacheFull signals the NS cache refused an insert at capacity.
	ErrCacheFull = errors.New("cache: at capacity")
	// ErrQueueClosed signals a worker tried to pop from a shut-down queue.
	ErrQueueClosed = errors.New("server: worker queue closed")
	// ErrTxnCollision signals the id generator exhausted its five retries.
	ErrTxnCollision = errors.New("tracking: transaction id collisions exhausted")
	// ErrMaxRecursionDepth signals the resolver's self-recursion for an
	// unglued NS name went deeper than allowed.
	ErrMaxRecursionDepth = errors.New("resolver: max recursion depth exceeded")
	// ErrNoAnswer signals every root server was exhausted without a
	// conclusive answer.
	ErrNoAnswer = errors.New("resolver: exhausted all root servers without a conclusive answer")
)

// WireError annotates a wire-format sentinel with the operation that failed.
type WireError struct {
	Op  string
	Err error
}

func (e *WireError) Error() string { return "wire: " + e.Op + ": " + e.Err.Error() }
func (e *WireError) Unwrap() error { return e.Err }

// TimeoutError marks a failed network operation as a timeout so callers
// can retry it; it satisfies the conventional net.Error Timeout() contract.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string { return "timeout: " + e.Op }
func (e *TimeoutError) Unwrap() error { return ErrTimeout }
func (e *TimeoutError) Timeout() bool { return true }

// SecurityError marks a response as having failed transaction-id binding,
// source-address validation, or the query/response bit check.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string { return "security: " + e.Reason }
func (e *SecurityError) Unwrap() error { return ErrSecurity }
