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
 * validate.go: Response validation against an in-flight transaction
 */

package security

import (
	"github.com/tenta-browser/dns-recursor/rerrors"
	"github.com/tenta-browser/dns-recursor/tracking"
	"github.com/tenta-browser/dns-recursor/wire"
)

// ValidateResponse checks a candidate upstream response against the
// transaction it's claimed to answer: the transaction id must be
// in-flight, the response must actually have the QR bit set, and the
// replying address/port must match where the query was sent. Any
// failure is a SecurityError -- the response is discarded, never acted
// on as if it were a genuine answer.
func ValidateResponse(pkt *wire.Packet, txn *tracking.Transaction, fromAddr [4]byte, fromPort uint16, expectedPort uint16) error {
	if txn == nil {
		return &rerrors.SecurityError{Reason: "no in-flight transaction for this id"}
	}
	if pkt.Header.ID != txn.ID {
		return &rerrors.SecurityError{Reason: "transaction id mismatch"}
	}
	if !pkt.Header.Response {
		return &rerrors.SecurityError{Reason: "QR bit not set on a purported response"}
	}
	if fromAddr != txn.ServerIP {
		return &rerrors.SecurityError{Reason: "response source address does not match query destination"}
	}
	if fromPort != expectedPort {
		return &rerrors.SecurityError{Reason: "response source port does not match query destination"}
	}
	return nil
}
