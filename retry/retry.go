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
 * retry.go: Exponential-backoff wrapper for fallible network operations
 */

// Package retry wraps a fallible operation (a single send/receive
// round trip to an upstream nameserver) with a bounded exponential
// backoff: only a timeout is worth retrying, everything else propagates
// immediately.
package retry

import (
	"time"

	"github.com/tenta-browser/dns-recursor/rerrors"
)

// Policy is a retry configuration. The zero value is not usable;
// construct with NewDefaultPolicy or fill in every field.
type Policy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
}

// NewDefaultPolicy returns the compiled-in retry policy: 3 tries, a
// 100ms initial delay, and a 2x backoff multiplier.
func NewDefaultPolicy() Policy {
	return Policy{
		MaxRetries:        3,
		InitialDelay:      100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

type timeouter interface {
	Timeout() bool
}

// Do runs fn, retrying on a timeout error with exponential backoff
// between attempts, for at most MaxRetries attempts in all. A non-timeout error is returned
// immediately without retrying. The last attempt's error is returned if
// every attempt times out.
func Do(policy Policy, fn func() error) error {
	delay := policy.InitialDelay

	var lastErr error
	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		to, ok := lastErr.(timeouter)
		if !ok || !to.Timeout() {
			return lastErr
		}

		if attempt == policy.MaxRetries-1 {
			break
		}

		time.Sleep(delay)
		delay = time.Duration(float64(delay) * policy.BackoffMultiplier)
	}
	if lastErr == nil {
		lastErr = &rerrors.TimeoutError{Op: "retry_exhausted"}
	}
	return lastErr
}
