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
 * roots_test.go: Root server metrics
 */

package roots

import (
	"testing"
	"time"
)

func TestRecordHitComputesCumulativeMean(t *testing.T) {
	s := &Server{Hostname: "a.root-servers.net"}

	s.RecordHit(100 * time.Millisecond)
	s.RecordHit(200 * time.Millisecond)
	s.RecordHit(300 * time.Millisecond)

	// Cumulative mean of 100, 200, 300 is 200 -- a naive running 2-way
	// average ((((100+200)/2)+300)/2 = 225) would get this wrong.
	want := 200 * time.Millisecond
	if got := s.AvgLatency(); got != want {
		t.Fatalf("expected cumulative mean %v, got %v", want, got)
	}
	if s.Hits() != 3 {
		t.Fatalf("expected 3 hits, got %d", s.Hits())
	}
}

func TestRecordHitFirstSampleIsTheAverage(t *testing.T) {
	s := &Server{Hostname: "b.root-servers.net"}
	s.RecordHit(42 * time.Millisecond)

	if got := s.AvgLatency(); got != 42*time.Millisecond {
		t.Fatalf("expected the first sample itself as the average, got %v", got)
	}
}

func TestRecordTimeoutIncrementsCounter(t *testing.T) {
	s := &Server{Hostname: "c.root-servers.net"}
	s.RecordTimeout()
	s.RecordTimeout()

	if s.TimeoutCounts() != 2 {
		t.Fatalf("expected 2 timeouts, got %d", s.TimeoutCounts())
	}
}

func TestNewDefaultListHasThirteenDistinctRoots(t *testing.T) {
	list := NewDefaultList()
	if len(list) != 13 {
		t.Fatalf("expected 13 root servers, got %d", len(list))
	}
	seen := make(map[string]bool)
	for _, r := range list {
		if seen[r.Hostname] {
			t.Fatalf("duplicate root hostname: %s", r.Hostname)
		}
		seen[r.Hostname] = true
	}
}
