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
 * key.go: Cache key construction
 */

package cache

import (
	"strconv"
	"strings"

	"github.com/tenta-browser/dns-recursor/wire"
)

// makeKey builds the lowercased "qname:qtype" cache key shared by the
// positive and negative maps. A trailing root "." on qname is dropped,
// so "example.com." and "example.com" share one key.
func makeKey(qname string, qtype wire.QType) string {
	var sb strings.Builder
	sb.Grow(len(qname) + 6)
	sb.WriteString(strings.TrimSuffix(strings.ToLower(qname), "."))
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(int(qtype)))
	return sb.String()
}
