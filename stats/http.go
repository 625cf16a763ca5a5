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
 * http.go: Loopback-only debug endpoint serving a JSON stats snapshot
 */

package stats

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tenta-browser/dns-recursor/log"
)

var logger = log.GetLogger("stats")

// DebugServer serves GET /debug/stats as a JSON snapshot of the sink.
// It is entirely optional: the recursord binary starts it only when the
// config's debug section enables it, and it is bound to loopback only --
// it is never required for correct DNS resolution and never exposes
// anything mutable.
type DebugServer struct {
	sink   Sink
	server *http.Server
}

// NewDebugServer builds (but does not start) a debug server bound to
// listenAddr, which must resolve to a loopback address.
func NewDebugServer(listenAddr string, sink Sink) (*DebugServer, error) {
	host, _, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return nil, err
	}
	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		if ips, err = net.LookupIP(host); err != nil {
			return nil, err
		}
	}
	if len(ips) == 0 {
		return nil, errNotLoopback
	}
	for _, ip := range ips {
		if !ip.IsLoopback() {
			return nil, errNotLoopback
		}
	}

	router := mux.NewRouter()
	ds := &DebugServer{sink: sink}
	router.HandleFunc("/debug/stats", ds.serveStats).Methods(http.MethodGet)
	ds.server = &http.Server{Addr: listenAddr, Handler: router}
	return ds, nil
}

func (d *DebugServer) serveStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.sink.Snapshot()); err != nil {
		logger.Errorf("failed to encode stats snapshot: %v", err)
	}
}

// Start runs the debug server's accept loop in its own goroutine.
func (d *DebugServer) Start() {
	go func() {
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("debug server exited: %v", err)
		}
	}()
}

// Stop closes the debug server's listener and any open connections
// immediately.
func (d *DebugServer) Stop() error {
	return d.server.Close()
}

var errNotLoopback = debugAddrError("debug listen address must be loopback-only")

type debugAddrError string

func (e debugAddrError) Error() string { return string(e) }
