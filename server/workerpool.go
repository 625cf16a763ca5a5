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
 * workerpool.go: Fixed worker pool consuming queued client datagrams
 */

package server

import (
	"net"
	"runtime"

	"gopkg.in/tomb.v2"

	"github.com/tenta-browser/dns-recursor/log"
)

// task is one client datagram copied off the socket, plus where to send
// the eventual response.
type task struct {
	data []byte
	from *net.UDPAddr
}

// WorkerPool is a fixed set of long-lived goroutines draining a shared
// queue; each task runs to a complete response before the worker loops
// back for the next one. Lifecycle is managed with gopkg.in/tomb.v2,
// the teacher's own dependency for exactly this kind of supervised
// goroutine group: t.Go launches each worker, t.Kill(nil)/t.Wait() drive
// a clean shutdown instead of a hand-rolled WaitGroup plus done channel.
type WorkerPool struct {
	t       tomb.Tomb
	queue   chan task
	handle  func(task)
	workers int
}

// NewWorkerPool sizes the pool to n (falling back to GOMAXPROCS when
// n <= 0, mirroring the original's "hardware concurrency" default) and
// dispatches each queued task to handle.
func NewWorkerPool(n int, queueDepth int, handle func(task)) *WorkerPool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &WorkerPool{
		queue:   make(chan task, queueDepth),
		handle:  handle,
		workers: n,
	}
}

// Start launches the pool's workers.
func (p *WorkerPool) Start() {
	lg := log.GetLogger("workerpool")
	for i := 0; i < p.workers; i++ {
		p.t.Go(func() error {
			for {
				select {
				case <-p.t.Dying():
					return nil
				case tk, ok := <-p.queue:
					if !ok {
						return nil
					}
					func() {
						defer func() {
							if rcv := recover(); rcv != nil {
								lg.Errorf("worker recovered from panic handling a query: %v", rcv)
							}
						}()
						p.handle(tk)
					}()
				}
			}
		})
	}
}

// Submit enqueues a task for a worker to pick up. It never blocks
// indefinitely past shutdown: once the pool is dying, Submit drops the
// task rather than wedging the I/O loop against a full queue.
func (p *WorkerPool) Submit(tk task) {
	select {
	case p.queue <- tk:
	case <-p.t.Dying():
	}
}

// Stop signals every worker to exit and waits for them to drain.
func (p *WorkerPool) Stop() error {
	p.t.Kill(nil)
	return p.t.Wait()
}
