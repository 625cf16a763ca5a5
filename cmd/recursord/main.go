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
 * main.go: Process entry point -- flags, signal wiring, systemd notify
 */

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"github.com/tenta-browser/dns-recursor/cache"
	"github.com/tenta-browser/dns-recursor/config"
	"github.com/tenta-browser/dns-recursor/log"
	"github.com/tenta-browser/dns-recursor/resolver"
	"github.com/tenta-browser/dns-recursor/retry"
	"github.com/tenta-browser/dns-recursor/security"
	"github.com/tenta-browser/dns-recursor/server"
	"github.com/tenta-browser/dns-recursor/stats"
	"github.com/tenta-browser/dns-recursor/tracking"
)

var (
	cfgfile = flag.String("config", "", "Path to an optional TOML configuration file overriding compiled-in defaults")
	quiet   = flag.Bool("quiet", false, "Don't produce any output to the terminal")
	verbose = flag.Bool("verbose", false, "Produce lots of output to the terminal (overrides the -quiet flag)")
	systemd = flag.Bool("systemd", false, "Assume running under systemd and send control notifications")
)

// shuttingDown is the process-wide shutdown flag; every other piece of
// state is constructed here and passed by reference, per the
// single-global design this resolver was built to.
var shuttingDown = abool.NewBool(false)

func usage() {
	fmt.Println("recursord")
	fmt.Println("A recursive DNS resolver")
	fmt.Println("Options:")
	flag.PrintDefaults()
}

func main() {
	log.SetLogLevel(logrus.InfoLevel)
	flag.Usage = usage
	flag.Parse()

	if *quiet {
		log.SetLogLevel(logrus.FatalLevel)
	}
	if *verbose {
		log.SetLogLevel(logrus.DebugLevel)
	}

	lg := log.GetLogger("main")
	lg.Info("starting up")

	if *systemd {
		_, _ = daemon.SdNotify(false, "RELOADING=1")
	}

	cfg, err := config.Load(*cfgfile)
	if err != nil {
		lg.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	tracker := tracking.NewTracker()
	res := resolver.New(
		cacheFromConfig(cfg),
		tracker,
		resolver.NewUDPTransport(),
	)
	res.SetRetryPolicy(retry.Policy{
		MaxRetries:        cfg.Retry.MaxRetries,
		InitialDelay:      time.Duration(cfg.Retry.InitialDelayMs) * time.Millisecond,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	})
	res.SetTimeouts(
		time.Duration(cfg.Network.RecvTimeoutMs)*time.Millisecond,
		time.Duration(cfg.Network.SendTimeoutMs)*time.Millisecond,
	)
	res.Cache().StartExpirer()

	rl := security.NewRateLimiter(cfg.RateLimit.MaxPerWindow, time.Duration(cfg.RateLimit.WindowMs)*time.Millisecond)
	rl.SetIdleThreshold(time.Duration(cfg.RateLimit.IdleTimeoutMs) * time.Millisecond)
	rl.StartIdleSweep()

	go transactionReaper(tracker)

	var debugServer *stats.DebugServer
	if cfg.Debug.Enabled {
		sink := stats.NewDefaultSink(res.Cache(), rl, res.Roots())
		debugServer, err = stats.NewDebugServer(cfg.Debug.Addr, sink)
		if err != nil {
			lg.Errorf("failed to start debug server: %v", err)
		} else {
			debugServer.Start()
			lg.Infof("debug endpoint listening on %s", cfg.Debug.Addr)
		}
	}

	handler, err := server.New(cfg.Listen.Addr, res, rl, cfg.Workers)
	if err != nil {
		lg.Errorf("failed to bind %s: %v", cfg.Listen.Addr, err)
		os.Exit(1)
	}
	go handler.Serve()

	if *systemd {
		_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	}
	lg.Infof("ready, listening on %s", cfg.Listen.Addr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	lg.Infof("signal (%s) received, stopping", s)

	if *systemd {
		_, _ = daemon.SdNotify(false, "STOPPING=1")
	}

	shuttingDown.Set()
	handler.Stop()
	rl.StopIdleSweep()
	res.Cache().StopExpirer()
	if debugServer != nil {
		_ = debugServer.Stop()
	}

	os.Exit(0)
}

func cacheFromConfig(cfg config.Config) *cache.Cache {
	return cache.New(cfg.Cache.MinTTL, cfg.Cache.MaxTTL, cfg.Cache.MaxEntries, cfg.Cache.MaxNSEntries)
}

// transactionReaper periodically reaps transactions that never got a
// validated response, so a query that simply vanished upstream doesn't
// pin an in-flight slot forever.
func transactionReaper(tracker *tracking.Tracker) {
	const sweepInterval = 5 * time.Second
	const timeoutMs = 5000

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		if shuttingDown.IsSet() {
			return
		}
		tracker.Cleanup(timeoutMs)
	}
}
