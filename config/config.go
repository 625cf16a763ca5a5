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
 * config.go: Compiled-in defaults, optionally overridden by a TOML file
 */

// Package config holds the resolver's tunables. Every field has a
// compiled-in default; an optional TOML file can override any subset of
// them. Running without a file (an empty path) is not an error -- the
// compiled-in defaults apply, matching the service's "no flags required"
// baseline; a named file that does not exist is an error.
package config

import (
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tenta-browser/dns-recursor/cache"
	"github.com/tenta-browser/dns-recursor/security"
	"github.com/tenta-browser/dns-recursor/server"
)

// Config is the full set of compiled-in/overridable tunables.
type Config struct {
	Listen struct {
		Addr string `toml:"addr"`
	} `toml:"listen"`

	Debug struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"debug"`

	Network struct {
		RecvTimeoutMs int `toml:"recv_timeout_ms"`
		SendTimeoutMs int `toml:"send_timeout_ms"`
	} `toml:"network"`

	Retry struct {
		MaxRetries        int     `toml:"max_retries"`
		InitialDelayMs    int     `toml:"initial_delay_ms"`
		BackoffMultiplier float64 `toml:"backoff_multiplier"`
	} `toml:"retry"`

	Cache struct {
		MinTTL      uint32 `toml:"min_ttl"`
		MaxTTL      uint32 `toml:"max_ttl"`
		MaxEntries  int    `toml:"max_entries"`
		MaxNSEntries int   `toml:"max_ns_entries"`
	} `toml:"cache"`

	RateLimit struct {
		MaxPerWindow  int `toml:"max_per_window"`
		WindowMs      int `toml:"window_ms"`
		IdleTimeoutMs int `toml:"idle_timeout_ms"`
	} `toml:"rate_limit"`

	Workers int `toml:"workers"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	var c Config
	c.Listen.Addr = server.DefaultListenAddr
	c.Debug.Enabled = false
	c.Debug.Addr = "127.0.0.1:8053"
	c.Network.RecvTimeoutMs = 2000
	c.Network.SendTimeoutMs = 1000
	c.Retry.MaxRetries = 3
	c.Retry.InitialDelayMs = 100
	c.Retry.BackoffMultiplier = 2.0
	c.Cache.MinTTL = cache.DefaultMinTTL
	c.Cache.MaxTTL = cache.DefaultMaxTTL
	c.Cache.MaxEntries = cache.DefaultMaxEntries
	c.Cache.MaxNSEntries = cache.DefaultMaxNSEntries
	c.RateLimit.MaxPerWindow = security.DefaultMaxQueriesPerWindow
	c.RateLimit.WindowMs = int(security.DefaultWindow / time.Millisecond)
	c.RateLimit.IdleTimeoutMs = 10 * 60 * 1000
	c.Workers = 0
	return c
}

// Load returns the compiled-in defaults, overridden by whatever path
// sets in a TOML file if path is non-empty. A non-empty path that
// doesn't exist or fails to parse is an error; an empty path is not.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
