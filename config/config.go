/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config is this repository's bootstrap configuration surface
// (SPEC_FULL.md §10.3): a viper-backed Server struct bound to cobra
// persistent flags, replacing the teacher's own config package (deleted,
// see DESIGN.md — it depended on several now-deleted stub packages) while
// keeping viper/cobra themselves, the libraries that package wrapped.
package config

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sabouaram/securetalk/apperr"
	liberr "github.com/sabouaram/securetalk/errors"
	"github.com/sabouaram/securetalk/errors/pool"
)

// Server holds every value needed to bring a securetalk instance up.
type Server struct {
	Port              uint32
	MaxWorkerThreads  int
	MaxFrameBodyBytes uint32
	InboundQueueSize  int
	OutboundQueueSize int
	DatabasePath      string
	LogLevel          string
	AdminHTTPAddr     string
	HeartbeatInterval time.Duration
}

const (
	keyPort              = "port"
	keyMaxWorkerThreads  = "max-worker-threads"
	keyMaxFrameBody      = "max-frame-body-bytes"
	keyInboundQueue      = "inbound-queue-size"
	keyOutboundQueue     = "outbound-queue-size"
	keyDatabasePath      = "database-path"
	keyLogLevel          = "log-level"
	keyAdminHTTPAddr     = "admin-http-addr"
	keyHeartbeatInterval = "heartbeat-interval"
)

// BindFlags registers the persistent flags a cobra command needs to drive
// this configuration, and binds each to a matching viper + environment
// variable key (SECURETALK_PORT, SECURETALK_MAX_WORKER_THREADS, ...).
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.PersistentFlags()

	flags.Uint32(keyPort, 9000, "TCP port the chat server listens on")
	flags.Int(keyMaxWorkerThreads, 0, "fixed worker pool size (0 = hardware parallelism hint)")
	flags.Uint32(keyMaxFrameBody, 16*1024*1024, "maximum accepted frame body length in bytes")
	flags.Int(keyInboundQueue, 4096, "inbound frame queue capacity")
	flags.Int(keyOutboundQueue, 4096, "outbound frame queue capacity")
	flags.String(keyDatabasePath, "./securetalk.db", "path to the sqlite credential store")
	flags.String(keyLogLevel, "info", "log level: debug, info, warn, error")
	flags.String(keyAdminHTTPAddr, "127.0.0.1:9001", "admin HTTP listen address (healthz/metrics)")
	flags.Duration(keyHeartbeatInterval, 0, "interval for server-initiated heartbeat broadcasts (0 disables)")

	if err := v.BindPFlags(flags); err != nil {
		return apperr.New(apperr.CodeConfigInvalid, "bind persistent flags", err)
	}

	v.SetEnvPrefix("securetalk")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return nil
}

// Load reads every bound key off v into a Server. Every validation rule
// is checked before reporting failure, rather than bailing out on the
// first one, so a misconfigured deployment sees every problem in one
// pass instead of fixing them one at a time.
func Load(v *viper.Viper) (*Server, liberr.Error) {
	s := &Server{
		Port:              v.GetUint32(keyPort),
		MaxWorkerThreads:  v.GetInt(keyMaxWorkerThreads),
		MaxFrameBodyBytes: v.GetUint32(keyMaxFrameBody),
		InboundQueueSize:  v.GetInt(keyInboundQueue),
		OutboundQueueSize: v.GetInt(keyOutboundQueue),
		DatabasePath:      v.GetString(keyDatabasePath),
		LogLevel:          v.GetString(keyLogLevel),
		AdminHTTPAddr:     v.GetString(keyAdminHTTPAddr),
		HeartbeatInterval: v.GetDuration(keyHeartbeatInterval),
	}

	errs := pool.New()
	if s.Port > 65535 {
		errs.Add(apperr.New(apperr.CodeConfigInvalid, "port out of range"))
	}
	if s.InboundQueueSize <= 0 {
		errs.Add(apperr.New(apperr.CodeConfigInvalid, "inbound queue size must be positive"))
	}
	if s.OutboundQueueSize <= 0 {
		errs.Add(apperr.New(apperr.CodeConfigInvalid, "outbound queue size must be positive"))
	}
	if s.DatabasePath == "" {
		errs.Add(apperr.New(apperr.CodeConfigInvalid, "database path must not be empty"))
	}
	if s.HeartbeatInterval < 0 {
		errs.Add(apperr.New(apperr.CodeConfigInvalid, "heartbeat interval must not be negative"))
	}

	if err := errs.Error(); err != nil {
		return nil, apperr.New(apperr.CodeConfigInvalid, "invalid configuration", err)
	}
	return s, nil
}
