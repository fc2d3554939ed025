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

// Command securetalkd is the chat server's process entry point: cobra for
// flag/command parsing, viper for layered config (flags > env > defaults),
// logrus for structured logging, wired into server.Server and adminhttp.Server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sabouaram/securetalk/adminhttp"
	"github.com/sabouaram/securetalk/auth"
	"github.com/sabouaram/securetalk/config"
	"github.com/sabouaram/securetalk/handlers"
	"github.com/sabouaram/securetalk/logging"
	"github.com/sabouaram/securetalk/metrics"
	"github.com/sabouaram/securetalk/server"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:   "securetalkd",
		Short: "SecureTalk chat server",
	}
	if err := config.BindFlags(root, v); err != nil {
		fmt.Fprintln(os.Stderr, "bind flags:", err)
		os.Exit(1)
	}

	root.RunE = func(cmd *cobra.Command, args []string) error {
		return run(v)
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(v *viper.Viper) error {
	cfg, lerr := config.Load(v)
	if lerr != nil {
		return lerr
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log := logging.NewStdout(level)

	store, err := auth.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	mtr := metrics.New()

	srv := server.New(server.Config{
		Port:              cfg.Port,
		MaxWorkerThreads:  cfg.MaxWorkerThreads,
		MaxFrameBodyBytes: cfg.MaxFrameBodyBytes,
		InboundQueueSize:  cfg.InboundQueueSize,
		OutboundQueueSize: cfg.OutboundQueueSize,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, log, mtr)

	sessions := handlers.NewSessions()
	handlers.Register(srv.Handlers(), store, sessions)

	if err := srv.Start(); err != nil {
		return err
	}
	log.Info("server started", logging.Fields{"port": cfg.Port})

	admin := adminhttp.New(cfg.AdminHTTPAddr, srv.Registry(), mtr)
	admin.Start()
	log.Info("admin http started", logging.Fields{"addr": cfg.AdminHTTPAddr})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", logging.Fields{"signal": sig.String()})
	case err := <-srv.Err():
		log.Error("reactor exited unexpectedly", nil, err)
	case err := <-admin.Err():
		log.Error("admin http exited unexpectedly", nil, err)
	}

	srv.Stop()
	if err := admin.Stop(5 * time.Second); err != nil {
		log.Warn("admin http shutdown error", logging.Fields{"error": err.Error()})
	}
	return nil
}
