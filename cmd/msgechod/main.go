// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command msgechod runs a msgecho server until it receives SIGINT or
// SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/someonegg/msgecho/msgserver"
)

func main() {
	def := msgserver.DefaultConfig()
	var (
		addr     = flag.String("addr", "127.0.0.1:8080", "listen address")
		maxConns = flag.Int("max-conns", def.MaxConns, "max concurrently served connections, 0 means no cap")
		maxMsg   = flag.Int("max-message", def.MaxMessageLength, "max envelope length in bytes")
		queue    = flag.Int("write-queue", def.WriteQueueSize, "per-connection response queue length")
		rps      = flag.Float64("rate", def.RequestRate, "requests per second per connection, 0 means unlimited")
		burst    = flag.Int("burst", def.RequestBurst, "request burst per connection")
		idle     = flag.Duration("worker-idle", def.WorkerIdleTimeout, "idle time before a connection worker exits")
		reuse    = flag.Bool("reuseport", def.ReusePort, "set SO_REUSEPORT on the listener")
		level    = flag.String("log-level", "info", "log level (debug, info, warn, error)")
		pretty   = flag.Bool("pretty", false, "human readable console logs")
		dump     = flag.Bool("dump", false, "hex dump every message to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: msgechod [flags]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}

	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "msgechod: %v\n", err)
		os.Exit(2)
	}
	logger := zerolog.New(os.Stderr)
	if *pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger = logger.Level(lvl).With().Timestamp().Str("service", "msgechod").Logger()

	cfg := msgserver.Config{
		MaxConns:          *maxConns,
		MaxMessageLength:  *maxMsg,
		WriteQueueSize:    *queue,
		RequestRate:       *rps,
		RequestBurst:      *burst,
		WorkerIdleTimeout: *idle,
		ReusePort:         *reuse,
	}

	opts := []msgserver.Option{msgserver.WithConfig(cfg), msgserver.WithLogger(logger)}
	if *dump {
		opts = append(opts, msgserver.WithMessageDump(os.Stderr))
	}

	srv, err := msgserver.New(*addr, opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}
