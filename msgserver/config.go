// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgserver

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/someonegg/msgecho"
)

// Config holds the server tuning knobs. The zero value of a field keeps
// the behaviour documented on it.
type Config struct {
	// MaxConns caps concurrently served connections, 0 means no cap.
	// Clients beyond the cap wait in the listen backlog.
	MaxConns int
	// MaxMessageLength caps one request or response envelope.
	MaxMessageLength int
	// WriteQueueSize is the per-connection response queue length.
	WriteQueueSize int
	// RequestRate limits requests per second on each connection, 0 means
	// unlimited. RequestBurst is the bucket size.
	RequestRate  float64
	RequestBurst int
	// WorkerIdleTimeout is how long a connection worker waits for the next
	// connection before exiting.
	WorkerIdleTimeout time.Duration
	// ReusePort sets SO_REUSEPORT on the listening socket.
	ReusePort bool
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return Config{
		MaxConns:          0,
		MaxMessageLength:  msgecho.DefaultMaxMessageLength,
		WriteQueueSize:    16,
		RequestRate:       0,
		RequestBurst:      1,
		WorkerIdleTimeout: 30 * time.Second,
	}
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.MaxConns < 0 {
		c.MaxConns = 0
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = def.MaxMessageLength
	}
	if c.WriteQueueSize <= 0 {
		c.WriteQueueSize = def.WriteQueueSize
	}
	if c.RequestBurst <= 0 {
		c.RequestBurst = def.RequestBurst
	}
	if c.WorkerIdleTimeout <= 0 {
		c.WorkerIdleTimeout = def.WorkerIdleTimeout
	}
}

// Option configures a Server.
type Option func(*Server)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger, the default writes JSON lines to stderr.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

func WithMaxConns(n int) Option {
	return func(s *Server) {
		s.cfg.MaxConns = n
	}
}

func WithMaxMessageLength(n int) Option {
	return func(s *Server) {
		s.cfg.MaxMessageLength = n
	}
}

func WithWriteQueueSize(n int) Option {
	return func(s *Server) {
		s.cfg.WriteQueueSize = n
	}
}

// WithRequestRate throttles every connection to rps requests per second
// with the given burst.
func WithRequestRate(rps float64, burst int) Option {
	return func(s *Server) {
		s.cfg.RequestRate = rps
		s.cfg.RequestBurst = burst
	}
}

func WithReusePort(on bool) Option {
	return func(s *Server) {
		s.cfg.ReusePort = on
	}
}

// WithMessageDump hex dumps every message read or written to w.
func WithMessageDump(w io.Writer) Option {
	return func(s *Server) {
		s.dump = w
	}
}
