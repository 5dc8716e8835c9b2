// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgserver

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/someonegg/msgecho"
	"github.com/someonegg/msgecho/internal/workerpool"
)

var (
	// ErrServerClosed is returned by Run once the server has been stopped.
	ErrServerClosed = errors.New("msgserver: server closed")
	// ErrServerRunning is returned by a second Run.
	ErrServerRunning = errors.New("msgserver: server already running")
)

// BindError is returned by New when the listening socket can not be set up.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return "msgserver: bind " + e.Addr + ": " + e.Err.Error()
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Stats is a snapshot of the server counters.
type Stats struct {
	Accepted       int64
	Active         int64
	DecodeFailures int64
}

// Server accepts connections and serves echo/add envelopes on each of them.
type Server struct {
	cfg  Config
	log  zerolog.Logger
	dump io.Writer

	ln       net.Listener
	shutdown *Shutdown
	pool     *workerpool.Pool
	started  int32

	accepted       int64
	active         int64
	decodeFailures int64
}

// New binds a listening socket to address ("host:port").
func New(address string, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:      DefaultConfig(),
		log:      zerolog.New(os.Stderr).With().Timestamp().Logger(),
		shutdown: NewShutdown(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.normalize()

	ln, err := listen(address, s.cfg.ReusePort)
	if err != nil {
		return nil, &BindError{Addr: address, Err: err}
	}
	s.ln = ln
	s.pool = workerpool.New(s.cfg.MaxConns, s.cfg.WorkerIdleTimeout)
	return s, nil
}

// Addr returns the bound address, useful after binding port 0.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Running reports whether Run has started and Stop has not been called.
func (s *Server) Running() bool {
	return atomic.LoadInt32(&s.started) == 1 && s.shutdown.Running()
}

func (s *Server) Stats() Stats {
	return Stats{
		Accepted:       atomic.LoadInt64(&s.accepted),
		Active:         atomic.LoadInt64(&s.active),
		DecodeFailures: atomic.LoadInt64(&s.decodeFailures),
	}
}

// Stop signals the listener and every connection to finish. It returns
// false if the server was already stopped.
//
// Stopping is final: Stop before Run closes the listener, and Run then
// returns ErrServerClosed.
func (s *Server) Stop() bool {
	if !s.shutdown.Stop() {
		s.log.Warn().Msg("server was already stopped")
		return false
	}
	s.ln.Close()
	s.log.Info().Msg("shutdown signal sent")
	return true
}

// Run accepts connections until Stop is called or ctx ends, then waits for
// the connections to finish. Accept failures are logged and do not end
// Run.
func (s *Server) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		if !s.shutdown.Running() {
			return ErrServerClosed
		}
		return ErrServerRunning
	}
	if !s.shutdown.Running() {
		s.ln.Close()
		return ErrServerClosed
	}

	ctx, cancel := s.shutdown.Context(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		s.shutdown.Stop()
		s.ln.Close()
	}()

	s.log.Info().Str("addr", s.Addr().String()).Msg("server is running")

	err := s.accepting(ctx)

	s.pool.Close()
	s.pool.Wait()

	s.log.Info().Msg("server stopped")
	return err
}

func (s *Server) accepting(ctx context.Context) error {
	var delay time.Duration

	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if s.stopping(ctx) {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > time.Second {
				delay = time.Second
			}
			s.log.Error().Err(err).Dur("retry", delay).Msg("error accepting connection")

			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return nil
			}
			continue
		}
		delay = 0

		atomic.AddInt64(&s.accepted, 1)
		s.log.Info().Str("remote", nc.RemoteAddr().String()).Msg("new client connected")

		err = s.pool.Go(ctx, func() {
			s.handle(ctx, nc)
		})
		if err != nil {
			nc.Close()
			if s.stopping(ctx) {
				return nil
			}
			s.log.Error().Err(err).Msg("error admitting connection")
		}
	}
}

func (s *Server) stopping(ctx context.Context) bool {
	return !s.shutdown.Running() || ctx.Err() != nil
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	remote := nc.RemoteAddr().String()
	if err := s.ServeConn(ctx, nc); err != nil {
		s.log.Error().Err(err).Str("remote", remote).Msg("error handling client")
	}
	s.log.Info().Str("remote", remote).Msg("client disconnected")
}

// ServeConn serves one connection until the peer goes away, a request
// can not be decoded, an I/O operation fails, or ctx ends. nc is closed
// before ServeConn returns.
//
// A clean disconnect and a shutdown both return nil.
func (s *Server) ServeConn(ctx context.Context, nc net.Conn) error {
	rw := msgecho.NetconnMRW(nc, s.cfg.MaxMessageLength)
	return s.ServeMessages(ctx, rw, nc.RemoteAddr().String())
}

// ServeMessages is ServeConn over any message transport, for instance
// msgecho.WebsocketMRW. The transport is released through its OnStop if it
// implements msgecho.StopNotifier.
func (s *Server) ServeMessages(ctx context.Context, rw msgecho.MessageReadWriter, remote string) error {
	atomic.AddInt64(&s.active, 1)
	defer atomic.AddInt64(&s.active, -1)

	if s.dump != nil {
		rw = &msgecho.MessageDump{RW: rw, Dump: s.dump}
	}

	c := s.newConn(rw, remote)
	return c.serve(ctx)
}

func (s *Server) newLimiter() *rate.Limiter {
	if s.cfg.RequestRate <= 0 {
		return rate.NewLimiter(rate.Inf, s.cfg.RequestBurst)
	}
	return rate.NewLimiter(rate.Limit(s.cfg.RequestRate), s.cfg.RequestBurst)
}
