// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgserver

import (
	"context"
	"errors"
	"io"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/someonegg/msgecho"
	"github.com/someonegg/msgecho/envelope"
)

const unsupportedRequest = "unsupported request"

// conn answers the requests of one client. Requests are handled one at a
// time by the pump's reading goroutine, so responses go out in request
// order.
type conn struct {
	*msgecho.Pump
	srv     *Server
	log     zerolog.Logger
	limiter *rate.Limiter
}

func (s *Server) newConn(rw msgecho.MessageReadWriter, remote string) *conn {
	c := &conn{
		srv:     s,
		log:     s.log.With().Str("remote", remote).Logger(),
		limiter: s.newLimiter(),
	}
	c.Pump = msgecho.NewPump(rw, c, s.cfg.WriteQueueSize)
	c.Pump.SetPanicLogFunc(func(v interface{}) {
		c.log.Error().Interface("panic", v).Msg("connection panic")
	})
	return c
}

func (c *conn) serve(ctx context.Context) error {
	c.Start(ctx)
	<-c.StopD()

	st := c.Statistics()
	c.log.Debug().
		Int64("read_count", st.ReadedCount).
		Int64("read_bytes", st.ReadedBytes).
		Int64("written_count", st.WrittenCount).
		Int64("written_bytes", st.WrittenBytes).
		Msg("connection statistics")

	if ctx.Err() != nil {
		c.log.Info().Msg("server is shutting down, client connection closed")
	}

	err := c.Error()
	if err == io.EOF {
		return nil
	}
	return err
}

// Process implements the msgecho.Handler interface.
func (c *conn) Process(ctx context.Context, m msgecho.Message) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var resp envelope.Response
	req, err := envelope.UnmarshalRequest(m)
	switch {
	case err == nil:
		resp = c.dispatch(req)
	case errors.Is(err, envelope.ErrUnsupportedRequest):
		c.log.Warn().Int("size", len(m)).Msg(unsupportedRequest)
		resp = &envelope.Error{Message: unsupportedRequest}
	default:
		atomic.AddInt64(&c.srv.decodeFailures, 1)
		c.log.Error().Err(err).Msg("failed to decode message")
		return err
	}

	b, err := envelope.MarshalResponse(resp)
	if err != nil {
		return err
	}
	return c.Output(ctx, b)
}

func (c *conn) dispatch(req envelope.Request) envelope.Response {
	switch r := req.(type) {
	case *envelope.Echo:
		c.log.Debug().Str("content", r.Content).Msg("echo")
		return &envelope.Echo{Content: r.Content}
	case *envelope.Add:
		c.log.Debug().Int32("a", r.A).Int32("b", r.B).Msg("add")
		sum := int64(r.A) + int64(r.B)
		if sum > math.MaxInt32 || sum < math.MinInt32 {
			return &envelope.Error{Message: "add: int32 overflow"}
		}
		return &envelope.AddResult{Result: int32(sum)}
	default:
		return &envelope.Error{Message: unsupportedRequest}
	}
}
