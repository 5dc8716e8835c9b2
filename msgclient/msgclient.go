// Copyright 2019 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package msgclient implements a synchronous request response client for
// msgecho servers over message-pump.
//
// The protocol carries no request ids. A server answers the requests of a
// connection one by one and in order, so the client matches responses to
// requests first in, first out. Do may be called concurrently; requests
// are then pipelined on the connection.
package msgclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/someonegg/msgecho"
	"github.com/someonegg/msgecho/envelope"
)

var errUnexpectedResponse = errors.New("msgclient: response without request")

// WriteQueueSize is the request queue length used by Dial.
const WriteQueueSize = 16

type Client struct {
	*msgecho.Pump

	sendMu sync.Mutex

	locker sync.Mutex
	resps  []chan envelope.Response
}

type dialOptions struct {
	maxMessageLength int
	writeQueueSize   int
}

// Option configures Dial.
type Option func(*dialOptions)

// WithMaxMessageLength sets the frame cap, it should match the server's.
// The default is msgecho.DefaultMaxMessageLength.
func WithMaxMessageLength(n int) Option {
	return func(o *dialOptions) {
		o.maxMessageLength = n
	}
}

func WithWriteQueueSize(n int) Option {
	return func(o *dialOptions) {
		o.writeQueueSize = n
	}
}

// Dial connects to a msgecho server listening on addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := dialOptions{
		maxMessageLength: msgecho.DefaultMaxMessageLength,
		writeQueueSize:   WriteQueueSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(msgecho.NetconnMRW(conn, o.maxMessageLength), o.writeQueueSize), nil
}

// NewClient will create and start the message-pump with rw and
// writeQueueSize.
//
// The write methods of msgecho.Pump like Output should not be called.
func NewClient(rw msgecho.MessageReadWriter, writeQueueSize int) *Client {
	c := &Client{}
	c.Pump = msgecho.NewPump(rw, c, writeQueueSize)
	c.Pump.Start(nil)
	return c
}

// Do will send the request and wait for its response.
func (c *Client) Do(ctx context.Context, req envelope.Request) (envelope.Response, error) {
	b, err := envelope.MarshalRequest(req)
	if err != nil {
		return nil, err
	}

	respC := make(chan envelope.Response, 1)

	c.sendMu.Lock()
	c.locker.Lock()
	c.resps = append(c.resps, respC)
	c.locker.Unlock()

	err = c.Pump.Output(ctx, b)
	if err != nil {
		c.locker.Lock()
		if n := len(c.resps); n > 0 && c.resps[n-1] == respC {
			c.resps = c.resps[:n-1]
		}
		c.locker.Unlock()
	}
	c.sendMu.Unlock()

	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respC:
		return resp, nil
	case <-c.Pump.StopD():
		select {
		case resp := <-respC:
			return resp, nil
		default:
		}
		return nil, msgecho.ErrPumpStopped
	}
}

// Echo sends s and returns what the server echoed.
func (c *Client) Echo(ctx context.Context, s string) (string, error) {
	resp, err := c.Do(ctx, &envelope.Echo{Content: s})
	if err != nil {
		return "", err
	}
	switch r := resp.(type) {
	case *envelope.Echo:
		return r.Content, nil
	case *envelope.Error:
		return "", r
	}
	return "", fmt.Errorf("msgclient: echo answered with %T", resp)
}

// Add asks the server for a+b.
func (c *Client) Add(ctx context.Context, a, b int32) (int32, error) {
	resp, err := c.Do(ctx, &envelope.Add{A: a, B: b})
	if err != nil {
		return 0, err
	}
	switch r := resp.(type) {
	case *envelope.AddResult:
		return r.Result, nil
	case *envelope.Error:
		return 0, r
	}
	return 0, fmt.Errorf("msgclient: add answered with %T", resp)
}

// Close stops the pump, closes the connection and waits for both. It
// returns the error that broke the connection earlier, if any; a server
// hang-up is not an error.
func (c *Client) Close() error {
	c.Pump.Stop()
	<-c.Pump.StopD()

	if err := c.Pump.Error(); err != io.EOF {
		return err
	}
	return nil
}

// Process implements the msgecho.Handler interface.
func (c *Client) Process(ctx context.Context, m msgecho.Message) error {
	resp, err := envelope.UnmarshalResponse(m)
	if err != nil {
		return err
	}

	c.locker.Lock()
	if len(c.resps) == 0 {
		c.locker.Unlock()
		return errUnexpectedResponse
	}
	respC := c.resps[0]
	c.resps[0] = nil
	c.resps = c.resps[1:]
	c.locker.Unlock()

	respC <- resp
	return nil
}
