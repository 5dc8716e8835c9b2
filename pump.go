// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgecho

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/someonegg/gox/syncx"
)

var (
	// ErrPumpStopped is returned by Output when the pump has stopped.
	ErrPumpStopped = errors.New("pump stopped")

	errUnknownPanic = errors.New("unknown panic")
)

type legalPanic struct {
	err error
}

// Handler is the message processor.
//
// Process is called from the reading goroutine, one message at a time and
// in arrival order. It is not valid to access the message after the
// Process call. A non-nil error stops the pump and becomes its Error.
type Handler interface {
	Process(ctx context.Context, m Message) error
}

// The HandlerFunc type is an adapter to allow the use of
// ordinary functions as message handlers.  If f is a function
// with the appropriate signature, HandlerFunc(f) is a
// Handler object that calls f.
type HandlerFunc func(ctx context.Context, m Message) error

// Process calls f(ctx, m).
func (f HandlerFunc) Process(ctx context.Context, m Message) error {
	return f(ctx, m)
}

type Statistics struct {
	// from MessageReadWriter
	ReadedCount int64
	ReadedBytes int64

	// to MessageReadWriter
	WrittenCount int64
	WrittenBytes int64

	// Output call
	OutputCount int64
}

// Pump represents a message-pump, it has a working loop which reads
// and writes messages parallelly and continuously.
//
// Messages given to Output are written in the order they were queued, so
// a handler that answers each request with one Output call produces
// responses in request order.
//
// Pump supports concurrently access.
type Pump struct {
	err   error
	quitF context.CancelFunc
	stopD syncx.DoneChan

	rw MessageReadWriter
	h  Handler
	sn StopNotifier

	// read
	rerr error
	rD   syncx.DoneChan
	// write
	werr   error
	wD     syncx.DoneChan
	wQ     chan Message
	drainD syncx.DoneChan

	stat Statistics

	panicLogF func(interface{})
}

// NewPump allocates and returns a new Pump.
//
// If rw implementes the StopNotifier interface, it will be called when
// the working loop exiting.
func NewPump(rw MessageReadWriter, h Handler, writeQueueSize int) *Pump {
	sn, _ := rw.(StopNotifier)
	return &Pump{
		stopD: syncx.NewDoneChan(),

		rw: rw,
		h:  h,
		sn: sn,

		rD:     syncx.NewDoneChan(),
		wD:     syncx.NewDoneChan(),
		wQ:     make(chan Message, writeQueueSize),
		drainD: syncx.NewDoneChan(),

		panicLogF: thePanicLogFunc,
	}
}

// The default panic log function.
func thePanicLogFunc(v interface{}) {
	const size = 16 << 10
	buf := make([]byte, size)
	buf = buf[:runtime.Stack(buf, false)]
	log.Error().Str("stack", string(buf)).Msgf("pump panic: %v", v)
}

// SetPanicLogFunc is optional.
func (p *Pump) SetPanicLogFunc(f func(panicV interface{})) {
	p.panicLogF = f
}

// Start will start the working loop.
func (p *Pump) Start(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}

	var ctx context.Context
	ctx, p.quitF = context.WithCancel(parent)

	go p.reading(ctx)
	go p.writing(ctx)
	go p.monitor(ctx)
}

func (p *Pump) monitor(ctx context.Context) {
	defer p.ending()

	select {
	case <-ctx.Done():
	case <-p.rD:
		// The peer is gone or the handler gave up, let the writer
		// flush what is already queued before the transport closes.
		p.drainD.SetDone()
		select {
		case <-p.wD:
		case <-ctx.Done():
		}
	case <-p.wD:
	}
}

func (p *Pump) ending() {
	if e := recover(); e != nil {
		switch v := e.(type) {
		case error:
			p.err = v
		default:
			p.err = errUnknownPanic
		}
		if p.panicLogF != nil {
			p.panicLogF(e)
		}
	}

	defer func() { recover() }()
	defer p.stopD.SetDone()

	// if ending from error.
	p.quitF()

	if p.sn != nil {
		p.sn.OnStop()
	}

	<-p.rD
	<-p.wD
}

// recovered converts a goroutine panic into the error reported by Error.
// Failures observed after the pump was asked to quit are the result of
// closing the transport and are dropped.
func (p *Pump) recovered(ctx context.Context, e interface{}) error {
	var err error
	switch v := e.(type) {
	case legalPanic:
		err = v.err
	case error:
		err = v
		if p.panicLogF != nil {
			p.panicLogF(e)
		}
	default:
		err = errUnknownPanic
		if p.panicLogF != nil {
			p.panicLogF(e)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (p *Pump) reading(ctx context.Context) {
	defer func() {
		if e := recover(); e != nil {
			p.rerr = p.recovered(ctx, e)
		}

		p.rD.SetDone()
	}()

	for q := false; !q; {
		m := p.readMessage()

		if err := p.h.Process(ctx, m); err != nil {
			panic(legalPanic{err})
		}

		select {
		case <-ctx.Done():
			q = true
		default:
		}
	}
}

func (p *Pump) readMessage() Message {
	m, err := p.rw.ReadMessage()
	if err != nil {
		panic(legalPanic{err})
	}
	atomic.AddInt64(&p.stat.ReadedCount, 1)
	atomic.AddInt64(&p.stat.ReadedBytes, int64(len(m)))
	return m
}

func (p *Pump) writing(ctx context.Context) {
	defer func() {
		if e := recover(); e != nil {
			p.werr = p.recovered(ctx, e)
		}

		p.wD.SetDone()
	}()

	for q := false; !q; {
		select {
		case <-ctx.Done():
			q = true
		case m := <-p.wQ:
			p.writeMessage(m)
		case <-p.drainD:
			p.drainQueue()
			q = true
		}
	}
}

func (p *Pump) drainQueue() {
	for {
		select {
		case m := <-p.wQ:
			p.writeMessage(m)
		default:
			return
		}
	}
}

func (p *Pump) writeMessage(m Message) {
	err := p.rw.WriteMessage(m)
	if err != nil {
		panic(legalPanic{err})
	}
	atomic.AddInt64(&p.stat.WrittenCount, 1)
	atomic.AddInt64(&p.stat.WrittenBytes, int64(len(m)))
}

// Stop requests to stop the pump, the working loop will stop asynchronously.
func (p *Pump) Stop() {
	p.quitF()
}

// StopD returns a done channel, it will be signaled when the pump is stopped.
func (p *Pump) StopD() syncx.DoneChanR {
	return p.stopD.R()
}

func (p *Pump) Stopped() bool {
	return p.stopD.R().Done()
}

// Error can only be called after pump stopped.
//
// A nil error means the pump was stopped on request; io.EOF means the
// peer closed the transport between two messages and every queued
// message was written. A write failure while draining after EOF is
// reported instead of io.EOF.
func (p *Pump) Error() error {
	if p.err != nil {
		return p.err
	}
	if p.rerr != nil && !(p.rerr == io.EOF && p.werr != nil) {
		return p.rerr
	}
	return p.werr
}

// Output puts the message to the write queue. It blocks while the queue
// is full and fails if ctx ends or the pump stops first.
func (p *Pump) Output(ctx context.Context, m Message) error {
	select {
	case <-p.stopD:
		return ErrPumpStopped
	default:
	}

	select {
	case p.wQ <- m:
		atomic.AddInt64(&p.stat.OutputCount, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopD:
		return ErrPumpStopped
	}
}

// TryOutput tries to put the message to the write queue.
func (p *Pump) TryOutput(m Message) bool {
	select {
	case p.wQ <- m:
		atomic.AddInt64(&p.stat.OutputCount, 1)
		return true
	default:
		return false
	}
}

func (p *Pump) Statistics() Statistics {
	return Statistics{
		ReadedCount:  atomic.LoadInt64(&p.stat.ReadedCount),
		ReadedBytes:  atomic.LoadInt64(&p.stat.ReadedBytes),
		WrittenCount: atomic.LoadInt64(&p.stat.WrittenCount),
		WrittenBytes: atomic.LoadInt64(&p.stat.WrittenBytes),
		OutputCount:  atomic.LoadInt64(&p.stat.OutputCount),
	}
}

// UnderlyingMRW returns the internal message readwriter.
func (p *Pump) UnderlyingMRW() MessageReadWriter {
	return p.rw
}
