// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgserver

import (
	"context"
	"sync/atomic"

	"github.com/someonegg/gox/syncx"
)

// Shutdown is a one-way running to stopped latch shared by a listener and
// all of its connections.
type Shutdown struct {
	stopped int32
	stopD   syncx.DoneChan
}

func NewShutdown() *Shutdown {
	return &Shutdown{stopD: syncx.NewDoneChan()}
}

// Stop reports whether this call did the transition, later calls are
// no-ops returning false.
func (s *Shutdown) Stop() bool {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		return false
	}
	s.stopD.SetDone()
	return true
}

func (s *Shutdown) Running() bool {
	return atomic.LoadInt32(&s.stopped) == 0
}

// StopD is closed by the first Stop.
func (s *Shutdown) StopD() syncx.DoneChanR {
	return s.stopD.R()
}

// Context returns a child of parent that is also cancelled by Stop.
func (s *Shutdown) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-s.stopD:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
