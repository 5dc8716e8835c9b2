// Copyright 2019 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package workerpool runs tasks on a bounded set of reusable goroutines.
package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/someonegg/gox/syncx"
)

// ErrPoolClosed is returned by Go after Close.
var ErrPoolClosed = errors.New("workerpool: closed")

// Pool hands each task to an idle worker, or starts a new worker while
// fewer than max are running. Workers that stay idle for the idle timeout
// exit.
type Pool struct {
	idle  time.Duration
	taskC chan func()
	slots chan struct{} // nil if unbounded
	quitD syncx.DoneChan
	once  sync.Once
	wg    sync.WaitGroup

	running int32
	busy    int32
}

// New creates a pool of at most max workers, max <= 0 means unbounded.
func New(max int, workerIdleTimeout time.Duration) *Pool {
	p := &Pool{
		idle:  workerIdleTimeout,
		taskC: make(chan func()),
		quitD: syncx.NewDoneChan(),
	}
	if max > 0 {
		p.slots = make(chan struct{}, max)
	}
	return p
}

// Go runs task on a worker. When the pool is full it blocks until a
// worker frees up, ctx ends, or the pool is closed.
func (p *Pool) Go(ctx context.Context, task func()) error {
	select {
	case <-p.quitD:
		return ErrPoolClosed
	default:
	}

	select {
	case p.taskC <- task:
		return nil
	default:
	}

	if p.slots == nil {
		p.spawn(task)
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quitD:
		return ErrPoolClosed
	case p.taskC <- task:
		return nil
	case p.slots <- struct{}{}:
		p.spawn(task)
		return nil
	}
}

func (p *Pool) spawn(task func()) {
	p.wg.Add(1)
	atomic.AddInt32(&p.running, 1)
	go p.work(task)
}

func (p *Pool) work(task func()) {
	defer func() {
		atomic.AddInt32(&p.running, -1)
		if p.slots != nil {
			<-p.slots
		}
		p.wg.Done()
	}()

	p.run(task)

	t := time.NewTimer(p.idle)
	defer t.Stop()

	for q := false; !q; {
		select {
		case task = <-p.taskC:
			p.run(task)

			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			t.Reset(p.idle)
		case <-t.C:
			q = true
		case <-p.quitD:
			q = true
		}
	}
}

func (p *Pool) run(task func()) {
	atomic.AddInt32(&p.busy, 1)
	defer atomic.AddInt32(&p.busy, -1)
	task()
}

// Running returns the number of live workers, idle ones included.
func (p *Pool) Running() int {
	return int(atomic.LoadInt32(&p.running))
}

// Busy returns the number of workers currently running a task.
func (p *Pool) Busy() int {
	return int(atomic.LoadInt32(&p.busy))
}

// Close stops accepting tasks and releases idle workers. Tasks already
// running are not interrupted, use Wait to wait for them.
func (p *Pool) Close() {
	p.once.Do(p.quitD.SetDone)
}

// Wait blocks until every worker has exited. It only returns after Close
// or once all workers have timed out.
func (p *Pool) Wait() {
	p.wg.Wait()
}
