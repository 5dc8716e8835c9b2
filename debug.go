// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgecho

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// MessageDump is a debugging helper, it implements the MessageReadWriter
// interface and provides message dump function.
//
// The dump format is:
//
//	R|W:MessageSize\nHexDump\n
//
// Reads and writes happen on different goroutines inside a pump, so
// writes to Dump are serialized.
type MessageDump struct {
	RW   MessageReadWriter
	Dump io.Writer

	// Filter can be nil. If nil, dump all messages.
	Filter func(m Message, read bool) bool

	mu sync.Mutex
}

func (d *MessageDump) needDump(m Message, read bool) bool {
	if d.Filter != nil {
		return d.Filter(m, read)
	}
	return true
}

func (d *MessageDump) dump(dir string, m Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprintf(d.Dump, "%v:%v\n", dir, len(m))
	io.WriteString(d.Dump, hex.Dump(m))
	fmt.Fprintf(d.Dump, "\n")
}

func (d *MessageDump) ReadMessage() (m Message, err error) {
	m, err = d.RW.ReadMessage()
	if err != nil {
		return
	}

	if d.needDump(m, true) {
		d.dump("R", m)
	}
	return
}

func (d *MessageDump) WriteMessage(m Message) (err error) {
	err = d.RW.WriteMessage(m)
	if err != nil {
		return
	}

	if d.needDump(m, false) {
		d.dump("W", m)
	}
	return
}

// OnStop forwards to the wrapped transport so the connection is still
// released when a pump runs over a dump.
func (d *MessageDump) OnStop() {
	if sn, ok := d.RW.(StopNotifier); ok {
		sn.OnStop()
	}
}
