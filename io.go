// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgecho

// Message is one encoded envelope, without any transport framing.
type Message []byte

type MessageReader interface {
	ReadMessage() (m Message, err error)
}

type MessageWriter interface {
	WriteMessage(m Message) error
}

type MessageReadWriter interface {
	MessageReader
	MessageWriter
}

// StopNotifier is implemented by transports that must release the
// underlying connection when a pump stops. Closing the connection is what
// unblocks a reader parked in ReadMessage.
type StopNotifier interface {
	OnStop()
}

type StopNotifierFunc func()

func (f StopNotifierFunc) OnStop() {
	f()
}

// DefaultMaxMessageLength is the frame cap used when none is configured.
const DefaultMaxMessageLength = 512

func maxLength(n int) int {
	if n <= 0 {
		return DefaultMaxMessageLength
	}
	return n
}
