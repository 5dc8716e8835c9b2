// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgecho

import (
	"errors"
	"io"
)

// ErrWebsocketMessageType is returned when a peer sends anything but a
// binary message.
var ErrWebsocketMessageType = errors.New("websocket io: need binary message")

// WebsocketReader interface, see https://godoc.org/github.com/gorilla/websocket/#Conn.NextReader
type WebsocketReader interface {
	NextReader() (messageType int, r io.Reader, err error)
}

// WebsocketWriter interface, see https://godoc.org/github.com/gorilla/websocket/#Conn.NextWriter
type WebsocketWriter interface {
	NextWriter(messageType int) (io.WriteCloser, error)
}

// WebsocketConn interface, see https://godoc.org/github.com/gorilla/websocket/#Conn
type WebsocketConn interface {
	WebsocketReader
	WebsocketWriter
	io.Closer
}

// See https://godoc.org/github.com/gorilla/websocket#pkg-constants
const (
	TextMessage   = 1
	BinaryMessage = 2
	CloseMessage  = 8
	PingMessage   = 9
	PongMessage   = 10
)

// WebsocketMRW converts a WebsocketConn to a MessageReadWriter.
//
// Websocket already frames its payloads, so one binary websocket message
// carries exactly one Message.
func WebsocketMRW(c WebsocketConn, limit int) MessageReadWriter {
	return websocketMRW{c: c, max: maxLength(limit)}
}

type websocketMRW struct {
	c   WebsocketConn
	max int
}

func (rw websocketMRW) OnStop() {
	rw.c.Close()
}

func (rw websocketMRW) ReadMessage() (m Message, Err error) {
	wst, wsr, err := rw.c.NextReader()
	if err != nil {
		Err = err
		return
	}

	if wst != BinaryMessage {
		Err = ErrWebsocketMessageType
		return
	}

	p, err := io.ReadAll(io.LimitReader(wsr, int64(rw.max)+1))
	if err != nil {
		Err = err
		return
	}

	if len(p) == 0 || len(p) > rw.max {
		Err = ErrMessageLength
		return
	}

	m = p
	return
}

func (rw websocketMRW) WriteMessage(m Message) error {
	if len(m) == 0 || len(m) > rw.max {
		return ErrMessageLength
	}

	wswc, err := rw.c.NextWriter(BinaryMessage)
	if err != nil {
		return err
	}

	if _, err = wswc.Write(m); err != nil {
		wswc.Close()
		return err
	}

	return wswc.Close()
}
