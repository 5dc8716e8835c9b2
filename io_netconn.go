// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgecho

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// ErrMessageLength is returned when a frame announces a length outside
// 1..max, or a message to be written exceeds max.
var ErrMessageLength = errors.New("netconn io: wrong message length")

type netbufconn struct {
	conn net.Conn
	*bufio.ReadWriter
}

func newNetbufConn(conn net.Conn) netbufconn {
	return netbufconn{
		conn:       conn,
		ReadWriter: bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
	}
}

func (c *netbufconn) Close() error {
	return c.conn.Close()
}

// NetconnMRW converts a net.Conn to a MessageReadWriter.
//
// In the transport layer, message's layout is:
//
//	Length(4-bytes int, big-endian)Message
//
// limit bounds a single message, DefaultMaxMessageLength is used when it
// is not positive.
func NetconnMRW(conn net.Conn, limit int) MessageReadWriter {
	return netconnMRW{c: newNetbufConn(conn), max: maxLength(limit)}
}

type netconnMRW struct {
	c   netbufconn
	max int
}

func (rw netconnMRW) OnStop() {
	rw.c.Close()
}

func (rw netconnMRW) ReadMessage() (m Message, Err error) {
	var _l int32
	err := binary.Read(rw.c, binary.BigEndian, &_l)
	if err != nil {
		Err = err
		return
	}
	l := int(_l)

	if l <= 0 || l > rw.max {
		Err = ErrMessageLength
		return
	}

	p := make([]byte, l)
	_, err = io.ReadFull(rw.c, p)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		Err = err
		return
	}

	m = p
	return
}

func (rw netconnMRW) WriteMessage(m Message) error {
	l := len(m)
	if l <= 0 || l > rw.max {
		return ErrMessageLength
	}

	err := binary.Write(rw.c, binary.BigEndian, int32(l))
	if err != nil {
		return err
	}

	_, err = rw.c.Write(m)
	if err != nil {
		return err
	}

	return rw.c.Flush()
}

// NetconnPump creates a pump from a net.Conn, the connection is closed when
// the pump stops.
func NetconnPump(conn net.Conn, h Handler, limit, writeQueueSize int) *Pump {
	return NewPump(NetconnMRW(conn, limit), h, writeQueueSize)
}
