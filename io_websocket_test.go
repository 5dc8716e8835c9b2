package msgecho

import (
	"bytes"
	"io"
	"testing"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (bc *bufferCloser) Close() error {
	bc.closed = true
	return nil
}

type mockWebsocketConn struct {
	rt int
	rb string

	wt int
	wb bufferCloser

	closed bool
}

func (c *mockWebsocketConn) NextReader() (int, io.Reader, error) {
	return c.rt, bytes.NewBufferString(c.rb), nil
}

func (c *mockWebsocketConn) NextWriter(messageType int) (io.WriteCloser, error) {
	c.wt = messageType
	c.wb.closed = false
	return &c.wb, nil
}

func (c *mockWebsocketConn) Close() error {
	c.closed = true
	return nil
}

func TestWebsocketRead(test *testing.T) {
	c := &mockWebsocketConn{}
	rw := WebsocketMRW(c, 8)

	c.rt = BinaryMessage
	c.rb = "m1"
	m, err := rw.ReadMessage()
	if string(m) != "m1" || err != nil {
		test.Fatal("websocket io: read normal")
	}

	c.rt = TextMessage
	c.rb = "m2"
	_, err = rw.ReadMessage()
	if err != ErrWebsocketMessageType {
		test.Fatal("websocket io: read wrong type")
	}

	c.rt = BinaryMessage
	c.rb = "123456789"
	_, err = rw.ReadMessage()
	if err != ErrMessageLength {
		test.Fatal("websocket io: read oversized", err)
	}

	c.rb = ""
	_, err = rw.ReadMessage()
	if err != ErrMessageLength {
		test.Fatal("websocket io: read empty", err)
	}
}

func TestWebsocketWrite(test *testing.T) {
	c := &mockWebsocketConn{}
	rw := WebsocketMRW(c, 0)

	err := rw.WriteMessage([]byte("m1"))
	if err != nil {
		test.Fatal(err)
	}

	if c.wt != BinaryMessage || c.wb.String() != "m1" || !c.wb.closed {
		test.Fatal("websocket io: write wrong format")
	}

	rw.(StopNotifier).OnStop()
	if !c.closed {
		test.Fatal("websocket io: stop should close the connection")
	}
}
