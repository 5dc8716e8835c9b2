// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package msgecho provides the message-pump facility behind the msgecho
// echo/add server and client.
//
// The message-pump will continuously receive, process and send messages after startup.
//
// A message is a variable-length byte array holding one encoded envelope
// (see the envelope package). The transport layer is defined by the
// MessageReadWriter interface, there are two default implementations:
//   NetconnMRW over net.Conn, frames are a 4-byte big-endian length and the payload
//   WebsocketMRW over websocket.Conn, one binary message per Message
//
// Both enforce a maximum message length, DefaultMaxMessageLength unless
// configured otherwise.
//
// Here is a quick example, an echo peer.
//
//  type EchoPeer struct {
//  	pump *msgecho.Pump
//  }
//
//  func (p *EchoPeer) Start(conn net.Conn) {
//  	p.pump = msgecho.NetconnPump(conn, p, 0, WriteQueueSize)
//  	p.pump.Start(nil)
//  }
//
//  func (p *EchoPeer) Process(ctx context.Context, m msgecho.Message) error {
//  	// m is only valid during the call.
//  	return p.pump.Output(ctx, append(msgecho.Message(nil), m...))
//  }
//
//  func (p *EchoPeer) WaitStop() {
//  	<-p.pump.StopD()
//  	log.Printf("peer stop, error: %v", p.pump.Error())
//  }
//
// The msgserver and msgclient packages build the echo/add protocol on top
// of this.
package msgecho
