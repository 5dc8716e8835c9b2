// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package msgserver implements the msgecho TCP server.
//
// Every accepted connection is served by its own message-pump. Requests
// are envelope.Echo, answered with the same content, and envelope.Add,
// answered with the int32 sum or an envelope.Error on overflow. Requests
// on one connection are answered one by one, in order. A frame that does
// not decode closes that connection only; a well-formed envelope with an
// unknown variant is answered with an envelope.Error.
//
// Quick start:
//
//	srv, err := msgserver.New("127.0.0.1:8080")
//	if err != nil {
//		log.Fatal(err)
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	err = srv.Run(ctx)
//
// Stop, or cancelling the context given to Run, closes the listener and
// every connection; Run returns once all connection handlers have
// finished.
package msgserver
