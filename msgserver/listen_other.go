// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package msgserver

import (
	"errors"
	"net"
)

var errReusePort = errors.New("SO_REUSEPORT is not supported on this platform")

func listen(addr string, reusePort bool) (net.Listener, error) {
	if reusePort {
		return nil, errReusePort
	}
	return net.Listen("tcp", addr)
}
