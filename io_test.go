package msgecho

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

type mockMRW struct {
	rsus chan bool
	rcnt int
	rmax int

	wsus chan bool
	wcnt int
	wmax int

	// length:Message
	mu sync.Mutex
	b  bytes.Buffer
}

func (rw *mockMRW) OnStop() {
	if rw.rsus != nil {
		close(rw.rsus)
	}
	if rw.wsus != nil {
		close(rw.wsus)
	}
}

func (rw *mockMRW) ReadMessage() (m Message, err error) {
	if rw.rsus != nil {
		<-rw.rsus
	}

	if rw.rmax > 0 && rw.rcnt >= rw.rmax {
		err = io.EOF
		return
	}

	rw.rcnt++
	return []byte(fmt.Sprint("m", rw.rcnt)), nil
}

func (rw *mockMRW) WriteMessage(m Message) error {
	if rw.wsus != nil {
		<-rw.wsus
	}

	if rw.wmax > 0 && rw.wcnt >= rw.wmax {
		return io.ErrClosedPipe
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.wcnt++
	rw.b.WriteString(fmt.Sprint(len(m)))
	rw.b.WriteString(":")
	rw.b.Write(m)
	return nil
}

func (rw *mockMRW) written() string {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.b.String()
}
