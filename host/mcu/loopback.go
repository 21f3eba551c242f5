package mcu

import (
	"io"
	"sync"

	"stm32i2c/protocol"
)

// Loopback runs a firmware-side protocol.Transport in-process, for driving
// a simulated bridge with the same client code as a real one.
type Loopback struct {
	mu    sync.Mutex
	fw    *protocol.Transport
	input *protocol.FifoBuffer

	r *io.PipeReader
	w *io.PipeWriter
}

// NewLoopback returns a port whose frames are handled by handler.
func NewLoopback(handler protocol.Handler) *Loopback {
	r, w := io.Pipe()
	l := &Loopback{
		input: protocol.NewFifoBuffer(1024),
		r:     r,
		w:     w,
	}
	l.fw = protocol.NewTransport(pipeOutput{w}, handler)
	return l
}

type pipeOutput struct {
	w *io.PipeWriter
}

// Output blocks until the host reader took the bytes; after Close the
// write fails and the response is dropped, as on a disconnected cable.
func (p pipeOutput) Output(data []byte) {
	_, _ = p.w.Write(data)
}

// Write feeds host bytes to the firmware transport.
func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.input.Write(p)
	l.fw.Receive(l.input)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (l *Loopback) Read(p []byte) (int, error) {
	return l.r.Read(p)
}

func (l *Loopback) Close() error {
	_ = l.w.Close()
	return l.r.Close()
}
