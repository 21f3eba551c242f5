package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	if buf.Available() != 5 {
		t.Errorf("expected 5 bytes available, got %d", buf.Available())
	}
	buf.Pop(2)
	if got := buf.Data(); len(got) != 3 || got[0] != 3 {
		t.Errorf("after Pop(2): %v", got)
	}
	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Pop past end left %d bytes", buf.Available())
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})
	scratch.Output([]byte{4, 5})

	if !bytes.Equal(scratch.Result(), []byte{1, 2, 3, 4, 5}) {
		t.Errorf("unexpected result %v", scratch.Result())
	}
	if scratch.Overflowed() {
		t.Error("overflow reported for a short write")
	}

	scratch.Output(make([]byte, MessageMax))
	if !scratch.Overflowed() || scratch.Len() != MessageMax {
		t.Errorf("expected truncation at %d, len %d overflow %v", MessageMax, scratch.Len(), scratch.Overflowed())
	}

	scratch.Reset()
	if scratch.Len() != 0 || scratch.Overflowed() {
		t.Error("Reset did not clear the buffer")
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	if !fifo.IsEmpty() {
		t.Error("new FIFO should be empty")
	}
	if n := fifo.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Errorf("expected to write 5 bytes, wrote %d", n)
	}

	readBuf := make([]byte, 3)
	if n := fifo.Read(readBuf); n != 3 || !bytes.Equal(readBuf, []byte{1, 2, 3}) {
		t.Errorf("read %d: %v", n, readBuf)
	}

	fifo.Pop(1)
	if fifo.Available() != 1 {
		t.Errorf("after Pop(1), expected 1 available, got %d", fifo.Available())
	}

	fifo.Reset()
	if n := fifo.Write(make([]byte, 12)); n != 9 {
		t.Errorf("size-10 FIFO holds 9 bytes, wrote %d", n)
	}
	if fifo.Free() != 0 {
		t.Errorf("full FIFO reports %d free", fifo.Free())
	}
}

func TestFifoBufferWrappedData(t *testing.T) {
	fifo := NewFifoBuffer(5)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Pop(2)

	if n := fifo.Write([]byte{5, 6}); n != 2 {
		t.Errorf("expected to write 2 bytes, wrote %d", n)
	}
	if got := fifo.Data(); !bytes.Equal(got, []byte{3, 4, 5, 6}) {
		t.Errorf("wrapped Data() = %v", got)
	}

	fifo.Pop(3)
	if got := fifo.Data(); !bytes.Equal(got, []byte{6}) {
		t.Errorf("after Pop(3) Data() = %v", got)
	}
}
