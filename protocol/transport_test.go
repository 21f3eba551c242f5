package protocol

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameBytes(t *testing.T, seq uint8, payload []byte) []byte {
	t.Helper()
	out := NewScratchOutput()
	require.NoError(t, EncodeFrame(out, seq, func(o OutputBuffer) { o.Output(payload) }))
	return append([]byte(nil), out.Result()...)
}

func TestEncodeFrameLayout(t *testing.T) {
	frame := frameBytes(t, 0x13, []byte{0x01, 0x02})

	require.Len(t, frame, 7)
	assert.Equal(t, byte(7), frame[MessagePositionLen])
	assert.Equal(t, byte(0x13), frame[MessagePositionSeq])
	assert.Equal(t, []byte{0x01, 0x02}, frame[2:4])
	crc := CRC16(frame[:4])
	assert.Equal(t, []byte{byte(crc >> 8), byte(crc), MessageValueSync}, frame[4:])
}

func TestEncodeFrameTooLong(t *testing.T) {
	out := NewScratchOutput()
	err := EncodeFrame(out, MessageDest, func(o OutputBuffer) { o.Output(make([]byte, MessageLengthMax)) })
	assert.ErrorIs(t, err, ErrFrameTooLong)
	assert.Zero(t, out.Len())
}

func TestDecoderResyncs(t *testing.T) {
	good := frameBytes(t, 0x11, []byte{0xAA})
	bad := frameBytes(t, 0x12, []byte{0xBB})
	bad[2] ^= 0xFF // corrupt payload, CRC fails

	stream := append([]byte{0x00, 0x33}, bad...)
	stream = append(stream, good...)
	stream = append(stream, good[:3]...) // incomplete tail

	var got []Message
	var d Decoder
	n := d.Decode(stream, func(m Message) {
		m.Payload = append([]byte(nil), m.Payload...)
		got = append(got, m)
	})

	require.Len(t, got, 1)
	assert.Equal(t, uint8(0x11), got[0].Sequence)
	assert.Equal(t, []byte{0xAA}, got[0].Payload)
	assert.Equal(t, len(stream)-3, n, "incomplete frame must stay in the buffer")
	assert.Positive(t, d.Resyncs)
}

func TestDecoderSplitInput(t *testing.T) {
	frame := frameBytes(t, 0x1F, []byte{1, 2, 3})
	fifo := NewFifoBuffer(64)
	var d Decoder
	count := 0
	for _, b := range frame {
		fifo.Write([]byte{b})
		fifo.Pop(d.Decode(fifo.Data(), func(Message) { count++ }))
	}
	assert.Equal(t, 1, count)
	assert.True(t, fifo.IsEmpty())
}

func TestNextSequenceWraps(t *testing.T) {
	assert.Equal(t, uint8(0x11), NextSequence(0x10))
	assert.Equal(t, uint8(0x10), NextSequence(0x1F))
}

type recordOutput struct {
	data []byte
}

func (r *recordOutput) Output(data []byte) { r.data = append(r.data, data...) }

func TestTransportAnswersEachFrame(t *testing.T) {
	out := &recordOutput{}
	calls := 0
	tr := NewTransport(out, func(cmd uint32, args *[]byte) (uint32, []byte) {
		calls++
		v, err := DecodeVLQUint(args)
		if err != nil {
			return StatusBadArgs, nil
		}
		return StatusOK, []byte{byte(cmd), byte(v)}
	})

	req := NewScratchOutput()
	EncodeVLQUint(req, CmdRead)
	EncodeVLQUint(req, 0x42)
	in := frameBytes(t, 0x10, req.Result())

	tr.Receive(NewSliceInputBuffer(in))
	tr.Receive(NewSliceInputBuffer(in)) // retransmission
	assert.Equal(t, 1, calls, "duplicate frame must not run the command twice")

	var resp []Message
	var d Decoder
	d.Decode(out.data, func(m Message) { resp = append(resp, m) })
	require.Len(t, resp, 2)
	for _, m := range resp {
		r, err := parseResponse(m)
		require.NoError(t, err)
		assert.Equal(t, uint8(0x10), r.Sequence)
		assert.Equal(t, uint32(StatusOK), r.Status)
		assert.Equal(t, []byte{CmdRead, 0x42}, r.Data)
	}
}

func TestTransportRecoversFromPanic(t *testing.T) {
	out := &recordOutput{}
	tr := NewTransport(out, func(uint32, *[]byte) (uint32, []byte) { panic("boom") })
	tr.Receive(NewSliceInputBuffer(frameBytes(t, 0x10, []byte{CmdScan})))

	var d Decoder
	var status uint32 = 99
	d.Decode(out.data, func(m Message) {
		r, err := parseResponse(m)
		require.NoError(t, err)
		status = r.Status
	})
	assert.Equal(t, uint32(StatusInternal), status)
}

// link connects a HostTransport to a firmware Transport in memory.
type link struct {
	fw        *Transport
	toHost    *io.PipeWriter
	fromFw    *io.PipeReader
	mu        sync.Mutex
	dropFirst int
}

type pipeOutput struct {
	l *link
}

func (p pipeOutput) Output(data []byte) {
	p.l.mu.Lock()
	drop := p.l.dropFirst > 0
	if drop {
		p.l.dropFirst--
	}
	p.l.mu.Unlock()
	if drop {
		return
	}
	_, _ = p.l.toHost.Write(data)
}

func newLink(handler Handler) *link {
	r, w := io.Pipe()
	l := &link{toHost: w, fromFw: r}
	l.fw = NewTransport(pipeOutput{l}, handler)
	return l
}

func (l *link) Write(p []byte) (int, error) {
	l.fw.Receive(NewSliceInputBuffer(p))
	return len(p), nil
}

func (l *link) Read(p []byte) (int, error) { return l.fromFw.Read(p) }

func (l *link) Close() error {
	_ = l.toHost.Close()
	return l.fromFw.Close()
}

func TestHostCallRoundTrip(t *testing.T) {
	l := newLink(func(cmd uint32, args *[]byte) (uint32, []byte) {
		if cmd != CmdIdentify {
			return StatusUnknownCommand, nil
		}
		out := NewScratchOutput()
		out.Output([]byte(Version))
		return StatusOK, out.Result()
	})
	host := NewHostTransport(l)
	defer host.Close()

	resp, err := host.Call(CmdIdentify, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint32(StatusOK), resp.Status)
	assert.Equal(t, Version, string(resp.Data))

	resp, err = host.Call(CmdStop, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint32(StatusUnknownCommand), resp.Status)
	assert.Equal(t, uint8(0x12), host.Sequence())
}

func TestHostCallRetriesLostResponse(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	l := newLink(func(cmd uint32, args *[]byte) (uint32, []byte) {
		mu.Lock()
		calls++
		mu.Unlock()
		return StatusOK, []byte{0x5A}
	})
	l.dropFirst = 1
	host := NewHostTransport(l)
	defer host.Close()

	resp, err := host.Call(CmdWrite, func(o OutputBuffer) { EncodeVLQBytes(o, []byte{1}) }, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x5A}, resp.Data)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "retransmission answered from cache")
}

func TestHostCallTimesOut(t *testing.T) {
	l := newLink(nil)
	l.dropFirst = 100
	host := NewHostTransport(l)
	host.SetRetries(1)
	defer host.Close()

	_, err := host.Call(CmdIdentify, nil, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrResponseTimeout)

	require.NoError(t, host.Close())
	_, err = host.Call(CmdIdentify, nil, 20*time.Millisecond)
	assert.Error(t, err)
}
