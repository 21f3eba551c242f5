package protocol

// Handler executes one command. args holds the command's arguments after
// the command ID. The returned data must stay valid until the next call.
type Handler func(cmd uint32, args *[]byte) (status uint32, data []byte)

// Transport is the firmware end of the link: it decodes command frames,
// runs them through the handler and answers each with one response frame
// carrying the same sequence number.
//
// The last response is cached. A frame that repeats the previous sequence
// number and CRC is a host retransmission after a lost response; it gets
// the cached answer and the command is not executed again.
type Transport struct {
	dec     Decoder
	output  OutputBuffer
	handler Handler

	last    ScratchOutput
	lastSeq uint8 // 0 when nothing is cached
	lastCRC uint16

	flushCallback func()
}

func NewTransport(output OutputBuffer, handler Handler) *Transport {
	return &Transport{output: output, handler: handler}
}

// SetFlushCallback registers a function run after every response, for
// outputs that buffer until told to send.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// Receive consumes complete frames from input.
func (t *Transport) Receive(input InputBuffer) {
	n := t.dec.Decode(input.Data(), t.handleFrame)
	if n > 0 {
		input.Pop(n)
	}
}

// Resyncs returns how many malformed frames were dropped.
func (t *Transport) Resyncs() int {
	return t.dec.Resyncs
}

// Reset forgets the cached response.
func (t *Transport) Reset() {
	t.lastSeq = 0
	t.last.Reset()
}

func (t *Transport) handleFrame(msg Message) {
	if t.lastSeq != 0 && msg.Sequence == t.lastSeq && msg.CRC == t.lastCRC {
		t.send()
		return
	}

	status, data := t.dispatch(msg.Payload)

	t.last.Reset()
	err := EncodeFrame(&t.last, msg.Sequence, func(output OutputBuffer) {
		EncodeVLQUint(output, status)
		EncodeVLQBytes(output, data)
	})
	if err != nil {
		t.last.Reset()
		_ = EncodeFrame(&t.last, msg.Sequence, func(output OutputBuffer) {
			EncodeVLQUint(output, StatusInternal)
			EncodeVLQBytes(output, nil)
		})
	}
	t.lastSeq = msg.Sequence
	t.lastCRC = msg.CRC
	t.send()
}

func (t *Transport) dispatch(payload []byte) (status uint32, data []byte) {
	// A panicking handler must not take the firmware down with it.
	defer func() {
		if r := recover(); r != nil {
			status, data = StatusInternal, nil
		}
	}()

	cmd, err := DecodeVLQUint(&payload)
	if err != nil {
		return StatusBadArgs, nil
	}
	if t.handler == nil {
		return StatusUnknownCommand, nil
	}
	return t.handler(cmd, &payload)
}

func (t *Transport) send() {
	t.output.Output(t.last.Result())
	if t.flushCallback != nil {
		t.flushCallback()
	}
}
