package protocol

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	ErrResponseTimeout = errors.New("protocol: no response from bridge")
	ErrClosed          = errors.New("protocol: transport closed")
	ErrBadResponse     = errors.New("protocol: malformed response")
)

// DefaultRetries is how often a command is resent when its response does
// not arrive in time.
const DefaultRetries = 2

// Response is a decoded response frame.
type Response struct {
	Sequence uint8
	Status   uint32
	Data     []byte
}

// HostTransport is the host end of the link. Calls are serialized: each
// sends one command frame and waits for the response with the same
// sequence number, resending the identical frame on timeout.
type HostTransport struct {
	port    io.ReadWriteCloser
	retries int

	callMutex sync.Mutex
	seq       uint8

	writeMutex sync.Mutex

	dec          Decoder
	inputBuffer  *FifoBuffer
	responseChan chan Message

	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts reading from port in the background.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		retries:      DefaultRetries,
		seq:          MessageDest,
		inputBuffer:  NewFifoBuffer(1024),
		responseChan: make(chan Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SetRetries sets how many times a timed-out command is resent.
func (t *HostTransport) SetRetries(n int) {
	t.callMutex.Lock()
	defer t.callMutex.Unlock()
	t.retries = n
}

// Call sends cmd with the arguments written by args and returns the
// bridge's response. A non-OK status is not an error at this layer.
func (t *HostTransport) Call(cmd uint16, args func(output OutputBuffer), timeout time.Duration) (*Response, error) {
	t.callMutex.Lock()
	defer t.callMutex.Unlock()

	var frame ScratchOutput
	err := EncodeFrame(&frame, t.seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmd))
		if args != nil {
			args(output)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build command %d: %w", cmd, err)
	}
	msg := append([]byte(nil), frame.Result()...)

	seq := t.seq
	t.seq = NextSequence(t.seq)

	for attempt := 0; attempt <= t.retries; attempt++ {
		if err := t.writeMessage(msg); err != nil {
			return nil, fmt.Errorf("failed to write command %d: %w", cmd, err)
		}
		resp, err := t.waitForResponse(seq, timeout)
		switch {
		case err == nil:
			return resp, nil
		case errors.Is(err, ErrResponseTimeout):
			continue
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("command %d after %d attempts: %w", cmd, t.retries+1, ErrResponseTimeout)
}

func (t *HostTransport) writeMessage(msg []byte) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	n, err := t.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

// waitForResponse skips responses to earlier sequence numbers, which show
// up when a retransmission crossed a late answer.
func (t *HostTransport) waitForResponse(seq uint8, timeout time.Duration) (*Response, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-t.responseChan:
			if msg.Sequence != seq {
				continue
			}
			return parseResponse(msg)
		case <-timer.C:
			return nil, ErrResponseTimeout
		case <-t.stopChan:
			return nil, ErrClosed
		}
	}
}

func parseResponse(msg Message) (*Response, error) {
	p := msg.Payload
	status, err := DecodeVLQUint(&p)
	if err != nil {
		return nil, fmt.Errorf("%w: status: %v", ErrBadResponse, err)
	}
	data, err := DecodeVLQBytes(&p)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrBadResponse, err)
	}
	return &Response{Sequence: msg.Sequence, Status: status, Data: data}, nil
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			t.inputBuffer.Write(buffer[:n])
			t.processMessages()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) processMessages() {
	consumed := t.dec.Decode(t.inputBuffer.Data(), t.dispatchMessage)
	t.inputBuffer.Pop(consumed)
}

func (t *HostTransport) dispatchMessage(msg Message) {
	msg.Payload = append([]byte(nil), msg.Payload...)

	select {
	case t.responseChan <- msg:
	default:
		// Full: nobody is waiting for the oldest one anymore.
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Sequence returns the sequence number the next call will use.
func (t *HostTransport) Sequence() uint8 {
	t.callMutex.Lock()
	defer t.callMutex.Unlock()
	return t.seq
}
