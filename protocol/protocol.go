// Package protocol implements the framing spoken between the I2C bridge
// firmware and the host: length, sequence, VLQ payload, CRC16, sync byte.
package protocol

// Version is reported by the identify command.
const Version = "stm32i2c-bridge 0.1.0"

const (
	MessageMax = 512 // scratch size for building frames

	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 255
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	// Sequence numbers carry MessageDest in the high nibble and a rolling
	// counter in the low one.
	MessageDest     = 0x10
	MessageSeqMask  = 0x0F
	MessageSeqShift = 4

	// MaxData bounds the bytes a single write, read or tx may carry so
	// request and response both fit one frame.
	MaxData = 96
)

// Command IDs. Each command frame is answered by exactly one response frame
// with the same sequence number.
const (
	CmdIdentify  = 0 // -> version string
	CmdConfigure = 1 // pclk_hz, freq_hz, own_addr
	CmdStart     = 2 // opens a master session, restarts an open one
	CmdRestart   = 3
	CmdStop      = 4
	CmdRequest   = 5 // addr_rw
	CmdWrite     = 6 // data -> count
	CmdRead      = 7 // -> one byte, closes the session
	CmdReadBurst = 8 // count -> data, closes the session
	CmdTx        = 9 // addr, write data, read count -> data
	CmdScan      = 10
	CmdEvents    = 11 // -> driver event ring, 6 bytes per event
)

// Status codes returned in the first field of every response.
const (
	StatusOK = iota
	StatusTimeout
	StatusBusBusy
	StatusAddressNACK
	StatusDataNACK
	StatusBusError
	StatusArbitrationLost
	StatusInvalidCount
	StatusInvalidAddress
	StatusInvalidConfig
	StatusNotConfigured
	StatusSessionOpen
	StatusSessionClosed
	StatusSessionState
	StatusUnknownCommand
	StatusBadArgs
	StatusInternal
)

// Message is one decoded frame.
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte
	CRC      uint16
}

// NextSequence returns the sequence number following seq.
func NextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
