package protocol

import "errors"

var ErrFrameTooLong = errors.New("protocol: frame exceeds maximum length")

// EncodeFrame writes one complete frame with sequence seq to output. body
// fills in the payload.
func EncodeFrame(output OutputBuffer, seq uint8, body func(output OutputBuffer)) error {
	var scratch ScratchOutput
	scratch.Output([]byte{0, seq})
	if body != nil {
		body(&scratch)
	}

	msgLen := scratch.Len() + MessageTrailerSize
	if scratch.Overflowed() || msgLen > MessageLengthMax {
		return ErrFrameTooLong
	}
	scratch.buf[MessagePositionLen] = uint8(msgLen)

	crc := CRC16(scratch.Result())
	scratch.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
	output.Output(scratch.Result())
	return nil
}

// Decoder splits a byte stream into frames. After a malformed frame it
// drops input up to the next sync byte.
type Decoder struct {
	lost    bool
	Resyncs int // malformed frames seen
}

// Decode calls fn for each valid frame in data and returns how many bytes
// were consumed. An incomplete trailing frame is left unconsumed. The
// payload handed to fn aliases data.
func (d *Decoder) Decode(data []byte, fn func(Message)) int {
	total := len(data)

	for len(data) > 0 {
		if d.lost {
			i := indexSync(data)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			d.lost = false
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		seq := data[MessagePositionSeq]
		if msgLen < MessageLengthMin || seq&^MessageSeqMask != MessageDest {
			d.desync()
			continue
		}
		if len(data) < msgLen {
			break
		}
		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.desync()
			continue
		}

		fn(Message{
			Length:   uint8(msgLen),
			Sequence: seq,
			Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
			CRC:      frameCRC,
		})
		data = data[msgLen:]
	}

	return total - len(data)
}

func (d *Decoder) desync() {
	d.lost = true
	d.Resyncs++
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i
		}
	}
	return -1
}
