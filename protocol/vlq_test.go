package protocol

import (
	"bytes"
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{
		0, 1, -1, 95, 96, -32, -33,
		127, 128, -128, 1000, -1000,
		65535, -65535, 1000000, -1000000,
		1<<31 - 1, -1 << 31,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("decode %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}
		if len(data) != 0 {
			t.Errorf("value %d: %d bytes left over", expected, len(data))
		}
	}
}

func TestVLQEncodingLength(t *testing.T) {
	testCases := []struct {
		v    uint32
		size int
	}{
		{0x00, 1},
		{0x5F, 1},
		{0x60, 2}, // would read as negative in one byte
		{0x7F, 2},
		{0xFF, 2},
		{0x2FFF, 2},
		{0x3000, 3},
		{0xFFFFFFFF, 1}, // -1
	}

	for _, tc := range testCases {
		output := NewScratchOutput()
		EncodeVLQUint(output, tc.v)
		if output.Len() != tc.size {
			t.Errorf("EncodeVLQUint(0x%X) used %d bytes, want %d", tc.v, output.Len(), tc.size)
		}
	}
}

func TestVLQBytes(t *testing.T) {
	testCases := [][]byte{
		{},
		{0x01},
		{0xFF, 0xFE, 0xFD},
		bytes.Repeat([]byte{0xA5}, MaxData),
	}

	for i, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQBytes(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQBytes(&data)
		if err != nil {
			t.Errorf("case %d: %v", i, err)
			continue
		}
		if !bytes.Equal(decoded, expected) {
			t.Errorf("case %d: got %v", i, decoded)
		}
	}
}

func TestVLQString(t *testing.T) {
	output := NewScratchOutput()
	EncodeVLQString(output, Version)
	EncodeVLQUint(output, 7)

	data := output.Result()
	s, err := DecodeVLQString(&data)
	if err != nil || s != Version {
		t.Fatalf("decoded %q, %v", s, err)
	}
	v, err := DecodeVLQUint(&data)
	if err != nil || v != 7 {
		t.Errorf("trailing value %d, %v", v, err)
	}
}

func TestVLQTruncated(t *testing.T) {
	data := []byte{0x80}
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall, got %v", err)
	}

	data = []byte{}
	if _, err := DecodeVLQUint(&data); err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall on empty input, got %v", err)
	}

	data = []byte{0x05, 0x01, 0x02}
	if _, err := DecodeVLQBytes(&data); err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall for short byte string, got %v", err)
	}
}
