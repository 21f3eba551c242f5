package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// parseAddr accepts a 7-bit address in any base strconv understands.
func parseAddr(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	if v > 0x7F {
		return 0, fmt.Errorf("address %q is not a 7-bit address", s)
	}
	return uint8(v), nil
}

func parseByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad byte %q: %w", s, err)
	}
	return uint8(v), nil
}

// parseHex decodes "0x01ab", "01ab", "01:ab" or "01 ab".
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	s = strings.NewReplacer(":", "", " ", "", "_", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad hex data: %w", err)
	}
	return b, nil
}

func formatHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}
