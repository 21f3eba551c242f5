package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"stm32i2c/host/mcu"
)

type IdentifyCmd struct{}

func (c *IdentifyCmd) Run(m *mcu.MCU, out io.Writer) error {
	v, err := m.Identify()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, v)
	return err
}

type ScanCmd struct{}

func (c *ScanCmd) Run(m *mcu.MCU, out io.Writer, logger *slog.Logger) error {
	found, err := m.Scan()
	if err != nil {
		return err
	}
	logger.Info("scan complete", "devices", len(found))
	if len(found) == 0 {
		_, err = fmt.Fprintln(out, "no devices")
		return err
	}
	parts := make([]string, len(found))
	for i, a := range found {
		parts[i] = fmt.Sprintf("0x%02x", a)
	}
	_, err = fmt.Fprintln(out, strings.Join(parts, " "))
	return err
}

type WriteCmd struct {
	Addr string `arg:"" help:"7-bit device address, e.g. 0x3c"`
	Data string `arg:"" help:"Bytes to send as hex, e.g. 00ae or 00:ae"`
	Reg  string `help:"Register address sent before the data"`
}

func (c *WriteCmd) Run(m *mcu.MCU, logger *slog.Logger) error {
	addr, err := parseAddr(c.Addr)
	if err != nil {
		return err
	}
	data, err := parseHex(c.Data)
	if err != nil {
		return err
	}
	if c.Reg != "" {
		reg, err := parseByte(c.Reg)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
		data = append([]byte{reg}, data...)
	}
	logger.Debug("write", "addr", addr, "len", len(data))
	return m.Tx(uint16(addr), data, nil)
}

type ReadCmd struct {
	Addr  string `arg:"" help:"7-bit device address"`
	Count int    `arg:"" help:"Number of bytes to read"`
	Reg   string `help:"Register address written first, joined by a repeated start"`
}

func (c *ReadCmd) Run(m *mcu.MCU, out io.Writer) error {
	addr, err := parseAddr(c.Addr)
	if err != nil {
		return err
	}
	if c.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", c.Count)
	}
	buf := make([]byte, c.Count)
	if c.Reg != "" {
		reg, err := parseByte(c.Reg)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
		err = m.ReadRegister(addr, reg, buf)
	} else {
		err = m.Tx(uint16(addr), nil, buf)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, formatHex(buf))
	return err
}

type TxCmd struct {
	Addr  string `arg:"" help:"7-bit device address"`
	Data  string `arg:"" help:"Bytes to write as hex"`
	Count int    `arg:"" help:"Number of bytes to read back"`
}

func (c *TxCmd) Run(m *mcu.MCU, out io.Writer) error {
	addr, err := parseAddr(c.Addr)
	if err != nil {
		return err
	}
	w, err := parseHex(c.Data)
	if err != nil {
		return err
	}
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", c.Count)
	}
	r := make([]byte, c.Count)
	if err := m.Tx(uint16(addr), w, r); err != nil {
		return err
	}
	if len(r) == 0 {
		return nil
	}
	_, err = fmt.Fprintln(out, formatHex(r))
	return err
}

type EventsCmd struct{}

func (c *EventsCmd) Run(m *mcu.MCU, out io.Writer) error {
	events, err := m.Events()
	if err != nil {
		return err
	}
	for _, e := range events {
		if _, err := fmt.Fprintln(out, e.String()); err != nil {
			return err
		}
	}
	return nil
}
