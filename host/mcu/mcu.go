// Package mcu is the host-side client of the I2C bridge firmware.
package mcu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.uber.org/multierr"
	"tinygo.org/x/drivers"

	"stm32i2c/bridge"
	"stm32i2c/core"
	"stm32i2c/host/serial"
	"stm32i2c/protocol"
)

// DefaultTimeout is how long one command waits for its response. It covers
// a full scan of the bus at 100 kHz.
const DefaultTimeout = 500 * time.Millisecond

var ErrTooLong = fmt.Errorf("mcu: more than %d data bytes in one command", protocol.MaxData)

var _ drivers.I2C = (*MCU)(nil)

// MCU is a connection to the bridge firmware. Its methods mirror the
// driver's: Start, Request, Write, Read, ReadBurst and Stop run one bus
// step each on the remote side, Tx and Scan run a whole transaction.
// Failures carry the driver's sentinel errors so errors.Is works across
// the link.
type MCU struct {
	transport *protocol.HostTransport
	timeout   time.Duration
	log       *slog.Logger

	session bool // a master session is open on the bridge
}

// New wraps an already open port.
func New(port io.ReadWriteCloser, logger *slog.Logger) *MCU {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MCU{
		transport: protocol.NewHostTransport(port),
		timeout:   DefaultTimeout,
		log:       logger,
	}
}

// Connect opens the serial port and checks that a bridge answers on it.
func Connect(cfg *serial.Config, logger *slog.Logger) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	m := New(port, logger)

	version, err := m.Identify()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("no bridge on %s: %w", cfg.Device, err), m.transport.Close())
	}
	m.log.Info("connected", "device", cfg.Device, "version", version)
	return m, nil
}

// SetTimeout changes the per-command response timeout.
func (m *MCU) SetTimeout(d time.Duration) {
	m.timeout = d
}

// Close ends an open session with a stop and closes the port.
func (m *MCU) Close() error {
	var err error
	if m.session {
		err = m.Stop()
	}
	return multierr.Append(err, m.transport.Close())
}

func (m *MCU) call(name string, cmd uint16, args func(protocol.OutputBuffer)) ([]byte, error) {
	resp, err := m.transport.Call(cmd, args, m.timeout)
	if err != nil {
		m.log.Error("bridge call failed", "cmd", name, "error", err)
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := bridge.ErrorOf(resp.Status); err != nil {
		m.log.Debug("bridge status", "cmd", name, "status", resp.Status, "error", err)
		return resp.Data, fmt.Errorf("%s: %w", name, err)
	}
	m.log.Debug("bridge ok", "cmd", name, "seq", resp.Sequence, "len", len(resp.Data))
	return resp.Data, nil
}

// Identify returns the firmware version string.
func (m *MCU) Identify() (string, error) {
	data, err := m.call("identify", protocol.CmdIdentify, nil)
	return string(data), err
}

// Configure reprograms the bridge's bus. Zero fields take the driver's
// defaults.
func (m *MCU) Configure(cfg core.Config) error {
	m.session = false
	_, err := m.call("configure", protocol.CmdConfigure, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, cfg.PeripheralClockHz)
		protocol.EncodeVLQUint(o, cfg.FrequencyHz)
		protocol.EncodeVLQUint(o, uint32(cfg.OwnAddress))
	})
	return err
}

// Start opens a master session, or issues a repeated start when one is
// already open.
func (m *MCU) Start() error {
	_, err := m.call("start", protocol.CmdStart, nil)
	if err == nil {
		m.session = true
	}
	return err
}

func (m *MCU) Restart() error {
	_, err := m.call("restart", protocol.CmdRestart, nil)
	return err
}

func (m *MCU) Stop() error {
	_, err := m.call("stop", protocol.CmdStop, nil)
	m.session = false
	return err
}

// Request sends the address byte, see core.AddrRW.
func (m *MCU) Request(addrRW byte) error {
	_, err := m.call("request", protocol.CmdRequest, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, uint32(addrRW))
	})
	return err
}

// Write sends data in the open session and returns how many bytes were
// acknowledged.
func (m *MCU) Write(data []byte) (int, error) {
	if len(data) > protocol.MaxData {
		return 0, ErrTooLong
	}
	resp, err := m.call("write", protocol.CmdWrite, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQBytes(o, data)
	})
	n := 0
	if len(resp) == 1 {
		n = int(resp[0])
	}
	return n, err
}

// Read receives one byte and ends the session.
func (m *MCU) Read() (byte, error) {
	resp, err := m.call("read", protocol.CmdRead, nil)
	m.endSession(err)
	if len(resp) != 1 {
		return 0, err
	}
	return resp[0], err
}

// ReadBurst receives n >= 2 bytes and ends the session.
func (m *MCU) ReadBurst(n int) ([]byte, error) {
	if n > protocol.MaxData {
		return nil, ErrTooLong
	}
	resp, err := m.call("read_burst", protocol.CmdReadBurst, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, uint32(n))
	})
	m.endSession(err)
	return resp, err
}

// endSession tracks the bridge closing the session at the end of a read.
// Errors raised before the read started leave it open.
func (m *MCU) endSession(err error) {
	switch {
	case errors.Is(err, core.ErrSessionState), errors.Is(err, core.ErrInvalidCount):
	default:
		m.session = false
	}
}

// Tx runs a complete write-then-read transaction on the bridge, which
// makes the remote bus usable by TinyGo device drivers on the host.
func (m *MCU) Tx(addr uint16, w, r []byte) error {
	if len(w) > protocol.MaxData || len(r) > protocol.MaxData {
		return ErrTooLong
	}
	resp, err := m.call("tx", protocol.CmdTx, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, uint32(addr))
		protocol.EncodeVLQBytes(o, w)
		protocol.EncodeVLQUint(o, uint32(len(r)))
	})
	if err != nil {
		return err
	}
	if len(resp) != len(r) {
		return fmt.Errorf("tx: %w: got %d bytes, want %d", protocol.ErrBadResponse, len(resp), len(r))
	}
	copy(r, resp)
	return nil
}

func (m *MCU) ReadRegister(addr uint8, r uint8, buf []byte) error {
	return m.Tx(uint16(addr), []byte{r}, buf)
}

func (m *MCU) WriteRegister(addr uint8, r uint8, buf []byte) error {
	return m.Tx(uint16(addr), append([]byte{r}, buf...), nil)
}

// Scan returns the 7-bit addresses that acknowledged.
func (m *MCU) Scan() ([]uint8, error) {
	resp, err := m.call("scan", protocol.CmdScan, nil)
	return append([]uint8(nil), resp...), err
}

// Events fetches the bridge's driver event ring, oldest first.
func (m *MCU) Events() ([]core.BusEvent, error) {
	resp, err := m.call("events", protocol.CmdEvents, nil)
	if err != nil {
		return nil, err
	}
	if len(resp)%6 != 0 {
		return nil, fmt.Errorf("events: %w: %d bytes", protocol.ErrBadResponse, len(resp))
	}
	events := make([]core.BusEvent, 0, len(resp)/6)
	for i := 0; i < len(resp); i += 6 {
		events = append(events, core.BusEvent{
			Kind:   resp[i],
			Addr:   resp[i+1],
			Index:  uint16(resp[i+2])<<8 | uint16(resp[i+3]),
			Status: uint16(resp[i+4])<<8 | uint16(resp[i+5]),
		})
	}
	return events, nil
}
