package core

import (
	"errors"

	"go.uber.org/multierr"
	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*Bus)(nil)

// Tx performs a write and then a read transfer to addr in one session,
// joined by a repeated start, placing the result in r. A nil w or r skips
// that half; with both nil the device is only addressed (a probe).
//
// This makes Bus usable wherever the TinyGo drivers expect an I2C bus.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return ErrInvalidAddress
	}
	a := uint8(addr)

	m, err := b.Start()
	if err != nil {
		return err
	}

	if len(w) > 0 || len(r) == 0 {
		if err := m.Request(AddrRW(a, false)); err != nil {
			return multierr.Append(err, m.Stop())
		}
		if _, err := m.WriteBurst(w); err != nil {
			return multierr.Append(err, m.Stop())
		}
		if len(r) == 0 {
			return m.Stop()
		}
		if err := m.Restart(); err != nil {
			return multierr.Append(err, m.Stop())
		}
	}

	if err := m.Request(AddrRW(a, true)); err != nil {
		return multierr.Append(err, m.Stop())
	}
	if len(r) == 1 {
		r[0], err = m.Read()
	} else {
		_, err = m.ReadBurst(r)
	}
	if err != nil && !m.Closed() {
		err = multierr.Append(err, m.Stop())
	}
	return err
}

// ReadRegister writes the register address then reads len(buf) bytes.
func (b *Bus) ReadRegister(addr uint8, r uint8, buf []byte) error {
	return b.Tx(uint16(addr), []byte{r}, buf)
}

// WriteRegister writes the register address followed by buf.
func (b *Bus) WriteRegister(addr uint8, r uint8, buf []byte) error {
	w := make([]byte, 0, len(buf)+1)
	w = append(w, r)
	w = append(w, buf...)
	return b.Tx(uint16(addr), w, nil)
}

// Scan probes every non-reserved 7-bit address with an empty write and
// returns the ones that acknowledged. Any failure other than an address
// NACK aborts the scan.
func (b *Bus) Scan() ([]uint8, error) {
	var found []uint8
	for a := uint8(0x08); a <= 0x77; a++ {
		err := b.Tx(uint16(a), nil, nil)
		switch {
		case err == nil:
			found = append(found, a)
		case errors.Is(err, ErrAddressNACK):
		default:
			return found, err
		}
	}
	return found, nil
}
