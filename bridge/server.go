// Package bridge runs bridge commands against a core.Bus. It holds at most
// one open master session between commands, so a host can drive start,
// request, write, read and stop one frame at a time.
package bridge

import (
	"stm32i2c/core"
	"stm32i2c/protocol"
)

// Server is a protocol.Handler bound to one bus.
type Server struct {
	bus    *core.Bus
	master *core.Master

	buf [protocol.MaxData]byte
	out [core.EventRingSize * 6]byte
}

func NewServer(bus *core.Bus) *Server {
	return &Server{bus: bus}
}

// Handle executes one command. It matches protocol.Handler.
func (s *Server) Handle(cmd uint32, args *[]byte) (uint32, []byte) {
	data, err := s.handle(cmd, args)
	if s.master != nil && s.master.Closed() {
		s.master = nil
	}
	return StatusOf(err), data
}

// Session reports whether a master session is held open between commands.
func (s *Server) Session() bool {
	return s.master != nil
}

func (s *Server) handle(cmd uint32, args *[]byte) ([]byte, error) {
	switch cmd {
	case protocol.CmdIdentify:
		n := copy(s.out[:], protocol.Version)
		return s.out[:n], nil

	case protocol.CmdConfigure:
		return nil, s.configure(args)

	case protocol.CmdStart:
		if s.master != nil {
			return nil, s.master.Restart()
		}
		m, err := s.bus.Start()
		if err != nil {
			return nil, err
		}
		s.master = m
		return nil, nil

	case protocol.CmdRestart:
		if s.master == nil {
			return nil, core.ErrSessionClosed
		}
		return nil, s.master.Restart()

	case protocol.CmdStop:
		if s.master == nil {
			return nil, core.ErrSessionClosed
		}
		return nil, s.master.Stop()

	case protocol.CmdRequest:
		addr, err := protocol.DecodeVLQUint(args)
		if err != nil || addr > 0xFF {
			return nil, ErrBadArgs
		}
		if s.master == nil {
			return nil, core.ErrSessionClosed
		}
		return nil, s.master.Request(byte(addr))

	case protocol.CmdWrite:
		w, err := protocol.DecodeVLQBytes(args)
		if err != nil {
			return nil, ErrBadArgs
		}
		if s.master == nil {
			return nil, core.ErrSessionClosed
		}
		n, err := s.master.WriteBurst(w)
		s.buf[0] = byte(n)
		return s.buf[:1], err

	case protocol.CmdRead:
		if s.master == nil {
			return nil, core.ErrSessionClosed
		}
		v, err := s.master.Read()
		s.buf[0] = v
		return s.buf[:1], err

	case protocol.CmdReadBurst:
		n, err := protocol.DecodeVLQUint(args)
		if err != nil || n > protocol.MaxData {
			return nil, ErrBadArgs
		}
		if s.master == nil {
			return nil, core.ErrSessionClosed
		}
		k, err := s.master.ReadBurst(s.buf[:n])
		return s.buf[:k], err

	case protocol.CmdTx:
		return s.tx(args)

	case protocol.CmdScan:
		found, err := s.bus.Scan()
		n := copy(s.out[:], found)
		return s.out[:n], err

	case protocol.CmdEvents:
		return s.events(), nil
	}
	return nil, ErrUnknownCommand
}

func (s *Server) configure(args *[]byte) error {
	pclk, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return ErrBadArgs
	}
	freq, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return ErrBadArgs
	}
	own, err := protocol.DecodeVLQUint(args)
	if err != nil || own > 0x7F {
		return ErrBadArgs
	}
	err = s.bus.Configure(core.Config{
		PeripheralClockHz: pclk,
		FrequencyHz:       freq,
		OwnAddress:        uint8(own),
	})
	if err != nil {
		return err
	}
	// The peripheral was reset, which drops any open session.
	s.master = nil
	return nil
}

func (s *Server) tx(args *[]byte) ([]byte, error) {
	addr, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return nil, ErrBadArgs
	}
	w, err := protocol.DecodeVLQBytes(args)
	if err != nil {
		return nil, ErrBadArgs
	}
	n, err := protocol.DecodeVLQUint(args)
	if err != nil || n > protocol.MaxData || addr > 0xFFFF {
		return nil, ErrBadArgs
	}

	var r []byte
	if n > 0 {
		r = s.buf[:n]
	}
	if err := s.bus.Tx(uint16(addr), w, r); err != nil {
		return nil, err
	}
	return r, nil
}

// events packs the driver event ring, 6 bytes per event:
// kind, addr, index (big endian), status (big endian).
func (s *Server) events() []byte {
	n := 0
	for _, e := range core.Events() {
		s.out[n] = e.Kind
		s.out[n+1] = e.Addr
		s.out[n+2] = byte(e.Index >> 8)
		s.out[n+3] = byte(e.Index)
		s.out[n+4] = byte(e.Status >> 8)
		s.out[n+5] = byte(e.Status)
		n += 6
	}
	return s.out[:n]
}
