package core

// Slave is a session in which a remote master addressed the own address.
// The remote master decides how long it lasts: a receive ends with its
// stop condition, a transmit ends when it NACKs a byte.
type Slave struct {
	bus         *Bus
	transmitter bool
	done        bool
	gen         uint32
}

// Transmitting reports whether the master asked to read from us.
func (s *Slave) Transmitting() bool {
	return s.transmitter
}

// Done reports whether the remote master has ended the session or the bus
// was reconfigured under it.
func (s *Slave) Done() bool {
	return s.done || s.gen != s.bus.gen
}

func (s *Slave) end(sr1 uint32) {
	b := s.bus
	if sr1&SR1_STOPF != 0 {
		// STOPF clears on SR1 read (already done) followed by a CR1 write.
		b.modifyCR1(CR1_ACK, 0)
	}
	if sr1&SR1_AF != 0 {
		b.clearFlags(SR1_AF)
	}
	RecordEvent(EvtSlaveDone, AddrRW(b.cfg.OwnAddress, s.transmitter), 0, sr1)
	s.done = true
	b.open = false
}

// Write transmits one byte to the master. ErrDataNACK means the master
// did not want it; the session is over in that case.
func (s *Slave) Write(data byte) error {
	if s.Done() {
		return ErrSessionClosed
	}
	if !s.transmitter {
		return ErrSessionState
	}
	b := s.bus
	sr1, err := b.await(SR1_TXE|SR1_AF|SR1_STOPF, nil)
	if err != nil {
		return transferError("slave write", 0, err)
	}
	if sr1&(SR1_AF|SR1_STOPF) != 0 {
		s.end(sr1)
		return ErrDataNACK
	}
	b.regs.Write(RegDR, uint32(data))
	return nil
}

// WriteBurst feeds bytes to the master for as long as it keeps reading.
// Once buf is exhausted SlavePadByte is sent. The return value counts the
// bytes of buf the master consumed.
func (s *Slave) WriteBurst(buf []byte) (int, error) {
	if s.Done() {
		return 0, ErrSessionClosed
	}
	if !s.transmitter {
		return 0, ErrSessionState
	}
	b := s.bus
	written := 0
	for {
		sr1, err := b.await(SR1_TXE|SR1_AF|SR1_STOPF, nil)
		if err != nil {
			return min(written, len(buf)), transferError("slave write", written, err)
		}
		if sr1&(SR1_AF|SR1_STOPF) != 0 {
			// A byte still sitting in DR never went out.
			if sr1&SR1_TXE == 0 && written > 0 {
				written--
			}
			s.end(sr1)
			return min(written, len(buf)), nil
		}
		v := byte(SlavePadByte)
		if written < len(buf) {
			v = buf[written]
		}
		b.regs.Write(RegDR, uint32(v))
		written++
	}
}

// Read receives one byte from the master. ErrSessionClosed means the
// master sent stop instead.
func (s *Slave) Read() (byte, error) {
	if s.Done() {
		return 0, ErrSessionClosed
	}
	if s.transmitter {
		return 0, ErrSessionState
	}
	b := s.bus
	sr1, err := b.await(SR1_RXNE|SR1_STOPF, nil)
	if err != nil {
		return 0, transferError("slave read", 0, err)
	}
	if sr1&SR1_RXNE != 0 {
		return byte(b.regs.Read(RegDR)), nil
	}
	s.end(sr1)
	return 0, ErrSessionClosed
}

// ReadBurst stores bytes from the master until it sends stop. Bytes past
// len(buf) are NACKed and dropped. It returns the number stored.
func (s *Slave) ReadBurst(buf []byte) (int, error) {
	if s.Done() {
		return 0, ErrSessionClosed
	}
	if s.transmitter {
		return 0, ErrSessionState
	}
	b := s.bus
	n := 0
	if len(buf) == 0 {
		b.modifyCR1(0, CR1_ACK)
	}
	for {
		sr1, err := b.await(SR1_RXNE|SR1_STOPF, nil)
		if err != nil {
			b.modifyCR1(CR1_ACK, 0)
			return n, transferError("slave read", n, err)
		}
		if sr1&SR1_RXNE != 0 {
			v := byte(b.regs.Read(RegDR))
			if n < len(buf) {
				buf[n] = v
				n++
				if n == len(buf) {
					b.modifyCR1(0, CR1_ACK)
				}
			}
			continue
		}
		s.end(sr1)
		return n, nil
	}
}
