package core

type sessionState uint8

const (
	stateStarted   sessionState = iota // START generated, address phase next
	stateWriting                       // addressed as transmitter
	stateReading                       // addressed as receiver, ADDR still pending
	stateAborted                       // NACK or bus fault; only Restart or Stop
	stateClosed
)

// Master is an open master session, created by Bus.Start. It is the only
// way to reach the address and data phases, and it is spent once the stop
// condition has been generated.
type Master struct {
	bus   *Bus
	state sessionState
	addr  byte
	gen   uint32
}

// Closed reports whether the session has already generated its stop, or
// was dropped by a Configure.
func (m *Master) Closed() bool {
	return m.state == stateClosed || m.gen != m.bus.gen
}

func (m *Master) check(want ...sessionState) error {
	if m.Closed() {
		return ErrSessionClosed
	}
	for _, s := range want {
		if m.state == s {
			return nil
		}
	}
	return ErrSessionState
}

func (m *Master) generateStart(kind uint8) error {
	b := m.bus
	// ACK back on for the next receive, POS only lives inside a 2-byte read.
	b.modifyCR1(CR1_START|CR1_ACK, CR1_POS|CR1_STOP)
	sr1, err := b.await(SR1_SB, nil)
	if err != nil {
		b.modifyCR1(0, CR1_START)
		m.state = stateAborted
		return transferError("start", -1, err)
	}
	RecordEvent(kind, m.addr, 0, sr1)
	m.state = stateStarted
	return nil
}

// Restart issues a repeated start within the session, typically to turn a
// register-address write into a read. A start that has not been followed
// by a request yet may be repeated too.
func (m *Master) Restart() error {
	if err := m.check(stateStarted, stateWriting, stateAborted); err != nil {
		return err
	}
	return m.generateStart(EvtRestart)
}

// Request sends the address byte (7-bit address shifted left, R/W in bit 0)
// and waits for the addressed device to acknowledge. In read direction the
// ADDR flag is left pending: Read and ReadBurst program ACK, POS and STOP
// before releasing the clock.
func (m *Master) Request(addrRW byte) error {
	if err := m.check(stateStarted); err != nil {
		return err
	}
	b := m.bus
	m.addr = addrRW

	// SB was seen by the start's SR1 read; writing DR clears it.
	b.regs.Write(RegDR, uint32(addrRW))
	sr1, err := b.await(SR1_ADDR, ErrAddressNACK)
	if err != nil {
		m.state = stateAborted
		if err == ErrAddressNACK {
			RecordEvent(EvtAddrNACK, addrRW, 0, sr1)
		}
		return transferError("request", -1, err)
	}
	RecordEvent(EvtAddrRequest, addrRW, 0, sr1)

	if addrRW&1 == 0 {
		b.clearADDR()
		m.state = stateWriting
	} else {
		m.state = stateReading
	}
	return nil
}

// Write transmits one byte and waits until it has left the shift register.
func (m *Master) Write(data byte) error {
	return m.write(data, 0)
}

func (m *Master) write(data byte, index int) error {
	if err := m.check(stateWriting); err != nil {
		return err
	}
	b := m.bus
	b.regs.Write(RegDR, uint32(data))
	sr1, err := b.await(SR1_BTF, ErrDataNACK)
	if err != nil {
		m.state = stateAborted
		if err == ErrDataNACK {
			RecordEvent(EvtDataNACK, m.addr, index, sr1)
		}
		return err
	}
	return nil
}

// WriteBurst writes buf in order and returns how many bytes the device
// acknowledged. The caller owns start, request and stop around it.
func (m *Master) WriteBurst(buf []byte) (int, error) {
	for i, v := range buf {
		if err := m.write(v, i); err != nil {
			return i, transferError("write", i, err)
		}
	}
	return len(buf), nil
}

// Read receives exactly one byte and ends the session: the byte is NACKed
// and followed by stop.
func (m *Master) Read() (byte, error) {
	if err := m.check(stateReading); err != nil {
		return 0, err
	}
	b := m.bus

	// NACK must be programmed while ADDR still stretches the clock.
	b.modifyCR1(0, CR1_ACK|CR1_POS)
	b.clearADDR()
	b.modifyCR1(CR1_STOP, 0)

	_, err := b.await(SR1_RXNE, nil)
	v := byte(b.regs.Read(RegDR))
	return v, m.finish(transferError("read", 0, err))
}

// ReadBurst receives len(buf) bytes, len(buf) >= 2, NACKs the last one and
// ends the session with stop. On failure the count of bytes stored so far
// is returned.
func (m *Master) ReadBurst(buf []byte) (int, error) {
	if err := m.check(stateReading); err != nil {
		return 0, err
	}
	if len(buf) < 2 {
		return 0, ErrInvalidCount
	}
	if len(buf) == 2 {
		return m.readTwo(buf)
	}
	return m.readMany(buf)
}

// readTwo uses POS so the ACK bit applies to the byte after the one in the
// shift register: byte 0 is ACKed, byte 1 NACKed, stop follows byte 1.
func (m *Master) readTwo(buf []byte) (int, error) {
	b := m.bus
	b.modifyCR1(CR1_POS|CR1_ACK, 0)
	b.clearADDR()
	b.modifyCR1(0, CR1_ACK)

	// BTF: byte 0 in DR, byte 1 in the shift register, SCL stretched.
	if _, err := b.await(SR1_BTF, nil); err != nil {
		b.modifyCR1(CR1_STOP, CR1_POS)
		return 0, m.finish(transferError("read", 0, err))
	}
	b.modifyCR1(CR1_STOP, 0)
	buf[0] = byte(b.regs.Read(RegDR))
	buf[1] = byte(b.regs.Read(RegDR))
	b.modifyCR1(0, CR1_POS)
	return 2, m.finish(nil)
}

// readMany handles three or more bytes. The last three are taken with BTF
// so that ACK is cleared while byte N-1 waits in the shift register and
// stop is set while byte N waits there.
func (m *Master) readMany(buf []byte) (int, error) {
	b := m.bus
	n := len(buf)
	b.modifyCR1(CR1_ACK, CR1_POS)
	b.clearADDR()

	i := 0
	for ; n-i > 3; i++ {
		if _, err := b.await(SR1_RXNE, nil); err != nil {
			return i, m.abortRead(i, err)
		}
		buf[i] = byte(b.regs.Read(RegDR))
	}

	// Byte N-2 in DR, N-1 in shift register.
	if _, err := b.await(SR1_BTF, nil); err != nil {
		return i, m.abortRead(i, err)
	}
	b.modifyCR1(0, CR1_ACK)
	buf[i] = byte(b.regs.Read(RegDR))
	i++

	// Byte N-1 in DR, N (NACKed) in shift register.
	if _, err := b.await(SR1_BTF, nil); err != nil {
		return i, m.abortRead(i, err)
	}
	b.modifyCR1(CR1_STOP, 0)
	buf[i] = byte(b.regs.Read(RegDR))
	i++

	if _, err := b.await(SR1_RXNE, nil); err != nil {
		return i, m.finish(transferError("read", i, err))
	}
	buf[i] = byte(b.regs.Read(RegDR))
	i++
	return i, m.finish(nil)
}

func (m *Master) abortRead(index int, err error) error {
	m.bus.modifyCR1(CR1_STOP, CR1_ACK)
	return m.finish(transferError("read", index, err))
}

// Stop generates the stop condition and releases the bus. A session that
// was addressed for reading but never read clocks in one NACKed byte first
// since the peripheral cannot stop while ADDR holds the clock.
func (m *Master) Stop() error {
	if err := m.check(stateStarted, stateWriting, stateReading, stateAborted); err != nil {
		return err
	}
	if m.state == stateReading {
		_, err := m.Read()
		return err
	}
	m.bus.modifyCR1(CR1_STOP, 0)
	return m.finish(nil)
}

// finish waits for the hardware to take the STOP request, then closes the
// session. err is the transfer's own result and takes precedence.
func (m *Master) finish(err error) error {
	b := m.bus
	ok := b.wait.Wait(func() bool { return b.regs.Read(RegCR1)&CR1_STOP == 0 })
	RecordEvent(EvtStop, m.addr, 0, 0)
	m.state = stateClosed
	b.open = false
	if err != nil {
		return err
	}
	if !ok {
		return transferError("stop", -1, ErrTimeout)
	}
	return nil
}
