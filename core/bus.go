// Package core drives the STM32F1 I2C peripheral through its register
// interface. The transfer sequences follow the reference manual (RM0008
// 26.3.3) so the acknowledge bit, which is always one byte ahead of the data
// register, and the stop condition land on the right byte.
package core

// Mode selects which side of the bus a session plays.
type Mode uint8

const (
	ModeSlave Mode = iota
	ModeMaster
)

func (m Mode) String() string {
	if m == ModeMaster {
		return "master"
	}
	return "slave"
}

// Transferer is the capability set shared by master and slave sessions.
type Transferer interface {
	Write(data byte) error
	WriteBurst(buf []byte) (int, error)
	Read() (byte, error)
	ReadBurst(buf []byte) (int, error)
}

// AddrRW packs a 7-bit address and the direction bit into an address byte.
func AddrRW(addr uint8, read bool) byte {
	b := addr << 1
	if read {
		b |= 1
	}
	return b
}

// Bus is one I2C peripheral. It is not safe for concurrent use: callers
// sharing a bus must serialize whole start..stop sessions themselves.
type Bus struct {
	regs Registers
	wait Waiter
	cfg  Config

	configured bool
	open       bool   // a Master or Slave session holds the bus
	gen        uint32 // session generation, handles from older ones are spent
}

// New wraps a register block. A nil waiter means Polls(DefaultPollBudget).
func New(regs Registers, wait Waiter) *Bus {
	if wait == nil {
		wait = Polls(DefaultPollBudget)
	}
	return &Bus{regs: regs, wait: wait}
}

// Config returns the configuration applied by the last Configure.
func (b *Bus) Config() Config {
	return b.cfg
}

// Configure resets the peripheral and programs timing and the own address.
// Clocks and pins must already be set up by the target.
func (b *Bus) Configure(cfg Config) error {
	if cfg.PeripheralClockHz == 0 {
		cfg.PeripheralClockHz = DefaultPeripheralClockHz
	}
	if cfg.FrequencyHz == 0 {
		cfg.FrequencyHz = StandardFrequencyHz
	}
	if cfg.OwnAddress == 0 {
		cfg.OwnAddress = DefaultOwnAddress
	}
	cr2, ccr, trise, err := cfg.timing()
	if err != nil {
		return err
	}

	// A software reset releases a BUSY flag latched by a glitch at power up.
	b.regs.Write(RegCR1, CR1_SWRST)
	b.regs.Write(RegCR1, 0)

	b.regs.Write(RegCR2, cr2)
	b.regs.Write(RegCCR, ccr)
	b.regs.Write(RegTRISE, trise)
	b.regs.Write(RegOAR1, OAR1_Reserved|uint32(cfg.OwnAddress)<<OAR1_ADD_Pos)
	b.regs.Write(RegCR1, CR1_PE|CR1_ACK)

	b.cfg = cfg
	b.configured = true
	b.open = false
	b.gen++
	RecordEvent(EvtConfigured, cfg.OwnAddress, 0, 0)
	return nil
}

// Start generates a start condition and returns the open master session.
func (b *Bus) Start() (*Master, error) {
	if !b.configured {
		return nil, ErrNotConfigured
	}
	if b.open {
		return nil, ErrSessionOpen
	}

	if !b.wait.Wait(func() bool { return b.regs.Read(RegSR2)&SR2_BUSY == 0 }) {
		RecordEvent(EvtBusBusy, 0, 0, b.regs.Read(RegSR1))
		return nil, ErrBusBusy
	}

	b.gen++
	m := &Master{bus: b, gen: b.gen}
	if err := m.generateStart(EvtStart); err != nil {
		return nil, err
	}
	b.open = true
	return m, nil
}

// Listen waits until a master addresses the own address and returns the
// slave session. The direction is latched from SR2.TRA.
func (b *Bus) Listen() (*Slave, error) {
	if !b.configured {
		return nil, ErrNotConfigured
	}
	if b.open {
		return nil, ErrSessionOpen
	}

	b.modifyCR1(CR1_ACK, CR1_POS|CR1_START|CR1_STOP)
	sr1, err := b.await(SR1_ADDR, nil)
	if err != nil {
		return nil, transferError("listen", -1, err)
	}
	sr2 := b.regs.Read(RegSR2) // SR1 then SR2 clears ADDR

	b.gen++
	s := &Slave{bus: b, transmitter: sr2&SR2_TRA != 0, gen: b.gen}
	RecordEvent(EvtSlaveMatch, AddrRW(b.cfg.OwnAddress, s.transmitter), 0, sr1)
	b.open = true
	return s, nil
}

// Open starts a session in the given mode: a start condition for master,
// waiting to be addressed for slave.
func (b *Bus) Open(mode Mode) (Transferer, error) {
	switch mode {
	case ModeMaster:
		m, err := b.Start()
		if err != nil {
			return nil, err
		}
		return m, nil
	case ModeSlave:
		s, err := b.Listen()
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, ErrSessionState
	}
}

// modifyCR1 sets and clears CR1 bits in one write.
func (b *Bus) modifyCR1(set, clear uint32) {
	cr1 := b.regs.Read(RegCR1)
	b.regs.Write(RegCR1, (cr1&^clear)|set)
}

// clearADDR clears the address-matched flag: read SR1 followed by SR2.
func (b *Bus) clearADDR() {
	_ = b.regs.Read(RegSR1)
	_ = b.regs.Read(RegSR2)
}

// clearFlags clears rc_w0 flags in SR1.
func (b *Bus) clearFlags(flags uint32) {
	b.regs.Write(RegSR1, ^uint32(flags)&0xFFFF)
}

// await polls SR1 until any of flags is set. Bus error and arbitration
// loss always end the wait. AF ends it with nack unless nack is nil, in
// which case AF must be part of flags to be noticed.
func (b *Bus) await(flags uint32, nack error) (uint32, error) {
	stop := flags | SR1_BERR | SR1_ARLO
	if nack != nil {
		stop |= SR1_AF
	}

	var sr1 uint32
	if !b.wait.Wait(func() bool {
		sr1 = b.regs.Read(RegSR1)
		return sr1&stop != 0
	}) {
		RecordEvent(EvtTimeout, 0, 0, sr1)
		DebugPrintln("[I2C] timeout waiting for sr1=0x" + hex16(uint16(flags)))
		return sr1, ErrTimeout
	}

	switch {
	case sr1&SR1_BERR != 0:
		b.clearFlags(SR1_BERR)
		RecordEvent(EvtBusError, 0, 0, sr1)
		return sr1, ErrBusError
	case sr1&SR1_ARLO != 0:
		b.clearFlags(SR1_ARLO)
		RecordEvent(EvtArbLost, 0, 0, sr1)
		return sr1, ErrArbitrationLost
	case nack != nil && sr1&SR1_AF != 0:
		b.clearFlags(SR1_AF)
		return sr1, nack
	}
	return sr1, nil
}
