// Package sim is a register-level model of the STM32F1 I2C peripheral and
// the devices on its bus. It implements core.Registers so the driver's
// transfer sequences run unchanged on the host.
//
// Time advances on SR1 reads: each read completes at most one pending bus
// action (an address phase or one byte). A byte starts clocking the moment
// the peripheral is free to receive or has something to send, so the
// driver's CR1 writes between two SR1 polls land exactly where they would
// on hardware. The acknowledge decision for a received byte is taken when
// it completes (POS=0) or when it starts (POS=1), which is how the ACK bit
// ends up controlling the byte after the one in the data register.
package sim

import (
	"stm32i2c/core"
)

type role uint8

const (
	roleIdle role = iota
	roleMasterStarted
	roleMasterTx
	roleMasterRx
	roleMasterAborted
	roleSlaveRx
	roleSlaveTx
	roleSlaveDone
)

type shiftState uint8

const (
	shiftEmpty shiftState = iota
	shiftBusy             // byte on the wire
	shiftHeld             // received byte waiting for DR, SCL stretched
)

// Peripheral models one I2C controller plus the bus it drives.
type Peripheral struct {
	cr1, cr2, oar1, ccr, trise uint32

	role role

	// SR1 flags kept as state; RXNE and TXE are derived.
	sb, addr, btf, stopf, af, berr, arlo bool
	busy, msl, tra                       bool

	dr        byte
	drFull    bool
	shift     byte
	shiftSt   shiftState
	shiftAck  bool // latched ACK for POS=1
	latched   bool
	receiving bool
	lastNACK  bool

	addrPending bool
	addrByte    byte
	stopArmed   bool
	startArmed  bool

	targets map[uint8]Target
	current Target

	remote    []Transaction
	active    *Transaction
	remoteIdx int
	readBack  [][]byte

	stuck bool

	events []Event
}

// New returns an idle peripheral with no devices attached.
func New() *Peripheral {
	return &Peripheral{targets: make(map[uint8]Target)}
}

// Attach puts a device on the bus at a 7-bit address.
func (p *Peripheral) Attach(addr uint8, t Target) {
	p.targets[addr&0x7F] = t
}

// Stick holds the bus busy, as if SDA or SCL were shorted low.
func (p *Peripheral) Stick() {
	p.stuck = true
	p.busy = true
}

// Events returns the bus trace.
func (p *Peripheral) Events() []Event {
	return p.events
}

// Count returns how many events of kind were observed.
func (p *Peripheral) Count(kind EventKind) int {
	n := 0
	for _, e := range p.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Violations returns protocol errors the driver caused.
func (p *Peripheral) Violations() []string {
	var out []string
	for _, e := range p.events {
		if e.Kind == EvViolation {
			out = append(out, e.Note)
		}
	}
	return out
}

// Reset clears the trace.
func (p *Peripheral) Reset() {
	p.events = nil
}

func (p *Peripheral) emit(e Event) {
	p.events = append(p.events, e)
}

func (p *Peripheral) violation(note string) {
	p.emit(Event{Kind: EvViolation, Note: note})
}

func (p *Peripheral) enabled() bool {
	return p.cr1&core.CR1_PE != 0
}

func (p *Peripheral) sr1() uint32 {
	var v uint32
	set := func(cond bool, bit uint32) {
		if cond {
			v |= bit
		}
	}
	set(p.sb, core.SR1_SB)
	set(p.addr, core.SR1_ADDR)
	set(p.btf, core.SR1_BTF)
	set(p.stopf, core.SR1_STOPF)
	set(p.drFull && !p.tra && !p.addr && p.rxRole(), core.SR1_RXNE)
	set(!p.drFull && p.txRole() && !p.addr, core.SR1_TXE)
	set(p.berr, core.SR1_BERR)
	set(p.arlo, core.SR1_ARLO)
	set(p.af, core.SR1_AF)
	return v
}

func (p *Peripheral) sr2() uint32 {
	var v uint32
	if p.msl {
		v |= core.SR2_MSL
	}
	if p.busy {
		v |= core.SR2_BUSY
	}
	if p.tra {
		v |= core.SR2_TRA
	}
	return v
}

func (p *Peripheral) rxRole() bool {
	return p.role == roleMasterRx || p.role == roleSlaveRx ||
		(p.role == roleIdle && !p.tra) || p.role == roleMasterStarted
}

func (p *Peripheral) txRole() bool {
	return p.role == roleMasterTx || p.role == roleSlaveTx || p.role == roleSlaveDone
}

// Read implements core.Registers.
func (p *Peripheral) Read(r core.Reg) uint32 {
	switch r {
	case core.RegCR1:
		return p.cr1
	case core.RegCR2:
		return p.cr2
	case core.RegOAR1:
		return p.oar1
	case core.RegCCR:
		return p.ccr
	case core.RegTRISE:
		return p.trise
	case core.RegSR1:
		p.step()
		return p.sr1()
	case core.RegSR2:
		v := p.sr2()
		if p.addr {
			p.addr = false
			p.addrCleared()
		}
		return v
	case core.RegDR:
		return uint32(p.readDR())
	}
	return 0
}

// Write implements core.Registers.
func (p *Peripheral) Write(r core.Reg, v uint32) {
	switch r {
	case core.RegCR1:
		p.writeCR1(v)
	case core.RegCR2:
		p.cr2 = v
	case core.RegOAR1:
		p.oar1 = v
	case core.RegCCR:
		p.ccr = v
	case core.RegTRISE:
		p.trise = v
	case core.RegSR1:
		if v&core.SR1_AF == 0 && p.af {
			p.af = false
			if p.role == roleSlaveDone {
				p.slaveRelease()
			}
		}
		if v&core.SR1_BERR == 0 {
			p.berr = false
		}
		if v&core.SR1_ARLO == 0 {
			p.arlo = false
		}
	case core.RegDR:
		p.writeDR(byte(v))
	}
}

// Timing returns CR2, CCR and TRISE as last programmed.
func (p *Peripheral) Timing() (cr2, ccr, trise uint32) {
	return p.cr2, p.ccr, p.trise
}

// OwnAddress returns the 7-bit address programmed in OAR1.
func (p *Peripheral) OwnAddress() uint8 {
	return uint8((p.oar1 & core.OAR1_ADD_Msk) >> core.OAR1_ADD_Pos)
}

func (p *Peripheral) writeCR1(v uint32) {
	if v&core.CR1_SWRST != 0 {
		stuck := p.stuck
		targets, remote, events := p.targets, p.remote, p.events
		*p = Peripheral{targets: targets, remote: remote, events: events, cr1: v}
		p.stuck = stuck
		p.busy = stuck
		return
	}
	if p.stopf {
		p.stopf = false
		p.slaveRelease()
	}
	prev := p.cr1
	p.cr1 = v
	if !p.enabled() {
		return
	}
	if v&core.CR1_START != 0 && prev&core.CR1_START == 0 {
		p.startArmed = true
		p.tryStart()
	}
	if v&core.CR1_STOP != 0 && prev&core.CR1_STOP == 0 {
		p.stopArmed = true
		p.tryStop()
	}
}

func (p *Peripheral) masterActive() bool {
	switch p.role {
	case roleMasterStarted, roleMasterTx, roleMasterRx, roleMasterAborted:
		return true
	}
	return false
}

func (p *Peripheral) tryStart() {
	if !p.startArmed || p.stuck {
		return
	}
	if p.shiftSt == shiftBusy {
		return // after the current byte
	}
	if p.drFull && p.role == roleMasterTx {
		p.violation("restart with unsent byte in DR")
	}
	kind := EvStart
	if p.masterActive() {
		kind = EvRestart
	} else if p.busy {
		return
	}
	p.emit(Event{Kind: kind})
	p.startArmed = false
	p.cr1 &^= core.CR1_START
	p.role = roleMasterStarted
	p.sb, p.msl, p.busy = true, true, true
	p.tra = false
	p.btf = false
	p.af = false
	p.receiving = false
	p.lastNACK = false
	p.drFull = false
	p.shiftSt = shiftEmpty
}

func (p *Peripheral) tryStop() {
	if !p.stopArmed {
		return
	}
	if !p.masterActive() {
		// In slave mode STOP only releases the lines.
		p.stopArmed = false
		p.cr1 &^= core.CR1_STOP
		return
	}
	if p.shiftSt == shiftBusy {
		return // after the current byte
	}
	if p.addr {
		p.violation("stop while ADDR pending")
	}
	if p.role == roleMasterTx && p.drFull {
		p.violation("stop with unsent byte in DR")
	}
	p.emit(Event{Kind: EvStop})
	if p.current != nil {
		p.current.Stop()
		p.current = nil
	}
	p.stopArmed = false
	p.cr1 &^= core.CR1_STOP
	p.role = roleIdle
	p.msl, p.busy = false, p.stuck
	p.sb = false
	p.btf = false
	p.receiving = false
	if p.tra {
		p.drFull = false
	}
	p.tra = false
}

func (p *Peripheral) writeDR(b byte) {
	switch {
	case p.sb:
		p.sb = false
		p.addrPending = true
		p.addrByte = b
	case p.role == roleMasterTx:
		p.btf = false
		if p.shiftSt == shiftEmpty {
			p.shift = b
			p.shiftSt = shiftBusy
		} else if !p.drFull {
			p.dr = b
			p.drFull = true
		} else {
			p.violation("DR overrun in transmit")
		}
	case p.role == roleSlaveTx || p.role == roleSlaveDone:
		if p.drFull {
			p.violation("DR overrun in slave transmit")
		}
		p.dr = b
		p.drFull = true
	default:
		p.violation("DR write outside transmit")
	}
}

func (p *Peripheral) readDR() byte {
	if !p.drFull {
		p.violation("DR read while empty")
		return p.dr
	}
	v := p.dr
	p.btf = false
	if p.shiftSt == shiftHeld {
		p.dr = p.shift
		p.shiftSt = shiftEmpty
		p.kick()
	} else {
		p.drFull = false
		p.kick()
	}
	return v
}

// kick starts clocking the next byte in master receive.
func (p *Peripheral) kick() {
	if p.role != roleMasterRx || !p.receiving || p.shiftSt != shiftEmpty {
		return
	}
	if p.lastNACK {
		p.violation("clocked a byte after NACK without stop")
	}
	p.shift = p.current.Transmit()
	p.shiftSt = shiftBusy
	p.latched = p.cr1&core.CR1_POS != 0
	p.shiftAck = p.cr1&core.CR1_ACK != 0
}

func (p *Peripheral) addrCleared() {
	switch p.role {
	case roleMasterRx:
		p.receiving = true
		p.kick()
	case roleSlaveRx, roleSlaveTx:
		p.remoteIdx = 0
	}
}

// step advances the bus by one action.
func (p *Peripheral) step() {
	if !p.enabled() {
		return
	}
	switch {
	case p.addrPending:
		p.completeAddress()
	case p.shiftSt == shiftBusy && p.role == roleMasterRx:
		p.completeRx()
	case p.shiftSt == shiftBusy && p.role == roleMasterTx:
		p.completeTx()
	default:
		p.stepRemote()
	}
}

func (p *Peripheral) completeAddress() {
	p.addrPending = false
	a := p.addrByte
	read := a&1 != 0
	t := p.targets[a>>1]
	ack := t != nil && t.Address(read)
	p.emit(Event{Kind: EvAddress, Data: a, Ack: ack})
	if !ack {
		p.af = true
		p.role = roleMasterAborted
		return
	}
	p.current = t
	p.addr = true
	p.tra = !read
	if read {
		p.role = roleMasterRx
	} else {
		p.role = roleMasterTx
	}
}

func (p *Peripheral) completeRx() {
	ack := p.cr1&core.CR1_ACK != 0
	if p.latched {
		ack = p.shiftAck
	}
	p.emit(Event{Kind: EvRead, Data: p.shift, Ack: ack})
	p.lastNACK = !ack
	if !p.drFull {
		p.dr = p.shift
		p.drFull = true
		p.shiftSt = shiftEmpty
	} else {
		p.shiftSt = shiftHeld
		p.btf = true
	}
	if p.stopArmed {
		p.tryStop()
		return
	}
	if p.startArmed {
		p.tryStart()
		return
	}
	p.kick()
}

func (p *Peripheral) completeTx() {
	ack := p.current.Receive(p.shift)
	p.emit(Event{Kind: EvWrite, Data: p.shift, Ack: ack})
	p.shiftSt = shiftEmpty
	if !ack {
		p.af = true
		p.drFull = false
		p.role = roleMasterAborted
		p.tra = false
		p.tryStop()
		p.tryStart()
		return
	}
	if p.drFull {
		p.shift = p.dr
		p.drFull = false
		p.shiftSt = shiftBusy
	} else {
		p.btf = true
	}
	p.tryStop()
	p.tryStart()
}

// stepRemote runs the queued remote-master transactions against the
// peripheral's slave side.
func (p *Peripheral) stepRemote() {
	switch p.role {
	case roleIdle:
		if p.active != nil || len(p.remote) == 0 || p.busy {
			return
		}
		t := p.remote[0]
		p.remote = p.remote[1:]
		p.emit(Event{Kind: EvStart, Remote: true})

		a := core.AddrRW(t.Address, t.Read)
		ack := t.Address == p.OwnAddress() && p.cr1&core.CR1_ACK != 0
		p.emit(Event{Kind: EvAddress, Data: a, Ack: ack, Remote: true})
		if !ack {
			p.emit(Event{Kind: EvStop, Remote: true})
			return
		}
		p.active = &t
		p.addr = true
		p.busy = true
		p.tra = t.Read
		p.drFull = false
		if t.Read {
			p.role = roleSlaveTx
			p.readBack = append(p.readBack, nil)
		} else {
			p.role = roleSlaveRx
		}

	case roleSlaveRx:
		if p.addr || p.stopf {
			return
		}
		t := p.active
		if p.remoteIdx >= len(t.Data) {
			p.stopf = true
			p.emit(Event{Kind: EvStop, Remote: true})
			return
		}
		if p.drFull {
			return // clock stretched until DR is read
		}
		b := t.Data[p.remoteIdx]
		ack := p.cr1&core.CR1_ACK != 0
		p.emit(Event{Kind: EvWrite, Data: b, Ack: ack, Remote: true})
		p.dr = b
		p.drFull = true
		p.remoteIdx++
		if !ack {
			// NACKed: the master gives up on the rest.
			p.remoteIdx = len(t.Data)
		}

	case roleSlaveTx:
		if p.addr || !p.drFull {
			return
		}
		t := p.active
		p.remoteIdx++
		ack := p.remoteIdx < t.Count
		p.emit(Event{Kind: EvRead, Data: p.dr, Ack: ack, Remote: true})
		last := len(p.readBack) - 1
		p.readBack[last] = append(p.readBack[last], p.dr)
		p.drFull = false
		if !ack {
			p.af = true
			p.role = roleSlaveDone
			p.emit(Event{Kind: EvStop, Remote: true})
		}
	}
}

func (p *Peripheral) slaveRelease() {
	p.role = roleIdle
	p.active = nil
	p.busy = p.stuck
	p.tra = false
	p.drFull = false
	p.remoteIdx = 0
}

// Inject queues a transaction from a remote master addressing this
// peripheral. It starts on the first SR1 poll while the bus is idle.
func (p *Peripheral) Inject(t Transaction) {
	p.remote = append(p.remote, t)
}

// MasterReads returns, per injected read transaction, the bytes the remote
// master received.
func (p *Peripheral) MasterReads() [][]byte {
	return p.readBack
}
