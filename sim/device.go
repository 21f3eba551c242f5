package sim

// EventKind classifies one entry of the bus trace.
type EventKind uint8

const (
	EvStart EventKind = iota + 1
	EvRestart
	EvStop
	EvAddress // address byte, Ack tells whether a device answered
	EvWrite   // byte sent by the master
	EvRead    // byte received by the master, Ack is the master's ACK/NACK
	EvViolation
)

func (k EventKind) String() string {
	switch k {
	case EvStart:
		return "start"
	case EvRestart:
		return "restart"
	case EvStop:
		return "stop"
	case EvAddress:
		return "address"
	case EvWrite:
		return "write"
	case EvRead:
		return "read"
	case EvViolation:
		return "violation"
	}
	return "unknown"
}

// Event is one observable bus action.
type Event struct {
	Kind   EventKind
	Data   byte
	Ack    bool
	Remote bool // driven by an injected remote master
	Note   string
}

// Transaction is a remote master talking to the peripheral's own address.
type Transaction struct {
	Address uint8  // 7-bit address the remote master sends
	Read    bool   // the remote master reads from the peripheral
	Data    []byte // bytes a writing master sends
	Count   int    // bytes a reading master takes; the last is NACKed
}

// Target is a device on the simulated bus.
type Target interface {
	// Address reports whether the device acknowledges its address.
	Address(read bool) bool
	// Receive takes a byte from the master and returns the device's ACK.
	Receive(b byte) bool
	// Transmit returns the next byte the device drives onto the bus.
	Transmit() byte
	// Stop is called when the master releases the bus.
	Stop()
}

// Echo stores what it receives and sends it back in order.
// Limit > 0 makes it NACK every byte after the first Limit of a session.
type Echo struct {
	Limit int

	queue   []byte
	session int
}

func (e *Echo) Address(read bool) bool {
	e.session = 0
	return true
}

func (e *Echo) Receive(b byte) bool {
	if e.Limit > 0 && e.session >= e.Limit {
		return false
	}
	e.session++
	e.queue = append(e.queue, b)
	return true
}

func (e *Echo) Transmit() byte {
	if len(e.queue) == 0 {
		return 0xFF
	}
	b := e.queue[0]
	e.queue = e.queue[1:]
	return b
}

func (e *Echo) Stop() {}

// Pending returns the bytes stored but not yet read back.
func (e *Echo) Pending() []byte {
	return e.queue
}

// Memory is a register-addressed device in the style of a 24C02 EEPROM:
// the first byte written in a session sets the address pointer, further
// bytes are stored with auto-increment, reads continue from the pointer.
type Memory struct {
	Cells [256]byte

	ptr      uint8
	gotIndex bool
}

func (m *Memory) Address(read bool) bool {
	if !read {
		m.gotIndex = false
	}
	return true
}

func (m *Memory) Receive(b byte) bool {
	if !m.gotIndex {
		m.ptr = b
		m.gotIndex = true
		return true
	}
	m.Cells[m.ptr] = b
	m.ptr++
	return true
}

func (m *Memory) Transmit() byte {
	b := m.Cells[m.ptr]
	m.ptr++
	return b
}

func (m *Memory) Stop() {}

// Sequence transmits a fixed byte sequence and then 0xFF.
type Sequence []byte

func (s *Sequence) Address(read bool) bool { return true }
func (s *Sequence) Receive(b byte) bool    { return true }
func (s *Sequence) Stop()                  {}

func (s *Sequence) Transmit() byte {
	if len(*s) == 0 {
		return 0xFF
	}
	b := (*s)[0]
	*s = (*s)[1:]
	return b
}
