package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// BusEvent captures one bus transition for post-mortem analysis
type BusEvent struct {
	Kind   uint8  // Event type code
	Addr   uint8  // Address byte of the current session (pre-shifted, with R/W)
	Index  uint16 // Byte position within the transfer
	Status uint16 // SR1 snapshot when the event was recorded
}

// Event type codes
const (
	EvtStart       = 1
	EvtRestart     = 2
	EvtStop        = 3
	EvtAddrNACK    = 4
	EvtDataNACK    = 5
	EvtTimeout     = 6
	EvtBusError    = 7
	EvtArbLost     = 8
	EvtSlaveMatch  = 9
	EvtSlaveDone   = 10
	EvtBusBusy     = 11
	EvtConfigured  = 12
	EvtAddrRequest = 13
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool = false

	eventRing     [EventRingSize]BusEvent
	eventRingHead uint8
	eventEnabled  bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// so a target can redirect messages to a spare UART.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetEventRecording turns event capture on or off
func SetEventRecording(enabled bool) {
	eventEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent captures a bus event in the ring buffer.
// Never blocks, so it is safe inside the transfer state machine.
func RecordEvent(kind, addr uint8, index int, status uint32) {
	if !eventEnabled {
		return
	}
	idx := eventRingHead
	eventRing[idx] = BusEvent{
		Kind:   kind,
		Addr:   addr,
		Index:  uint16(index),
		Status: uint16(status),
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// Events returns the recorded events, oldest first.
func Events() []BusEvent {
	out := make([]BusEvent, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.Kind == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

func eventName(kind uint8) string {
	switch kind {
	case EvtStart:
		return "START"
	case EvtRestart:
		return "RESTART"
	case EvtStop:
		return "STOP"
	case EvtAddrNACK:
		return "ADDR_NACK!"
	case EvtDataNACK:
		return "DATA_NACK!"
	case EvtTimeout:
		return "TIMEOUT!"
	case EvtBusError:
		return "BUS_ERROR!"
	case EvtArbLost:
		return "ARB_LOST!"
	case EvtSlaveMatch:
		return "SLAVE_MATCH"
	case EvtSlaveDone:
		return "SLAVE_DONE"
	case EvtBusBusy:
		return "BUS_BUSY!"
	case EvtConfigured:
		return "CONFIGURED"
	case EvtAddrRequest:
		return "REQUEST"
	default:
		return "UNKNOWN"
	}
}

func (e BusEvent) String() string {
	return eventName(e.Kind) +
		" addr=0x" + hex8(e.Addr) +
		" idx=" + itoa(int(e.Index)) +
		" sr1=0x" + hex16(e.Status)
}

// DumpEventRing outputs the event ring buffer (call after a failed transfer)
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[I2C] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[I2C] " + evt.String())
	}
	debugPrintln("[I2C] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	for i := range eventRing {
		eventRing[i] = BusEvent{}
	}
	eventRingHead = 0
}
