package core

import "errors"

var (
	// ErrTimeout signals that a status flag never showed up within the
	// wait budget.
	ErrTimeout = errors.New("i2c: timeout waiting for bus")

	// ErrBusBusy signals that the bus stayed busy (a stuck line or another
	// master) so no start condition could be generated.
	ErrBusBusy = errors.New("i2c: bus busy")

	// ErrAddressNACK signals that no device acknowledged the address phase.
	ErrAddressNACK = errors.New("i2c: address not acknowledged")

	// ErrDataNACK signals that the device stopped acknowledging mid-transfer.
	ErrDataNACK = errors.New("i2c: data not acknowledged")

	ErrBusError        = errors.New("i2c: misplaced start or stop on the bus")
	ErrArbitrationLost = errors.New("i2c: arbitration lost")

	ErrInvalidCount   = errors.New("i2c: burst read needs at least two bytes")
	ErrInvalidAddress = errors.New("i2c: only 7-bit addresses are supported")
	ErrInvalidConfig  = errors.New("i2c: invalid bus configuration")
	ErrNotConfigured  = errors.New("i2c: bus not configured")

	ErrSessionOpen   = errors.New("i2c: a session is already open on this bus")
	ErrSessionClosed = errors.New("i2c: session already stopped")
	ErrSessionState  = errors.New("i2c: operation not valid in this session state")
)

// TransferError reports which byte of a transfer failed.
type TransferError struct {
	Op    string // "write", "read", "request", ...
	Index int    // byte position within the transfer, -1 for the address phase
	Err   error
}

func (e *TransferError) Error() string {
	if e.Index < 0 {
		return "i2c " + e.Op + ": " + e.Err.Error()
	}
	return "i2c " + e.Op + " byte " + itoa(e.Index) + ": " + e.Err.Error()
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func transferError(op string, index int, err error) error {
	if err == nil {
		return nil
	}
	return &TransferError{Op: op, Index: index, Err: err}
}
