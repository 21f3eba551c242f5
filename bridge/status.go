package bridge

import (
	"errors"

	"stm32i2c/core"
	"stm32i2c/protocol"
)

var (
	ErrUnknownCommand = errors.New("bridge: unknown command")
	ErrBadArgs        = errors.New("bridge: malformed command arguments")
	ErrInternal       = errors.New("bridge: internal firmware error")
)

var statusErrors = []struct {
	status uint32
	err    error
}{
	{protocol.StatusTimeout, core.ErrTimeout},
	{protocol.StatusBusBusy, core.ErrBusBusy},
	{protocol.StatusAddressNACK, core.ErrAddressNACK},
	{protocol.StatusDataNACK, core.ErrDataNACK},
	{protocol.StatusBusError, core.ErrBusError},
	{protocol.StatusArbitrationLost, core.ErrArbitrationLost},
	{protocol.StatusInvalidCount, core.ErrInvalidCount},
	{protocol.StatusInvalidAddress, core.ErrInvalidAddress},
	{protocol.StatusInvalidConfig, core.ErrInvalidConfig},
	{protocol.StatusNotConfigured, core.ErrNotConfigured},
	{protocol.StatusSessionOpen, core.ErrSessionOpen},
	{protocol.StatusSessionClosed, core.ErrSessionClosed},
	{protocol.StatusSessionState, core.ErrSessionState},
	{protocol.StatusUnknownCommand, ErrUnknownCommand},
	{protocol.StatusBadArgs, ErrBadArgs},
}

// StatusOf maps a driver error onto its wire status code.
func StatusOf(err error) uint32 {
	if err == nil {
		return protocol.StatusOK
	}
	for _, se := range statusErrors {
		if errors.Is(err, se.err) {
			return se.status
		}
	}
	return protocol.StatusInternal
}

// ErrorOf is the inverse of StatusOf. Unknown codes map to ErrInternal.
func ErrorOf(status uint32) error {
	if status == protocol.StatusOK {
		return nil
	}
	for _, se := range statusErrors {
		if se.status == status {
			return se.err
		}
	}
	return ErrInternal
}
