//go:build stm32f103

package main

import (
	"machine"

	"stm32i2c/core"
)

// initDebug routes driver debug output to UART2 (PA2 TX, PA3 RX).
func initDebug() {
	uart := machine.UART2
	if err := uart.Configure(machine.UARTConfig{BaudRate: 115200, TX: machine.PA2, RX: machine.PA3}); err != nil {
		return
	}
	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
}
