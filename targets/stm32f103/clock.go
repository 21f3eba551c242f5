//go:build stm32f103

package main

import (
	"device/stm32"
	"machine"
)

// InitI2C1 clocks I2C1 and GPIOB and puts PB6 (SCL) and PB7 (SDA) in
// alternate-function open-drain mode. The peripheral itself is programmed
// later by core.Bus.Configure.
func InitI2C1() {
	stm32.RCC.APB2ENR.SetBits(stm32.RCC_APB2ENR_IOPBEN | stm32.RCC_APB2ENR_AFIOEN)
	stm32.RCC.APB1ENR.SetBits(stm32.RCC_APB1ENR_I2C1EN)

	// Pulse the peripheral reset so a previous run cannot leave BUSY set.
	stm32.RCC.APB1RSTR.SetBits(stm32.RCC_APB1RSTR_I2C1RST)
	stm32.RCC.APB1RSTR.ClearBits(stm32.RCC_APB1RSTR_I2C1RST)

	mode := machine.PinConfig{Mode: machine.PinOutput50MHz + machine.PinOutputModeAltOpenDrain}
	machine.PB6.Configure(mode)
	machine.PB7.Configure(mode)
}

// PeripheralClockHz is the APB1 clock, half the 72 MHz system clock.
func PeripheralClockHz() uint32 {
	return machine.CPUFrequency() / 2
}
