//go:build stm32f103

// Command stm32f103 is the I2C bridge firmware for a Blue Pill class board.
// Bridge frames arrive on the default serial port, I2C1 is on PB6/PB7 and
// debug output goes to UART2.
package main

import (
	"device/stm32"
	"machine"
	"time"

	"stm32i2c/bridge"
	"stm32i2c/core"
	"stm32i2c/protocol"
)

var (
	inputBuffer *protocol.FifoBuffer
	transport   *protocol.Transport

	msgerrors uint32
	rxByte    [1]byte
)

// serialOutput sends response frames straight to the host.
type serialOutput struct{}

func (serialOutput) Output(data []byte) {
	if _, err := machine.Serial.Write(data); err != nil {
		msgerrors++
	}
}

func main() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})
	initDebug()

	InitI2C1()
	cfg := core.DefaultConfig()
	cfg.PeripheralClockHz = PeripheralClockHz()

	bus := core.New(i2cRegs{dev: stm32.I2C1}, core.Polls(core.DefaultPollBudget))
	if err := bus.Configure(cfg); err != nil {
		core.DebugPrintln("[I2C] configure failed: " + err.Error())
	}
	core.SetBus(bus)

	inputBuffer = protocol.NewFifoBuffer(512)
	transport = protocol.NewTransport(serialOutput{}, bridge.NewServer(bus).Handle)

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					transport.Reset()
					core.DumpEventRing()
				}
			}()

			readSerial()
			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
			}
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

func readSerial() {
	for machine.Serial.Buffered() > 0 && inputBuffer.Free() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			msgerrors++
			return
		}
		rxByte[0] = b
		inputBuffer.Write(rxByte[:])
	}
}
