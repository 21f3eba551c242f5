package main

import (
	"log/slog"

	"stm32i2c/bridge"
	"stm32i2c/core"
	"stm32i2c/host/mcu"
	"stm32i2c/sim"
)

// Devices on the simulated bus.
const (
	simEchoAddr   = 0x3C
	simMemoryAddr = 0x50
)

// simulated returns a client wired to a bridge running on the simulated
// peripheral: an echo device at 0x3c and a 256-byte memory at 0x50.
func simulated(logger *slog.Logger) *mcu.MCU {
	p := sim.New()
	p.Attach(simEchoAddr, &sim.Echo{})
	p.Attach(simMemoryAddr, &sim.Memory{})

	bus := core.New(p, core.Polls(core.DefaultPollBudget))
	// The default configuration is always valid.
	_ = bus.Configure(core.DefaultConfig())

	logger.Info("using simulated bus", "echo", simEchoAddr, "memory", simMemoryAddr)
	return mcu.New(mcu.NewLoopback(bridge.NewServer(bus).Handle), logger)
}
