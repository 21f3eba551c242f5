//go:build stm32f103

package main

import (
	"device/stm32"

	"stm32i2c/core"
)

// i2cRegs maps core.Reg onto a memory-mapped I2C block.
type i2cRegs struct {
	dev *stm32.I2C_Type
}

func (r i2cRegs) Read(reg core.Reg) uint32 {
	switch reg {
	case core.RegCR1:
		return r.dev.CR1.Get()
	case core.RegCR2:
		return r.dev.CR2.Get()
	case core.RegOAR1:
		return r.dev.OAR1.Get()
	case core.RegDR:
		return r.dev.DR.Get()
	case core.RegSR1:
		return r.dev.SR1.Get()
	case core.RegSR2:
		return r.dev.SR2.Get()
	case core.RegCCR:
		return r.dev.CCR.Get()
	case core.RegTRISE:
		return r.dev.TRISE.Get()
	}
	return 0
}

func (r i2cRegs) Write(reg core.Reg, v uint32) {
	switch reg {
	case core.RegCR1:
		r.dev.CR1.Set(v)
	case core.RegCR2:
		r.dev.CR2.Set(v)
	case core.RegOAR1:
		r.dev.OAR1.Set(v)
	case core.RegDR:
		r.dev.DR.Set(v)
	case core.RegSR1:
		r.dev.SR1.Set(v)
	case core.RegSR2:
		// read-only
	case core.RegCCR:
		r.dev.CCR.Set(v)
	case core.RegTRISE:
		r.dev.TRISE.Set(v)
	}
}
