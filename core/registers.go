package core

// Reg names one register of the I2C peripheral.
type Reg uint8

const (
	RegCR1 Reg = iota
	RegCR2
	RegOAR1
	RegDR
	RegSR1
	RegSR2
	RegCCR
	RegTRISE
)

// Registers is raw access to the bus controller's register block.
// Implementations must not cache: status flags in SR1/SR2 change under the
// driver's feet and several flags are cleared as a side effect of a read
// (ADDR by SR1 then SR2, RXNE by DR).
type Registers interface {
	Read(r Reg) uint32
	Write(r Reg, v uint32)
}

// CR1 bits (RM0008 26.6.1)
const (
	CR1_PE    = 1 << 0
	CR1_START = 1 << 8
	CR1_STOP  = 1 << 9
	CR1_ACK   = 1 << 10
	CR1_POS   = 1 << 11
	CR1_SWRST = 1 << 15
)

// CR2 fields
const (
	CR2_FREQ_Msk = 0x3F
)

// OAR1 fields. Bit 14 is reserved and must be kept at 1 by software.
const (
	OAR1_ADD_Pos  = 1
	OAR1_ADD_Msk  = 0x7F << OAR1_ADD_Pos
	OAR1_Reserved = 1 << 14
)

// CCR fields
const (
	CCR_CCR_Msk = 0xFFF
	CCR_DUTY    = 1 << 14
	CCR_FS      = 1 << 15
)

// TRISE fields
const (
	TRISE_Msk = 0x3F
)

// SR1 flags (RM0008 26.6.6)
const (
	SR1_SB    = 1 << 0
	SR1_ADDR  = 1 << 1
	SR1_BTF   = 1 << 2
	SR1_STOPF = 1 << 4
	SR1_RXNE  = 1 << 6
	SR1_TXE   = 1 << 7
	SR1_BERR  = 1 << 8
	SR1_ARLO  = 1 << 9
	SR1_AF    = 1 << 10
	SR1_OVR   = 1 << 11

	// Flags cleared by writing 0; writing 1 leaves them untouched.
	SR1_ClearOnWriteZero = SR1_BERR | SR1_ARLO | SR1_AF | SR1_OVR
)

// SR2 flags
const (
	SR2_MSL  = 1 << 0
	SR2_BUSY = 1 << 1
	SR2_TRA  = 1 << 2
)
