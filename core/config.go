package core

const (
	// DefaultOwnAddress is the 7-bit address the controller answers to in
	// slave mode.
	DefaultOwnAddress = 0x5C

	StandardFrequencyHz = 100000
	FastFrequencyHz     = 400000

	// DefaultPeripheralClockHz is APB1 on a 72 MHz STM32F103.
	DefaultPeripheralClockHz = 36000000

	// DefaultPollBudget is the number of status reads before a wait gives
	// up. At 72 MHz one SR1 poll is well under a microsecond, so this
	// covers several byte times at 100 kHz plus clock stretching.
	DefaultPollBudget = 200000

	// SlavePadByte is transmitted when the master keeps reading past the
	// end of the slave's buffer.
	SlavePadByte = 0xFF
)

// Config holds bus timing and identity.
type Config struct {
	PeripheralClockHz uint32 // APB1 clock feeding the peripheral
	FrequencyHz       uint32 // SCL frequency, up to 400 kHz
	OwnAddress        uint8  // 7-bit own address used in slave mode
}

// DefaultConfig returns a 100 kHz standard-mode configuration.
func DefaultConfig() Config {
	return Config{
		PeripheralClockHz: DefaultPeripheralClockHz,
		FrequencyHz:       StandardFrequencyHz,
		OwnAddress:        DefaultOwnAddress,
	}
}

// timing computes CR2.FREQ, CCR and TRISE as described in RM0008 26.6.8/9.
func (c Config) timing() (cr2, ccr, trise uint32, err error) {
	freqMHz := c.PeripheralClockHz / 1000000
	if freqMHz < 2 || freqMHz > 36 {
		return 0, 0, 0, ErrInvalidConfig
	}
	if c.FrequencyHz == 0 || c.FrequencyHz > FastFrequencyHz {
		return 0, 0, 0, ErrInvalidConfig
	}
	if c.OwnAddress == 0 || c.OwnAddress > 0x7F {
		return 0, 0, 0, ErrInvalidConfig
	}

	cr2 = freqMHz & CR2_FREQ_Msk
	if c.FrequencyHz <= StandardFrequencyHz {
		// Thigh = Tlow = CCR * Tpclk
		ccr = c.PeripheralClockHz / (2 * c.FrequencyHz)
		if ccr < 4 {
			ccr = 4
		}
		trise = freqMHz + 1 // 1000 ns max rise time
	} else {
		// DUTY=0: Tlow = 2 * Thigh
		ccr = c.PeripheralClockHz / (3 * c.FrequencyHz)
		if ccr < 1 {
			ccr = 1
		}
		trise = freqMHz*300/1000 + 1 // 300 ns max rise time
	}
	if ccr > CCR_CCR_Msk {
		return 0, 0, 0, ErrInvalidConfig
	}
	if c.FrequencyHz > StandardFrequencyHz {
		ccr |= CCR_FS
	}
	return cr2, ccr, trise & TRISE_Msk, nil
}
