package core

// Global singleton used by firmware code that has exactly one bus.
var i2cBus *Bus

// SetBus is called by target-specific code to register its configured bus.
func SetBus(b *Bus) {
	i2cBus = b
}

// MustBus returns the registered bus or panics if missing.
func MustBus() *Bus {
	if i2cBus == nil {
		panic("I2C bus not configured")
	}
	return i2cBus
}
