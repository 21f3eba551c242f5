// Command i2cbridge talks to the STM32 I2C bridge firmware over a serial
// port: scan the bus, read and write device registers, dump the driver's
// event ring.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"

	"stm32i2c/core"
	"stm32i2c/host/mcu"
	"stm32i2c/host/serial"
)

// CLI is the command line, also loadable from YAML.
type CLI struct {
	Config kong.ConfigFlag `help:"YAML configuration file" type:"path"`

	Device   string        `help:"Serial device of the bridge" default:"/dev/ttyACM0" env:"I2CBRIDGE_DEVICE"`
	Baud     int           `help:"Baud rate, ignored for USB CDC" default:"115200" env:"I2CBRIDGE_BAUD"`
	Timeout  time.Duration `help:"Per-command response timeout" default:"500ms"`
	Simulate bool          `help:"Use an in-process simulated bus instead of hardware"`

	Bus struct {
		Frequency  uint32 `help:"SCL frequency in Hz, 0 keeps the firmware setting" default:"0"`
		ClockHz    uint32 `help:"Peripheral clock in Hz" default:"36000000"`
		OwnAddress string `help:"Own slave address" default:"0x5c"`
	} `embed:"" prefix:"bus-"`

	Log struct {
		Level string `help:"Log level" enum:"debug,info,warn,error" default:"warn" env:"I2CBRIDGE_LOG_LEVEL"`
	} `embed:"" prefix:"log-"`

	Identify IdentifyCmd `cmd:"" help:"Print the firmware version"`
	Scan     ScanCmd     `cmd:"" help:"List responding 7-bit addresses"`
	Write    WriteCmd    `cmd:"" help:"Write bytes to a device"`
	Read     ReadCmd     `cmd:"" help:"Read bytes from a device, optionally from a register"`
	Tx       TxCmd       `cmd:"" help:"Write then read in one transaction with a repeated start"`
	Events   EventsCmd   `cmd:"" help:"Dump the driver event ring"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("i2cbridge"),
		kong.Description("Host tool for the STM32F1 I2C bridge"),
		kong.UsageOnError(),
		kong.Configuration(kongyaml.Loader, "i2cbridge.yaml", "~/.config/i2cbridge/config.yaml"),
	)

	logger := newLogger(cli.Log.Level, os.Stderr)

	m, err := cli.open(logger)
	if err != nil {
		logger.Error("connect failed", "device", cli.Device, "error", err)
		os.Exit(1)
	}

	ctx.Bind(logger)
	ctx.Bind(m)
	ctx.BindTo(os.Stdout, (*io.Writer)(nil))

	err = ctx.Run()
	if cerr := m.Close(); cerr != nil {
		logger.Warn("close failed", "error", cerr)
	}
	ctx.FatalIfErrorf(err)
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// open connects to the bridge and applies the bus settings.
func (c *CLI) open(logger *slog.Logger) (*mcu.MCU, error) {
	var m *mcu.MCU
	if c.Simulate {
		m = simulated(logger)
	} else {
		cfg := serial.DefaultConfig(c.Device)
		cfg.Baud = c.Baud
		var err error
		if m, err = mcu.Connect(cfg, logger); err != nil {
			return nil, err
		}
	}
	m.SetTimeout(c.Timeout)

	if c.Bus.Frequency == 0 {
		return m, nil
	}
	own, err := parseAddr(c.Bus.OwnAddress)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("own address: %w", err)
	}
	err = m.Configure(core.Config{
		PeripheralClockHz: c.Bus.ClockHz,
		FrequencyHz:       c.Bus.Frequency,
		OwnAddress:        own,
	})
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	logger.Info("bus configured", "frequency", c.Bus.Frequency, "own_address", own)
	return m, nil
}
