package main

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stm32i2c/core"
	"stm32i2c/protocol"
)

func TestParseAddr(t *testing.T) {
	for in, want := range map[string]uint8{"0x3c": 0x3C, "60": 60, "0o17": 0o17, "0x7F": 0x7F} {
		got, err := parseAddr(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"0x80", "zz", "", "-1"} {
		_, err := parseAddr(in)
		assert.Error(t, err, in)
	}
}

func TestParseHex(t *testing.T) {
	for in, want := range map[string][]byte{
		"00ae":    {0x00, 0xAE},
		"0x01FF":  {0x01, 0xFF},
		"de:ad":   {0xDE, 0xAD},
		"01 02 3": nil,
		"":        {},
	} {
		got, err := parseHex(in)
		if want == nil {
			assert.Error(t, err, in)
			continue
		}
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	assert.Equal(t, "01 ab ff", formatHex([]byte{0x01, 0xAB, 0xFF}))
}

func TestSimulatedCommands(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := simulated(logger)
	defer m.Close()

	var out bytes.Buffer
	require.NoError(t, (&IdentifyCmd{}).Run(m, &out))
	assert.Equal(t, protocol.Version+"\n", out.String())

	out.Reset()
	require.NoError(t, (&ScanCmd{}).Run(m, &out, logger))
	assert.Equal(t, "0x3c 0x50\n", out.String())

	require.NoError(t, (&WriteCmd{Addr: "0x50", Reg: "0x10", Data: "cafe"}).Run(m, logger))

	out.Reset()
	require.NoError(t, (&ReadCmd{Addr: "0x50", Reg: "0x10", Count: 2}).Run(m, &out))
	assert.Equal(t, "ca fe\n", out.String())

	out.Reset()
	require.NoError(t, (&TxCmd{Addr: "0x50", Data: "11", Count: 1}).Run(m, &out))
	assert.Equal(t, "fe\n", out.String())

	err := (&ReadCmd{Addr: "0x33", Count: 1}).Run(m, &out)
	assert.ErrorIs(t, err, core.ErrAddressNACK)

	out.Reset()
	require.NoError(t, (&EventsCmd{}).Run(m, &out))
	assert.Contains(t, out.String(), "ADDR_NACK! addr=0x67")
}

func TestCLIParse(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("i2cbridge"))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"--simulate", "--bus-frequency", "400000", "read", "0x50", "4", "--reg", "0x00"})
	require.NoError(t, err)
	assert.True(t, cli.Simulate)
	assert.Equal(t, uint32(400000), cli.Bus.Frequency)
	assert.Equal(t, "0x50", cli.Read.Addr)
	assert.Equal(t, 4, cli.Read.Count)
	assert.Equal(t, "warn", cli.Log.Level)

	m, err := cli.open(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, m.Close())
}
