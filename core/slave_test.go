package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stm32i2c/core"
	"stm32i2c/sim"
)

func TestSlaveReceive(t *testing.T) {
	b, p := newBus(t)
	p.Inject(sim.Transaction{Address: core.DefaultOwnAddress, Data: []byte{0x10, 0x20, 0x30}})

	s, err := b.Listen()
	require.NoError(t, err)
	assert.False(t, s.Transmitting())

	buf := make([]byte, 8)
	n, err := s.ReadBurst(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, buf[:n])
	assert.True(t, s.Done())

	_, err = s.Read()
	assert.ErrorIs(t, err, core.ErrSessionClosed)
}

func TestSlaveReceiveOverflowNACKs(t *testing.T) {
	b, p := newBus(t)
	p.Inject(sim.Transaction{Address: core.DefaultOwnAddress, Data: []byte{1, 2, 3, 4, 5}})

	s, err := b.Listen()
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, err := s.ReadBurst(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, buf)

	var acks []bool
	for _, e := range p.Events() {
		if e.Kind == sim.EvWrite && e.Remote {
			acks = append(acks, e.Ack)
		}
	}
	assert.Equal(t, []bool{true, true, true, false}, acks)
}

func TestSlaveReadByteByByte(t *testing.T) {
	b, p := newBus(t)
	p.Inject(sim.Transaction{Address: core.DefaultOwnAddress, Data: []byte{7, 8}})

	s, err := b.Listen()
	require.NoError(t, err)

	v, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, byte(7), v)
	v, err = s.Read()
	require.NoError(t, err)
	assert.Equal(t, byte(8), v)

	_, err = s.Read()
	assert.ErrorIs(t, err, core.ErrSessionClosed)
	assert.True(t, s.Done())

	assert.ErrorIs(t, s.Write(0), core.ErrSessionClosed)
}

func TestSlaveTransmitPads(t *testing.T) {
	b, p := newBus(t)
	p.Inject(sim.Transaction{Address: core.DefaultOwnAddress, Read: true, Count: 3})

	s, err := b.Listen()
	require.NoError(t, err)
	require.True(t, s.Transmitting())

	_, err = s.Read()
	assert.ErrorIs(t, err, core.ErrSessionState)

	n, err := s.WriteBurst([]byte{0xAB, 0xCD})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, p.MasterReads(), 1)
	assert.Equal(t, []byte{0xAB, 0xCD, core.SlavePadByte}, p.MasterReads()[0])
	assert.True(t, s.Done())
}

func TestSlaveTransmitStopsEarly(t *testing.T) {
	b, p := newBus(t)
	p.Inject(sim.Transaction{Address: core.DefaultOwnAddress, Read: true, Count: 1})

	s, err := b.Listen()
	require.NoError(t, err)

	require.NoError(t, s.Write(0xAA))
	assert.ErrorIs(t, s.Write(0xBB), core.ErrDataNACK)
	assert.Equal(t, [][]byte{{0xAA}}, p.MasterReads())

	// The bus is free for a master session afterwards.
	p.Attach(devAddr, &sim.Echo{})
	m, err := b.Start()
	require.NoError(t, err)
	require.NoError(t, m.Request(core.AddrRW(devAddr, false)))
	require.NoError(t, m.Stop())
}

func TestListenIgnoresOtherAddress(t *testing.T) {
	b, p := newBus(t)
	p.Inject(sim.Transaction{Address: 0x11, Data: []byte{1}})

	_, err := b.Listen()
	assert.ErrorIs(t, err, core.ErrTimeout)

	var addr []sim.Event
	for _, e := range p.Events() {
		if e.Kind == sim.EvAddress {
			addr = append(addr, e)
		}
	}
	require.Len(t, addr, 1)
	assert.False(t, addr[0].Ack)
}

func TestListenWhileMasterOpen(t *testing.T) {
	b, _ := newBus(t)
	m, err := b.Start()
	require.NoError(t, err)

	_, err = b.Listen()
	assert.ErrorIs(t, err, core.ErrSessionOpen)
	require.NoError(t, m.Stop())
}
