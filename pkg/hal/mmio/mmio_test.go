package mmio_test

import (
	"errors"
	"testing"
	"time"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/mmio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ReadWrite(t *testing.T) {
	t.Parallel()

	mem := mmio.NewMemory(64)
	mem.Write32(0x04, 0xDEADBEEF)

	assert.Equal(t, uint32(0xDEADBEEF), mem.Read32(0x04))
	assert.Equal(t, uint32(0), mem.Read32(0x08))
	assert.Equal(t, []mmio.Access{{Offset: 0x04, Value: 0xDEADBEEF}}, mem.Writes())
}

func TestMemory_Hooks(t *testing.T) {
	t.Parallel()

	mem := mmio.NewMemory(16)

	// write-1-to-clear
	mem.Poke(0x00, 0b1111)
	mem.OnWrite(0x00, func(old, written uint32) uint32 { return old &^ written })
	mem.Write32(0x00, 0b0101)
	assert.Equal(t, uint32(0b1010), mem.Peek(0x00))

	mem.OnRead(0x04, func(stored uint32) uint32 { return stored | 0x80 })
	assert.Equal(t, uint32(0x80), mem.Read32(0x04))
	assert.Equal(t, uint32(0), mem.Peek(0x04))
}

func TestMemory_WritesTo(t *testing.T) {
	t.Parallel()

	mem := mmio.NewMemory(16)
	mem.Write32(0x08, 1)
	mem.Write32(0x04, 2)
	mem.Write32(0x08, 3)

	assert.Equal(t, []uint32{1, 3}, mem.WritesTo(0x08))

	mem.ResetWrites()
	assert.Empty(t, mem.Writes())
}

func TestMemory_OutOfRange(t *testing.T) {
	t.Parallel()

	mem := mmio.NewMemory(16)
	assert.Panics(t, func() { mem.Read32(0x10) })
	assert.Panics(t, func() { mem.Write32(0x02, 0) })
	assert.Panics(t, func() { mem.OnRead(0x40, nil) })
	assert.Panics(t, func() { mem.Poke(0x40, 0) })
}

func TestMemory_UsableAfterOutOfRangePanic(t *testing.T) {
	t.Parallel()

	mem := mmio.NewMemory(16)
	require.Panics(t, func() { mem.Read32(0x10) })
	require.Panics(t, func() { mem.Write32(0x11, 1) })

	done := make(chan uint32, 1)
	go func() {
		mem.Write32(0x04, 0xCAFE)
		done <- mem.Read32(0x04)
	}()

	select {
	case v := <-done:
		assert.Equal(t, uint32(0xCAFE), v)
	case <-time.After(time.Second):
		t.Fatal("register access blocked after an out of range panic")
	}
	assert.Equal(t, []uint32{0xCAFE}, mem.WritesTo(0x04))
}

func TestFakeGate_Lifecycle(t *testing.T) {
	t.Parallel()

	gate := mmio.NewFakeGate()

	_, err := gate.Map(0x1000, 4096)
	assert.Error(t, err, "mapping before open must fail")

	require.NoError(t, gate.Open())
	m1, err := gate.Map(0x1000, 4096)
	require.NoError(t, err)
	m1.Write32(0x10, 42)

	assert.Equal(t, 1, gate.Mappings(0x1000))
	require.NoError(t, m1.Unmap())
	assert.Error(t, m1.Unmap())
	assert.Equal(t, 0, gate.Mappings(0x1000))

	m2, err := gate.Map(0x1000, 4096)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), m2.Read32(0x10), "register file survives remapping")

	require.NoError(t, gate.Close())
	opens, closes := gate.Counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.False(t, gate.IsOpen())
}

func TestFakeGate_Failures(t *testing.T) {
	t.Parallel()

	gate := mmio.NewFakeGate()
	gate.FailOpen(errors.New("permission denied"))
	assert.EqualError(t, gate.Open(), "permission denied")

	gate.FailOpen(nil)
	require.NoError(t, gate.Open())
	gate.FailMap(0x2000, errors.New("no such address"))
	_, err := gate.Map(0x2000, 4096)
	assert.EqualError(t, err, "no such address")
}
