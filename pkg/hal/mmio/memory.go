package mmio

import (
	"fmt"
	"sync"
)

// writeLogLimit bounds the write log; the oldest half is dropped when it fills.
const writeLogLimit = 1 << 16

// WriteHook computes the value stored when a register is written.
type WriteHook func(old, written uint32) uint32

// ReadHook computes the value observed when a register is read.
type ReadHook func(stored uint32) uint32

// Access is one recorded register write.
type Access struct {
	Offset uint32
	Value  uint32
}

// Memory is an in-memory register file. Hooks let callers model hardware
// side effects such as write-1-to-clear or self-resetting bits.
type Memory struct {
	mu      sync.Mutex
	words   []uint32
	writes  []Access
	onWrite map[uint32]WriteHook
	onRead  map[uint32]ReadHook
}

// NewMemory returns a zeroed register file of size bytes.
func NewMemory(size int) *Memory {
	return &Memory{
		words:   make([]uint32, size/4),
		onWrite: make(map[uint32]WriteHook),
		onRead:  make(map[uint32]ReadHook),
	}
}

func (m *Memory) Read32(offset uint32) uint32 {
	idx := m.index(offset)

	m.mu.Lock()
	stored := m.words[idx]
	hook := m.onRead[offset]
	m.mu.Unlock()

	if hook != nil {
		return hook(stored)
	}
	return stored
}

func (m *Memory) Write32(offset uint32, value uint32) {
	idx := m.index(offset)

	m.mu.Lock()
	old := m.words[idx]
	hook := m.onWrite[offset]
	if len(m.writes) >= writeLogLimit {
		m.writes = append(m.writes[:0], m.writes[writeLogLimit/2:]...)
	}
	m.writes = append(m.writes, Access{Offset: offset, Value: value})
	m.mu.Unlock()

	stored := value
	if hook != nil {
		stored = hook(old, value)
	}

	m.mu.Lock()
	m.words[idx] = stored
	m.mu.Unlock()
}

// Unmap is a no-op; the register file outlives its mappings.
func (m *Memory) Unmap() error {
	return nil
}

// OnWrite installs h for writes at offset.
func (m *Memory) OnWrite(offset uint32, h WriteHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index(offset)
	m.onWrite[offset] = h
}

// OnRead installs h for reads at offset.
func (m *Memory) OnRead(offset uint32, h ReadHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index(offset)
	m.onRead[offset] = h
}

// Peek reads the stored value, bypassing hooks.
func (m *Memory) Peek(offset uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[m.index(offset)]
}

// Poke stores a value, bypassing hooks and the write log.
func (m *Memory) Poke(offset uint32, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words[m.index(offset)] = value
}

// Writes returns the writes recorded since creation or the last ResetWrites,
// up to the most recent writeLogLimit.
func (m *Memory) Writes() []Access {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Access(nil), m.writes...)
}

// WritesTo returns the recorded values written at offset.
func (m *Memory) WritesTo(offset uint32) []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var values []uint32
	for _, w := range m.writes {
		if w.Offset == offset {
			values = append(values, w.Value)
		}
	}
	return values
}

func (m *Memory) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}

// index panics on an unaligned or out of range offset. Call it before taking mu.
func (m *Memory) index(offset uint32) int {
	if offset%4 != 0 || int(offset/4) >= len(m.words) {
		panic(fmt.Sprintf("mmio: register offset 0x%x out of range", offset))
	}
	return int(offset / 4)
}
