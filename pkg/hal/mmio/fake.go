package mmio

import (
	"fmt"
	"sync"
)

// FakeGate serves Memory register files instead of physical memory. Each
// base address keeps its register file across map/unmap cycles.
type FakeGate struct {
	mu       sync.Mutex
	open     bool
	opens    int
	closes   int
	blocks   map[int64]*Memory
	mapped   map[int64]int
	failOpen error
	failMap  map[int64]error
}

func NewFakeGate() *FakeGate {
	return &FakeGate{
		blocks:  make(map[int64]*Memory),
		mapped:  make(map[int64]int),
		failMap: make(map[int64]error),
	}
}

func (g *FakeGate) Open() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failOpen != nil {
		return g.failOpen
	}
	if !g.open {
		g.open = true
		g.opens++
	}
	return nil
}

func (g *FakeGate) Map(base int64, size int) (Mapping, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return nil, fmt.Errorf("gate is not open")
	}
	if err := g.failMap[base]; err != nil {
		return nil, err
	}

	mem, ok := g.blocks[base]
	if !ok {
		mem = NewMemory(size)
		g.blocks[base] = mem
	}
	g.mapped[base]++
	return &fakeMapping{Memory: mem, gate: g, base: base}, nil
}

func (g *FakeGate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open {
		g.open = false
		g.closes++
	}
	return nil
}

// Block returns the register file for base, creating it with size bytes.
func (g *FakeGate) Block(base int64, size int) *Memory {
	g.mu.Lock()
	defer g.mu.Unlock()

	mem, ok := g.blocks[base]
	if !ok {
		mem = NewMemory(size)
		g.blocks[base] = mem
	}
	return mem
}

// FailOpen makes subsequent Open calls return err.
func (g *FakeGate) FailOpen(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failOpen = err
}

// FailMap makes subsequent Map calls for base return err.
func (g *FakeGate) FailMap(base int64, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failMap[base] = err
}

func (g *FakeGate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Counts reports how often the gate was opened and closed.
func (g *FakeGate) Counts() (opens, closes int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opens, g.closes
}

// Mappings returns the number of live mappings of base.
func (g *FakeGate) Mappings(base int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mapped[base]
}

type fakeMapping struct {
	*Memory
	gate     *FakeGate
	base     int64
	unmapped bool
}

func (f *fakeMapping) Unmap() error {
	f.gate.mu.Lock()
	defer f.gate.mu.Unlock()

	if f.unmapped {
		return fmt.Errorf("block 0x%x already unmapped", f.base)
	}
	f.unmapped = true
	f.gate.mapped[f.base]--
	return nil
}
