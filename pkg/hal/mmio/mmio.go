// Package mmio provides 32-bit register access to physical memory blocks,
// either through /dev/mem or through an in-memory register file.
package mmio

// Registers reads and writes 32-bit hardware registers at byte offsets.
type Registers interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// Mapping is a mapped register block.
type Mapping interface {
	Registers
	Unmap() error
}

// Gate hands out register mappings of physical address ranges.
type Gate interface {
	Open() error
	Map(base int64, size int) (Mapping, error)
	Close() error
}
