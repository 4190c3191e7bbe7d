package mmio

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

// DefaultDevMemPath is the character device exposing physical memory.
const DefaultDevMemPath = "/dev/mem"

// DevMem maps physical memory through /dev/mem.
type DevMem struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// NewDevMem returns a gate over the device at path.
func NewDevMem(path string) *DevMem {
	if path == "" {
		path = DefaultDevMemPath
	}
	return &DevMem{path: path}
}

func (d *DevMem) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file != nil {
		return nil
	}

	f, err := os.OpenFile(d.path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", d.path, err)
	}
	d.file = f
	return nil
}

// Map maps size bytes at the page-aligned physical address base.
func (d *DevMem) Map(base int64, size int) (Mapping, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil, fmt.Errorf("%s is not open", d.path)
	}
	if base%int64(os.Getpagesize()) != 0 {
		return nil, fmt.Errorf("physical address 0x%x is not page aligned", base)
	}

	mem, err := mmap.MapRegion(d.file, size, mmap.RDWR, 0, base)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap 0x%x (+%d): %w", base, size, err)
	}

	return &block{
		mem:   mem,
		words: unsafe.Slice((*uint32)(unsafe.Pointer(&mem[0])), len(mem)/4),
	}, nil
}

func (d *DevMem) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// block is a live /dev/mem mapping viewed as 32-bit words.
type block struct {
	mem   mmap.MMap
	words []uint32
}

// Read32 performs a single 32-bit load.
func (b *block) Read32(offset uint32) uint32 {
	return atomic.LoadUint32(&b.words[offset/4])
}

func (b *block) Write32(offset uint32, value uint32) {
	atomic.StoreUint32(&b.words[offset/4], value)
}

func (b *block) Unmap() error {
	b.words = nil
	return b.mem.Unmap()
}
