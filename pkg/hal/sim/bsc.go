package sim

import (
	"sync"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/mmio"
)

// Device is an I2C target attached to a simulated bus.
type Device interface {
	// Write receives the bytes of one write transfer.
	Write(p []byte) error
	// Read fills p for one read transfer.
	Read(p []byte) error
}

// bscController models one BSC master. Transfers complete instantly: a
// write finishes when DLEN bytes have been pushed, a read fills the FIFO on
// start. A missing device or a device error raises ERR.
type bscController struct {
	mem *mmio.Memory

	mu      sync.Mutex
	devices map[uint16]Device
	writing bool
	tx      []byte
	rx      []byte
}

func newBscController(mem *mmio.Memory) *bscController {
	c := &bscController{mem: mem, devices: make(map[uint16]Device)}

	mem.OnWrite(bcm2837.BscC, c.writeC)
	mem.OnWrite(bcm2837.BscS, func(old, v uint32) uint32 {
		return old &^ (v & (bcm2837.BscSDone | bcm2837.BscSErr | bcm2837.BscSClkt))
	})
	mem.OnRead(bcm2837.BscS, c.readS)
	mem.OnWrite(bcm2837.BscFIFO, c.writeFifo)
	mem.OnRead(bcm2837.BscFIFO, c.readFifo)
	return c
}

func (c *bscController) attach(addr uint16, dev Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices[addr] = dev
}

func (c *bscController) raise(bits uint32) {
	c.mem.Poke(bcm2837.BscS, c.mem.Peek(bcm2837.BscS)|bits)
}

func (c *bscController) writeC(_, v uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v&bcm2837.BscCClear != 0 {
		c.tx, c.rx, c.writing = nil, nil, false
	}
	if v&bcm2837.BscCSt != 0 && v&bcm2837.BscCI2cen != 0 {
		addr := uint16(c.mem.Peek(bcm2837.BscA) & 0x7F)
		n := int(c.mem.Peek(bcm2837.BscDLEN) & 0xFFFF)
		dev, ok := c.devices[addr]

		switch {
		case !ok:
			c.raise(bcm2837.BscSErr | bcm2837.BscSDone)
		case v&bcm2837.BscCRead != 0:
			buf := make([]byte, n)
			if err := dev.Read(buf); err != nil {
				c.raise(bcm2837.BscSErr | bcm2837.BscSDone)
			} else {
				c.rx = buf
				c.raise(bcm2837.BscSDone)
			}
		case n == 0:
			c.raise(bcm2837.BscSDone)
		default:
			c.writing = true
			c.tx = c.tx[:0]
		}
	}
	return v &^ (bcm2837.BscCSt | bcm2837.BscCClear)
}

func (c *bscController) writeFifo(_, v uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.writing {
		return 0
	}
	c.tx = append(c.tx, byte(v))
	if len(c.tx) < int(c.mem.Peek(bcm2837.BscDLEN)&0xFFFF) {
		return 0
	}

	c.writing = false
	dev := c.devices[uint16(c.mem.Peek(bcm2837.BscA)&0x7F)]
	if err := dev.Write(append([]byte(nil), c.tx...)); err != nil {
		c.raise(bcm2837.BscSErr | bcm2837.BscSDone)
	} else {
		c.raise(bcm2837.BscSDone)
	}
	return 0
}

func (c *bscController) readS(stored uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored &^= bcm2837.BscSTa | bcm2837.BscSTxd | bcm2837.BscSRxd
	if c.writing {
		stored |= bcm2837.BscSTa | bcm2837.BscSTxd
	}
	if len(c.rx) > 0 {
		stored |= bcm2837.BscSRxd
	}
	return stored
}

func (c *bscController) readFifo(uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.rx) == 0 {
		return 0
	}
	v := c.rx[0]
	c.rx = c.rx[1:]
	return uint32(v)
}
