// Package bcm2837 holds the fixed physical register layout of the BCM2837
// (Raspberry Pi 3B). Offsets and bit positions follow the BCM2835 ARM
// Peripherals datasheet and must not be changed.
package bcm2837

const (
	// PeripheralBase is the ARM physical address of the peripheral window.
	PeripheralBase int64 = 0x3F000000
	// BusBase is the VideoCore bus address of the same window (DMA only).
	BusBase int64 = 0x7E000000

	BlockSize = 4096

	ClockBase int64 = PeripheralBase + 0x101000
	GpioBase  int64 = PeripheralBase + 0x200000
	Bsc0Base  int64 = PeripheralBase + 0x205000
	PwmBase   int64 = PeripheralBase + 0x20C000
	Bsc1Base  int64 = PeripheralBase + 0x804000

	// OscillatorHz is the crystal feeding the clock manager when SRC=1.
	OscillatorHz = 19_200_000
	// CoreClockHz feeds the BSC controllers.
	CoreClockHz = 250_000_000

	MaxPin = 53
)

// GPIO register byte offsets.
const (
	GPFSEL0   = 0x00
	GPSET0    = 0x1C
	GPSET1    = 0x20
	GPCLR0    = 0x28
	GPCLR1    = 0x2C
	GPLEV0    = 0x34
	GPLEV1    = 0x38
	GPEDS0    = 0x40
	GPREN0    = 0x4C
	GPFEN0    = 0x58
	GPHEN0    = 0x64
	GPLEN0    = 0x70
	GPAREN0   = 0x7C
	GPAFEN0   = 0x88
	GPPUD     = 0x94
	GPPUDCLK0 = 0x98
	GPPUDCLK1 = 0x9C
)

// Function is a 3-bit GPIO function select value.
type Function uint32

const (
	FuncInput  Function = 0b000
	FuncOutput Function = 0b001
	FuncAlt0   Function = 0b100
	FuncAlt1   Function = 0b101
	FuncAlt2   Function = 0b110
	FuncAlt3   Function = 0b111
	FuncAlt4   Function = 0b011
	FuncAlt5   Function = 0b010
)

func (f Function) String() string {
	switch f {
	case FuncInput:
		return "input"
	case FuncOutput:
		return "output"
	case FuncAlt0:
		return "alt0"
	case FuncAlt1:
		return "alt1"
	case FuncAlt2:
		return "alt2"
	case FuncAlt3:
		return "alt3"
	case FuncAlt4:
		return "alt4"
	case FuncAlt5:
		return "alt5"
	}
	return "unknown"
}

// FselOffset returns the GPFSELn register offset and bit shift for pin.
func FselOffset(pin int) (offset uint32, shift uint32) {
	return GPFSEL0 + uint32(pin/10)*4, uint32(pin%10) * 3
}

// PWM register byte offsets.
const (
	PwmCTL  = 0x00
	PwmSTA  = 0x04
	PwmDMAC = 0x08
	PwmRNG1 = 0x10
	PwmDAT1 = 0x14
	PwmFIF1 = 0x18
	PwmRNG2 = 0x20
	PwmDAT2 = 0x24
)

// PWM CTL bits for channel 1. Channel 2 uses the same layout shifted by
// PwmChannel2Shift, except CLRF which exists only once (bit 14 is reserved).
const (
	PwmPWEN1 = 1 << 0
	PwmMODE1 = 1 << 1
	PwmRPTL1 = 1 << 2
	PwmSBIT1 = 1 << 3
	PwmPOLA1 = 1 << 4
	PwmUSEF1 = 1 << 5
	PwmCLRF1 = 1 << 6
	PwmMSEN1 = 1 << 7

	PwmChannel2Shift = 8
)

// PWM STA bits.
const (
	PwmFULL1 = 1 << 0
	PwmEMPT1 = 1 << 1
	PwmWERR1 = 1 << 2
	PwmRERR1 = 1 << 3
	PwmGAPO1 = 1 << 4
	PwmGAPO2 = 1 << 5
	PwmGAPO3 = 1 << 6
	PwmGAPO4 = 1 << 7
	PwmBERR  = 1 << 8
	PwmSTA1  = 1 << 9
	PwmSTA2  = 1 << 10
	PwmSTA3  = 1 << 11
	PwmSTA4  = 1 << 12
)

// PwmFifoDepth is the FIFO depth in words when a single channel uses it.
const PwmFifoDepth = 16

// Clock manager byte offsets within the CLOCK block.
const (
	CmGP0CTL = 0x70
	CmGP0DIV = 0x74
	CmGP1CTL = 0x78
	CmGP1DIV = 0x7C
	CmGP2CTL = 0x80
	CmGP2DIV = 0x84
	CmPWMCTL = 0xA0
	CmPWMDIV = 0xA4
)

// Clock manager control and divisor fields.
const (
	CmPassword  = 0x5A000000
	CmSrcOsc    = 0x01
	CmEnable    = 1 << 4
	CmKill      = 1 << 5
	CmBusy      = 1 << 7
	CmMashShift = 9
	CmDiviShift = 12
	CmDiviMax   = 4095
	CmDivfMax   = 4095
)

// BSC (I2C) register byte offsets.
const (
	BscC    = 0x00
	BscS    = 0x04
	BscDLEN = 0x08
	BscA    = 0x0C
	BscFIFO = 0x10
	BscDIV  = 0x14
	BscDEL  = 0x18
	BscCLKT = 0x1C
)

// BSC C register bits.
const (
	BscCRead  = 1 << 0
	BscCClear = 0b11 << 4
	BscCSt    = 1 << 7
	BscCIntd  = 1 << 8
	BscCIntt  = 1 << 9
	BscCIntr  = 1 << 10
	BscCI2cen = 1 << 15
)

// BSC S register bits.
const (
	BscSTa   = 1 << 0
	BscSDone = 1 << 1
	BscSTxw  = 1 << 2
	BscSRxr  = 1 << 3
	BscSTxd  = 1 << 4
	BscSRxd  = 1 << 5
	BscSTxe  = 1 << 6
	BscSRxf  = 1 << 7
	BscSErr  = 1 << 8
	BscSClkt = 1 << 9
)

// BscFifoDepth is the BSC FIFO depth in bytes.
const BscFifoDepth = 16
