// Package ws2812b drives WS2812B LED strips through the PWM serializer.
//
// Every data bit of the 24-bit GRB color word becomes a 3-bit symbol in the
// serializer stream: 1 is sent as 110 and 0 as 100. At a 2.4 MHz bit clock
// each symbol bit lasts ~0.417 µs, which yields the 0.4/0.85 µs and
// 0.8/0.45 µs high/low splits the LEDs expect.
package ws2812b

import (
	"fmt"
	"math"

	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/led"
)

const (
	// ColorBits is the number of data bits per pixel.
	ColorBits = 24
	// SymbolBits is the number of serializer bits per data bit.
	SymbolBits = 3
	// PixelBits is the serializer stream length of one pixel.
	PixelBits = ColorBits * SymbolBits

	symbolOne  = 0b110
	symbolZero = 0b100
)

// Frame is an encoded pixel stream ready for the PWM FIFO. Bit 31 of each
// word is sent first.
type Frame []uint32

// WordCount returns the number of FIFO words needed for n pixels.
func WordCount(n int) int {
	return (n*PixelBits + 31) / 32
}

// ColorWord returns the (G<<16)|(R<<8)|B word of c scaled by brightness.
func ColorWord(c led.Color, brightness float64) uint32 {
	s := c.Scale(brightness)
	return uint32(s.Green)<<16 | uint32(s.Red)<<8 | uint32(s.Blue)
}

func validateBrightness(brightness float64) error {
	if math.IsNaN(brightness) || brightness < 0 || brightness > 1 {
		return hal.NewError(hal.KindInvalidArgument,
			fmt.Sprintf("brightness %v is outside [0, 1]", brightness),
			"clamp the brightness before encoding",
		)
	}
	return nil
}

// Encode packs pixels into a serializer frame. It has no side effects.
func Encode(pixels []led.Color, brightness float64) (Frame, error) {
	if err := validateBrightness(brightness); err != nil {
		return nil, err
	}

	frame := make(Frame, WordCount(len(pixels)))
	for i, px := range pixels {
		word := ColorWord(px, brightness)
		for p := 0; p < ColorBits; p++ {
			symbol := uint32(symbolZero)
			if word&(1<<(ColorBits-1-p)) != 0 {
				symbol = symbolOne
			}
			frame.putSymbol(i*PixelBits+p*SymbolBits, symbol)
		}
	}
	return frame, nil
}

// putSymbol ORs a 3-bit symbol in at stream position start. A symbol
// starting at bit 30 or 31 of a word continues at the top of the next one.
func (f Frame) putSymbol(start int, symbol uint32) {
	idx := start / 32
	offset := 29 - start%32

	switch {
	case offset >= 0:
		f[idx] |= symbol << offset
	case offset == -1:
		f[idx] |= symbol >> 1
		f[idx+1] |= (symbol & 0b1) << 31
	default:
		f[idx] |= symbol >> 2
		f[idx+1] |= (symbol & 0b11) << 30
	}
}

func (f Frame) bit(pos int) uint32 {
	return (f[pos/32] >> (31 - pos%32)) & 1
}

// Decode recovers n pixels from a frame produced by Encode. Brightness
// scaling is not undone.
func Decode(frame Frame, n int) ([]led.Color, error) {
	if n < 0 || len(frame) < WordCount(n) {
		return nil, hal.NewError(hal.KindInvalidArgument,
			fmt.Sprintf("frame of %d words cannot hold %d pixels", len(frame), n))
	}

	pixels := make([]led.Color, n)
	for i := range pixels {
		var word uint32
		for p := 0; p < ColorBits; p++ {
			start := i*PixelBits + p*SymbolBits
			symbol := frame.bit(start)<<2 | frame.bit(start+1)<<1 | frame.bit(start+2)

			switch symbol {
			case symbolOne:
				word = word<<1 | 1
			case symbolZero:
				word <<= 1
			default:
				return nil, hal.NewError(hal.KindInvalidArgument,
					fmt.Sprintf("invalid symbol %03b for pixel %d bit %d", symbol, i, p))
			}
		}
		pixels[i] = led.Color{Red: uint8(word >> 8), Green: uint8(word >> 16), Blue: uint8(word)}
	}
	return pixels, nil
}
