package led

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sierrasoftworks/humane-errors-go"
)

const colorAdvice = "Use a #rrggbb hex color, e.g. #00ff00"

// Color is a 24 bit RGB pixel value.
type Color struct {
	Red   uint8 `mapstructure:"red" yaml:"red" json:"red"`
	Green uint8 `mapstructure:"green" yaml:"green" json:"green"`
	Blue  uint8 `mapstructure:"blue" yaml:"blue" json:"blue"`
}

// Scale multiplies every component by brightness, truncating toward zero.
func (c Color) Scale(brightness float64) Color {
	return Color{
		Red:   uint8(float64(c.Red) * brightness),
		Green: uint8(float64(c.Green) * brightness),
		Blue:  uint8(float64(c.Blue) * brightness),
	}
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.Red, c.Green, c.Blue)
}

// ParseColor reads a #rrggbb (or rrggbb) hex string.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return Color{}, humane.New(fmt.Sprintf("invalid color %q", s), colorAdvice)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, humane.Wrap(err, fmt.Sprintf("invalid color %q", s), colorAdvice)
	}
	return Color{Red: uint8(v >> 16), Green: uint8(v >> 8), Blue: uint8(v)}, nil
}
