//go:build linux && !tinygo

package hal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCompatible(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		raw       string
		supported bool
		entries   int
	}{
		{"pi 3b", "raspberrypi,3-model-b\x00brcm,bcm2837\x00", true, 2},
		{"pi 4", "raspberrypi,4-model-b\x00brcm,bcm2711\x00", false, 2},
		{"empty", "", false, 0},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := parseCompatible([]byte(tc.raw))
			assert.Equal(t, tc.supported, p.Supported)
			assert.Len(t, p.Compatible, tc.entries)
		})
	}
}
