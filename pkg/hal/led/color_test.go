package led_test

import (
	"strings"
	"testing"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/led"
	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColor_Scale(t *testing.T) {
	t.Parallel()

	c := led.Color{Red: 255, Green: 100, Blue: 3}
	assert.Equal(t, led.Color{Red: 76, Green: 30, Blue: 0}, c.Scale(0.3))
	assert.Equal(t, c, c.Scale(1))
	assert.Equal(t, led.Color{}, c.Scale(0))
}

func TestParseColor(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in       string
		expected led.Color
		err      bool
	}{
		{"#ff0000", led.Color{Red: 255}, false},
		{"00ff7f", led.Color{Green: 255, Blue: 127}, false},
		{"#fff", led.Color{}, true},
		{"#gg0000", led.Color{}, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			c, err := led.ParseColor(tc.in)
			if tc.err {
				var advised humane.Error
				require.ErrorAs(t, err, &advised)
				assert.Contains(t, advised.Error(), tc.in)
				assert.Equal(t, []string{"Use a #rrggbb hex color, e.g. #00ff00"}, advised.Advice())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, c)
			assert.Equal(t, "#"+strings.TrimPrefix(tc.in, "#"), c.String())
		})
	}
}
