//go:build linux && !tinygo

package hal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	deviceTreeCompatiblePath = "/sys/firmware/devicetree/base/compatible"
	thermalZonePath          = "/sys/class/thermal/thermal_zone0/temp"
)

// Platform describes the SoC found in the device tree.
type Platform struct {
	Compatible []string
	Supported  bool
}

// DetectPlatform reads the device tree compatible list. Only the BCM2837 register
// layout is supported; other SoCs are reported with Supported=false.
func DetectPlatform() (Platform, error) {
	raw, err := os.ReadFile(deviceTreeCompatiblePath)
	if err != nil {
		return Platform{}, fmt.Errorf("failed to read device tree compatible string: %w", err)
	}
	return parseCompatible(raw), nil
}

func parseCompatible(raw []byte) Platform {
	var b Platform
	for _, entry := range strings.Split(strings.TrimRight(string(raw), "\x00"), "\x00") {
		if entry == "" {
			continue
		}
		b.Compatible = append(b.Compatible, entry)
		if strings.Contains(entry, "bcm2837") || entry == "raspberrypi,3-model-b" {
			b.Supported = true
		}
	}
	return b
}

func (b Platform) String() string {
	return strings.Join(b.Compatible, ", ")
}

// SocTemperature returns the SoC temperature in degrees Celsius.
func SocTemperature() (float64, error) {
	raw, err := os.ReadFile(thermalZonePath)
	if err != nil {
		return -1, err
	}

	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return -1, err
	}

	temp := float64(milli) / 1000.0
	socTemperature.Set(temp)
	return temp, nil
}
