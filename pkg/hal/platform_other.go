//go:build !linux || tinygo

package hal

import "errors"

type Platform struct {
	Compatible []string
	Supported  bool
}

func DetectPlatform() (Platform, error) {
	return Platform{}, errors.New("board detection requires linux")
}

func (b Platform) String() string {
	return ""
}

func SocTemperature() (float64, error) {
	return -1, errors.New("temperature readout requires linux")
}
