//go:build !linux || tinygo

package hal

import "errors"

// LineOutputs is only available on Linux.
type LineOutputs struct{}

func NewLineOutputs(chip string, pins ...int) (*LineOutputs, error) {
	return nil, errors.New("gpio character device is only supported on linux")
}

func (l *LineOutputs) Drive(high, low []int) error {
	return errors.New("gpio character device is only supported on linux")
}

func (l *LineOutputs) Close() error {
	return nil
}
