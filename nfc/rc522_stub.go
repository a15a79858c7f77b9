//go:build !pi

package nfc

import "errors"

// OpenRC522 needs the SPI and GPIO access that only the pi build carries.
func OpenRC522(busID, deviceID, maxSpeed, resetPin int) (Device, error) {
	return nil, errors.New("rc522 support is only built with the pi tag")
}
