//go:build !cgo

package nfc

import "errors"

// OpenPCSC needs the cgo PC/SC bindings, which this build leaves out.
func OpenPCSC(index int) (Device, error) {
	return nil, errors.New("pcsc support needs a cgo build")
}
