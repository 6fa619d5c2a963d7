//go:build !linux

package rfcomm

import (
	"io"

	"github.com/pkg/errors"
)

// Open is only available on Linux. Elsewhere bind the device to a serial
// port and use the serial driver.
func Open(address string) (io.ReadWriteCloser, error) {
	if _, _, err := ParseAddress(address); err != nil {
		return nil, err
	}
	return nil, errors.New("rfcomm sockets are not supported on this platform")
}
