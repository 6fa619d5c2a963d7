//go:build linux

package rfcomm

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Open connects a stream socket to the device. It blocks until the
// baseband connection and the RFCOMM handshake complete or fail.
func Open(address string) (io.ReadWriteCloser, error) {
	ba, channel, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, errors.Wrap(err, "rfcomm socket")
	}
	if err := unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: ba, Channel: channel}); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "rfcomm connect %s", address)
	}
	return os.NewFile(uintptr(fd), "rfcomm:"+address), nil
}
